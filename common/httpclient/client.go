package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
)

// TransportConfig bounds the process-wide connection pool.
type TransportConfig struct {
	ConnectTimeout time.Duration
	MaxIdleConns   int
	MaxConns       int
}

// NewTransport builds the long-lived HTTP transport shared by every service
// client in the process, instrumented with OpenTelemetry spans.
func NewTransport(cfg TransportConfig) http.RoundTripper {
	base := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		MaxConnsPerHost:     cfg.MaxConns,
		IdleConnTimeout:     90 * time.Second,
	}
	return otelhttp.NewTransport(base)
}

// Client is a typed caller for one downstream service. All requests carry
// the configured per-request timeout; 4xx/5xx responses and transport
// failures are mapped onto the shared error taxonomy. No retries: retry
// policy belongs to the caller.
type Client struct {
	service string
	baseURL string
	http    *http.Client
	timeout time.Duration
}

func New(service, baseURL string, timeout time.Duration, transport http.RoundTripper) *Client {
	return &Client{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: transport},
		timeout: timeout,
	}
}

// Get performs a GET with optional query parameters, decoding a 2xx JSON
// body into out (out may be nil).
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post sends body as JSON and decodes a 2xx response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

// Patch sends body as JSON and decodes a 2xx response into out.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return apperr.Wrap(apperr.Internal, "request_encode_failed",
				fmt.Sprintf("failed to encode request to %s", c.service), err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "request_build_failed",
			fmt.Sprintf("failed to build request to %s", c.service), err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return c.mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperr.Wrap(apperr.RemoteError, "response_decode_failed",
				fmt.Sprintf("invalid JSON from %s", c.service), err)
		}
		return nil
	}

	return c.mapStatusError(resp)
}

func (c *Client) mapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.Timeout, "downstream_timeout",
			fmt.Sprintf("%s did not respond in time", c.service), err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.Wrap(apperr.Timeout, "downstream_timeout",
			fmt.Sprintf("%s did not respond in time", c.service), err)
	}
	return apperr.Wrap(apperr.Unreachable, "downstream_unreachable",
		fmt.Sprintf("%s is unreachable", c.service), err)
}

func (c *Client) mapStatusError(resp *http.Response) error {
	// Downstream services answer with the shared envelope; carry its code
	// and message through when present.
	var remote apperr.Envelope
	_ = json.NewDecoder(resp.Body).Decode(&remote)

	code := remote.ErrorCode
	message := remote.Message
	if code == "" {
		code = fmt.Sprintf("%s_http_%d", c.service, resp.StatusCode)
	}
	if message == "" {
		message = fmt.Sprintf("%s returned status %d", c.service, resp.StatusCode)
	}

	var kind apperr.Kind
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		kind = apperr.ValidationRejected
	case http.StatusNotFound:
		kind = apperr.NotFound
	case http.StatusConflict:
		kind = apperr.Conflict
	default:
		kind = apperr.RemoteError
	}

	err := apperr.New(kind, code, message)
	if remote.Details != nil {
		err = err.WithDetails(remote.Details)
	}
	return err
}
