package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies every failure the platform can surface. The taxonomy is
// shared by all services; translation to HTTP happens exactly once, at the
// edge that owns the response.
type Kind string

const (
	ValidationRejected    Kind = "validation_rejected"
	Unauthorized          Kind = "unauthorized"
	Forbidden             Kind = "forbidden"
	NotFound              Kind = "not_found"
	Conflict              Kind = "conflict"
	UnprocessableBusiness Kind = "unprocessable_business"
	Unreachable           Kind = "unreachable"
	Timeout               Kind = "timeout"
	RemoteError           Kind = "remote_error"
	Internal              Kind = "internal"
)

// Error is the single error surface of the platform. Details carries
// structured context (conflicting visit id, available quantity, ...) that
// the edge serializes verbatim.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error with an explicit code.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap attaches a cause without changing the surfaced code or message.
func Wrap(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, cause: cause}
}

// WithDetails returns a copy of e carrying the given details map.
func (e *Error) WithDetails(details map[string]any) *Error {
	clone := *e
	clone.Details = details
	return &clone
}

// From extracts the typed error from err, or wraps it as Internal.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Wrap(Internal, "internal_error", "internal server error", err)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// HTTPStatus maps the taxonomy onto response codes. ValidationRejected is
// 400 by default; schema-level rejections set Code "schema_validation" and
// map to 422.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case ValidationRejected:
		if e.Code == "schema_validation" {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case UnprocessableBusiness:
		return http.StatusUnprocessableEntity
	case Unreachable:
		return http.StatusServiceUnavailable
	case Timeout:
		return http.StatusGatewayTimeout
	case RemoteError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Envelope is the wire shape of an error response.
type Envelope struct {
	ErrorCode string         `json:"error_code"`
	Message   string         `json:"message"`
	Type      string         `json:"type"`
	Details   map[string]any `json:"details,omitempty"`
}

// ToEnvelope renders e in the uniform response shape.
func (e *Error) ToEnvelope() Envelope {
	return Envelope{
		ErrorCode: e.Code,
		Message:   e.Message,
		Type:      string(e.Kind),
		Details:   e.Details,
	}
}
