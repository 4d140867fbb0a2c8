package main

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/google/uuid"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/httpclient"
)

// Downstream bundles the typed clients for every service the gateway
// composes. The gateway never reshapes domain payloads: responses pass
// through as raw JSON and only identity lookups are decoded.
type Downstream struct {
	Clients  *httpclient.Client
	Sellers  *httpclient.Client
	Orders   *httpclient.Client
	Delivery *httpclient.Client
}

// clientIdentity is the slice of the clients service response the gateway
// needs to resolve a subject to a domain id.
type clientIdentity struct {
	ID               uuid.UUID  `json:"id"`
	InstitutionName  string     `json:"institution_name"`
	AssignedSellerID *uuid.UUID `json:"assigned_seller_id"`
}

type sellerIdentity struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func (d *Downstream) clientBySubject(ctx context.Context, subject string) (*clientIdentity, error) {
	var identity clientIdentity
	if err := d.Clients.Get(ctx, "/clients/by-auth/"+url.PathEscape(subject), nil, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

func (d *Downstream) sellerBySubject(ctx context.Context, subject string) (*sellerIdentity, error) {
	var identity sellerIdentity
	if err := d.Sellers.Get(ctx, "/sellers/by-auth/"+url.PathEscape(subject), nil, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// pageQuery forwards the caller's pagination parameters untouched; the
// downstream service validates them.
func pageQuery(values url.Values) url.Values {
	forwarded := url.Values{}
	for _, key := range []string{"limit", "offset"} {
		if v := values.Get(key); v != "" {
			forwarded.Set(key, v)
		}
	}
	return forwarded
}

// passthrough decodes into a RawMessage so the downstream body reaches the
// caller byte for byte.
type passthrough = json.RawMessage
