package main

import (
	"context"

	"github.com/google/uuid"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/httpclient"
)

// RemoteClient mirrors the clients service's representation.
type RemoteClient struct {
	ID               uuid.UUID  `json:"id"`
	InstitutionName  string     `json:"institution_name"`
	Address          string     `json:"address"`
	City             string     `json:"city"`
	Country          string     `json:"country"`
	AssignedSellerID *uuid.UUID `json:"assigned_seller_id,omitempty"`
}

type clientsAPI interface {
	GetClient(ctx context.Context, id uuid.UUID) (*RemoteClient, error)
	AssignSeller(ctx context.Context, clientID, sellerID uuid.UUID) (*RemoteClient, error)
}

type clientsClient struct {
	client *httpclient.Client
}

func NewClientsClient(client *httpclient.Client) clientsAPI {
	return &clientsClient{client: client}
}

func (c *clientsClient) GetClient(ctx context.Context, id uuid.UUID) (*RemoteClient, error) {
	var remote RemoteClient
	err := c.client.Get(ctx, "/clients/"+id.String(), nil, &remote)
	if apperr.IsKind(err, apperr.NotFound) {
		return nil, apperr.New(apperr.NotFound, "client_not_found", "client not found")
	}
	if err != nil {
		return nil, err
	}
	return &remote, nil
}

func (c *clientsClient) AssignSeller(ctx context.Context, clientID, sellerID uuid.UUID) (*RemoteClient, error) {
	var remote RemoteClient
	body := map[string]any{"seller_id": sellerID.String()}
	if err := c.client.Patch(ctx, "/clients/"+clientID.String()+"/assign-seller", body, &remote); err != nil {
		return nil, err
	}
	return &remote, nil
}
