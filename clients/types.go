package main

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/paging"
)

// Client is an institutional customer. assigned_seller_id is a single-writer
// mutation owned by the visit saga: once set it only changes through
// explicit reassignment, never concurrently.
type Client struct {
	ID               uuid.UUID  `json:"id"`
	ExternalAuthID   string     `json:"external_auth_id"`
	NIT              string     `json:"nit"`
	InstitutionName  string     `json:"institution_name"`
	ContactName      string     `json:"contact_name"`
	ContactPhone     string     `json:"contact_phone"`
	ContactEmail     string     `json:"contact_email"`
	Address          string     `json:"address"`
	City             string     `json:"city"`
	Country          string     `json:"country"`
	AssignedSellerID *uuid.UUID `json:"assigned_seller_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type CreateClientInput struct {
	ExternalAuthID  string `json:"external_auth_id"`
	NIT             string `json:"nit"`
	InstitutionName string `json:"institution_name"`
	ContactName     string `json:"contact_name"`
	ContactPhone    string `json:"contact_phone"`
	ContactEmail    string `json:"contact_email"`
	Address         string `json:"address"`
	City            string `json:"city"`
	Country         string `json:"country"`
}

type ClientsStore interface {
	Create(ctx context.Context, in CreateClientInput) (*Client, error)
	Get(ctx context.Context, id uuid.UUID) (*Client, error)
	GetByAuthID(ctx context.Context, externalAuthID string) (*Client, error)
	List(ctx context.Context, sellerID *uuid.UUID, p paging.Params) ([]*Client, int, error)
	AssignSeller(ctx context.Context, clientID, sellerID uuid.UUID) (*Client, error)
}
