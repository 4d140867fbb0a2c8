package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/httpclient"
)

// Customer is the subset of the clients service's representation the
// pipeline snapshots into orders.
type Customer struct {
	ID              uuid.UUID `json:"id"`
	NIT             string    `json:"nit"`
	InstitutionName string    `json:"institution_name"`
	Address         string    `json:"address"`
	City            string    `json:"city"`
	Country         string    `json:"country"`
}

// Seller is the subset of the sellers service's representation needed for
// the order's seller snapshot.
type Seller struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// RemoteInventory mirrors the inventory service's resource.
type RemoteInventory struct {
	ID                uuid.UUID       `json:"id"`
	ProductID         uuid.UUID       `json:"product_id"`
	ProductName       string          `json:"product_name"`
	ProductSKU        string          `json:"product_sku"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	WarehouseID       uuid.UUID       `json:"warehouse_id"`
	WarehouseName     string          `json:"warehouse_name"`
	WarehouseCity     string          `json:"warehouse_city"`
	WarehouseCountry  string          `json:"warehouse_country"`
	BatchNumber       string          `json:"batch_number"`
	ExpirationDate    time.Time       `json:"expiration_date"`
	AvailableQuantity int             `json:"available_quantity"`
}

type customersAPI interface {
	GetCustomer(ctx context.Context, id uuid.UUID) (*Customer, error)
}

// RemoteVisit is the sellers service's visit resource; the pipeline only
// checks that the referenced visit exists.
type RemoteVisit struct {
	ID       uuid.UUID `json:"id"`
	SellerID uuid.UUID `json:"seller_id"`
	Status   string    `json:"status"`
}

type sellersAPI interface {
	GetSeller(ctx context.Context, id uuid.UUID) (*Seller, error)
	GetVisit(ctx context.Context, id uuid.UUID) (*RemoteVisit, error)
}

type inventoryAPI interface {
	GetInventory(ctx context.Context, id uuid.UUID) (*RemoteInventory, error)
	// Reserve applies a signed quantity delta; negative releases.
	Reserve(ctx context.Context, id uuid.UUID, delta int, orderID string) error
}

type customersClient struct {
	client *httpclient.Client
}

func NewCustomersClient(client *httpclient.Client) customersAPI {
	return &customersClient{client: client}
}

func (c *customersClient) GetCustomer(ctx context.Context, id uuid.UUID) (*Customer, error) {
	var customer Customer
	err := c.client.Get(ctx, "/clients/"+id.String(), nil, &customer)
	if apperr.IsKind(err, apperr.NotFound) {
		return nil, apperr.New(apperr.NotFound, "customer_not_found", "customer not found")
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

type sellersClient struct {
	client *httpclient.Client
}

func NewSellersClient(client *httpclient.Client) sellersAPI {
	return &sellersClient{client: client}
}

func (c *sellersClient) GetSeller(ctx context.Context, id uuid.UUID) (*Seller, error) {
	var seller Seller
	err := c.client.Get(ctx, "/sellers/"+id.String(), nil, &seller)
	if apperr.IsKind(err, apperr.NotFound) {
		return nil, apperr.New(apperr.NotFound, "seller_not_found", "seller not found")
	}
	if err != nil {
		return nil, err
	}
	return &seller, nil
}

func (c *sellersClient) GetVisit(ctx context.Context, id uuid.UUID) (*RemoteVisit, error) {
	var visit RemoteVisit
	err := c.client.Get(ctx, "/visits/"+id.String(), nil, &visit)
	if apperr.IsKind(err, apperr.NotFound) {
		return nil, apperr.New(apperr.NotFound, "visit_not_found", "visit not found")
	}
	if err != nil {
		return nil, err
	}
	return &visit, nil
}

type inventoryClient struct {
	client *httpclient.Client
}

func NewInventoryClient(client *httpclient.Client) inventoryAPI {
	return &inventoryClient{client: client}
}

func (c *inventoryClient) GetInventory(ctx context.Context, id uuid.UUID) (*RemoteInventory, error) {
	var inv RemoteInventory
	err := c.client.Get(ctx, "/inventories/"+id.String(), nil, &inv)
	if apperr.IsKind(err, apperr.NotFound) {
		return nil, apperr.New(apperr.NotFound, "inventory_not_found",
			fmt.Sprintf("inventory %s not found", id))
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (c *inventoryClient) Reserve(ctx context.Context, id uuid.UUID, delta int, orderID string) error {
	body := map[string]any{"quantity": delta, "order_id": orderID}
	return c.client.Patch(ctx, "/inventories/"+id.String()+"/reserve", body, nil)
}
