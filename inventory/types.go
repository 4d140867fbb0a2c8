package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/paging"
)

// Inventory is one batch of a product sitting in one warehouse. Product and
// warehouse fields are denormalized so order creation can snapshot them in a
// single read.
type Inventory struct {
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
	Quantity          int             `json:"quantity"`
	ReservedQuantity  int             `json:"reserved_quantity"`
	AvailableQuantity int             `json:"available_quantity"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ReservedItem is one line of an order whose reservation gets committed when
// the order_created event arrives.
type ReservedItem struct {
	InventoryID uuid.UUID `json:"inventory_id"`
	Quantity    int       `json:"quantity"`
}

type InventoryStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Inventory, error)
	List(ctx context.Context, p paging.Params) ([]*Inventory, int, error)
	// Reserve applies a signed delta to reserved_quantity: positive values
	// reserve stock, negative values release it.
	Reserve(ctx context.Context, id uuid.UUID, delta int) (*Inventory, error)
	// CommitOrderReservation converts an order's reserved quantities into a
	// real stock decrement, exactly once per event id.
	CommitOrderReservation(ctx context.Context, eventID, eventType, payload string, items []ReservedItem) error
}
