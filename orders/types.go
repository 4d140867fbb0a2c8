package main

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/paging"
)

// CreationMethod selects which contextual ids an order must carry.
type CreationMethod string

const (
	MethodSellerVisit CreationMethod = "SELLER_VISIT"
	MethodClientApp   CreationMethod = "CLIENT_APP"
	MethodSellerApp   CreationMethod = "SELLER_APP"
)

func (m CreationMethod) Valid() bool {
	switch m {
	case MethodSellerVisit, MethodClientApp, MethodSellerApp:
		return true
	}
	return false
}

// Order is the aggregate root, persisted as a single document so the order
// and its items commit atomically. Money travels as string decimals with two
// decimal places. Customer and seller snapshots are historical: later edits
// to those records never rewrite persisted orders.
type Order struct {
	ID                    string         `bson:"_id" json:"id"`
	CustomerID            string         `bson:"customer_id" json:"customer_id"`
	SellerID              *string        `bson:"seller_id,omitempty" json:"seller_id,omitempty"`
	VisitID               *string        `bson:"visit_id,omitempty" json:"visit_id,omitempty"`
	CreationMethod        CreationMethod `bson:"creation_method" json:"metodo_creacion"`
	CustomerName          string         `bson:"customer_name" json:"client_nombre"`
	CustomerNIT           string         `bson:"customer_nit" json:"customer_nit"`
	SellerName            string         `bson:"seller_name,omitempty" json:"seller_name,omitempty"`
	DeliveryAddress       string         `bson:"delivery_address" json:"delivery_address"`
	DeliveryCity          string         `bson:"delivery_city" json:"delivery_city"`
	DeliveryCountry       string         `bson:"delivery_country" json:"delivery_country"`
	DeliveryDateEstimated *time.Time     `bson:"delivery_date_estimated,omitempty" json:"delivery_date_estimated,omitempty"`
	TotalAmount           string         `bson:"total_amount" json:"monto_total"`
	Items                 []OrderItem    `bson:"items" json:"items"`
	CreatedAt             time.Time      `bson:"created_at" json:"created_at"`
}

type OrderItem struct {
	ID               string    `bson:"id" json:"id"`
	ProductID        string    `bson:"product_id" json:"product_id"`
	InventoryID      string    `bson:"inventory_id" json:"inventory_id"`
	WarehouseID      string    `bson:"warehouse_id" json:"warehouse_id"`
	ProductName      string    `bson:"product_name" json:"product_name"`
	ProductSKU       string    `bson:"product_sku" json:"product_sku"`
	WarehouseName    string    `bson:"warehouse_name" json:"warehouse_name"`
	WarehouseCity    string    `bson:"warehouse_city" json:"warehouse_city"`
	WarehouseCountry string    `bson:"warehouse_country" json:"warehouse_country"`
	BatchNumber      string    `bson:"batch_number" json:"batch_number"`
	ExpirationDate   time.Time `bson:"expiration_date" json:"expiration_date"`
	Quantity         int       `bson:"quantity" json:"quantity"`
	UnitPrice        string    `bson:"unit_price" json:"unit_price"`
	TotalPrice       string    `bson:"total_price" json:"total_price"`
}

type OrderItemInput struct {
	InventoryID uuid.UUID `json:"inventory_id"`
	Quantity    int       `json:"quantity"`
}

type CreateOrderInput struct {
	CustomerID      uuid.UUID        `json:"customer_id"`
	SellerID        *uuid.UUID       `json:"seller_id,omitempty"`
	VisitID         *uuid.UUID       `json:"visit_id,omitempty"`
	CreationMethod  CreationMethod   `json:"metodo_creacion"`
	DeliveryAddress string           `json:"delivery_address"`
	DeliveryCity    string           `json:"delivery_city"`
	DeliveryCountry string           `json:"delivery_country"`
	Items           []OrderItemInput `json:"items"`
}

// OrderFilter narrows listings; at most one field is set (the gateway
// enforces mutual exclusivity, the store just applies what it gets).
type OrderFilter struct {
	CustomerID *uuid.UUID
	SellerID   *uuid.UUID
}

type OrdersStore interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context, filter OrderFilter, p paging.Params) ([]*Order, int, error)
}
