package main

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/paging"
)

type GeocodingStatus string

const (
	GeocodingPending GeocodingStatus = "PENDING"
	GeocodingSuccess GeocodingStatus = "SUCCESS"
	GeocodingFailed  GeocodingStatus = "FAILED"
)

type ShipmentStatus string

const (
	ShipmentPending   ShipmentStatus = "PENDING"
	ShipmentAssigned  ShipmentStatus = "ASSIGNED"
	ShipmentInTransit ShipmentStatus = "IN_TRANSIT"
	ShipmentDelivered ShipmentStatus = "DELIVERED"
)

// nextShipmentStatus encodes the forward-only lattice
// PENDING -> ASSIGNED -> IN_TRANSIT -> DELIVERED.
var nextShipmentStatus = map[ShipmentStatus]ShipmentStatus{
	ShipmentPending:   ShipmentAssigned,
	ShipmentAssigned:  ShipmentInTransit,
	ShipmentInTransit: ShipmentDelivered,
}

type RouteStatus string

const (
	RoutePlanned    RouteStatus = "PLANNED"
	RouteInProgress RouteStatus = "IN_PROGRESS"
	RouteCompleted  RouteStatus = "COMPLETED"
	RouteCancelled  RouteStatus = "CANCELLED"
)

// Shipment is one order's pending delivery. order_id is unique: redelivered
// order_created events cannot spawn a second shipment.
type Shipment struct {
	ID                    uuid.UUID       `json:"id"`
	OrderID               uuid.UUID       `json:"order_id"`
	CustomerID            uuid.UUID       `json:"customer_id"`
	DeliveryAddress       string          `json:"delivery_address"`
	DeliveryCity          string          `json:"delivery_city"`
	Latitude              *float64        `json:"latitude,omitempty"`
	Longitude             *float64        `json:"longitude,omitempty"`
	GeocodingStatus       GeocodingStatus `json:"geocoding_status"`
	RouteID               *uuid.UUID      `json:"route_id,omitempty"`
	SequenceInRoute       *int            `json:"sequence_in_route,omitempty"`
	OrderDate             time.Time       `json:"order_date"`
	EstimatedDeliveryDate time.Time       `json:"estimated_delivery_date"`
	Status                ShipmentStatus  `json:"status"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

type Route struct {
	ID                       uuid.UUID   `json:"id"`
	VehicleID                uuid.UUID   `json:"vehicle_id"`
	Date                     time.Time   `json:"date"`
	Status                   RouteStatus `json:"status"`
	EstimatedDurationMinutes int         `json:"estimated_duration_minutes"`
	TotalDistanceKm          string      `json:"total_distance_km"`
	TotalOrders              int         `json:"total_orders"`
	Shipments                []*Shipment `json:"shipments,omitempty"`
	CreatedAt                time.Time   `json:"created_at"`
}

type Vehicle struct {
	ID        uuid.UUID `json:"id"`
	Plate     string    `json:"plate"`
	Capacity  int       `json:"capacity"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateVehicleInput struct {
	Plate    string `json:"plate"`
	Capacity int    `json:"capacity"`
}

type DeliveryStore interface {
	// CreateShipment persists the shipment and the event's ledger row in one
	// transaction; a duplicate event returns ledger.ErrAlreadyProcessed.
	CreateShipment(ctx context.Context, eventID, eventType, payload string, shipment *Shipment) error
	GetShipment(ctx context.Context, id uuid.UUID) (*Shipment, error)
	ListShipments(ctx context.Context, status *ShipmentStatus, p paging.Params) ([]*Shipment, int, error)
	// PendingGeocoded returns the unassigned shipments eligible for routing.
	PendingGeocoded(ctx context.Context) ([]*Shipment, error)
	UpdateShipmentStatus(ctx context.Context, id uuid.UUID, status ShipmentStatus) (*Shipment, error)
	SetGeocoding(ctx context.Context, id uuid.UUID, status GeocodingStatus, lat, lon *float64) error

	// PersistRoutes writes the optimization results and assigns their
	// shipments in one transaction; any failure rolls back the whole batch.
	PersistRoutes(ctx context.Context, routes []*Route, assignments map[uuid.UUID][]uuid.UUID) error
	GetRoute(ctx context.Context, id uuid.UUID) (*Route, error)
	ListRoutes(ctx context.Context, date *time.Time, p paging.Params) ([]*Route, int, error)

	CreateVehicle(ctx context.Context, in CreateVehicleInput) (*Vehicle, error)
	ListVehicles(ctx context.Context, p paging.Params) ([]*Vehicle, int, error)
	// ActiveVehicles returns the routing fleet in stable creation order.
	ActiveVehicles(ctx context.Context) ([]*Vehicle, error)
}
