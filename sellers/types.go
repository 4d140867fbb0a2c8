package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/paging"
)

type Seller struct {
	ID             uuid.UUID `json:"id"`
	ExternalAuthID string    `json:"external_auth_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Zone           string    `json:"zone"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type CreateSellerInput struct {
	ExternalAuthID string `json:"external_auth_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Zone           string `json:"zone"`
}

type VisitStatus string

const (
	VisitScheduled VisitStatus = "SCHEDULED"
	VisitCompleted VisitStatus = "COMPLETED"
	VisitCancelled VisitStatus = "CANCELLED"
)

// MinVisitLead is how far in the future a visit must be scheduled.
const MinVisitLead = 24 * time.Hour

// ConflictWindow is the exclusion zone around a seller's existing visits.
const ConflictWindow = 180 * time.Minute

// Visit carries a denormalized snapshot of the client at scheduling time;
// status changes never rewrite the snapshot.
type Visit struct {
	ID                uuid.UUID   `json:"id"`
	SellerID          uuid.UUID   `json:"seller_id"`
	ClientID          uuid.UUID   `json:"client_id"`
	FechaVisita       time.Time   `json:"fecha_visita"`
	Notes             string      `json:"notes,omitempty"`
	Status            VisitStatus `json:"status"`
	Recommendations   string      `json:"recommendations,omitempty"`
	EvidenceURL       *string     `json:"evidence_url,omitempty"`
	ClientInstitution string      `json:"client_institution"`
	ClientAddress     string      `json:"client_address"`
	ClientCity        string      `json:"client_city"`
	ClientCountry     string      `json:"client_country"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

type CreateVisitInput struct {
	SellerID    uuid.UUID `json:"seller_id"`
	ClientID    uuid.UUID `json:"client_id"`
	FechaVisita time.Time `json:"fecha_visita"`
	Notes       string    `json:"notes,omitempty"`
}

type GoalType string

const (
	GoalSales  GoalType = "SALES"
	GoalOrders GoalType = "ORDERS"
)

// SalesPlan tracks a seller's quarterly target. Accumulated moves only by
// atomic in-database adds so concurrent projections cannot lose credits.
type SalesPlan struct {
	ID          uuid.UUID `json:"id"`
	SellerID    uuid.UUID `json:"seller_id"`
	SalesPeriod string    `json:"sales_period"`
	GoalType    GoalType  `json:"goal_type"`
	Goal        string    `json:"goal"`
	Accumulated string    `json:"accumulated"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateSalesPlanInput struct {
	SellerID    uuid.UUID `json:"seller_id"`
	SalesPeriod string    `json:"sales_period"`
	GoalType    GoalType  `json:"goal_type"`
	Goal        string    `json:"goal"`
}

// QuarterCode renders the sales period a timestamp falls into, in UTC.
// January through March is Q1.
func QuarterCode(t time.Time) string {
	t = t.UTC()
	quarter := (int(t.Month())-1)/3 + 1
	return fmt.Sprintf("Q%d-%d", quarter, t.Year())
}

type SellersStore interface {
	CreateSeller(ctx context.Context, in CreateSellerInput) (*Seller, error)
	GetSeller(ctx context.Context, id uuid.UUID) (*Seller, error)
	GetSellerByAuthID(ctx context.Context, externalAuthID string) (*Seller, error)
	ListSellers(ctx context.Context, p paging.Params) ([]*Seller, int, error)
}

type VisitsStore interface {
	// CreateVisit inserts the visit while holding a per-seller lock so the
	// time-conflict check and the insert are serialized.
	CreateVisit(ctx context.Context, visit *Visit) error
	GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error)
	ListVisits(ctx context.Context, sellerID *uuid.UUID, p paging.Params) ([]*Visit, int, error)
	UpdateVisitStatus(ctx context.Context, id uuid.UUID, status VisitStatus, recommendations string) (*Visit, error)
	SetEvidenceURL(ctx context.Context, id uuid.UUID, url string) (*Visit, error)
}

type PlansStore interface {
	CreatePlan(ctx context.Context, in CreateSalesPlanInput) (*SalesPlan, error)
	ListPlans(ctx context.Context, sellerID *uuid.UUID, p paging.Params) ([]*SalesPlan, int, error)
	// CreditOrder atomically adds amount to the seller's plan for the period
	// and marks the event processed, all in one transaction.
	CreditOrder(ctx context.Context, eventID, eventType, payload string, sellerID uuid.UUID, period string, amount decimal.Decimal) error
	// MarkProcessed records an event that needs no projection.
	MarkProcessed(ctx context.Context, eventID, eventType, payload string) error
}
