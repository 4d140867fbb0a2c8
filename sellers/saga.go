package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/broker"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/metrics"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/realtime"
)

type eventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) string
}

// VisitSaga coordinates visit creation across the clients service and the
// local visits table. The only remote mutation is the seller assignment,
// and it happens before any local write: if the local insert later fails the
// client simply stays assigned, which is the intended end state anyway.
type VisitSaga struct {
	visits    VisitsStore
	clients   clientsAPI
	publisher eventPublisher
	notifier  *realtime.Notifier
	logger    *slog.Logger
	business  *metrics.BusinessMetrics
	now       func() time.Time
}

func NewVisitSaga(
	visits VisitsStore,
	clients clientsAPI,
	publisher eventPublisher,
	notifier *realtime.Notifier,
	logger *slog.Logger,
	business *metrics.BusinessMetrics,
) *VisitSaga {
	return &VisitSaga{
		visits:    visits,
		clients:   clients,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
		business:  business,
		now:       time.Now,
	}
}

func (s *VisitSaga) CreateVisit(ctx context.Context, in CreateVisitInput) (*Visit, error) {
	if in.SellerID == uuid.Nil || in.ClientID == uuid.Nil || in.FechaVisita.IsZero() {
		return nil, apperr.New(apperr.ValidationRejected, "missing_fields",
			"seller_id, client_id and fecha_visita are required")
	}

	// All local validation happens before the remote assignment: a rejected
	// request must leave the client untouched.
	if !in.FechaVisita.After(s.now().Add(MinVisitLead)) {
		return nil, apperr.New(apperr.Conflict, "invalid_visit_date",
			"fecha_visita must be at least 24 hours in the future")
	}

	client, err := s.clients.GetClient(ctx, in.ClientID)
	if err != nil {
		return nil, err
	}

	switch {
	case client.AssignedSellerID == nil:
		client, err = s.clients.AssignSeller(ctx, in.ClientID, in.SellerID)
		if err != nil {
			// Lost the assignment race or the call failed; the client was
			// untouched by us, nothing to compensate.
			return nil, translateAssignError(err)
		}
	case *client.AssignedSellerID == in.SellerID:
		// Already ours.
	default:
		return nil, apperr.New(apperr.Forbidden, "client_assigned_to_other_seller",
			"client is assigned to another seller").WithDetails(map[string]any{
			"client_id":          client.ID.String(),
			"client_name":        client.InstitutionName,
			"assigned_seller_id": client.AssignedSellerID.String(),
		})
	}

	visit := &Visit{
		ID:                uuid.New(),
		SellerID:          in.SellerID,
		ClientID:          in.ClientID,
		FechaVisita:       in.FechaVisita,
		Notes:             in.Notes,
		Status:            VisitScheduled,
		ClientInstitution: client.InstitutionName,
		ClientAddress:     client.Address,
		ClientCity:        client.City,
		ClientCountry:     client.Country,
	}

	if err := s.visits.CreateVisit(ctx, visit); err != nil {
		return nil, err
	}

	s.business.VisitsCreated.Inc()
	s.publisher.Publish(ctx, broker.VisitCreatedEvent, map[string]any{
		"visit_id":     visit.ID.String(),
		"seller_id":    visit.SellerID.String(),
		"client_id":    visit.ClientID.String(),
		"fecha_visita": visit.FechaVisita,
	})
	s.notifier.Publish(ctx, "sellers:"+visit.SellerID.String(), "visit_created",
		map[string]any{"visit_id": visit.ID.String()})

	s.logger.Info("visit created",
		slog.String("visit_id", visit.ID.String()),
		slog.String("seller_id", visit.SellerID.String()),
		slog.String("client_id", visit.ClientID.String()),
	)
	return s.visits.GetVisit(ctx, visit.ID)
}

// translateAssignError maps the clients service's assignment conflict to the
// saga's 403: from the seller's perspective the client belongs to someone
// else, regardless of when that happened.
func translateAssignError(err error) error {
	if apperr.IsKind(err, apperr.Conflict) {
		out := apperr.New(apperr.Forbidden, "client_assigned_to_other_seller",
			"client is assigned to another seller")
		if details := apperr.From(err).Details; details != nil {
			out = out.WithDetails(details)
		}
		return out
	}
	return err
}
