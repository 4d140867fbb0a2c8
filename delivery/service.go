package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/broker"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/metrics"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/realtime"
)

type eventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) string
}

// RoutePlanner runs the daily route generation: collect the geocoded backlog,
// optimize it across the active fleet, persist the result atomically and
// announce it.
type RoutePlanner struct {
	store     DeliveryStore
	publisher eventPublisher
	notifier  *realtime.Notifier
	config    OptimizerConfig
	logger    *slog.Logger
	business  *metrics.BusinessMetrics
	now       func() time.Time
}

func NewRoutePlanner(
	store DeliveryStore,
	publisher eventPublisher,
	notifier *realtime.Notifier,
	config OptimizerConfig,
	logger *slog.Logger,
	business *metrics.BusinessMetrics,
) *RoutePlanner {
	return &RoutePlanner{
		store:     store,
		publisher: publisher,
		notifier:  notifier,
		config:    config,
		logger:    logger,
		business:  business,
		now:       time.Now,
	}
}

// GenerateRoutes plans routes for every pending geocoded shipment. With no
// backlog it is a no-op; with no active vehicles it fails and leaves the
// backlog untouched for the next run.
func (p *RoutePlanner) GenerateRoutes(ctx context.Context) ([]*Route, error) {
	shipments, err := p.store.PendingGeocoded(ctx)
	if err != nil {
		return nil, err
	}
	if len(shipments) == 0 {
		p.logger.Info("no shipments pending routing")
		return nil, nil
	}

	vehicles, err := p.store.ActiveVehicles(ctx)
	if err != nil {
		return nil, err
	}
	vehicleIDs := make([]uuid.UUID, len(vehicles))
	for i, vehicle := range vehicles {
		vehicleIDs[i] = vehicle.ID
	}

	input := make([]OptimizerShipment, len(shipments))
	for i, shipment := range shipments {
		input[i] = OptimizerShipment{
			ID:        shipment.ID,
			Latitude:  *shipment.Latitude,
			Longitude: *shipment.Longitude,
		}
	}

	results, err := OptimizeRoutes(input, vehicleIDs, p.config)
	if err != nil {
		return nil, err
	}

	date := p.now().UTC().Truncate(24 * time.Hour)
	routes := make([]*Route, 0, len(results))
	assignments := make(map[uuid.UUID][]uuid.UUID, len(results))
	for _, result := range results {
		route := &Route{
			ID:                       uuid.New(),
			VehicleID:                result.VehicleID,
			Date:                     date,
			Status:                   RoutePlanned,
			EstimatedDurationMinutes: result.EstimatedDurationMinutes,
			TotalDistanceKm:          result.TotalDistanceKm.StringFixed(2),
			TotalOrders:              len(result.ShipmentIDs),
		}
		routes = append(routes, route)
		assignments[route.ID] = result.ShipmentIDs
	}

	if err := p.store.PersistRoutes(ctx, routes, assignments); err != nil {
		return nil, err
	}

	for range routes {
		p.business.RoutesGenerated.Inc()
	}
	p.logger.Info("delivery routes generated",
		slog.Int("routes", len(routes)),
		slog.Int("shipments", len(shipments)),
	)

	p.publisher.Publish(ctx, broker.DeliveryRoutesGeneratedEvent, nil)
	p.notifier.Publish(ctx, "logistics", "routes_generated", map[string]any{
		"routes": len(routes),
		"date":   date.Format("2006-01-02"),
	})

	return routes, nil
}
