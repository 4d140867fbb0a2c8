package main

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/broker"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/metrics"
)

var testBusinessMetrics = metrics.NewBusinessMetrics("delivery_test")

type plannerPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *plannerPublisher) Publish(_ context.Context, eventType string, _ any) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return uuid.NewString()
}

func geocodedShipment(store *fakeDeliveryStore, lat, lon float64) *Shipment {
	shipment := &Shipment{
		ID:              uuid.New(),
		OrderID:         uuid.New(),
		CustomerID:      uuid.New(),
		DeliveryAddress: "Calle 1",
		DeliveryCity:    "Bogota",
		Latitude:        &lat,
		Longitude:       &lon,
		GeocodingStatus: GeocodingSuccess,
		Status:          ShipmentPending,
	}
	store.shipments[shipment.ID] = shipment
	return shipment
}

func newPlanner(store *fakeDeliveryStore) (*RoutePlanner, *plannerPublisher) {
	publisher := &plannerPublisher{}
	planner := NewRoutePlanner(store, publisher, nil,
		OptimizerConfig{AvgSpeedKph: 30, StopMinutes: 5},
		slog.New(slog.DiscardHandler), testBusinessMetrics)
	return planner, publisher
}

func TestGenerateRoutesAssignsSequences(t *testing.T) {
	store := newFakeDeliveryStore()
	for i := 0; i < 5; i++ {
		geocodedShipment(store, 4.6+float64(i)*0.01, -74.08)
	}
	store.CreateVehicle(context.Background(), CreateVehicleInput{Plate: "ABC123", Capacity: 10})
	store.CreateVehicle(context.Background(), CreateVehicleInput{Plate: "DEF456", Capacity: 10})

	planner, publisher := newPlanner(store)
	routes, err := planner.GenerateRoutes(context.Background())
	require.NoError(t, err)
	require.Len(t, routes, 2)

	// Each route's shipments carry sequence 0..n-1 with no gaps.
	for _, route := range routes {
		sequences := map[int]bool{}
		count := 0
		for _, shipment := range store.shipments {
			if shipment.RouteID != nil && *shipment.RouteID == route.ID {
				require.NotNil(t, shipment.SequenceInRoute)
				sequences[*shipment.SequenceInRoute] = true
				count++
				assert.Equal(t, ShipmentAssigned, shipment.Status)
			}
		}
		assert.Equal(t, route.TotalOrders, count)
		for i := 0; i < count; i++ {
			assert.True(t, sequences[i], "missing sequence %d", i)
		}
	}

	assert.Equal(t, []string{broker.DeliveryRoutesGeneratedEvent}, publisher.events)
}

func TestGenerateRoutesEmptyBacklogIsNoop(t *testing.T) {
	store := newFakeDeliveryStore()
	store.CreateVehicle(context.Background(), CreateVehicleInput{Plate: "ABC123", Capacity: 10})

	planner, publisher := newPlanner(store)
	routes, err := planner.GenerateRoutes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, routes)
	assert.Empty(t, publisher.events)
}

func TestGenerateRoutesNoVehiclesFails(t *testing.T) {
	store := newFakeDeliveryStore()
	shipment := geocodedShipment(store, 4.6, -74.08)

	planner, publisher := newPlanner(store)
	_, err := planner.GenerateRoutes(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.ValidationRejected))

	// The backlog stays untouched for the next run.
	assert.Nil(t, store.shipments[shipment.ID].RouteID)
	assert.Equal(t, ShipmentPending, store.shipments[shipment.ID].Status)
	assert.Empty(t, publisher.events)
}

func TestGenerateRoutesSecondRunSkipsAssigned(t *testing.T) {
	store := newFakeDeliveryStore()
	geocodedShipment(store, 4.6, -74.08)
	store.CreateVehicle(context.Background(), CreateVehicleInput{Plate: "ABC123", Capacity: 10})

	planner, _ := newPlanner(store)
	first, err := planner.GenerateRoutes(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := planner.GenerateRoutes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second)
}
