package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/broker"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/ledger"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/metrics"
)

const deliveryLeadTime = 24 * time.Hour

// consumer turns order_created events into pending shipments.
type consumer struct {
	store    DeliveryStore
	geocoder Geocoder
	logger   *slog.Logger
	metrics  *metrics.EventMetrics
	now      func() time.Time
}

func newConsumer(store DeliveryStore, geocoder Geocoder, logger *slog.Logger, m *metrics.EventMetrics) *consumer {
	return &consumer{
		store:    store,
		geocoder: geocoder,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

func (c *consumer) register(d *broker.Dispatcher) {
	d.Handle(broker.OrderCreatedEvent, c.handleOrderCreated)
}

type orderCreatedPayload struct {
	OrderID         string `json:"order_id"`
	CustomerID      string `json:"customer_id"`
	DeliveryAddress string `json:"delivery_address"`
	DeliveryCity    string `json:"delivery_city"`
}

func (c *consumer) handleOrderCreated(ctx context.Context, env broker.Envelope, body []byte) error {
	var payload orderCreatedPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.logger.Warn("dropping order_created with malformed payload",
			slog.String("event_id", env.EventID),
			slog.Any("error", err),
		)
		c.metrics.Consumed.WithLabelValues(env.EventType, "dropped").Inc()
		return nil
	}

	orderID, err := uuid.Parse(payload.OrderID)
	if err != nil {
		c.logger.Warn("dropping order_created with invalid order id",
			slog.String("event_id", env.EventID),
			slog.String("order_id", payload.OrderID),
		)
		c.metrics.Consumed.WithLabelValues(env.EventType, "dropped").Inc()
		return nil
	}
	customerID, err := uuid.Parse(payload.CustomerID)
	if err != nil {
		c.logger.Warn("dropping order_created with invalid customer id",
			slog.String("event_id", env.EventID),
			slog.String("customer_id", payload.CustomerID),
		)
		c.metrics.Consumed.WithLabelValues(env.EventType, "dropped").Inc()
		return nil
	}
	if payload.DeliveryAddress == "" || payload.DeliveryCity == "" {
		c.logger.Warn("dropping order_created without delivery address",
			slog.String("event_id", env.EventID),
			slog.String("order_id", payload.OrderID),
		)
		c.metrics.Consumed.WithLabelValues(env.EventType, "dropped").Inc()
		return nil
	}

	orderDate, err := time.Parse(time.RFC3339, env.Timestamp)
	if err != nil {
		orderDate = c.now().UTC()
	}

	shipment := &Shipment{
		ID:                    uuid.New(),
		OrderID:               orderID,
		CustomerID:            customerID,
		DeliveryAddress:       payload.DeliveryAddress,
		DeliveryCity:          payload.DeliveryCity,
		GeocodingStatus:       GeocodingPending,
		OrderDate:             orderDate,
		EstimatedDeliveryDate: orderDate.Add(deliveryLeadTime),
		Status:                ShipmentPending,
	}

	err = c.store.CreateShipment(ctx, env.EventID, env.EventType, string(body), shipment)
	if errors.Is(err, ledger.ErrAlreadyProcessed) {
		c.logger.Info("skipping duplicate order_created",
			slog.String("event_id", env.EventID),
			slog.String("order_id", payload.OrderID),
		)
		c.metrics.Duplicates.WithLabelValues(env.EventType).Inc()
		return nil
	}
	if err != nil {
		c.metrics.Consumed.WithLabelValues(env.EventType, "error").Inc()
		return fmt.Errorf("failed to create shipment for order %s: %w", payload.OrderID, err)
	}

	c.geocode(ctx, shipment)

	c.logger.Info("shipment created",
		slog.String("event_id", env.EventID),
		slog.String("order_id", payload.OrderID),
		slog.String("shipment_id", shipment.ID.String()),
	)
	c.metrics.Consumed.WithLabelValues(env.EventType, "ok").Inc()
	return nil
}

// geocode is best effort: a failed lookup leaves the shipment out of the next
// routing run but never fails the event, which is already persisted.
func (c *consumer) geocode(ctx context.Context, shipment *Shipment) {
	lat, lon, err := c.geocoder.Geocode(ctx, shipment.DeliveryAddress, shipment.DeliveryCity)
	if err != nil {
		c.logger.Warn("geocoding failed",
			slog.String("shipment_id", shipment.ID.String()),
			slog.String("city", shipment.DeliveryCity),
			slog.Any("error", err),
		)
		if err := c.store.SetGeocoding(ctx, shipment.ID, GeocodingFailed, nil, nil); err != nil {
			c.logger.Error("failed to record geocoding failure",
				slog.String("shipment_id", shipment.ID.String()),
				slog.Any("error", err),
			)
		}
		return
	}

	if err := c.store.SetGeocoding(ctx, shipment.ID, GeocodingSuccess, &lat, &lon); err != nil {
		c.logger.Error("failed to record geocoding result",
			slog.String("shipment_id", shipment.ID.String()),
			slog.Any("error", err),
		)
	}
}
