package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/broker"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/ledger"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/metrics"
)

// consumer commits order reservations when order_created events arrive.
type consumer struct {
	store   InventoryStore
	logger  *slog.Logger
	metrics *metrics.EventMetrics
}

func newConsumer(store InventoryStore, logger *slog.Logger, m *metrics.EventMetrics) *consumer {
	return &consumer{store: store, logger: logger, metrics: m}
}

func (c *consumer) register(d *broker.Dispatcher) {
	d.Handle(broker.OrderCreatedEvent, c.handleOrderCreated)
}

type orderCreatedPayload struct {
	OrderID string         `json:"order_id"`
	Items   []ReservedItem `json:"items"`
}

func (c *consumer) handleOrderCreated(ctx context.Context, env broker.Envelope, body []byte) error {
	var payload orderCreatedPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		// Malformed payloads never become processable; drop without retry.
		c.logger.Warn("dropping order_created with malformed payload",
			slog.String("event_id", env.EventID),
			slog.Any("error", err),
		)
		c.metrics.Consumed.WithLabelValues(env.EventType, "dropped").Inc()
		return nil
	}
	if len(payload.Items) == 0 {
		c.logger.Warn("dropping order_created with no items",
			slog.String("event_id", env.EventID),
		)
		c.metrics.Consumed.WithLabelValues(env.EventType, "dropped").Inc()
		return nil
	}

	err := c.store.CommitOrderReservation(ctx, env.EventID, env.EventType, string(body), payload.Items)
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
		return fmt.Errorf("failed to commit reservation for order %s: %w", payload.OrderID, err)
	}

	c.logger.Info("order reservation committed",
		slog.String("event_id", env.EventID),
		slog.String("order_id", payload.OrderID),
		slog.Int("items", len(payload.Items)),
	)
	c.metrics.Consumed.WithLabelValues(env.EventType, "ok").Inc()
	return nil
}
