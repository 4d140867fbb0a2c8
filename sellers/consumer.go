package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/broker"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/ledger"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/metrics"
)

// projector credits seller sales plans from order_created events.
type projector struct {
	plans   PlansStore
	logger  *slog.Logger
	metrics *metrics.EventMetrics
	now     func() time.Time
}

func newProjector(plans PlansStore, logger *slog.Logger, m *metrics.EventMetrics) *projector {
	return &projector{plans: plans, logger: logger, metrics: m, now: time.Now}
}

func (p *projector) register(d *broker.Dispatcher) {
	d.Handle(broker.OrderCreatedEvent, p.handleOrderCreated)
}

type orderCreatedPayload struct {
	OrderID    string `json:"order_id"`
	SellerID   string `json:"seller_id"`
	MontoTotal string `json:"monto_total"`
}

func (p *projector) handleOrderCreated(ctx context.Context, env broker.Envelope, body []byte) error {
	var payload orderCreatedPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		p.logger.Warn("dropping order_created with malformed payload",
			slog.String("event_id", env.EventID),
			slog.Any("error", err),
		)
		p.metrics.Consumed.WithLabelValues(env.EventType, "dropped").Inc()
		return nil
	}

	// Orders without a seller (client-app) credit nothing; the ledger entry
	// keeps redeliveries cheap.
	if payload.SellerID == "" {
		err := p.plans.MarkProcessed(ctx, env.EventID, env.EventType, string(body))
		if errors.Is(err, ledger.ErrAlreadyProcessed) {
			p.metrics.Duplicates.WithLabelValues(env.EventType).Inc()
			return nil
		}
		if err != nil {
			return err
		}
		p.metrics.Consumed.WithLabelValues(env.EventType, "ok").Inc()
		return nil
	}

	sellerID, err := uuid.Parse(payload.SellerID)
	if err != nil {
		p.logger.Warn("dropping order_created with invalid seller_id",
			slog.String("event_id", env.EventID),
			slog.String("seller_id", payload.SellerID),
		)
		p.metrics.Consumed.WithLabelValues(env.EventType, "dropped").Inc()
		return nil
	}
	amount, err := decimal.NewFromString(payload.MontoTotal)
	if err != nil {
		p.logger.Warn("dropping order_created with invalid monto_total",
			slog.String("event_id", env.EventID),
			slog.String("monto_total", payload.MontoTotal),
		)
		p.metrics.Consumed.WithLabelValues(env.EventType, "dropped").Inc()
		return nil
	}

	period := QuarterCode(p.now())

	err = p.plans.CreditOrder(ctx, env.EventID, env.EventType, string(body), sellerID, period, amount)
	if errors.Is(err, ledger.ErrAlreadyProcessed) {
		p.logger.Info("skipping duplicate order_created",
			slog.String("event_id", env.EventID),
			slog.String("order_id", payload.OrderID),
		)
		p.metrics.Duplicates.WithLabelValues(env.EventType).Inc()
		return nil
	}
	if errors.Is(err, ErrMissingPlan) {
		// Retryable: the plan may be created later; after MaxRetryCount the
		// message dead-letters for the operator.
		p.metrics.Consumed.WithLabelValues(env.EventType, "missing_plan").Inc()
		return fmt.Errorf("no plan for seller %s in %s: %w", sellerID, period, err)
	}
	if err != nil {
		p.metrics.Consumed.WithLabelValues(env.EventType, "error").Inc()
		return fmt.Errorf("failed to credit plan for order %s: %w", payload.OrderID, err)
	}

	p.logger.Info("sales plan credited",
		slog.String("event_id", env.EventID),
		slog.String("order_id", payload.OrderID),
		slog.String("seller_id", payload.SellerID),
		slog.String("amount", payload.MontoTotal),
		slog.String("period", period),
	)
	p.metrics.Consumed.WithLabelValues(env.EventType, "ok").Inc()
	return nil
}
