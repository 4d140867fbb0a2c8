package broker

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher emits domain events on behalf of one service. Publication is
// fire-and-forget: delivery is at-least-once and failures are logged, never
// raised to the caller's request path.
type Publisher struct {
	ch           *amqp.Channel
	microservice string
	logger       *slog.Logger
}

func NewPublisher(ch *amqp.Channel, microservice string, logger *slog.Logger) *Publisher {
	return &Publisher{
		ch:           ch,
		microservice: microservice,
		logger:       logger,
	}
}

// Publish serializes the payload under a fresh envelope and sends it to the
// event's exchange. Returns the event id; an empty id means publication
// failed (and was logged).
func (p *Publisher) Publish(ctx context.Context, eventType string, payload any) string {
	env := NewEnvelope(eventType, p.microservice)

	body, err := MarshalEvent(env, payload)
	if err != nil {
		p.logger.Error("failed to serialize event",
			slog.String("event_type", eventType),
			slog.Any("error", err),
		)
		return ""
	}

	err = p.ch.PublishWithContext(
		ctx,
		eventType, // exchange
		"",        // routing key: fanout ignores it
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Headers:      InjectTraceContext(ctx),
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		p.logger.Error("failed to publish event",
			slog.String("event_type", eventType),
			slog.String("event_id", env.EventID),
			slog.Any("error", err),
		)
		return ""
	}

	p.logger.Info("event published",
		slog.String("event_type", eventType),
		slog.String("event_id", env.EventID),
	)
	return env.EventID
}
