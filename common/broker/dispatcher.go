package broker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
)

// HandlerFunc processes one inbound event. The raw body is passed alongside
// the parsed envelope so handlers can decode their own payload shape.
// Returning an error requeues the message (bounded by MaxRetryCount).
type HandlerFunc func(ctx context.Context, env Envelope, body []byte) error

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Dispatcher consumes the per-service queues of the registered event types
// and routes deliveries to their handlers.
//
// Acknowledgement contract: malformed JSON and unregistered event types are
// acknowledged and dropped (permanent failures); handler errors are retried
// with an x-retry-count header and dead-lettered after MaxRetryCount.
type Dispatcher struct {
	service  string
	ch       *amqp.Channel
	pub      amqpPublisher
	logger   *slog.Logger
	prefetch int
	handlers map[string]HandlerFunc
	wg       sync.WaitGroup
}

func NewDispatcher(ch *amqp.Channel, service string, prefetch int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		service:  service,
		ch:       ch,
		pub:      ch,
		logger:   logger,
		prefetch: prefetch,
		handlers: map[string]HandlerFunc{},
	}
}

// Handle registers the handler for an event type. Must be called before Run.
func (d *Dispatcher) Handle(eventType string, fn HandlerFunc) {
	d.handlers[eventType] = fn
}

// Run declares one queue per registered event type and consumes them until
// ctx is cancelled. Deliveries on each queue are processed sequentially;
// horizontal parallelism comes from running more instances.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.ch.Qos(d.prefetch, 0, false); err != nil {
		return err
	}

	for eventType := range d.handlers {
		queue, err := DeclareConsumerQueue(d.ch, d.service, eventType)
		if err != nil {
			return err
		}

		msgs, err := d.ch.Consume(queue, "", false, false, false, false, nil)
		if err != nil {
			return err
		}

		d.logger.Info("consumer started",
			slog.String("queue", queue),
			slog.String("event_type", eventType),
		)

		d.wg.Add(1)
		go func(queue string, msgs <-chan amqp.Delivery) {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case delivery, ok := <-msgs:
					if !ok {
						return
					}
					d.dispatch(ctx, queue, &delivery)
				}
			}
		}(queue, msgs)
	}

	<-ctx.Done()
	d.wg.Wait()
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, queue string, delivery *amqp.Delivery) {
	ctx = ExtractTraceContext(ctx, delivery.Headers)
	tracer := otel.Tracer(d.service)
	ctx, span := tracer.Start(ctx, "AMQP - consume - "+queue)
	defer span.End()

	env, err := ParseEnvelope(delivery.Body)
	if err != nil {
		d.logger.Warn("dropping malformed event",
			slog.String("queue", queue),
			slog.Any("error", err),
		)
		_ = delivery.Ack(false)
		return
	}

	handler, ok := d.handlers[env.EventType]
	if !ok {
		// Unknown events are acknowledged so they do not loop forever.
		d.logger.Debug("ignoring event with no handler",
			slog.String("event_type", env.EventType),
		)
		_ = delivery.Ack(false)
		return
	}

	if err := handler(ctx, env, delivery.Body); err != nil {
		d.logger.Error("event handler failed",
			slog.String("event_type", env.EventType),
			slog.String("event_id", env.EventID),
			slog.Any("error", err),
		)
		d.retry(ctx, queue, delivery)
		return
	}

	_ = delivery.Ack(false)
}

// retry republishes the delivery to its queue with an incremented
// x-retry-count header; past MaxRetryCount the message is nacked without
// requeue so the queue's dead-letter config routes it to the DLQ.
func (d *Dispatcher) retry(ctx context.Context, queue string, delivery *amqp.Delivery) {
	headers := delivery.Headers
	if headers == nil {
		headers = amqp.Table{}
	}

	retryCount, _ := headers["x-retry-count"].(int64)
	retryCount++
	headers["x-retry-count"] = retryCount

	if retryCount >= MaxRetryCount {
		d.logger.Warn("max retries reached, dead-lettering",
			slog.String("queue", queue),
			slog.Int64("retry_count", retryCount),
		)
		_ = delivery.Nack(false, false)
		return
	}

	// Linear backoff before the message becomes visible again.
	time.Sleep(time.Second * time.Duration(retryCount))

	err := d.pub.PublishWithContext(
		ctx,
		"",    // default exchange routes by queue name
		queue, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Headers:      headers,
			Body:         delivery.Body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		d.logger.Error("failed to requeue event", slog.Any("error", err))
		// Let the broker redeliver the original instead.
		_ = delivery.Nack(false, true)
		return
	}

	_ = delivery.Ack(false)
}
