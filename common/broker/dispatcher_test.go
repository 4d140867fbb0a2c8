package broker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcknowledger struct {
	mu     sync.Mutex
	acked  bool
	nacked bool
	// requeue flag of the last Nack
	requeued bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacked = true
	f.requeued = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

type fakePublisher struct {
	err       error
	published []amqp.Publishing
	keys      []string
}

func (f *fakePublisher) PublishWithContext(
	ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing,
) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	f.keys = append(f.keys, key)
	return nil
}

func newTestDispatcher(pub amqpPublisher) *Dispatcher {
	return &Dispatcher{
		service:  "orders",
		pub:      pub,
		logger:   slog.New(slog.DiscardHandler),
		handlers: map[string]HandlerFunc{},
	}
}

func eventDelivery(t *testing.T, ack amqp.Acknowledger, headers amqp.Table) *amqp.Delivery {
	t.Helper()
	body, err := MarshalEvent(NewEnvelope(OrderCreatedEvent, "orders"), map[string]any{
		"order_id": "abc",
	})
	require.NoError(t, err)
	return &amqp.Delivery{Acknowledger: ack, Headers: headers, Body: body}
}

func TestDispatchInvokesHandlerAndAcks(t *testing.T) {
	d := newTestDispatcher(&fakePublisher{})
	var gotEnv Envelope
	var gotBody []byte
	d.Handle(OrderCreatedEvent, func(ctx context.Context, env Envelope, body []byte) error {
		gotEnv = env
		gotBody = body
		return nil
	})

	ack := &fakeAcknowledger{}
	delivery := eventDelivery(t, ack, nil)
	d.dispatch(context.Background(), "orders.order_created", delivery)

	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
	assert.Equal(t, OrderCreatedEvent, gotEnv.EventType)
	assert.Equal(t, delivery.Body, gotBody)
}

func TestDispatchDropsMalformedBody(t *testing.T) {
	d := newTestDispatcher(&fakePublisher{})
	called := false
	d.Handle(OrderCreatedEvent, func(ctx context.Context, env Envelope, body []byte) error {
		called = true
		return nil
	})

	ack := &fakeAcknowledger{}
	d.dispatch(context.Background(), "orders.order_created",
		&amqp.Delivery{Acknowledger: ack, Body: []byte("{broken")})

	assert.True(t, ack.acked)
	assert.False(t, called)
}

func TestDispatchDropsUnregisteredEventType(t *testing.T) {
	d := newTestDispatcher(&fakePublisher{})

	ack := &fakeAcknowledger{}
	d.dispatch(context.Background(), "orders.order_created", eventDelivery(t, ack, nil))

	assert.True(t, ack.acked)
}

func TestHandlerFailureRequeuesWithRetryHeader(t *testing.T) {
	pub := &fakePublisher{}
	d := newTestDispatcher(pub)
	d.Handle(OrderCreatedEvent, func(ctx context.Context, env Envelope, body []byte) error {
		return errors.New("db down")
	})

	ack := &fakeAcknowledger{}
	delivery := eventDelivery(t, ack, nil)
	d.dispatch(context.Background(), "orders.order_created", delivery)

	require.Len(t, pub.published, 1)
	assert.Equal(t, "orders.order_created", pub.keys[0])
	assert.Equal(t, int64(1), pub.published[0].Headers["x-retry-count"])
	assert.Equal(t, delivery.Body, pub.published[0].Body)
	assert.True(t, ack.acked)
}

func TestHandlerFailureDeadLettersAfterMaxRetries(t *testing.T) {
	pub := &fakePublisher{}
	d := newTestDispatcher(pub)
	d.Handle(OrderCreatedEvent, func(ctx context.Context, env Envelope, body []byte) error {
		return errors.New("still broken")
	})

	ack := &fakeAcknowledger{}
	headers := amqp.Table{"x-retry-count": int64(MaxRetryCount - 1)}
	d.dispatch(context.Background(), "orders.order_created", eventDelivery(t, ack, headers))

	assert.Empty(t, pub.published)
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeued)
}

func TestRequeueFailureFallsBackToBrokerRedelivery(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	d := newTestDispatcher(pub)
	d.Handle(OrderCreatedEvent, func(ctx context.Context, env Envelope, body []byte) error {
		return errors.New("boom")
	})

	ack := &fakeAcknowledger{}
	d.dispatch(context.Background(), "orders.order_created", eventDelivery(t, ack, nil))

	assert.True(t, ack.nacked)
	assert.True(t, ack.requeued)
}
