package broker

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Domain event types. Publishers and consumers must agree on these names:
// each one is also the name of its exchange.
const (
	OrderCreatedEvent            = "order_created"
	VisitCreatedEvent            = "visit_created"
	DeliveryRoutesGeneratedEvent = "delivery_routes_generated"
	VisitRoutesGeneratedEvent    = "visit_routes_generated"
	ReportGeneratedEvent         = "report_generated"
)

// MaxRetryCount bounds redelivery of a failing message before it is
// dead-lettered to its queue-specific DLQ.
const MaxRetryCount = 3

// DLX is the dead-letter exchange every consumer queue points at.
const DLX = "dlx"

var allEvents = []string{
	OrderCreatedEvent,
	VisitCreatedEvent,
	DeliveryRoutesGeneratedEvent,
	VisitRoutesGeneratedEvent,
	ReportGeneratedEvent,
}

// Connect opens an AMQP connection plus channel and declares the exchange
// topology (one direct exchange per event type, plus the DLX). The returned
// close function releases the channel before the connection.
func Connect(user, pass, host, port string) (*amqp.Channel, func() error, error) {
	address := fmt.Sprintf("amqp://%s:%s@%s:%s/", user, pass, host, port)

	conn, err := amqp.Dial(address)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, err
	}

	closeFn := func() error {
		if err := ch.Close(); err != nil {
			return err
		}
		return conn.Close()
	}

	return ch, closeFn, nil
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(DLX, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLX exchange: %w", err)
	}

	for _, event := range allEvents {
		// Fanout so every service queue bound to the event gets its own copy.
		if err := ch.ExchangeDeclare(event, "fanout", true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare %s exchange: %w", event, err)
		}
	}
	return nil
}

// DeclareConsumerQueue sets up the durable queue a service consumes an event
// from, together with its dead-letter queue. Queue name is
// "<service>.<event>"; failed messages land in "<service>.<event>.dlq".
func DeclareConsumerQueue(ch *amqp.Channel, service, event string) (string, error) {
	queueName := fmt.Sprintf("%s.%s", service, event)
	dlqName := queueName + ".dlq"

	if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
		return "", fmt.Errorf("failed to declare DLQ %s: %w", dlqName, err)
	}
	if err := ch.QueueBind(dlqName, queueName, DLX, false, nil); err != nil {
		return "", fmt.Errorf("failed to bind DLQ %s: %w", dlqName, err)
	}

	_, err := ch.QueueDeclare(queueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    DLX,
		"x-dead-letter-routing-key": queueName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}
	if err := ch.QueueBind(queueName, "", event, false, nil); err != nil {
		return "", fmt.Errorf("failed to bind queue %s to %s: %w", queueName, event, err)
	}

	return queueName, nil
}
