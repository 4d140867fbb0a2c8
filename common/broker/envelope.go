package broker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the common header every domain event carries at the top level
// of its JSON body. Payload fields are flattened alongside it, so consumers
// can route on event_type and then decode the same bytes into their payload
// struct.
type Envelope struct {
	EventID      string `json:"event_id"`
	EventType    string `json:"event_type"`
	Microservice string `json:"microservice"`
	Timestamp    string `json:"timestamp"`
}

// NewEnvelope stamps a fresh event id and a UTC ISO-8601 timestamp.
func NewEnvelope(eventType, microservice string) Envelope {
	return Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		Microservice: microservice,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
}

// MarshalEvent merges the envelope and the payload into one flat JSON
// object. The payload must marshal to a JSON object (or be nil for void
// events).
func MarshalEvent(env Envelope, payload any) ([]byte, error) {
	merged := map[string]json.RawMessage{}

	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event payload: %w", err)
		}
		if err := json.Unmarshal(body, (*map[string]json.RawMessage)(&merged)); err != nil {
			return nil, fmt.Errorf("event payload must be a JSON object: %w", err)
		}
	}

	head, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(head, (*map[string]json.RawMessage)(&merged)); err != nil {
		return nil, err
	}

	return json.Marshal(merged)
}

// ParseEnvelope reads the envelope header out of a raw event body.
func ParseEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("invalid event body: %w", err)
	}
	if env.EventType == "" {
		return Envelope{}, fmt.Errorf("event body missing event_type")
	}
	return env, nil
}
