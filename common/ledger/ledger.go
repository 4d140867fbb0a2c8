package ledger

import (
	"context"
	"sync"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
)

// ErrAlreadyProcessed is returned by MarkAsProcessed when the event id was
// recorded before. Consumers treat it as "someone else already applied this".
var ErrAlreadyProcessed = apperr.New(apperr.Conflict, "already_processed",
	"event was already processed")

// Ledger records consumed event ids so replays become no-ops. A row's
// existence means the event may not be re-applied. Implementations must back
// MarkAsProcessed with a unique index on event_id.
type Ledger interface {
	HasBeenProcessed(ctx context.Context, eventID string) (bool, error)
	MarkAsProcessed(ctx context.Context, eventID, eventType, microservice, payload string) error
}

// InMemory is the test implementation. Safe for concurrent use.
type InMemory struct {
	mu   sync.Mutex
	rows map[string]string
}

func NewInMemory() *InMemory {
	return &InMemory{rows: map[string]string{}}
}

func (l *InMemory) HasBeenProcessed(ctx context.Context, eventID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.rows[eventID]
	return ok, nil
}

func (l *InMemory) MarkAsProcessed(ctx context.Context, eventID, eventType, microservice, payload string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.rows[eventID]; ok {
		return ErrAlreadyProcessed
	}
	l.rows[eventID] = payload
	return nil
}

// Count returns the number of recorded events. Test helper.
func (l *InMemory) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}
