package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Queryer is satisfied by *sql.DB and *sql.Tx. Projectors pass their open
// transaction so that marking-as-processed commits atomically with the
// projection itself.
type Queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Postgres stores processed event ids in the processed_events table, which
// carries a unique index on event_id.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) HasBeenProcessed(ctx context.Context, eventID string) (bool, error) {
	return HasBeenProcessed(ctx, p.db, eventID)
}

func (p *Postgres) MarkAsProcessed(ctx context.Context, eventID, eventType, microservice, payload string) error {
	return MarkAsProcessed(ctx, p.db, eventID, eventType, microservice, payload)
}

// HasBeenProcessed checks the ledger through the given DB handle or
// transaction.
func HasBeenProcessed(ctx context.Context, q Queryer, eventID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_id = $1)`
	if err := q.QueryRowContext(ctx, query, eventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return exists, nil
}

// MarkAsProcessed inserts the event id; the unique index turns a concurrent
// duplicate into ErrAlreadyProcessed.
func MarkAsProcessed(ctx context.Context, q Queryer, eventID, eventType, microservice, payload string) error {
	query := `
		INSERT INTO processed_events (event_id, event_type, microservice, payload_snapshot, processed_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	if _, err := q.ExecContext(ctx, query, eventID, eventType, microservice, payload); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrAlreadyProcessed
		}
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return nil
}
