package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/paging"
)

const visitColumns = `id, seller_id, client_id, fecha_visita, notes, status,
	recommendations, evidence_url, client_institution, client_address,
	client_city, client_country, created_at, updated_at`

// CreateVisit serializes the conflict check and the insert per seller with a
// transaction-scoped advisory lock: two concurrent requests for the same
// seller cannot both pass the check.
func (s *PostgresStore) CreateVisit(ctx context.Context, visit *Visit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`, visit.SellerID.String()); err != nil {
		return fmt.Errorf("failed to take seller visit lock: %w", err)
	}

	var (
		conflictID   uuid.UUID
		conflictTime time.Time
	)
	conflictQuery := `
		SELECT id, fecha_visita FROM visits
		WHERE seller_id = $1
		  AND status != 'CANCELLED'
		  AND fecha_visita BETWEEN $2::timestamptz - interval '180 minutes'
		                       AND $2::timestamptz + interval '180 minutes'
		ORDER BY fecha_visita
		LIMIT 1
	`
	err = tx.QueryRowContext(ctx, conflictQuery, visit.SellerID, visit.FechaVisita).
		Scan(&conflictID, &conflictTime)
	switch {
	case err == nil:
		return apperr.New(apperr.Conflict, "visit_time_conflict",
			"seller already has a visit within 180 minutes of that time").WithDetails(map[string]any{
			"conflict_id":   conflictID.String(),
			"conflict_time": conflictTime,
		})
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to check visit conflicts: %w", err)
	}

	insertQuery := `
		INSERT INTO visits
		(id, seller_id, client_id, fecha_visita, notes, status,
		 client_institution, client_address, client_city, client_country,
		 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`
	_, err = tx.ExecContext(ctx, insertQuery,
		visit.ID, visit.SellerID, visit.ClientID, visit.FechaVisita,
		visit.Notes, visit.Status, visit.ClientInstitution, visit.ClientAddress,
		visit.ClientCity, visit.ClientCountry)
	if err != nil {
		return fmt.Errorf("failed to insert visit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit visit: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE id = $1`
	visit, err := scanVisit(s.db.QueryRowContext(ctx, query, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "visit_not_found", "visit not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan visit: %w", err)
	}
	return visit, nil
}

func (s *PostgresStore) ListVisits(ctx context.Context, sellerID *uuid.UUID, p paging.Params) ([]*Visit, int, error) {
	var (
		rows  *sql.Rows
		total int
		err   error
	)

	if sellerID != nil {
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM visits WHERE seller_id = $1`, *sellerID).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("failed to count visits: %w", err)
		}
		query := `SELECT ` + visitColumns + ` FROM visits
			WHERE seller_id = $1 ORDER BY fecha_visita LIMIT $2 OFFSET $3`
		rows, err = s.db.QueryContext(ctx, query, *sellerID, p.Limit, p.Offset)
	} else {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM visits`).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("failed to count visits: %w", err)
		}
		query := `SELECT ` + visitColumns + ` FROM visits
			ORDER BY fecha_visita LIMIT $1 OFFSET $2`
		rows, err = s.db.QueryContext(ctx, query, p.Limit, p.Offset)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	var visits []*Visit
	for rows.Next() {
		visit, err := scanVisit(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, visit)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return visits, total, nil
}

// UpdateVisitStatus moves SCHEDULED to COMPLETED or CANCELLED. Both targets
// are terminal, so the conditional UPDATE only matches SCHEDULED rows; zero
// rows on an existing visit means the transition is invalid.
func (s *PostgresStore) UpdateVisitStatus(ctx context.Context, id uuid.UUID, status VisitStatus, recommendations string) (*Visit, error) {
	if status != VisitCompleted && status != VisitCancelled {
		return nil, apperr.New(apperr.Conflict, "invalid_status_transition",
			fmt.Sprintf("cannot transition a visit to %s", status))
	}

	query := `
		UPDATE visits
		SET status = $2,
		    recommendations = CASE WHEN $3 != '' THEN $3 ELSE recommendations END,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'SCHEDULED'
	`
	result, err := s.db.ExecContext(ctx, query, id, status, recommendations)
	if err != nil {
		return nil, fmt.Errorf("failed to update visit status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		visit, err := s.GetVisit(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, apperr.New(apperr.Conflict, "invalid_status_transition",
			fmt.Sprintf("visit is %s and cannot transition to %s", visit.Status, status))
	}

	return s.GetVisit(ctx, id)
}

func (s *PostgresStore) SetEvidenceURL(ctx context.Context, id uuid.UUID, url string) (*Visit, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE visits SET evidence_url = $2, updated_at = NOW() WHERE id = $1`, id, url)
	if err != nil {
		return nil, fmt.Errorf("failed to store evidence url: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, apperr.New(apperr.NotFound, "visit_not_found", "visit not found")
	}
	return s.GetVisit(ctx, id)
}

func scanVisit(scan func(...any) error) (*Visit, error) {
	var (
		visit           Visit
		notes           sql.NullString
		recommendations sql.NullString
		evidenceURL     sql.NullString
	)
	err := scan(
		&visit.ID, &visit.SellerID, &visit.ClientID, &visit.FechaVisita,
		&notes, &visit.Status, &recommendations, &evidenceURL,
		&visit.ClientInstitution, &visit.ClientAddress, &visit.ClientCity,
		&visit.ClientCountry, &visit.CreatedAt, &visit.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	visit.Notes = notes.String
	visit.Recommendations = recommendations.String
	if evidenceURL.Valid {
		visit.EvidenceURL = &evidenceURL.String
	}
	return &visit, nil
}
