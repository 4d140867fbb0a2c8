package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/paging"
)

// PostgresStore owns the sellers, visits, sales_plans and processed_events
// tables. The method sets are split across files by aggregate.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

const sellerColumns = `id, external_auth_id, name, email, phone, zone, created_at, updated_at`

func (s *PostgresStore) CreateSeller(ctx context.Context, in CreateSellerInput) (*Seller, error) {
	id := uuid.New()
	query := `
		INSERT INTO sellers (id, external_auth_id, name, email, phone, zone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`
	_, err := s.db.ExecContext(ctx, query, id, in.ExternalAuthID, in.Name, in.Email, in.Phone, in.Zone)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, apperr.New(apperr.Conflict, "seller_already_exists",
				"a seller with that auth id already exists")
		}
		return nil, fmt.Errorf("failed to insert seller: %w", err)
	}
	return s.GetSeller(ctx, id)
}

func (s *PostgresStore) GetSeller(ctx context.Context, id uuid.UUID) (*Seller, error) {
	query := `SELECT ` + sellerColumns + ` FROM sellers WHERE id = $1`
	return scanSellerRow(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) GetSellerByAuthID(ctx context.Context, externalAuthID string) (*Seller, error) {
	query := `SELECT ` + sellerColumns + ` FROM sellers WHERE external_auth_id = $1`
	return scanSellerRow(s.db.QueryRowContext(ctx, query, externalAuthID))
}

func (s *PostgresStore) ListSellers(ctx context.Context, p paging.Params) ([]*Seller, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sellers`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sellers: %w", err)
	}

	query := `SELECT ` + sellerColumns + ` FROM sellers ORDER BY name LIMIT $1 OFFSET $2`
	rows, err := s.db.QueryContext(ctx, query, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query sellers: %w", err)
	}
	defer rows.Close()

	var sellers []*Seller
	for rows.Next() {
		var seller Seller
		if err := rows.Scan(&seller.ID, &seller.ExternalAuthID, &seller.Name,
			&seller.Email, &seller.Phone, &seller.Zone,
			&seller.CreatedAt, &seller.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan seller: %w", err)
		}
		sellers = append(sellers, &seller)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return sellers, total, nil
}

func scanSellerRow(row *sql.Row) (*Seller, error) {
	var seller Seller
	err := row.Scan(&seller.ID, &seller.ExternalAuthID, &seller.Name,
		&seller.Email, &seller.Phone, &seller.Zone,
		&seller.CreatedAt, &seller.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "seller_not_found", "seller not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan seller: %w", err)
	}
	return &seller, nil
}
