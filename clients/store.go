package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/paging"
)

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

const clientColumns = `id, external_auth_id, nit, institution_name, contact_name,
	contact_phone, contact_email, address, city, country, assigned_seller_id,
	created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, in CreateClientInput) (*Client, error) {
	id := uuid.New()
	query := `
		INSERT INTO clients
		(id, external_auth_id, nit, institution_name, contact_name, contact_phone,
		 contact_email, address, city, country, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`
	_, err := s.db.ExecContext(ctx, query, id, in.ExternalAuthID, in.NIT,
		in.InstitutionName, in.ContactName, in.ContactPhone, in.ContactEmail,
		in.Address, in.City, in.Country)
	if err != nil {
		return nil, fmt.Errorf("failed to insert client: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) GetByAuthID(ctx context.Context, externalAuthID string) (*Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE external_auth_id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, externalAuthID))
}

func (s *PostgresStore) List(ctx context.Context, sellerID *uuid.UUID, p paging.Params) ([]*Client, int, error) {
	var (
		rows  *sql.Rows
		total int
		err   error
	)

	if sellerID != nil {
		countQuery := `SELECT COUNT(*) FROM clients WHERE assigned_seller_id = $1`
		if err := s.db.QueryRowContext(ctx, countQuery, *sellerID).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("failed to count clients: %w", err)
		}
		query := `SELECT ` + clientColumns + ` FROM clients
			WHERE assigned_seller_id = $1 ORDER BY institution_name LIMIT $2 OFFSET $3`
		rows, err = s.db.QueryContext(ctx, query, *sellerID, p.Limit, p.Offset)
	} else {
		countQuery := `SELECT COUNT(*) FROM clients`
		if err := s.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("failed to count clients: %w", err)
		}
		query := `SELECT ` + clientColumns + ` FROM clients
			ORDER BY institution_name LIMIT $1 OFFSET $2`
		rows, err = s.db.QueryContext(ctx, query, p.Limit, p.Offset)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var clients []*Client
	for rows.Next() {
		client, err := s.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return clients, total, nil
}

// AssignSeller sets assigned_seller_id only while the client is unassigned
// (or already assigned to the same seller, which is a no-op). A conditional
// UPDATE makes concurrent assignment attempts race safely: exactly one
// writer wins.
func (s *PostgresStore) AssignSeller(ctx context.Context, clientID, sellerID uuid.UUID) (*Client, error) {
	query := `
		UPDATE clients
		SET assigned_seller_id = $1, updated_at = NOW()
		WHERE id = $2
		  AND (assigned_seller_id IS NULL OR assigned_seller_id = $1)
	`
	result, err := s.db.ExecContext(ctx, query, sellerID, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to assign seller: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		client, err := s.Get(ctx, clientID)
		if err != nil {
			return nil, err
		}
		return nil, apperr.New(apperr.Conflict, "client_already_assigned",
			"client is assigned to another seller").WithDetails(map[string]any{
			"client_id":          client.ID.String(),
			"client_name":        client.InstitutionName,
			"assigned_seller_id": client.AssignedSellerID.String(),
		})
	}

	return s.Get(ctx, clientID)
}

func (s *PostgresStore) scanOne(row *sql.Row) (*Client, error) {
	client, err := scanClient(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "client_not_found", "client not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan client: %w", err)
	}
	return client, nil
}

func (s *PostgresStore) scanRow(rows *sql.Rows) (*Client, error) {
	client, err := scanClient(rows.Scan)
	if err != nil {
		return nil, fmt.Errorf("failed to scan client: %w", err)
	}
	return client, nil
}

func scanClient(scan func(...any) error) (*Client, error) {
	var (
		client   Client
		sellerID sql.NullString
	)
	err := scan(
		&client.ID, &client.ExternalAuthID, &client.NIT, &client.InstitutionName,
		&client.ContactName, &client.ContactPhone, &client.ContactEmail,
		&client.Address, &client.City, &client.Country, &sellerID,
		&client.CreatedAt, &client.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if sellerID.Valid {
		id, err := uuid.Parse(sellerID.String)
		if err != nil {
			return nil, fmt.Errorf("invalid assigned_seller_id: %w", err)
		}
		client.AssignedSellerID = &id
	}
	return &client, nil
}
