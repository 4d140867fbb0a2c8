package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/ledger"
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

const inventoryColumns = `id, product_id, product_name, product_sku, unit_price,
	warehouse_id, warehouse_name, warehouse_city, warehouse_country,
	batch_number, expiration_date, quantity, reserved_quantity,
	created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Inventory, error) {
	query := `SELECT ` + inventoryColumns + ` FROM inventories WHERE id = $1`
	inv, err := scanInventory(s.db.QueryRowContext(ctx, query, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "inventory_not_found", "inventory not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan inventory: %w", err)
	}
	return inv, nil
}

func (s *PostgresStore) List(ctx context.Context, p paging.Params) ([]*Inventory, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inventories`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count inventories: %w", err)
	}

	query := `SELECT ` + inventoryColumns + ` FROM inventories
		ORDER BY product_name, batch_number LIMIT $1 OFFSET $2`
	rows, err := s.db.QueryContext(ctx, query, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query inventories: %w", err)
	}
	defer rows.Close()

	var inventories []*Inventory
	for rows.Next() {
		inv, err := scanInventory(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan inventory: %w", err)
		}
		inventories = append(inventories, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return inventories, total, nil
}

// Reserve applies the signed delta in a single conditional UPDATE so that
// concurrent reservations against the same row cannot oversell: the
// guard keeps 0 <= reserved_quantity <= quantity at all times.
func (s *PostgresStore) Reserve(ctx context.Context, id uuid.UUID, delta int) (*Inventory, error) {
	query := `
		UPDATE inventories
		SET reserved_quantity = reserved_quantity + $1,
		    updated_at = NOW()
		WHERE id = $2
		  AND reserved_quantity + $1 BETWEEN 0 AND quantity
	`
	result, err := s.db.ExecContext(ctx, query, delta, id)
	if err != nil {
		return nil, fmt.Errorf("failed to apply reservation delta: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		inv, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if delta > 0 {
			return nil, apperr.New(apperr.Conflict, "insufficient_inventory",
				"not enough available stock").WithDetails(map[string]any{
				"inventory_id": id.String(),
				"requested":    delta,
				"available":    inv.AvailableQuantity,
			})
		}
		return nil, apperr.New(apperr.Conflict, "invalid_release",
			"release exceeds reserved quantity").WithDetails(map[string]any{
			"inventory_id": id.String(),
			"requested":    delta,
			"reserved":     inv.ReservedQuantity,
		})
	}

	return s.Get(ctx, id)
}

// CommitOrderReservation decrements both quantity and reserved_quantity for
// every item of the order, and marks the event as processed in the same
// transaction. A duplicate event id returns ledger.ErrAlreadyProcessed before
// any stock is touched.
func (s *PostgresStore) CommitOrderReservation(ctx context.Context, eventID, eventType, payload string, items []ReservedItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	processed, err := ledger.HasBeenProcessed(ctx, tx, eventID)
	if err != nil {
		return err
	}
	if processed {
		return ledger.ErrAlreadyProcessed
	}

	for _, item := range items {
		query := `
			UPDATE inventories
			SET quantity = quantity - $1,
			    reserved_quantity = reserved_quantity - $1,
			    updated_at = NOW()
			WHERE id = $2
			  AND reserved_quantity >= $1
			  AND quantity >= $1
		`
		result, err := tx.ExecContext(ctx, query, item.Quantity, item.InventoryID)
		if err != nil {
			return fmt.Errorf("failed to commit reservation for inventory %s: %w", item.InventoryID, err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("reservation mismatch for inventory %s (already committed or released)", item.InventoryID)
		}
	}

	if err := ledger.MarkAsProcessed(ctx, tx, eventID, eventType, "inventory", payload); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reservation transaction: %w", err)
	}
	return nil
}

func scanInventory(scan func(...any) error) (*Inventory, error) {
	var inv Inventory
	err := scan(
		&inv.ID, &inv.ProductID, &inv.ProductName, &inv.ProductSKU, &inv.UnitPrice,
		&inv.WarehouseID, &inv.WarehouseName, &inv.WarehouseCity, &inv.WarehouseCountry,
		&inv.BatchNumber, &inv.ExpirationDate, &inv.Quantity, &inv.ReservedQuantity,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.AvailableQuantity = inv.Quantity - inv.ReservedQuantity
	return &inv, nil
}
