package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/ledger"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/paging"
)

// ErrMissingPlan makes the projector leave the event unprocessed so the
// queue redelivers it once the plan exists (or dead-letters it).
var ErrMissingPlan = apperr.New(apperr.NotFound, "missing_plan",
	"no sales plan for that seller and period")

const planColumns = `id, seller_id, sales_period, goal_type, goal, accumulated,
	status, created_at, updated_at`

func (s *PostgresStore) CreatePlan(ctx context.Context, in CreateSalesPlanInput) (*SalesPlan, error) {
	goal, err := decimal.NewFromString(in.Goal)
	if err != nil || goal.IsNegative() {
		return nil, apperr.New(apperr.ValidationRejected, "invalid_goal",
			"goal must be a non-negative decimal")
	}
	if in.GoalType != GoalSales && in.GoalType != GoalOrders {
		return nil, apperr.New(apperr.ValidationRejected, "invalid_goal_type",
			"goal_type must be SALES or ORDERS")
	}

	id := uuid.New()
	query := `
		INSERT INTO sales_plans
		(id, seller_id, sales_period, goal_type, goal, accumulated, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, 'ACTIVE', NOW(), NOW())
	`
	_, err = s.db.ExecContext(ctx, query, id, in.SellerID, in.SalesPeriod, in.GoalType, goal.StringFixed(2))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, apperr.New(apperr.Conflict, "plan_already_exists",
				"seller already has a plan for that period").WithDetails(map[string]any{
				"seller_id":    in.SellerID.String(),
				"sales_period": in.SalesPeriod,
			})
		}
		return nil, fmt.Errorf("failed to insert sales plan: %w", err)
	}

	return s.getPlan(ctx, id)
}

func (s *PostgresStore) getPlan(ctx context.Context, id uuid.UUID) (*SalesPlan, error) {
	query := `SELECT ` + planColumns + ` FROM sales_plans WHERE id = $1`
	plan, err := scanPlan(s.db.QueryRowContext(ctx, query, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "plan_not_found", "sales plan not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sales plan: %w", err)
	}
	return plan, nil
}

func (s *PostgresStore) ListPlans(ctx context.Context, sellerID *uuid.UUID, p paging.Params) ([]*SalesPlan, int, error) {
	var (
		rows  *sql.Rows
		total int
		err   error
	)

	if sellerID != nil {
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sales_plans WHERE seller_id = $1`, *sellerID).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("failed to count sales plans: %w", err)
		}
		query := `SELECT ` + planColumns + ` FROM sales_plans
			WHERE seller_id = $1 ORDER BY sales_period DESC LIMIT $2 OFFSET $3`
		rows, err = s.db.QueryContext(ctx, query, *sellerID, p.Limit, p.Offset)
	} else {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales_plans`).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("failed to count sales plans: %w", err)
		}
		query := `SELECT ` + planColumns + ` FROM sales_plans
			ORDER BY sales_period DESC LIMIT $1 OFFSET $2`
		rows, err = s.db.QueryContext(ctx, query, p.Limit, p.Offset)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query sales plans: %w", err)
	}
	defer rows.Close()

	var plans []*SalesPlan
	for rows.Next() {
		plan, err := scanPlan(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan sales plan: %w", err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return plans, total, nil
}

// CreditOrder adds amount to the plan accumulator and marks the event id in
// the ledger inside one transaction. Either both commit or neither does, so
// a crash between the add and the mark cannot double-credit on redelivery.
func (s *PostgresStore) CreditOrder(ctx context.Context, eventID, eventType, payload string, sellerID uuid.UUID, period string, amount decimal.Decimal) error {
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

	query := `
		UPDATE sales_plans
		SET accumulated = accumulated + $1,
		    updated_at = NOW()
		WHERE seller_id = $2 AND sales_period = $3
	`
	result, err := tx.ExecContext(ctx, query, amount.StringFixed(2), sellerID, period)
	if err != nil {
		return fmt.Errorf("failed to credit sales plan: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// No mark: the event stays unprocessed and comes back.
		return ErrMissingPlan
	}

	if err := ledger.MarkAsProcessed(ctx, tx, eventID, eventType, "sellers", payload); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit credit transaction: %w", err)
	}
	return nil
}

// MarkProcessed records events that credit nothing (client-app orders).
func (s *PostgresStore) MarkProcessed(ctx context.Context, eventID, eventType, payload string) error {
	return ledger.MarkAsProcessed(ctx, s.db, eventID, eventType, "sellers", payload)
}

func scanPlan(scan func(...any) error) (*SalesPlan, error) {
	var plan SalesPlan
	err := scan(
		&plan.ID, &plan.SellerID, &plan.SalesPeriod, &plan.GoalType,
		&plan.Goal, &plan.Accumulated, &plan.Status,
		&plan.CreatedAt, &plan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &plan, nil
}
