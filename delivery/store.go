package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

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

const shipmentColumns = `id, order_id, customer_id, delivery_address, delivery_city,
	latitude, longitude, geocoding_status, route_id, sequence_in_route,
	order_date, estimated_delivery_date, status, created_at, updated_at`

// CreateShipment inserts the shipment and marks its event as processed in the
// same transaction. The unique index on order_id is a second line of defense:
// a redelivered order_created event whose ledger row was lost still cannot
// produce a duplicate shipment.
func (s *PostgresStore) CreateShipment(ctx context.Context, eventID, eventType, payload string, shipment *Shipment) error {
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
		INSERT INTO shipments (
			id, order_id, customer_id, delivery_address, delivery_city,
			geocoding_status, order_date, estimated_delivery_date, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`
	_, err = tx.ExecContext(ctx, query,
		shipment.ID, shipment.OrderID, shipment.CustomerID,
		shipment.DeliveryAddress, shipment.DeliveryCity,
		shipment.GeocodingStatus, shipment.OrderDate,
		shipment.EstimatedDeliveryDate, shipment.Status,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ledger.ErrAlreadyProcessed
	}
	if err != nil {
		return fmt.Errorf("failed to insert shipment: %w", err)
	}

	if err := ledger.MarkAsProcessed(ctx, tx, eventID, eventType, "delivery", payload); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit shipment transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetShipment(ctx context.Context, id uuid.UUID) (*Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments WHERE id = $1`
	shipment, err := scanShipment(s.db.QueryRowContext(ctx, query, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "shipment_not_found", "shipment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan shipment: %w", err)
	}
	return shipment, nil
}

func (s *PostgresStore) ListShipments(ctx context.Context, status *ShipmentStatus, p paging.Params) ([]*Shipment, int, error) {
	where := ""
	args := []any{}
	if status != nil {
		where = ` WHERE status = $1`
		args = append(args, *status)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM shipments`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count shipments: %w", err)
	}

	query := fmt.Sprintf(`SELECT `+shipmentColumns+` FROM shipments%s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, p.Limit, p.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query shipments: %w", err)
	}
	defer rows.Close()

	var shipments []*Shipment
	for rows.Next() {
		shipment, err := scanShipment(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan shipment: %w", err)
		}
		shipments = append(shipments, shipment)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return shipments, total, nil
}

func (s *PostgresStore) PendingGeocoded(ctx context.Context) ([]*Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments
		WHERE status = 'PENDING' AND geocoding_status = 'SUCCESS' AND route_id IS NULL
		ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending shipments: %w", err)
	}
	defer rows.Close()

	var shipments []*Shipment
	for rows.Next() {
		shipment, err := scanShipment(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shipment: %w", err)
		}
		shipments = append(shipments, shipment)
	}
	return shipments, rows.Err()
}

// UpdateShipmentStatus only accepts the single forward step the lattice
// allows for the shipment's current status.
func (s *PostgresStore) UpdateShipmentStatus(ctx context.Context, id uuid.UUID, status ShipmentStatus) (*Shipment, error) {
	current, err := s.GetShipment(ctx, id)
	if err != nil {
		return nil, err
	}
	if nextShipmentStatus[current.Status] != status {
		return nil, apperr.New(apperr.Conflict, "invalid_status_transition",
			fmt.Sprintf("cannot move shipment from %s to %s", current.Status, status)).
			WithDetails(map[string]any{
				"shipment_id":    id.String(),
				"current_status": string(current.Status),
			})
	}

	query := `UPDATE shipments SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	result, err := s.db.ExecContext(ctx, query, status, id, current.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to update shipment status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, apperr.New(apperr.Conflict, "invalid_status_transition",
			"shipment status changed concurrently")
	}

	return s.GetShipment(ctx, id)
}

func (s *PostgresStore) SetGeocoding(ctx context.Context, id uuid.UUID, status GeocodingStatus, lat, lon *float64) error {
	query := `UPDATE shipments
		SET geocoding_status = $1, latitude = $2, longitude = $3, updated_at = NOW()
		WHERE id = $4`
	_, err := s.db.ExecContext(ctx, query, status, lat, lon, id)
	if err != nil {
		return fmt.Errorf("failed to update geocoding: %w", err)
	}
	return nil
}

// PersistRoutes writes every generated route and claims its shipments in one
// transaction. The claiming UPDATE is conditional on the shipment still being
// unassigned, so two concurrent generation runs cannot both take the same
// shipment: the loser sees zero rows and the whole batch rolls back.
func (s *PostgresStore) PersistRoutes(ctx context.Context, routes []*Route, assignments map[uuid.UUID][]uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, route := range routes {
		query := `
			INSERT INTO routes (
				id, vehicle_id, date, status, estimated_duration_minutes,
				total_distance_km, total_orders, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		`
		_, err := tx.ExecContext(ctx, query,
			route.ID, route.VehicleID, route.Date, route.Status,
			route.EstimatedDurationMinutes, route.TotalDistanceKm, route.TotalOrders,
		)
		if err != nil {
			return fmt.Errorf("failed to insert route %s: %w", route.ID, err)
		}

		for sequence, shipmentID := range assignments[route.ID] {
			query := `
				UPDATE shipments
				SET route_id = $1, sequence_in_route = $2, status = $3, updated_at = NOW()
				WHERE id = $4 AND route_id IS NULL AND status = $5
			`
			result, err := tx.ExecContext(ctx, query,
				route.ID, sequence, ShipmentAssigned, shipmentID, ShipmentPending,
			)
			if err != nil {
				return fmt.Errorf("failed to assign shipment %s: %w", shipmentID, err)
			}
			rowsAffected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if rowsAffected == 0 {
				return fmt.Errorf("shipment %s was assigned concurrently", shipmentID)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit routes transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRoute(ctx context.Context, id uuid.UUID) (*Route, error) {
	query := `SELECT id, vehicle_id, date, status, estimated_duration_minutes,
		total_distance_km, total_orders, created_at FROM routes WHERE id = $1`
	route, err := scanRoute(s.db.QueryRowContext(ctx, query, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "route_not_found", "route not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan route: %w", err)
	}

	shipmentsQuery := `SELECT ` + shipmentColumns + ` FROM shipments
		WHERE route_id = $1 ORDER BY sequence_in_route`
	rows, err := s.db.QueryContext(ctx, shipmentsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query route shipments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		shipment, err := scanShipment(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shipment: %w", err)
		}
		route.Shipments = append(route.Shipments, shipment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return route, nil
}

func (s *PostgresStore) ListRoutes(ctx context.Context, date *time.Time, p paging.Params) ([]*Route, int, error) {
	where := ""
	args := []any{}
	if date != nil {
		where = ` WHERE date = $1`
		args = append(args, *date)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM routes`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count routes: %w", err)
	}

	query := fmt.Sprintf(`SELECT id, vehicle_id, date, status, estimated_duration_minutes,
		total_distance_km, total_orders, created_at FROM routes%s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, p.Limit, p.Offset)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query routes: %w", err)
	}
	defer rows.Close()

	var routes []*Route
	for rows.Next() {
		route, err := scanRoute(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan route: %w", err)
		}
		routes = append(routes, route)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return routes, total, nil
}

func (s *PostgresStore) CreateVehicle(ctx context.Context, in CreateVehicleInput) (*Vehicle, error) {
	vehicle := &Vehicle{
		ID:       uuid.New(),
		Plate:    in.Plate,
		Capacity: in.Capacity,
		Active:   true,
	}

	query := `INSERT INTO vehicles (id, plate, capacity, active, created_at)
		VALUES ($1, $2, $3, $4, NOW()) RETURNING created_at`
	err := s.db.QueryRowContext(ctx, query,
		vehicle.ID, vehicle.Plate, vehicle.Capacity, vehicle.Active,
	).Scan(&vehicle.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return nil, apperr.New(apperr.Conflict, "vehicle_already_exists",
			"a vehicle with that plate already exists")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert vehicle: %w", err)
	}

	return vehicle, nil
}

func (s *PostgresStore) ListVehicles(ctx context.Context, p paging.Params) ([]*Vehicle, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vehicles`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count vehicles: %w", err)
	}

	query := `SELECT id, plate, capacity, active, created_at FROM vehicles
		ORDER BY created_at LIMIT $1 OFFSET $2`
	rows, err := s.db.QueryContext(ctx, query, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []*Vehicle
	for rows.Next() {
		vehicle, err := scanVehicle(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, vehicle)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return vehicles, total, nil
}

// ActiveVehicles returns the fleet in creation order, which keeps the
// round-robin clustering stable between runs.
func (s *PostgresStore) ActiveVehicles(ctx context.Context) ([]*Vehicle, error) {
	query := `SELECT id, plate, capacity, active, created_at FROM vehicles
		WHERE active ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []*Vehicle
	for rows.Next() {
		vehicle, err := scanVehicle(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, vehicle)
	}
	return vehicles, rows.Err()
}

func scanShipment(scan func(...any) error) (*Shipment, error) {
	var shipment Shipment
	var routeID sql.NullString
	var sequence sql.NullInt64
	err := scan(
		&shipment.ID, &shipment.OrderID, &shipment.CustomerID,
		&shipment.DeliveryAddress, &shipment.DeliveryCity,
		&shipment.Latitude, &shipment.Longitude, &shipment.GeocodingStatus,
		&routeID, &sequence,
		&shipment.OrderDate, &shipment.EstimatedDeliveryDate, &shipment.Status,
		&shipment.CreatedAt, &shipment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if routeID.Valid {
		id, err := uuid.Parse(routeID.String)
		if err != nil {
			return nil, fmt.Errorf("invalid route id %q: %w", routeID.String, err)
		}
		shipment.RouteID = &id
	}
	if sequence.Valid {
		seq := int(sequence.Int64)
		shipment.SequenceInRoute = &seq
	}
	return &shipment, nil
}

func scanRoute(scan func(...any) error) (*Route, error) {
	var route Route
	err := scan(
		&route.ID, &route.VehicleID, &route.Date, &route.Status,
		&route.EstimatedDurationMinutes, &route.TotalDistanceKm,
		&route.TotalOrders, &route.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &route, nil
}

func scanVehicle(scan func(...any) error) (*Vehicle, error) {
	var vehicle Vehicle
	err := scan(&vehicle.ID, &vehicle.Plate, &vehicle.Capacity,
		&vehicle.Active, &vehicle.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}
