package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"garage/internal/models"
)

const requestColumns = `id, customer_id, vehicle_id, service_type, description, preferred_date,
                 status, assigned_mechanic_id, estimated_cost, down_payment, total_cost,
                 payment_method, admin_notes, mechanic_notes, created_at, updated_at, version`

func scanRequest(row interface{ Scan(...any) error }) (*models.ServiceRequest, error) {
	r := &models.ServiceRequest{}
	var (
		mechanicID    sql.NullInt64
		estimated     sql.NullFloat64
		downPayment   sql.NullFloat64
		totalCost     sql.NullFloat64
		paymentMethod sql.NullString
		adminNotes    sql.NullString
		mechanicNotes sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.CustomerID, &r.VehicleID, &r.ServiceType, &r.Description, &r.PreferredDate,
		&r.Status, &mechanicID, &estimated, &downPayment, &totalCost,
		&paymentMethod, &adminNotes, &mechanicNotes, &r.CreatedAt, &r.UpdatedAt, &r.Version,
	)
	if err != nil {
		return nil, err
	}

	if mechanicID.Valid {
		r.AssignedMechanicID = &mechanicID.Int64
	}
	if estimated.Valid {
		r.EstimatedCost = &estimated.Float64
	}
	if downPayment.Valid {
		r.DownPayment = &downPayment.Float64
	}
	if totalCost.Valid {
		r.TotalCost = &totalCost.Float64
	}
	if paymentMethod.Valid {
		r.PaymentMethod = &paymentMethod.String
	}
	if adminNotes.Valid {
		r.AdminNotes = &adminNotes.String
	}
	if mechanicNotes.Valid {
		r.MechanicNotes = &mechanicNotes.String
	}
	return r, nil
}

func (db *DB) CreateRequest(ctx context.Context, req *models.ServiceRequest) error {
	query := `INSERT INTO service_requests (
				customer_id, vehicle_id, service_type, description, preferred_date,
				status, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		req.CustomerID,
		req.VehicleID,
		req.ServiceType,
		req.Description,
		req.PreferredDate,
		req.Status,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to create service request: %w", mapError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	req.ID = id
	req.CreatedAt = now
	req.UpdatedAt = now
	req.Version = 1

	return nil
}

func (db *DB) GetRequest(ctx context.Context, id int64) (*models.ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM service_requests WHERE id = ?`
	req, err := scanRequest(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get service request: %w", mapError(err))
	}
	return req, nil
}

func (db *DB) ListRequests(ctx context.Context, from, to time.Time) ([]*models.ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM service_requests
              WHERE created_at >= ? AND created_at < ? ORDER BY created_at DESC, id DESC`
	rows, err := db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list service requests: %w", mapError(err))
	}
	defer rows.Close()

	var requests []*models.ServiceRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// UpdateRequestWithVersion applies the record with a version check-and-set.
// A lost race returns ErrConcurrentModification and writes nothing.
func (db *DB) UpdateRequestWithVersion(ctx context.Context, req *models.ServiceRequest, fromVersion int64) error {
	result, err := db.ExecContext(ctx, updateRequestQuery, updateRequestArgs(req, fromVersion)...)
	if err != nil {
		return fmt.Errorf("failed to update service request: %w", mapError(err))
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	req.Version = fromVersion + 1
	return nil
}

// ApplyTransition writes the updated request and appends its history row in
// one transaction: either both land or neither does.
func (db *DB) ApplyTransition(ctx context.Context, req *models.ServiceRequest, fromVersion int64, hist *models.StatusHistory) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapError(err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, updateRequestQuery, updateRequestArgs(req, fromVersion)...)
	if err != nil {
		return fmt.Errorf("failed to update service request in tx: %w", mapError(err))
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}

	if hist != nil {
		if err := insertHistory(ctx, tx, hist); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transition: %w", mapError(err))
	}
	req.Version = fromVersion + 1
	return nil
}

const updateRequestQuery = `UPDATE service_requests SET
			status = ?, assigned_mechanic_id = ?, estimated_cost = ?, down_payment = ?,
			total_cost = ?, payment_method = ?, admin_notes = ?, mechanic_notes = ?,
			updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`

func updateRequestArgs(req *models.ServiceRequest, fromVersion int64) []any {
	return []any{
		req.Status,
		req.AssignedMechanicID,
		req.EstimatedCost,
		req.DownPayment,
		req.TotalCost,
		req.PaymentMethod,
		req.AdminNotes,
		req.MechanicNotes,
		req.UpdatedAt,
		req.ID,
		fromVersion,
	}
}
