package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"garage/internal/models"
)

func (db *DB) AppendProgress(ctx context.Context, p *models.ServiceProgress) error {
	query := `INSERT INTO service_progress (request_id, mechanic_id, progress_date, description, created_at)
              VALUES (?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		p.RequestID,
		p.MechanicID,
		p.ProgressDate,
		p.Description,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to append progress: %w", mapError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	return nil
}

func (db *DB) GetProgress(ctx context.Context, id int64) (*models.ServiceProgress, error) {
	query := `SELECT id, request_id, mechanic_id, progress_date, description, created_at
              FROM service_progress WHERE id = ?`
	p := &models.ServiceProgress{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.RequestID, &p.MechanicID, &p.ProgressDate, &p.Description, &p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", mapError(err))
	}
	return p, nil
}

func (db *DB) ListProgress(ctx context.Context, requestID int64) ([]*models.ServiceProgress, error) {
	query := `SELECT id, request_id, mechanic_id, progress_date, description, created_at
              FROM service_progress WHERE request_id = ?
              ORDER BY created_at DESC, id DESC`
	rows, err := db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", mapError(err))
	}
	defer rows.Close()

	var entries []*models.ServiceProgress
	for rows.Next() {
		p := &models.ServiceProgress{}
		err := rows.Scan(&p.ID, &p.RequestID, &p.MechanicID, &p.ProgressDate, &p.Description, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		entries = append(entries, p)
	}
	return entries, rows.Err()
}

func (db *DB) AppendPhoto(ctx context.Context, photo *models.ServicePhoto) error {
	query := `INSERT INTO service_photos (request_id, progress_id, uploaded_by, path, description, created_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		photo.RequestID,
		photo.ProgressID,
		photo.UploadedBy,
		photo.Path,
		photo.Description,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to append photo: %w", mapError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	photo.ID = id
	photo.CreatedAt = now
	return nil
}

func (db *DB) ListPhotos(ctx context.Context, requestID int64) ([]*models.ServicePhoto, error) {
	query := `SELECT id, request_id, progress_id, uploaded_by, path, description, created_at
              FROM service_photos WHERE request_id = ?
              ORDER BY created_at DESC, id DESC`
	rows, err := db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", mapError(err))
	}
	defer rows.Close()

	var photos []*models.ServicePhoto
	for rows.Next() {
		p := &models.ServicePhoto{}
		var progressID sql.NullInt64
		var description sql.NullString
		err := rows.Scan(&p.ID, &p.RequestID, &progressID, &p.UploadedBy, &p.Path, &description, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		if progressID.Valid {
			p.ProgressID = &progressID.Int64
		}
		if description.Valid {
			p.Description = description.String
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}
