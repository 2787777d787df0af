package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"garage/internal/models"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertHistory(ctx context.Context, ex execer, hist *models.StatusHistory) error {
	query := `INSERT INTO status_history (request_id, status, notes, changed_by, created_at)
              VALUES (?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := ex.ExecContext(ctx, query,
		hist.RequestID,
		hist.Status,
		hist.Notes,
		hist.ChangedBy,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to append status history: %w", mapError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	hist.ID = id
	hist.CreatedAt = now
	return nil
}

func (db *DB) AppendHistory(ctx context.Context, hist *models.StatusHistory) error {
	return insertHistory(ctx, db.DB, hist)
}

// ListHistory returns the audit trail newest-first. Ties on created_at are
// broken by row id so replay stays deterministic.
func (db *DB) ListHistory(ctx context.Context, requestID int64) ([]*models.StatusHistory, error) {
	query := `SELECT id, request_id, status, notes, changed_by, created_at
              FROM status_history WHERE request_id = ?
              ORDER BY created_at DESC, id DESC`
	rows, err := db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list status history: %w", mapError(err))
	}
	defer rows.Close()

	var entries []*models.StatusHistory
	for rows.Next() {
		h := &models.StatusHistory{}
		var notes sql.NullString
		err := rows.Scan(&h.ID, &h.RequestID, &h.Status, &notes, &h.ChangedBy, &h.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		if notes.Valid {
			h.Notes = &notes.String
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}
