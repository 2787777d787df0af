package database

import (
	"context"
	"database/sql"
	"errors"
)

// Sentinel errors for the whole engine. Callers match them with errors.Is;
// every operation scopes its failure to itself, nothing here is fatal.
var (
	ErrNotFound               = errors.New("record not found")
	ErrConcurrentModification = errors.New("concurrent modification, reload and retry")
	ErrTimeout                = errors.New("storage call timed out")
	ErrValidation             = errors.New("validation failed")
	ErrInvalidTransition      = errors.New("status transition not permitted")
	ErrForbidden              = errors.New("actor is not allowed to perform this operation")
	ErrMissingField           = errors.New("required transition field missing")
	ErrUploadFailed           = errors.New("photo upload failed")
)

// mapError normalizes driver-level failures to sentinel errors.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return err
	}
}
