package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"garage/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	req := seedRequest(t, db)
	assert.NotZero(t, req.ID)
	assert.Equal(t, int64(1), req.Version)

	got, err := db.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.ID, got.ID)
	assert.Equal(t, "diagnostics", got.ServiceType)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Nil(t, got.AssignedMechanicID)
	assert.Nil(t, got.TotalCost)

	_, err = db.GetRequest(ctx, 99999)
	assert.ErrorIs(t, err, ErrNotFound)

	requests, err := db.ListRequests(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, requests, 1)

	requests, err = db.ListRequests(ctx, time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, requests)
}

func TestUpdateRequestWithVersion(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	req := seedRequest(t, db)
	mechanic := seedMechanic(t, db)

	req.AssignedMechanicID = &mechanic.ID
	req.UpdatedAt = time.Now()
	require.NoError(t, db.UpdateRequestWithVersion(ctx, req, 1))
	assert.Equal(t, int64(2), req.Version)

	got, err := db.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	require.NotNil(t, got.AssignedMechanicID)
	assert.Equal(t, mechanic.ID, *got.AssignedMechanicID)

	// Stale version loses.
	err = db.UpdateRequestWithVersion(ctx, req, 1)
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func TestApplyTransitionWritesHistoryAtomically(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	req := seedRequest(t, db)

	notes := "looks fine"
	req.Status = models.StatusApproved
	req.UpdatedAt = time.Now()
	hist := &models.StatusHistory{
		RequestID: req.ID,
		Status:    models.StatusApproved,
		Notes:     &notes,
		ChangedBy: 1,
	}
	require.NoError(t, db.ApplyTransition(ctx, req, 1, hist))
	assert.Equal(t, int64(2), req.Version)
	assert.NotZero(t, hist.ID)

	entries, err := db.ListHistory(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.StatusApproved, entries[0].Status)
	assert.Equal(t, &notes, entries[0].Notes)

	got, err := db.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
}

func TestApplyTransitionStaleVersionWritesNothing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	req := seedRequest(t, db)

	req.Status = models.StatusApproved
	hist := &models.StatusHistory{RequestID: req.ID, Status: models.StatusApproved, ChangedBy: 1}
	err := db.ApplyTransition(ctx, req, 42, hist)
	assert.ErrorIs(t, err, ErrConcurrentModification)

	// Ни строка заявки, ни история не записаны
	entries, err := db.ListHistory(ctx, req.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	got, err := db.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, int64(1), got.Version)
}

func TestApplyTransitionNilHistory(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	req := seedRequest(t, db)

	estimated := 150.0
	req.EstimatedCost = &estimated
	req.UpdatedAt = time.Now()
	require.NoError(t, db.ApplyTransition(ctx, req, 1, nil))

	entries, err := db.ListHistory(ctx, req.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestConcurrentTransitions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	req := seedRequest(t, db)

	const numGoroutines = 8
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			clone := *req
			clone.Status = models.StatusApproved
			clone.UpdatedAt = time.Now()
			hist := &models.StatusHistory{
				RequestID: req.ID,
				Status:    models.StatusApproved,
				ChangedBy: int64(id),
			}
			results <- db.ApplyTransition(ctx, &clone, 1, hist)
		}(i)
	}

	wg.Wait()
	close(results)

	successCount := 0
	conflictCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, ErrConcurrentModification):
			conflictCount++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	// Exactly one CAS write wins; the rest observe the version bump.
	assert.Equal(t, 1, successCount)
	assert.Equal(t, numGoroutines-1, conflictCount)

	entries, err := db.ListHistory(ctx, req.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	got, err := db.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}

func TestHistoryOrderNewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	req := seedRequest(t, db)

	for _, status := range []string{models.StatusApproved, models.StatusInProgress, models.StatusAwaitingPayment} {
		hist := &models.StatusHistory{RequestID: req.ID, Status: status, ChangedBy: 1}
		require.NoError(t, db.AppendHistory(ctx, hist))
	}

	entries, err := db.ListHistory(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Same-timestamp rows are disambiguated by insertion id.
	assert.Equal(t, models.StatusAwaitingPayment, entries[0].Status)
	assert.Equal(t, models.StatusInProgress, entries[1].Status)
	assert.Equal(t, models.StatusApproved, entries[2].Status)
}
