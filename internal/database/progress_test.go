package database

import (
	"context"
	"testing"
	"time"

	"garage/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressLedger(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	req := seedRequest(t, db)
	mechanic := seedMechanic(t, db)

	first := &models.ServiceProgress{
		RequestID:    req.ID,
		MechanicID:   mechanic.ID,
		ProgressDate: time.Now().Add(-time.Hour),
		Description:  "drained oil",
	}
	require.NoError(t, db.AppendProgress(ctx, first))
	assert.NotZero(t, first.ID)

	second := &models.ServiceProgress{
		RequestID:    req.ID,
		MechanicID:   mechanic.ID,
		ProgressDate: time.Now(),
		Description:  "replaced filter",
	}
	require.NoError(t, db.AppendProgress(ctx, second))

	got, err := db.GetProgress(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "drained oil", got.Description)

	_, err = db.GetProgress(ctx, 99999)
	assert.ErrorIs(t, err, ErrNotFound)

	entries, err := db.ListProgress(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, first.ID, entries[1].ID)
}

func TestPhotoLedger(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	req := seedRequest(t, db)
	mechanic := seedMechanic(t, db)

	progress := &models.ServiceProgress{
		RequestID:    req.ID,
		MechanicID:   mechanic.ID,
		ProgressDate: time.Now(),
		Description:  "bodywork",
	}
	require.NoError(t, db.AppendProgress(ctx, progress))

	tied := &models.ServicePhoto{
		RequestID:   req.ID,
		ProgressID:  &progress.ID,
		UploadedBy:  mechanic.ID,
		Path:        "2025-03-01_aaa.jpg",
		Description: "dent before",
	}
	require.NoError(t, db.AppendPhoto(ctx, tied))

	loose := &models.ServicePhoto{
		RequestID:  req.ID,
		UploadedBy: mechanic.ID,
		Path:       "2025-03-01_bbb.jpg",
	}
	require.NoError(t, db.AppendPhoto(ctx, loose))

	photos, err := db.ListPhotos(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, photos, 2)

	assert.Equal(t, loose.ID, photos[0].ID)
	assert.Nil(t, photos[0].ProgressID)
	assert.Empty(t, photos[0].Description)

	assert.Equal(t, tied.ID, photos[1].ID)
	require.NotNil(t, photos[1].ProgressID)
	assert.Equal(t, progress.ID, *photos[1].ProgressID)
	assert.Equal(t, "dent before", photos[1].Description)
}
