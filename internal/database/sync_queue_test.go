package database

import (
	"context"
	"testing"
	"time"

	"garage/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncQueue(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	task := &models.SyncTask{
		TaskType:  "upsert",
		RequestID: 1,
		Payload:   `{"request_id":1}`,
		Status:    "pending",
	}
	require.NoError(t, db.CreateSyncTask(ctx, task))
	assert.NotZero(t, task.ID)

	pending, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "upsert", pending[0].TaskType)

	// Retry with a future next_retry_at leaves the task invisible for now.
	future := time.Now().Add(time.Hour)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, "retry", "quota exceeded", &future))

	pending, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Once the retry time has passed, the task comes back with a bumped count.
	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, "retry", "quota exceeded", &past))

	pending, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].RetryCount)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "quota exceeded", *pending[0].LastError)

	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, "completed", "", nil))

	pending, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSyncQueueBatchLimit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		task := &models.SyncTask{TaskType: "update_status", RequestID: i, Status: "pending"}
		require.NoError(t, db.CreateSyncTask(ctx, task))
	}

	pending, err := db.GetPendingSyncTasks(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}
