package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"garage/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRateLimitStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(config.RedisConfig{Address: mr.Addr()})
	defer client.Close()

	store := NewRedisRateLimitStore(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := store.CheckRateLimit(ctx, 42, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "call %d should be allowed", i+1)
	}

	allowed, err := store.CheckRateLimit(ctx, 42, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Another actor has its own counter.
	allowed, err = store.CheckRateLimit(ctx, 43, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	// Window expiry resets the counter.
	mr.FastForward(2 * time.Minute)
	allowed, err = store.CheckRateLimit(ctx, 42, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemoryRateLimitStore(t *testing.T) {
	store := NewMemoryRateLimitStore()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := store.CheckRateLimit(ctx, 1, 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := store.CheckRateLimit(ctx, 1, 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Short window expires and the counter restarts.
	allowed, err = store.CheckRateLimit(ctx, 2, 1, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, allowed)

	time.Sleep(5 * time.Millisecond)
	allowed, err = store.CheckRateLimit(ctx, 2, 1, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, allowed)
}

type failingStore struct {
	calls int
}

func (f *failingStore) CheckRateLimit(ctx context.Context, actorID int64, limit int, window time.Duration) (bool, error) {
	f.calls++
	return false, errors.New("connection refused")
}

func TestFailoverRateLimitStore(t *testing.T) {
	logger := zerolog.New(io.Discard)
	primary := &failingStore{}
	fallback := NewMemoryRateLimitStore()
	store := NewFailoverRateLimitStore(primary, fallback, &logger)
	ctx := context.Background()

	// The first call trips the breaker and falls back.
	allowed, err := store.CheckRateLimit(ctx, 1, 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, primary.calls)

	// Subsequent calls skip the broken primary entirely.
	for i := 0; i < 3; i++ {
		_, err := store.CheckRateLimit(ctx, 1, 5, time.Minute)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, primary.calls)
}

func TestFailoverRateLimitStoreHealthyPrimary(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(config.RedisConfig{Address: mr.Addr()})
	defer client.Close()

	logger := zerolog.New(io.Discard)
	store := NewFailoverRateLimitStore(NewRedisRateLimitStore(client), NewMemoryRateLimitStore(), &logger)
	ctx := context.Background()

	allowed, err := store.CheckRateLimit(ctx, 7, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = store.CheckRateLimit(ctx, 7, 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Счётчик должен жить в Redis, а не в памяти
	assert.True(t, mr.Exists("rate_limit:7"))
}
