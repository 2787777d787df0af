package main

import (
	"io"
	"testing"

	"garage/internal/events"
	"garage/internal/metrics"
	"garage/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeRequestEvents(t *testing.T) {
	logger := zerolog.New(io.Discard)
	bus := events.NewEventBus()
	subscribeRequestEvents(bus, &logger)

	before := testutil.ToFloat64(metrics.TransitionsTotal(models.StatusInProgress))

	require.NoError(t, bus.PublishJSON(events.EventStatusChanged, events.RequestEventPayload{
		RequestID: 5,
		Status:    models.StatusInProgress,
	}))
	require.NoError(t, bus.PublishJSON(events.EventStatusChanged, events.RequestEventPayload{
		RequestID: 6,
		Status:    models.StatusInProgress,
	}))

	// События без статуса и чужие типы счётчик не трогают
	require.NoError(t, bus.PublishJSON(events.EventStatusChanged, events.RequestEventPayload{RequestID: 7}))
	require.NoError(t, bus.PublishJSON(events.EventRequestCreated, events.RequestEventPayload{
		RequestID: 8,
		Status:    models.StatusInProgress,
	}))

	assert.Equal(t, before+2, testutil.ToFloat64(metrics.TransitionsTotal(models.StatusInProgress)))
}

func TestSubscribeRequestEventsNilBus(t *testing.T) {
	logger := zerolog.New(io.Discard)
	assert.NotPanics(t, func() { subscribeRequestEvents(nil, &logger) })
}
