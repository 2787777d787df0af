package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusPublish(t *testing.T) {
	bus := NewEventBus()

	var seen []*Event
	bus.Subscribe(EventStatusChanged, func(event *Event) error {
		seen = append(seen, event)
		return nil
	})
	bus.Subscribe(EventStatusChanged, func(event *Event) error {
		return errors.New("handler failure must not stop delivery")
	})
	bus.Subscribe(EventRequestCreated, func(event *Event) error {
		t.Fatal("handler for another event type must not fire")
		return nil
	})

	bus.Publish(&Event{Type: EventStatusChanged, Payload: []byte(`{}`)})
	bus.Publish(&Event{Type: EventStatusChanged, Payload: []byte(`{}`)})

	require.Len(t, seen, 2)
	assert.False(t, seen[0].CreatedAt.IsZero())
}

func TestEventBusPublishJSON(t *testing.T) {
	bus := NewEventBus()

	var got RequestEventPayload
	bus.Subscribe(EventPaymentRecorded, func(event *Event) error {
		return json.Unmarshal(event.Payload, &got)
	})

	cost := 260.0
	err := bus.PublishJSON(EventPaymentRecorded, RequestEventPayload{
		RequestID:  5,
		CustomerID: 10,
		Status:     "completed",
		TotalCost:  &cost,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(5), got.RequestID)
	require.NotNil(t, got.TotalCost)
	assert.Equal(t, 260.0, *got.TotalCost)
}

func TestEventBusNilSafe(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventRequestCreated, RequestEventPayload{RequestID: 1}))
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	assert.NoError(t, bus.PublishJSON("unknown_event", struct{}{}))
}
