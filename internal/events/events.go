package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventRequestCreated   = "request_created"
	EventStatusChanged    = "status_changed"
	EventMechanicAssigned = "mechanic_assigned"
	EventPaymentRecorded  = "payment_recorded"
	EventProgressAdded    = "progress_added"
)

// RequestEventPayload describes the minimal request snapshot for event
// consumers.
type RequestEventPayload struct {
	RequestID  int64    `json:"request_id"`
	CustomerID int64    `json:"customer_id"`
	VehicleID  int64    `json:"vehicle_id"`
	Status     string   `json:"status"`
	MechanicID *int64   `json:"mechanic_id,omitempty"`
	TotalCost  *float64 `json:"total_cost,omitempty"`
	ChangedBy  int64    `json:"changed_by,omitempty"`
	ActorRole  string   `json:"actor_role,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
