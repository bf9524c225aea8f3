package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"magadrive/internal/domain"
)

// EventLog is an in-memory implementation of repository.EventLog. Sequence
// allocation is serialized per ride by the store mutex.
type EventLog struct {
	mu     sync.RWMutex
	events map[string][]*domain.RideEvent
}

// NewEventLog creates a new in-memory event log.
func NewEventLog() *EventLog {
	return &EventLog{events: make(map[string][]*domain.RideEvent)}
}

// Append persists a new event with the next sequence number for the ride.
func (l *EventLog) Append(ctx context.Context, rideID string, eventType domain.EventType, payload domain.EventPayload) (*domain.RideEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	event := &domain.RideEvent{
		ID:        uuid.New().String(),
		RideID:    rideID,
		Seq:       int64(len(l.events[rideID])) + 1,
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	l.events[rideID] = append(l.events[rideID], event)
	return event, nil
}

// ListSince returns all events for the ride with Seq > afterSeq, ordered by
// sequence number.
func (l *EventLog) ListSince(ctx context.Context, rideID string, afterSeq int64) ([]*domain.RideEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var events []*domain.RideEvent
	for _, e := range l.events[rideID] {
		if e.Seq > afterSeq {
			copied := *e
			events = append(events, &copied)
		}
	}
	return events, nil
}
