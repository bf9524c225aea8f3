package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"magadrive/internal/domain"
)

// EventLog is a PostgreSQL implementation of repository.EventLog.
type EventLog struct {
	q Querier
}

// NewEventLog creates a new PostgreSQL event log.
func NewEventLog(db *sql.DB) *EventLog {
	return &EventLog{q: db}
}

// NewEventLogWithTx creates an event log using a transaction.
func NewEventLogWithTx(tx *sql.Tx) *EventLog {
	return &EventLog{q: tx}
}

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// Append persists a new event with the next sequence number for the ride.
// The sequence is allocated in the INSERT itself; the UNIQUE (ride_id, seq)
// index catches two appenders picking the same slot, in which case the
// insert is retried with a fresh number.
func (l *EventLog) Append(ctx context.Context, rideID string, eventType domain.EventType, payload domain.EventPayload) (*domain.RideEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO ride_events (id, ride_id, seq, event_type, payload, created_at)
		SELECT $1, $2, COALESCE(MAX(seq), 0) + 1, $3, $4, $5
		FROM ride_events WHERE ride_id = $2
		RETURNING seq
	`

	event := &domain.RideEvent{
		ID:        uuid.New().String(),
		RideID:    rideID,
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	for attempt := 0; ; attempt++ {
		err = l.q.QueryRowContext(ctx, query,
			event.ID, rideID, eventType, data, event.CreatedAt,
		).Scan(&event.Seq)
		if err == nil {
			return event, nil
		}
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation && attempt < 3 {
			continue
		}
		return nil, err
	}
}

// ListSince returns all events for the ride with Seq > afterSeq, ordered by
// sequence number.
func (l *EventLog) ListSince(ctx context.Context, rideID string, afterSeq int64) ([]*domain.RideEvent, error) {
	query := `
		SELECT id, ride_id, seq, event_type, payload, created_at
		FROM ride_events
		WHERE ride_id = $1 AND seq > $2
		ORDER BY seq
	`

	rows, err := l.q.QueryContext(ctx, query, rideID, afterSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.RideEvent
	for rows.Next() {
		var (
			event domain.RideEvent
			raw   []byte
		)
		if err := rows.Scan(&event.ID, &event.RideID, &event.Seq, &event.Type, &raw, &event.CreatedAt); err != nil {
			return nil, err
		}
		payload, err := domain.DecodePayload(event.Type, raw)
		if err != nil {
			return nil, err
		}
		event.Payload = payload
		events = append(events, &event)
	}
	return events, rows.Err()
}
