package repository

import (
	"context"

	"magadrive/internal/domain"
)

// EventLog defines the per-ride append-only event log. The log owns sequence
// allocation: Append assigns the next sequence number for the ride.
// Allocation across different rides is independent.
type EventLog interface {
	// Append persists a new event for the ride with the next sequence number
	// (starting at 1) and returns the stored event.
	Append(ctx context.Context, rideID string, eventType domain.EventType, payload domain.EventPayload) (*domain.RideEvent, error)

	// ListSince returns all events for the ride with Seq > afterSeq, ordered
	// by sequence number.
	ListSince(ctx context.Context, rideID string, afterSeq int64) ([]*domain.RideEvent, error)
}
