package service

import "errors"

var (
	// ErrMissingIdempotencyKey is returned when a create request carries no
	// idempotency key.
	ErrMissingIdempotencyKey = errors.New("idempotency key required")

	// ErrInvalidTransition is returned when a requested status change is not
	// an edge of the ride status graph.
	ErrInvalidTransition = errors.New("invalid ride status transition")

	// ErrCollaboratorUnavailable is returned when the geo, pricing, or
	// driver-assignment collaborator failed. It is recoverable: callers
	// degrade to stub data or retry, never fail the ride.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

	// ErrInvalidRiderID is returned when rider ID is empty.
	ErrInvalidRiderID = errors.New("invalid rider id")

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = errors.New("invalid ride id")

	// ErrInvalidOrigin is returned when the origin is empty.
	ErrInvalidOrigin = errors.New("invalid origin")

	// ErrInvalidDestination is returned when the destination is empty.
	ErrInvalidDestination = errors.New("invalid destination")
)
