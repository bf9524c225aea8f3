package repository

import (
	"context"

	"magadrive/internal/domain"
)

// RideStore defines the persistence operations for rides.
type RideStore interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// GetAll retrieves recent rides, newest first.
	GetAll(ctx context.Context) ([]*domain.Ride, error)

	// UpdateIfStatus writes the ride only if its stored status still equals
	// expected. Returns ErrStatusConflict when the guard fails and
	// ErrNotFound when the ride does not exist.
	UpdateIfStatus(ctx context.Context, ride *domain.Ride, expected domain.RideStatus) error
}
