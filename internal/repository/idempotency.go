package repository

import "context"

// IdempotencyStore maps a client-supplied idempotency key to a ride ID,
// at most once. Reservations are never updated, expired, or deleted except
// by Release after a failed ride creation.
type IdempotencyStore interface {
	// Reserve atomically associates key with rideID unless the key is
	// already taken. It reports whether this caller won the reservation and,
	// in either case, the ride ID now associated with the key. The
	// implementation must rely on the store's native unique-insert semantics
	// so that concurrent callers racing on one key observe a single winner.
	Reserve(ctx context.Context, key, rideID string) (ownerRideID string, won bool, err error)

	// Release frees a reservation whose ride creation failed, so a client
	// retry with the same key can succeed.
	Release(ctx context.Context, key string) error
}
