package memory

import (
	"context"
	"sync"
)

// IdempotencyStore is an in-memory implementation of
// repository.IdempotencyStore. The mutex around the map check-and-set is the
// unique-insert primitive here.
type IdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]string
}

// NewIdempotencyStore creates a new in-memory idempotency store.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{keys: make(map[string]string)}
}

// Reserve associates key with rideID unless the key is already taken.
func (s *IdempotencyStore) Reserve(ctx context.Context, key, rideID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.keys[key]; ok {
		return owner, false, nil
	}
	s.keys[key] = rideID
	return rideID, true, nil
}

// Release frees a reservation whose ride creation failed.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}
