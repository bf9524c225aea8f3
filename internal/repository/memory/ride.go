package memory

import (
	"context"
	"sort"
	"sync"

	"magadrive/internal/domain"
	"magadrive/internal/repository"
)

// RideStore is an in-memory implementation of repository.RideStore. It
// satisfies the same compare-and-swap contract as the PostgreSQL store and
// backs tests and single-process dev mode.
type RideStore struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride
}

// NewRideStore creates a new in-memory ride store.
func NewRideStore() *RideStore {
	return &RideStore{rides: make(map[string]*domain.Ride)}
}

// Create persists a new ride.
func (s *RideStore) Create(ctx context.Context, ride *domain.Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *ride
	s.rides[ride.ID] = &stored
	return nil
}

// GetByID retrieves a ride by ID.
func (s *RideStore) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ride, ok := s.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy so callers cannot mutate stored state.
	snapshot := *ride
	return &snapshot, nil
}

// GetAll retrieves all rides, newest first.
func (s *RideStore) GetAll(ctx context.Context) ([]*domain.Ride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rides := make([]*domain.Ride, 0, len(s.rides))
	for _, r := range s.rides {
		snapshot := *r
		rides = append(rides, &snapshot)
	}
	sort.Slice(rides, func(i, j int) bool {
		return rides[i].CreatedAt.After(rides[j].CreatedAt)
	})
	return rides, nil
}

// UpdateIfStatus writes the ride only if its stored status still equals
// expected.
func (s *RideStore) UpdateIfStatus(ctx context.Context, ride *domain.Ride, expected domain.RideStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.rides[ride.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Status != expected {
		return repository.ErrStatusConflict
	}
	stored := *ride
	s.rides[ride.ID] = &stored
	return nil
}
