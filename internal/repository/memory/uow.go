package memory

import (
	"context"
	"sync"

	"magadrive/internal/repository"
)

// UnitOfWork serializes combined ride-store and event-log writes with a
// single mutex. Within one process that is enough to make each fn call
// atomic with respect to the others; there is no rollback, so fn must write
// the ride before the event and bail out on the first error.
type UnitOfWork struct {
	mu     sync.Mutex
	rides  repository.RideStore
	events repository.EventLog
}

// NewUnitOfWork creates a unit of work over in-memory stores.
func NewUnitOfWork(rides *RideStore, events *EventLog) *UnitOfWork {
	return &UnitOfWork{rides: rides, events: events}
}

// WithinTx runs fn while holding the unit-of-work mutex.
func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(rides repository.RideStore, events repository.EventLog) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return fn(u.rides, u.events)
}
