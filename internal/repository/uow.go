package repository

import "context"

// UnitOfWork runs ride-store and event-log writes as one atomic unit: either
// every write inside fn is persisted or none is.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(rides RideStore, events EventLog) error) error
}
