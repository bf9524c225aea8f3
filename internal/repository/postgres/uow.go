package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"magadrive/internal/repository"
)

// UnitOfWork runs ride-store and event-log writes inside one database
// transaction.
type UnitOfWork struct {
	db *sql.DB
}

// NewUnitOfWork creates a new PostgreSQL unit of work.
func NewUnitOfWork(db *sql.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// WithinTx begins a transaction, hands transactional store views to fn, and
// commits only if fn succeeds.
func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(rides repository.RideStore, events repository.EventLog) error) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(NewRideStoreWithTx(tx), NewEventLogWithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
