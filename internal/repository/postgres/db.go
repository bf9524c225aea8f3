package postgres

import (
	"context"
	"database/sql"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// Migrate creates the ride engine schema if it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS rides (
			id TEXT PRIMARY KEY,
			rider_id TEXT NOT NULL,
			origin TEXT NOT NULL,
			destination TEXT NOT NULL,
			vehicle_class TEXT NOT NULL,
			status TEXT NOT NULL,
			driver_id TEXT,
			driver_name TEXT,
			driver_phone TEXT,
			vehicle_number TEXT,
			driver_rating DOUBLE PRECISION,
			live_lat DOUBLE PRECISION,
			live_lng DOUBLE PRECISION,
			eta_seconds INTEGER,
			distance_meters DOUBLE PRECISION,
			price DOUBLE PRECISION,
			currency TEXT NOT NULL DEFAULT 'RUB',
			cancel_reason TEXT,
			trace_id TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rides_rider_id ON rides (rider_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rides_status ON rides (status)`,
		`CREATE TABLE IF NOT EXISTS ride_events (
			id TEXT PRIMARY KEY,
			ride_id TEXT NOT NULL REFERENCES rides (id),
			seq BIGINT NOT NULL,
			event_type TEXT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (ride_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ride_events_ride_id ON ride_events (ride_id)`,
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			key TEXT PRIMARY KEY,
			ride_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
