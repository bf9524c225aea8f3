package postgres

import (
	"context"
	"database/sql"
	"errors"
)

// IdempotencyStore is a PostgreSQL implementation of
// repository.IdempotencyStore, backed by the idempotency_keys primary key.
type IdempotencyStore struct {
	q Querier
}

// NewIdempotencyStore creates a new PostgreSQL idempotency store.
func NewIdempotencyStore(db *sql.DB) *IdempotencyStore {
	return &IdempotencyStore{q: db}
}

// Reserve associates key with rideID unless the key is already taken.
// ON CONFLICT DO NOTHING is the unique-insert primitive that makes the
// reservation race-free.
func (s *IdempotencyStore) Reserve(ctx context.Context, key, rideID string) (string, bool, error) {
	result, err := s.q.ExecContext(ctx, `
		INSERT INTO idempotency_keys (key, ride_id)
		VALUES ($1, $2)
		ON CONFLICT (key) DO NOTHING
	`, key, rideID)
	if err != nil {
		return "", false, err
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return "", false, err
	}
	if inserted > 0 {
		return rideID, true, nil
	}

	var owner string
	err = s.q.QueryRowContext(ctx, `SELECT ride_id FROM idempotency_keys WHERE key = $1`, key).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the insert race to a reservation that was released before our
		// read. Treat as a fresh conflict for the caller to retry.
		return "", false, errors.New("idempotency reservation vanished")
	}
	if err != nil {
		return "", false, err
	}
	return owner, false, nil
}

// Release frees a reservation whose ride creation failed.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE key = $1`, key)
	return err
}
