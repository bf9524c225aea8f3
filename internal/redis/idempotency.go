package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const idempotencyKeyPrefix = "idempotency:ride:"

// IdempotencyStore reserves idempotency keys in Redis. SETNX is the native
// unique-insert: exactly one concurrent caller per key wins the reservation.
// Keys do not expire.
type IdempotencyStore struct {
	client *redis.Client
}

// NewIdempotencyStore creates a new Redis idempotency store.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

// Reserve associates key with rideID unless the key is already taken. It
// reports whether this caller won and the ride ID now owning the key.
func (s *IdempotencyStore) Reserve(ctx context.Context, key, rideID string) (string, bool, error) {
	redisKey := idempotencyKeyPrefix + key

	won, err := s.client.SetNX(ctx, redisKey, rideID, 0).Result()
	if err != nil {
		return "", false, err
	}
	if won {
		return rideID, true, nil
	}

	owner, err := s.client.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, errors.New("idempotency reservation vanished")
	}
	if err != nil {
		return "", false, err
	}
	return owner, false, nil
}

// Release frees a reservation whose ride creation failed.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}
