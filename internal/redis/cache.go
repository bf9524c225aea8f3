package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"magadrive/internal/domain"
)

// RideCacheTTL is short because ride status changes quickly while the
// simulator is active.
const RideCacheTTL = 10 * time.Second

const rideCachePrefix = "cache:ride:"

// RideCache caches ride snapshots for the hot get-ride read path.
type RideCache struct {
	client *redis.Client
}

// NewRideCache creates a new RideCache.
func NewRideCache(client *redis.Client) *RideCache {
	return &RideCache{client: client}
}

// Get retrieves a cached ride snapshot. A cache miss returns (nil, nil).
func (c *RideCache) Get(ctx context.Context, rideID string) (*domain.Ride, error) {
	data, err := c.client.Get(ctx, rideCachePrefix+rideID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var ride domain.Ride
	if err := json.Unmarshal(data, &ride); err != nil {
		return nil, err
	}
	return &ride, nil
}

// Set stores a ride snapshot.
func (c *RideCache) Set(ctx context.Context, ride *domain.Ride) error {
	data, err := json.Marshal(ride)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, rideCachePrefix+ride.ID, data, RideCacheTTL).Err()
}

// Invalidate drops the cached snapshot after a transition so readers never
// observe a stale status past the TTL window.
func (c *RideCache) Invalidate(ctx context.Context, rideID string) error {
	return c.client.Del(ctx, rideCachePrefix+rideID).Err()
}
