package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const liveDriverKey = "drivers:live"

// DriverPosition is a driver's live position for an active ride.
type DriverPosition struct {
	RideID string
	Lat    float64
	Lng    float64
}

// TrackingStore keeps the live driver position per active ride in a Redis
// geo index, so position reads never touch the ride row.
type TrackingStore struct {
	client *redis.Client
}

// NewTrackingStore creates a new TrackingStore.
func NewTrackingStore(client *redis.Client) *TrackingStore {
	return &TrackingStore{client: client}
}

// UpdatePosition stores the driver's position for a ride using GEOADD.
func (s *TrackingStore) UpdatePosition(ctx context.Context, rideID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, liveDriverKey, &redis.GeoLocation{
		Name:      rideID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// GetPosition returns the last known driver position for a ride. A missing
// entry returns (nil, nil).
func (s *TrackingStore) GetPosition(ctx context.Context, rideID string) (*DriverPosition, error) {
	positions, err := s.client.GeoPos(ctx, liveDriverKey, rideID).Result()
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 || positions[0] == nil {
		return nil, nil
	}
	return &DriverPosition{
		RideID: rideID,
		Lat:    positions[0].Latitude,
		Lng:    positions[0].Longitude,
	}, nil
}

// Remove drops the ride from the live index once it reaches a terminal
// status.
func (s *TrackingStore) Remove(ctx context.Context, rideID string) error {
	return s.client.ZRem(ctx, liveDriverKey, rideID).Err()
}
