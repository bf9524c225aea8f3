package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"magadrive/internal/domain"
	"magadrive/internal/repository"
)

// transitionAttempts bounds the CAS retry loop. A conflict means another
// transition landed first; after a re-read the edge check decides whether
// this caller's target is still reachable.
const transitionAttempts = 3

// RideCache is an optional snapshot cache for the get-ride read path.
type RideCache interface {
	Get(ctx context.Context, rideID string) (*domain.Ride, error)
	Set(ctx context.Context, ride *domain.Ride) error
	Invalidate(ctx context.Context, rideID string) error
}

// Lifecycle supervises the per-ride background task that stands in for a
// real driver-matching system.
type Lifecycle interface {
	// StartRide schedules the background progression for a new ride.
	StartRide(ride *domain.Ride)
	// StopRide cancels the ride's background task after a terminal
	// transition.
	StopRide(rideID string)
}

// RideService is the ride lifecycle engine: it owns ride creation,
// validated status transitions, the event log, and event fanout.
type RideService struct {
	uow      repository.UnitOfWork
	rides    repository.RideStore
	idem     repository.IdempotencyStore
	events   repository.EventLog
	registry *Registry

	cache     RideCache // optional
	lifecycle Lifecycle // optional, attached after construction
}

// NewRideService creates a new RideService.
func NewRideService(
	uow repository.UnitOfWork,
	rides repository.RideStore,
	events repository.EventLog,
	idem repository.IdempotencyStore,
	registry *Registry,
) *RideService {
	return &RideService{
		uow:      uow,
		rides:    rides,
		events:   events,
		idem:     idem,
		registry: registry,
	}
}

// SetCache attaches an optional ride snapshot cache.
func (s *RideService) SetCache(cache RideCache) {
	s.cache = cache
}

// SetLifecycle attaches the background lifecycle supervisor. The simulator
// needs the engine and the engine needs the simulator, so this is wired
// after both are constructed.
func (s *RideService) SetLifecycle(lifecycle Lifecycle) {
	s.lifecycle = lifecycle
}

// Registry returns the engine's connection registry.
func (s *RideService) Registry() *Registry {
	return s.registry
}

// CreateRideRequest contains the parameters for creating a ride.
type CreateRideRequest struct {
	IdempotencyKey string
	RiderID        string
	Origin         string
	Destination    string
	VehicleClass   domain.VehicleClass
	TraceID        string
}

// CreateRide creates a ride in REQUESTED state, records RIDE_CREATED,
// broadcasts it, and schedules the lifecycle task. A repeated call with the
// same idempotency key returns the existing ride without creating another.
func (s *RideService) CreateRide(ctx context.Context, req CreateRideRequest) (*domain.Ride, error) {
	if err := s.validateCreateRequest(req); err != nil {
		return nil, err
	}

	rideID := uuid.New().String()
	owner, won, err := s.idem.Reserve(ctx, req.IdempotencyKey, rideID)
	if err != nil {
		return nil, err
	}
	if !won {
		return s.awaitRide(ctx, owner)
	}

	now := time.Now().UTC()
	ride := &domain.Ride{
		ID:           rideID,
		RiderID:      req.RiderID,
		Origin:       req.Origin,
		Destination:  req.Destination,
		VehicleClass: req.VehicleClass,
		Status:       domain.RideStatusRequested,
		Currency:     "RUB",
		TraceID:      req.TraceID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var created *domain.RideEvent
	err = s.uow.WithinTx(ctx, func(rides repository.RideStore, events repository.EventLog) error {
		if err := rides.Create(ctx, ride); err != nil {
			return err
		}
		created, err = events.Append(ctx, ride.ID, domain.EventRideCreated, domain.RideCreatedPayload{
			Origin:       ride.Origin,
			Destination:  ride.Destination,
			VehicleClass: ride.VehicleClass,
		})
		return err
	})
	if err != nil {
		// Free the key so a client retry is not pinned to a ride that was
		// never persisted.
		if relErr := s.idem.Release(ctx, req.IdempotencyKey); relErr != nil {
			log.Printf("engine: release idempotency key failed ride_id=%s err=%v", rideID, relErr)
		}
		return nil, err
	}

	s.registry.Broadcast(created)
	if s.lifecycle != nil {
		s.lifecycle.StartRide(ride)
	}

	log.Printf("engine: ride created ride_id=%s rider_id=%s trace_id=%s", ride.ID, ride.RiderID, ride.TraceID)
	return ride, nil
}

// awaitRide resolves a lost idempotency race to the winner's ride. The
// winner may still be inside its creation transaction, so reads are retried
// briefly.
func (s *RideService) awaitRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		ride, err := s.rides.GetByID(ctx, rideID)
		if err == nil {
			log.Printf("engine: idempotent replay resolved ride_id=%s", rideID)
			return ride, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
	return nil, lastErr
}

// GetRide returns the current ride snapshot.
func (s *RideService) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	if s.cache != nil {
		if ride, err := s.cache.Get(ctx, rideID); err == nil && ride != nil {
			return ride, nil
		}
	}

	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	// Only terminal snapshots are written back. A non-terminal write-back
	// racing a transition could land after the transition's invalidation
	// and serve the old status for the TTL window.
	if s.cache != nil && domain.IsTerminal(ride.Status) {
		if err := s.cache.Set(ctx, ride); err != nil {
			log.Printf("engine: cache set failed ride_id=%s err=%v", rideID, err)
		}
	}
	return ride, nil
}

// ListRides returns recent rides, newest first.
func (s *RideService) ListRides(ctx context.Context) ([]*domain.Ride, error) {
	return s.rides.GetAll(ctx)
}

// CancelRide moves the ride to CANCELED. Fails with ErrInvalidTransition if
// the ride is already terminal.
func (s *RideService) CancelRide(ctx context.Context, rideID, reason string) (*domain.Ride, error) {
	if reason == "" {
		reason = "User canceled"
	}

	ride, err := s.transition(ctx, rideID, domain.RideStatusCanceled,
		func(r *domain.Ride) { r.CancelReason = reason },
		func(r *domain.Ride) domain.EventPayload {
			return domain.RideCanceledPayload{Reason: reason}
		},
	)
	if err != nil {
		return nil, err
	}

	if s.lifecycle != nil {
		s.lifecycle.StopRide(rideID)
	}
	log.Printf("engine: ride canceled ride_id=%s reason=%q", rideID, reason)
	return ride, nil
}

// CompleteRide moves the ride to COMPLETED. Allowed from ASSIGNED or
// ON_THE_WAY.
func (s *RideService) CompleteRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	ride, err := s.transition(ctx, rideID, domain.RideStatusCompleted,
		nil,
		func(r *domain.Ride) domain.EventPayload {
			return domain.RideCompletedPayload{}
		},
	)
	if err != nil {
		return nil, err
	}

	if s.lifecycle != nil {
		s.lifecycle.StopRide(rideID)
	}
	log.Printf("engine: ride completed ride_id=%s", rideID)
	return ride, nil
}

// AssignDriver moves the ride to ASSIGNED with the driver facts and the
// collaborators' route and price. Called by the lifecycle task once a
// driver has been matched.
func (s *RideService) AssignDriver(ctx context.Context, rideID string, driver domain.DriverInfo, etaSeconds int, distanceMeters, price float64, currency string) (*domain.Ride, error) {
	return s.transition(ctx, rideID, domain.RideStatusAssigned,
		func(r *domain.Ride) {
			r.Driver = driver
			r.EtaSeconds = etaSeconds
			r.DistanceMeters = distanceMeters
			r.Price = price
			if currency != "" {
				r.Currency = currency
			}
		},
		func(r *domain.Ride) domain.EventPayload {
			return domain.DriverAssignedPayload{
				DriverID:      driver.ID,
				Name:          driver.Name,
				Phone:         driver.Phone,
				VehicleNumber: driver.VehicleNumber,
				Rating:        driver.Rating,
				EtaSeconds:    etaSeconds,
			}
		},
	)
}

// MarkOnTheWay moves the ride to ON_THE_WAY.
func (s *RideService) MarkOnTheWay(ctx context.Context, rideID string) (*domain.Ride, error) {
	return s.transition(ctx, rideID, domain.RideStatusOnTheWay,
		nil,
		func(r *domain.Ride) domain.EventPayload {
			return domain.DriverOnTheWayPayload{EtaSeconds: r.EtaSeconds}
		},
	)
}

// RefreshEta records an informational ETA refresh. It updates the ride's
// ETA fields and appends ETA_UPDATE without changing the status; the ride
// must still be active.
func (s *RideService) RefreshEta(ctx context.Context, rideID string, etaSeconds int, distanceMeters float64) error {
	return s.refresh(ctx, rideID,
		func(r *domain.Ride) {
			r.EtaSeconds = etaSeconds
			r.DistanceMeters = distanceMeters
		},
		domain.EventEtaUpdate,
		domain.EtaUpdatePayload{EtaSeconds: etaSeconds, DistanceMeters: distanceMeters},
	)
}

// RefreshPosition records an informational driver position refresh and
// appends LOCATION_UPDATE without changing the status.
func (s *RideService) RefreshPosition(ctx context.Context, rideID string, lat, lng float64) error {
	return s.refresh(ctx, rideID,
		func(r *domain.Ride) {
			r.LiveLat = lat
			r.LiveLng = lng
		},
		domain.EventLocationUpdate,
		domain.LocationUpdatePayload{Lat: lat, Lng: lng},
	)
}

// SubscribeEvents attaches a listener to the ride's event stream. It
// returns the backlog (full history so far, ordered by sequence) and a live
// subscription; the caller must Unsubscribe when done. Live events
// duplicated in the backlog can be skipped by sequence number.
func (s *RideService) SubscribeEvents(ctx context.Context, rideID string) ([]*domain.RideEvent, *Subscription, error) {
	if _, err := s.rides.GetByID(ctx, rideID); err != nil {
		return nil, nil, err
	}

	// Subscribe before reading the backlog so no event between the two is
	// lost; overlap is deduplicated by sequence number.
	sub := s.registry.Subscribe(rideID)
	backlog, err := s.events.ListSince(ctx, rideID, 0)
	if err != nil {
		s.registry.Unsubscribe(sub)
		return nil, nil, err
	}
	return backlog, sub, nil
}

// Unsubscribe releases a listener obtained from SubscribeEvents.
func (s *RideService) Unsubscribe(sub *Subscription) {
	s.registry.Unsubscribe(sub)
}

// transition loads the ride, validates the status edge, and applies status,
// field mutation, and event append as one unit guarded by compare-and-swap
// on the observed status. A CAS conflict triggers a re-read; once the edge
// is no longer valid from the fresh status the call fails with
// ErrInvalidTransition.
func (s *RideService) transition(
	ctx context.Context,
	rideID string,
	target domain.RideStatus,
	mutate func(*domain.Ride),
	payload func(*domain.Ride) domain.EventPayload,
) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	eventType, ok := domain.EventForStatus(target)
	if !ok {
		return nil, ErrInvalidTransition
	}

	var (
		updated *domain.Ride
		event   *domain.RideEvent
	)

	for attempt := 0; attempt < transitionAttempts; attempt++ {
		err := s.uow.WithinTx(ctx, func(rides repository.RideStore, events repository.EventLog) error {
			current, err := rides.GetByID(ctx, rideID)
			if err != nil {
				return err
			}
			if !domain.CanTransition(current.Status, target) {
				return ErrInvalidTransition
			}

			next := *current
			next.Status = target
			next.UpdatedAt = time.Now().UTC()
			if mutate != nil {
				mutate(&next)
			}

			if err := rides.UpdateIfStatus(ctx, &next, current.Status); err != nil {
				return err
			}

			event, err = events.Append(ctx, rideID, eventType, payload(&next))
			if err != nil {
				return err
			}
			updated = &next
			return nil
		})
		if errors.Is(err, repository.ErrStatusConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.invalidate(ctx, rideID)
		s.registry.Broadcast(event)
		return updated, nil
	}

	// Every attempt lost the CAS race; the winner's transition made ours
	// invalid.
	return nil, ErrInvalidTransition
}

// refresh applies an informational update: ride fields change and an event
// is appended, but the status stays put. Terminal rides reject refreshes
// with ErrInvalidTransition.
func (s *RideService) refresh(
	ctx context.Context,
	rideID string,
	mutate func(*domain.Ride),
	eventType domain.EventType,
	payload domain.EventPayload,
) error {
	var event *domain.RideEvent

	for attempt := 0; attempt < transitionAttempts; attempt++ {
		err := s.uow.WithinTx(ctx, func(rides repository.RideStore, events repository.EventLog) error {
			current, err := rides.GetByID(ctx, rideID)
			if err != nil {
				return err
			}
			if domain.IsTerminal(current.Status) {
				return ErrInvalidTransition
			}

			next := *current
			next.UpdatedAt = time.Now().UTC()
			mutate(&next)

			if err := rides.UpdateIfStatus(ctx, &next, current.Status); err != nil {
				return err
			}

			event, err = events.Append(ctx, rideID, eventType, payload)
			return err
		})
		if errors.Is(err, repository.ErrStatusConflict) {
			continue
		}
		if err != nil {
			return err
		}

		s.invalidate(ctx, rideID)
		s.registry.Broadcast(event)
		return nil
	}
	return ErrInvalidTransition
}

func (s *RideService) invalidate(ctx context.Context, rideID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, rideID); err != nil {
		log.Printf("engine: cache invalidate failed ride_id=%s err=%v", rideID, err)
	}
}

func (s *RideService) validateCreateRequest(req CreateRideRequest) error {
	if req.IdempotencyKey == "" {
		return ErrMissingIdempotencyKey
	}
	if req.RiderID == "" {
		return ErrInvalidRiderID
	}
	if req.Origin == "" {
		return ErrInvalidOrigin
	}
	if req.Destination == "" {
		return ErrInvalidDestination
	}
	return nil
}
