package service

import (
	"context"
	"errors"
	"hash/fnv"
	"log"
	"math/rand"
	"sync"
	"time"

	"magadrive/internal/domain"
	"magadrive/internal/repository"
)

// PositionTracker is an optional live-position sink for active rides.
type PositionTracker interface {
	UpdatePosition(ctx context.Context, rideID string, lat, lng float64) error
	Remove(ctx context.Context, rideID string) error
}

// SimulatorConfig holds the timing knobs for the lifecycle simulator.
type SimulatorConfig struct {
	// AssignDelayMin/Max bound the random matching latency.
	AssignDelayMin time.Duration
	AssignDelayMax time.Duration
	// EtaRefreshDelay is the pause before the informational ETA refresh.
	EtaRefreshDelay time.Duration
	// OnTheWayDelay is the pause before the driver starts moving.
	OnTheWayDelay time.Duration
	// LocationInterval is the pause between location updates.
	LocationInterval time.Duration
	// LocationUpdates bounds how many location updates one ride emits.
	LocationUpdates int
}

// DefaultSimulatorConfig mirrors the timings of the original driver
// assignment simulation: 2-5s matching, 2s to the first ETA refresh.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		AssignDelayMin:   2 * time.Second,
		AssignDelayMax:   5 * time.Second,
		EtaRefreshDelay:  2 * time.Second,
		OnTheWayDelay:    2 * time.Second,
		LocationInterval: 3 * time.Second,
		LocationUpdates:  5,
	}
}

// Simulator drives a requested ride through assignment, ETA refreshes, and
// location updates in the absence of a real driver-matching system. One
// supervised task runs per active ride; all tasks are cancelable as a group
// and individually when their ride reaches a terminal status.
type Simulator struct {
	engine  *RideService
	drivers DriverProvider
	geo     GeoService
	pricing PricingService
	tracker PositionTracker // optional
	cfg     SimulatorConfig

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu    sync.Mutex
	tasks map[string]context.CancelFunc
}

// NewSimulator creates a new Simulator. It is not started per se; each
// StartRide schedules one task under the simulator's lifetime context.
func NewSimulator(engine *RideService, drivers DriverProvider, geo GeoService, pricing PricingService, cfg SimulatorConfig) *Simulator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Simulator{
		engine:  engine,
		drivers: drivers,
		geo:     geo,
		pricing: pricing,
		cfg:     cfg,
		baseCtx: ctx,
		cancel:  cancel,
		tasks:   make(map[string]context.CancelFunc),
	}
}

// SetTracker attaches an optional live-position sink.
func (s *Simulator) SetTracker(tracker PositionTracker) {
	s.tracker = tracker
}

// StartRide schedules the background progression for a new ride. The caller
// never blocks on simulator progress.
func (s *Simulator) StartRide(ride *domain.Ride) {
	s.mu.Lock()
	if _, running := s.tasks[ride.ID]; running {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.tasks[ride.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.finish(ride.ID)
		defer func() {
			if r := recover(); r != nil {
				log.Printf("simulator: task panic ride_id=%s panic=%v", ride.ID, r)
			}
		}()
		s.run(ctx, ride)
	}()
}

// StopRide cancels the ride's task. A task mid-wait wakes promptly.
func (s *Simulator) StopRide(rideID string) {
	s.mu.Lock()
	cancel, ok := s.tasks[rideID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// Shutdown cancels every task and waits for them to finish.
func (s *Simulator) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

func (s *Simulator) finish(rideID string) {
	s.mu.Lock()
	if cancel, ok := s.tasks[rideID]; ok {
		cancel()
		delete(s.tasks, rideID)
	}
	s.mu.Unlock()

	if s.tracker != nil {
		// Use a fresh context: the task's own may already be canceled.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.tracker.Remove(ctx, rideID); err != nil {
			log.Printf("simulator: tracker cleanup failed ride_id=%s err=%v", rideID, err)
		}
	}
}

// run is one ride's progression. Any single step failure is logged and
// either degrades to stub data or leaves the ride in its last valid state;
// it never crashes the process.
func (s *Simulator) run(ctx context.Context, ride *domain.Ride) {
	rideID := ride.ID

	// Matching latency.
	if !sleepCtx(ctx, s.randomAssignDelay()) {
		return
	}
	// A cancel may have arrived during the wait.
	if s.terminal(ctx, rideID) {
		return
	}

	driver, err := s.drivers.NextDriver(ctx)
	if err != nil {
		// Ride stays REQUESTED and remains cancellable by the client.
		log.Printf("simulator: driver assignment failed ride_id=%s err=%v", rideID, err)
		return
	}

	distanceM, etaSec, err := s.geo.Route(ctx, ride.Origin, ride.Destination)
	if err != nil {
		log.Printf("simulator: geo degraded to stub ride_id=%s err=%v", rideID, err)
		distanceM, etaSec, _ = StubGeo{}.Route(ctx, ride.Origin, ride.Destination)
	}

	price, currency, err := s.pricing.Quote(ctx, distanceM, etaSec, ride.VehicleClass)
	if err != nil {
		log.Printf("simulator: pricing degraded to stub ride_id=%s err=%v", rideID, err)
		price, currency, _ = StubPricing{}.Quote(ctx, distanceM, etaSec, ride.VehicleClass)
	}

	if _, err := s.engine.AssignDriver(ctx, rideID, driver, etaSec, distanceM, price, currency); err != nil {
		// A lost race against a client cancel is the desired outcome.
		s.logStep(rideID, "assign", err)
		return
	}

	lat, lng := startPosition(rideID)
	s.track(ctx, rideID, lat, lng)

	// Informational ETA refresh, no status change.
	if !sleepCtx(ctx, s.cfg.EtaRefreshDelay) {
		return
	}
	if err := s.engine.RefreshEta(ctx, rideID, etaSec*6/10, distanceM*0.8); err != nil {
		s.logStep(rideID, "eta refresh", err)
		return
	}

	if !sleepCtx(ctx, s.cfg.OnTheWayDelay) {
		return
	}
	if _, err := s.engine.MarkOnTheWay(ctx, rideID); err != nil {
		s.logStep(rideID, "on the way", err)
		return
	}

	for i := 0; i < s.cfg.LocationUpdates; i++ {
		if !sleepCtx(ctx, s.cfg.LocationInterval) {
			return
		}
		if s.terminal(ctx, rideID) {
			return
		}
		lat, lng = nextPosition(lat, lng, i)
		if err := s.engine.RefreshPosition(ctx, rideID, lat, lng); err != nil {
			s.logStep(rideID, "location update", err)
			return
		}
		s.track(ctx, rideID, lat, lng)
	}
}

// terminal re-reads the ride and reports whether the task should stop. A
// read failure also stops the task; the ride keeps its last valid state.
func (s *Simulator) terminal(ctx context.Context, rideID string) bool {
	ride, err := s.engine.GetRide(ctx, rideID)
	if err != nil {
		log.Printf("simulator: status re-read failed ride_id=%s err=%v", rideID, err)
		return true
	}
	return domain.IsTerminal(ride.Status)
}

func (s *Simulator) track(ctx context.Context, rideID string, lat, lng float64) {
	if s.tracker == nil {
		return
	}
	if err := s.tracker.UpdatePosition(ctx, rideID, lat, lng); err != nil {
		log.Printf("simulator: position tracking failed ride_id=%s err=%v", rideID, err)
	}
}

// logStep distinguishes the expected lost-race outcomes from real failures.
func (s *Simulator) logStep(rideID, step string, err error) {
	switch {
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, repository.ErrStatusConflict):
		log.Printf("simulator: %s skipped, ride already settled ride_id=%s", step, rideID)
	case errors.Is(err, context.Canceled):
		log.Printf("simulator: %s canceled ride_id=%s", step, rideID)
	default:
		log.Printf("simulator: %s failed ride_id=%s err=%v", step, rideID, err)
	}
}

func (s *Simulator) randomAssignDelay() time.Duration {
	spread := s.cfg.AssignDelayMax - s.cfg.AssignDelayMin
	if spread <= 0 {
		return s.cfg.AssignDelayMin
	}
	return s.cfg.AssignDelayMin + time.Duration(rand.Int63n(int64(spread)))
}

// sleepCtx waits for d or until ctx is done. It returns false when the wait
// was interrupted.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// startPosition derives a stable pseudo-position for the assigned driver
// from the ride ID, inside a city-sized bounding box.
func startPosition(rideID string) (float64, float64) {
	h := fnv.New64a()
	h.Write([]byte(rideID))
	sum := h.Sum64()
	lat := 55.70 + float64(sum%1000)/10000
	lng := 37.55 + float64((sum>>16)%1000)/10000
	return lat, lng
}

// nextPosition drifts the driver toward the pickup a little each update.
func nextPosition(lat, lng float64, step int) (float64, float64) {
	return lat + 0.0008*float64(step+1), lng + 0.0011*float64(step+1)
}
