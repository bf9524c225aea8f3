package tests

import (
	"context"
	"sync"
	"sync/atomic"

	"magadrive/internal/domain"
	"magadrive/internal/repository"
	"magadrive/internal/repository/memory"
	"magadrive/internal/service"
)

// ──────────────────────────────────────────────
// MOCK RIDE STORE
// ──────────────────────────────────────────────

// MockRideStore wraps the in-memory store with call counters and error
// injection.
type MockRideStore struct {
	inner *memory.RideStore

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32
	GetCallCount    int32

	// Error injection
	CreateError error
	UpdateError error
}

// NewMockRideStore creates a new mock ride store.
func NewMockRideStore() *MockRideStore {
	return &MockRideStore{inner: memory.NewRideStore()}
}

func (m *MockRideStore) Create(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	return m.inner.Create(ctx, ride)
}

func (m *MockRideStore) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	return m.inner.GetByID(ctx, id)
}

func (m *MockRideStore) GetAll(ctx context.Context) ([]*domain.Ride, error) {
	return m.inner.GetAll(ctx)
}

func (m *MockRideStore) UpdateIfStatus(ctx context.Context, ride *domain.Ride, expected domain.RideStatus) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	return m.inner.UpdateIfStatus(ctx, ride, expected)
}

// ──────────────────────────────────────────────
// MOCK EVENT LOG
// ──────────────────────────────────────────────

// MockEventLog wraps the in-memory event log with call counters and error
// injection.
type MockEventLog struct {
	inner *memory.EventLog

	// Counters for verification
	AppendCallCount int32

	// Error injection
	AppendError error
}

// NewMockEventLog creates a new mock event log.
func NewMockEventLog() *MockEventLog {
	return &MockEventLog{inner: memory.NewEventLog()}
}

func (m *MockEventLog) Append(ctx context.Context, rideID string, eventType domain.EventType, payload domain.EventPayload) (*domain.RideEvent, error) {
	atomic.AddInt32(&m.AppendCallCount, 1)
	if m.AppendError != nil {
		return nil, m.AppendError
	}
	return m.inner.Append(ctx, rideID, eventType, payload)
}

func (m *MockEventLog) ListSince(ctx context.Context, rideID string, afterSeq int64) ([]*domain.RideEvent, error) {
	return m.inner.ListSince(ctx, rideID, afterSeq)
}

// ──────────────────────────────────────────────
// MOCK RIDE CACHE
// ──────────────────────────────────────────────

// MockRideCache records snapshot writes so tests can see exactly what the
// engine publishes to the cache.
type MockRideCache struct {
	mu    sync.Mutex
	rides map[string]*domain.Ride

	// Counters for verification
	SetCallCount        int32
	InvalidateCallCount int32
}

// NewMockRideCache creates a new mock ride cache.
func NewMockRideCache() *MockRideCache {
	return &MockRideCache{rides: make(map[string]*domain.Ride)}
}

func (m *MockRideCache) Get(ctx context.Context, rideID string) (*domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return nil, nil
	}
	snapshot := *ride
	return &snapshot, nil
}

func (m *MockRideCache) Set(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := *ride
	m.rides[ride.ID] = &snapshot
	return nil
}

func (m *MockRideCache) Invalidate(ctx context.Context, rideID string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rides, rideID)
	return nil
}

// Cached returns the snapshot currently held for a ride, nil if none.
func (m *MockRideCache) Cached(rideID string) *domain.Ride {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return nil
	}
	snapshot := *ride
	return &snapshot
}

// ──────────────────────────────────────────────
// MOCK LIFECYCLE
// ──────────────────────────────────────────────

// MockLifecycle records lifecycle supervision calls without running any
// background task.
type MockLifecycle struct {
	mu      sync.Mutex
	started []string
	stopped []string
}

// NewMockLifecycle creates a new mock lifecycle supervisor.
func NewMockLifecycle() *MockLifecycle {
	return &MockLifecycle{}
}

func (m *MockLifecycle) StartRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, ride.ID)
}

func (m *MockLifecycle) StopRide(rideID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = append(m.stopped, rideID)
}

// Started returns the ride IDs passed to StartRide.
func (m *MockLifecycle) Started() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.started...)
}

// Stopped returns the ride IDs passed to StopRide.
func (m *MockLifecycle) Stopped() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.stopped...)
}

// ──────────────────────────────────────────────
// MOCK DRIVER PROVIDER
// ──────────────────────────────────────────────

// MockDriverProvider hands out a fixed driver, with error injection for the
// no-driver-available path.
type MockDriverProvider struct {
	Driver domain.DriverInfo

	NextCallCount int32
	NextError     error
}

// NewMockDriverProvider creates a mock provider with a plausible driver.
func NewMockDriverProvider() *MockDriverProvider {
	return &MockDriverProvider{
		Driver: domain.DriverInfo{
			ID:            "driver-test-1",
			Name:          "Test Driver",
			Phone:         "+7 (900) 000-00-01",
			VehicleNumber: "T 001 ST 77",
			Rating:        4.9,
		},
	}
}

func (m *MockDriverProvider) NextDriver(ctx context.Context) (domain.DriverInfo, error) {
	atomic.AddInt32(&m.NextCallCount, 1)
	if m.NextError != nil {
		return domain.DriverInfo{}, m.NextError
	}
	return m.Driver, nil
}

// ──────────────────────────────────────────────
// MOCK POSITION TRACKER
// ──────────────────────────────────────────────

// MockTracker records driver positions pushed by the simulator.
type MockTracker struct {
	mu        sync.Mutex
	positions map[string][][2]float64
	removed   []string
}

// NewMockTracker creates a new mock position tracker.
func NewMockTracker() *MockTracker {
	return &MockTracker{positions: make(map[string][][2]float64)}
}

func (m *MockTracker) UpdatePosition(ctx context.Context, rideID string, lat, lng float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[rideID] = append(m.positions[rideID], [2]float64{lat, lng})
	return nil
}

func (m *MockTracker) Remove(ctx context.Context, rideID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, rideID)
	return nil
}

// Positions returns the recorded positions for a ride.
func (m *MockTracker) Positions(rideID string) [][2]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][2]float64(nil), m.positions[rideID]...)
}

// ──────────────────────────────────────────────
// ENGINE TEST HARNESS
// ──────────────────────────────────────────────

// engineFixture bundles a fully wired in-memory engine for scenario tests.
type engineFixture struct {
	Rides     *MockRideStore
	Events    *MockEventLog
	Idem      repository.IdempotencyStore
	Registry  *service.Registry
	Lifecycle *MockLifecycle
	Engine    *service.RideService
}

// newEngineFixture wires a RideService over in-memory stores with a mock
// lifecycle supervisor attached.
func newEngineFixture() *engineFixture {
	rides := NewMockRideStore()
	events := NewMockEventLog()
	idem := memory.NewIdempotencyStore()
	registry := service.NewRegistry()
	uow := fixtureUnitOfWork{rides: rides, events: events}

	engine := service.NewRideService(&uow, rides, events, idem, registry)
	lifecycle := NewMockLifecycle()
	engine.SetLifecycle(lifecycle)

	return &engineFixture{
		Rides:     rides,
		Events:    events,
		Idem:      idem,
		Registry:  registry,
		Lifecycle: lifecycle,
		Engine:    engine,
	}
}

// fixtureUnitOfWork runs fn over the fixture's mock stores while holding a
// mutex, mirroring memory.UnitOfWork but keeping the counters in the loop.
type fixtureUnitOfWork struct {
	mu     sync.Mutex
	rides  *MockRideStore
	events *MockEventLog
}

func (u *fixtureUnitOfWork) WithinTx(ctx context.Context, fn func(rides repository.RideStore, events repository.EventLog) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return fn(u.rides, u.events)
}

// createRide is a shorthand for a valid creation request.
func createRide(ctx context.Context, f *engineFixture, key string) (*domain.Ride, error) {
	return f.Engine.CreateRide(ctx, service.CreateRideRequest{
		IdempotencyKey: key,
		RiderID:        "rider-1",
		Origin:         "Lenina 1",
		Destination:    "Portovaya 10",
		VehicleClass:   domain.VehicleClassComfort,
	})
}
