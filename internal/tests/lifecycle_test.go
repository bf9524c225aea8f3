package tests

import (
	"context"
	"errors"
	"testing"

	"magadrive/internal/domain"
	"magadrive/internal/service"
)

// ──────────────────────────────────────────────
// 2. STATUS TRANSITIONS
// ──────────────────────────────────────────────

func testDriver() domain.DriverInfo {
	return domain.DriverInfo{
		ID:            "driver-test-1",
		Name:          "Test Driver",
		Phone:         "+7 (900) 000-00-01",
		VehicleNumber: "T 001 ST 77",
		Rating:        4.9,
	}
}

func TestLifecycle_HappyPath_RequestedToCompleted(t *testing.T) {
	t.Parallel()

	f := newEngineFixture()
	ctx := context.Background()

	ride, err := createRide(ctx, f, "key-happy")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	assigned, err := f.Engine.AssignDriver(ctx, ride.ID, testDriver(), 300, 2500, 210, "RUB")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.Status != domain.RideStatusAssigned {
		t.Fatalf("expected ASSIGNED, got %s", assigned.Status)
	}
	if assigned.Driver.ID != "driver-test-1" || assigned.EtaSeconds != 300 {
		t.Errorf("driver facts not recorded: %+v", assigned)
	}

	onTheWay, err := f.Engine.MarkOnTheWay(ctx, ride.ID)
	if err != nil {
		t.Fatalf("on the way: %v", err)
	}
	if onTheWay.Status != domain.RideStatusOnTheWay {
		t.Fatalf("expected ON_THE_WAY, got %s", onTheWay.Status)
	}

	completed, err := f.Engine.CompleteRide(ctx, ride.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != domain.RideStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", completed.Status)
	}

	stopped := f.Lifecycle.Stopped()
	if len(stopped) != 1 || stopped[0] != ride.ID {
		t.Errorf("expected lifecycle stop for %s, got %v", ride.ID, stopped)
	}
}

func TestLifecycle_CompleteFromAssigned_Succeeds(t *testing.T) {
	t.Parallel()

	f := newEngineFixture()
	ctx := context.Background()

	ride, err := createRide(ctx, f, "key-short")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.Engine.AssignDriver(ctx, ride.ID, testDriver(), 300, 2500, 210, "RUB"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	completed, err := f.Engine.CompleteRide(ctx, ride.ID)
	if err != nil {
		t.Fatalf("complete from assigned: %v", err)
	}
	if completed.Status != domain.RideStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", completed.Status)
	}
}

func TestLifecycle_CompleteFromRequested_Fails(t *testing.T) {
	t.Parallel()

	f := newEngineFixture()
	ctx := context.Background()

	ride, err := createRide(ctx, f, "key-early")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.Engine.CompleteRide(ctx, ride.ID); !errors.Is(err, service.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got: %v", err)
	}

	got, _ := f.Engine.GetRide(ctx, ride.ID)
	if got.Status != domain.RideStatusRequested {
		t.Errorf("status changed by rejected transition: %s", got.Status)
	}
}

func TestLifecycle_CancelFromEachActiveState_Succeeds(t *testing.T) {
	t.Parallel()

	advance := map[string]func(ctx context.Context, f *engineFixture, rideID string) error{
		"requested": func(ctx context.Context, f *engineFixture, rideID string) error {
			return nil
		},
		"assigned": func(ctx context.Context, f *engineFixture, rideID string) error {
			_, err := f.Engine.AssignDriver(ctx, rideID, testDriver(), 300, 2500, 210, "RUB")
			return err
		},
		"on the way": func(ctx context.Context, f *engineFixture, rideID string) error {
			if _, err := f.Engine.AssignDriver(ctx, rideID, testDriver(), 300, 2500, 210, "RUB"); err != nil {
				return err
			}
			_, err := f.Engine.MarkOnTheWay(ctx, rideID)
			return err
		},
	}

	for name, setup := range advance {
		name, setup := name, setup
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f := newEngineFixture()
			ctx := context.Background()

			ride, err := createRide(ctx, f, "key-cancel-"+name)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if err := setup(ctx, f, ride.ID); err != nil {
				t.Fatalf("setup: %v", err)
			}

			canceled, err := f.Engine.CancelRide(ctx, ride.ID, "changed mind")
			if err != nil {
				t.Fatalf("cancel: %v", err)
			}
			if canceled.Status != domain.RideStatusCanceled {
				t.Fatalf("expected CANCELED, got %s", canceled.Status)
			}
			if canceled.CancelReason != "changed mind" {
				t.Errorf("expected cancel reason recorded, got %q", canceled.CancelReason)
			}
		})
	}
}

func TestLifecycle_CancelTerminalRide_FailsWithoutEvent(t *testing.T) {
	t.Parallel()

	f := newEngineFixture()
	ctx := context.Background()

	ride, err := createRide(ctx, f, "key-terminal")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.Engine.AssignDriver(ctx, ride.ID, testDriver(), 300, 2500, 210, "RUB"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.Engine.CompleteRide(ctx, ride.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	before, _ := f.Events.ListSince(ctx, ride.ID, 0)

	if _, err := f.Engine.CancelRide(ctx, ride.ID, "too late"); !errors.Is(err, service.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got: %v", err)
	}

	after, _ := f.Events.ListSince(ctx, ride.ID, 0)
	if len(after) != len(before) {
		t.Errorf("rejected cancel appended an event: %d -> %d", len(before), len(after))
	}

	got, _ := f.Engine.GetRide(ctx, ride.ID)
	if got.Status != domain.RideStatusCompleted {
		t.Errorf("terminal status changed: %s", got.Status)
	}
}

func TestLifecycle_DefaultCancelReason(t *testing.T) {
	t.Parallel()

	f := newEngineFixture()
	ctx := context.Background()

	ride, err := createRide(ctx, f, "key-reasonless")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	canceled, err := f.Engine.CancelRide(ctx, ride.ID, "")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if canceled.CancelReason == "" {
		t.Error("expected a default cancel reason")
	}
}

func TestLifecycle_RefreshOnTerminalRide_Fails(t *testing.T) {
	t.Parallel()

	f := newEngineFixture()
	ctx := context.Background()

	ride, err := createRide(ctx, f, "key-stale")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.Engine.CancelRide(ctx, ride.ID, "changed mind"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if err := f.Engine.RefreshEta(ctx, ride.ID, 120, 900); !errors.Is(err, service.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for ETA refresh, got: %v", err)
	}
	if err := f.Engine.RefreshPosition(ctx, ride.ID, 55.7, 37.6); !errors.Is(err, service.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for position refresh, got: %v", err)
	}
}

func TestLifecycle_CacheNeverServesPreTransitionStatus(t *testing.T) {
	t.Parallel()

	f := newEngineFixture()
	cache := NewMockRideCache()
	f.Engine.SetCache(cache)
	ctx := context.Background()

	ride, err := createRide(ctx, f, "key-cache")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// An active ride is read but never written back: a delayed write-back
	// could otherwise land after a transition's invalidation and resurrect
	// the old status.
	got, err := f.Engine.GetRide(ctx, ride.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.RideStatusRequested {
		t.Fatalf("expected REQUESTED, got %s", got.Status)
	}
	if cache.SetCallCount != 0 {
		t.Errorf("active ride was written to the cache (%d sets)", cache.SetCallCount)
	}
	if cached := cache.Cached(ride.ID); cached != nil {
		t.Errorf("active ride cached with status %s", cached.Status)
	}

	if _, err := f.Engine.CancelRide(ctx, ride.ID, "changed mind"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// Once CANCELED has been returned, no later read may go backward.
	got, err = f.Engine.GetRide(ctx, ride.ID)
	if err != nil {
		t.Fatalf("get after cancel: %v", err)
	}
	if got.Status != domain.RideStatusCanceled {
		t.Fatalf("observed status went backward: got %s after cancel", got.Status)
	}
	if cached := cache.Cached(ride.ID); cached != nil && cached.Status != domain.RideStatusCanceled {
		t.Errorf("cache holds %s after cancel", cached.Status)
	}
}

func TestLifecycle_UnknownRide_NotFound(t *testing.T) {
	t.Parallel()

	f := newEngineFixture()
	ctx := context.Background()

	if _, err := f.Engine.GetRide(ctx, "no-such-ride"); err == nil {
		t.Error("expected not found for get")
	}
	if _, err := f.Engine.CancelRide(ctx, "no-such-ride", ""); err == nil {
		t.Error("expected not found for cancel")
	}
	if _, err := f.Engine.CompleteRide(ctx, "no-such-ride"); err == nil {
		t.Error("expected not found for complete")
	}
}
