package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"magadrive/internal/domain"
	"magadrive/internal/repository"
)

// ──────────────────────────────────────────────
// 3. EVENT LOG AND SUBSCRIPTIONS
// ──────────────────────────────────────────────

func TestEvents_SequenceIsMonotonicAndOrdered(t *testing.T) {
	t.Parallel()

	f := newEngineFixture()
	ctx := context.Background()

	ride, err := createRide(ctx, f, "key-seq")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.Engine.AssignDriver(ctx, ride.ID, testDriver(), 300, 2500, 210, "RUB"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := f.Engine.RefreshEta(ctx, ride.ID, 180, 2000); err != nil {
		t.Fatalf("refresh eta: %v", err)
	}
	if _, err := f.Engine.MarkOnTheWay(ctx, ride.ID); err != nil {
		t.Fatalf("on the way: %v", err)
	}
	if err := f.Engine.RefreshPosition(ctx, ride.ID, 55.71, 37.56); err != nil {
		t.Fatalf("refresh position: %v", err)
	}
	if _, err := f.Engine.CompleteRide(ctx, ride.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	events, err := f.Events.ListSince(ctx, ride.ID, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	wantTypes := []domain.EventType{
		domain.EventRideCreated,
		domain.EventDriverAssigned,
		domain.EventEtaUpdate,
		domain.EventDriverOnTheWay,
		domain.EventLocationUpdate,
		domain.EventRideCompleted,
	}
	if len(events) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d", len(wantTypes), len(events))
	}
	for i, e := range events {
		if e.Seq != int64(i+1) {
			t.Errorf("event %d: expected seq %d, got %d", i, i+1, e.Seq)
		}
		if e.Type != wantTypes[i] {
			t.Errorf("event %d: expected %s, got %s", i, wantTypes[i], e.Type)
		}
		if e.RideID != ride.ID {
			t.Errorf("event %d: wrong ride id %s", i, e.RideID)
		}
	}
}

func TestEvents_ReplayReconstructsStatus(t *testing.T) {
	t.Parallel()

	f := newEngineFixture()
	ctx := context.Background()

	ride, err := createRide(ctx, f, "key-replay")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.Engine.AssignDriver(ctx, ride.ID, testDriver(), 300, 2500, 210, "RUB"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.Engine.CancelRide(ctx, ride.ID, "changed mind"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	events, err := f.Events.ListSince(ctx, ride.ID, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	// Folding the status-bearing events in log order must land on the
	// stored status.
	var replayed domain.RideStatus
	for _, e := range events {
		if status, ok := domain.StatusForEvent(e.Type); ok {
			replayed = status
		}
	}

	stored, err := f.Engine.GetRide(ctx, ride.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if replayed != stored.Status {
		t.Errorf("replayed status %s does not match stored %s", replayed, stored.Status)
	}
}

func TestEvents_ListSince_SkipsConsumedPrefix(t *testing.T) {
	t.Parallel()

	f := newEngineFixture()
	ctx := context.Background()

	ride, err := createRide(ctx, f, "key-since")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.Engine.AssignDriver(ctx, ride.ID, testDriver(), 300, 2500, 210, "RUB"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	tail, err := f.Events.ListSince(ctx, ride.ID, 1)
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(tail) != 1 || tail[0].Seq != 2 {
		t.Fatalf("expected only seq 2, got %v", tail)
	}
}

func TestEvents_Subscribe_UnknownRide_NotFound(t *testing.T) {
	t.Parallel()

	f := newEngineFixture()

	_, _, err := f.Engine.SubscribeEvents(context.Background(), "no-such-ride")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestEvents_Subscribe_BacklogThenLive(t *testing.T) {
	t.Parallel()

	f := newEngineFixture()
	ctx := context.Background()

	ride, err := createRide(ctx, f, "key-stream")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	backlog, sub, err := f.Engine.SubscribeEvents(ctx, ride.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer f.Engine.Unsubscribe(sub)

	if len(backlog) != 1 || backlog[0].Type != domain.EventRideCreated {
		t.Fatalf("expected RIDE_CREATED backlog, got %v", backlog)
	}

	if _, err := f.Engine.AssignDriver(ctx, ride.ID, testDriver(), 300, 2500, 210, "RUB"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	select {
	case live := <-sub.Events():
		if live.Type != domain.EventDriverAssigned {
			t.Fatalf("expected DRIVER_ASSIGNED live, got %s", live.Type)
		}
		if live.Seq <= backlog[len(backlog)-1].Seq {
			t.Errorf("live seq %d not after backlog seq %d", live.Seq, backlog[0].Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for live event")
	}
}

func TestEvents_Unsubscribe_ClosesChannel(t *testing.T) {
	t.Parallel()

	f := newEngineFixture()
	ctx := context.Background()

	ride, err := createRide(ctx, f, "key-close")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, sub, err := f.Engine.SubscribeEvents(ctx, ride.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	f.Engine.Unsubscribe(sub)

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Error("expected closed channel after unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}

	if n := f.Registry.SubscriberCount(ride.ID); n != 0 {
		t.Errorf("expected 0 subscribers, got %d", n)
	}
}
