package service

import (
	"fmt"
	"testing"
	"time"

	"magadrive/internal/domain"
)

func testEvent(rideID string, seq int64) *domain.RideEvent {
	return &domain.RideEvent{
		ID:        fmt.Sprintf("event-%d", seq),
		RideID:    rideID,
		Seq:       seq,
		Type:      domain.EventEtaUpdate,
		Payload:   domain.EtaUpdatePayload{EtaSeconds: 300, DistanceMeters: 2500},
		CreatedAt: time.Now().UTC(),
	}
}

func TestRegistry_BroadcastReachesAllSubscribers(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	a := r.Subscribe("ride-1")
	b := r.Subscribe("ride-1")
	other := r.Subscribe("ride-2")
	defer r.Close()

	r.Broadcast(testEvent("ride-1", 1))

	for name, sub := range map[string]*Subscription{"a": a, "b": b} {
		select {
		case got := <-sub.Events():
			if got.Seq != 1 {
				t.Errorf("%s: expected seq 1, got %d", name, got.Seq)
			}
		default:
			t.Errorf("%s: no event delivered", name)
		}
	}

	select {
	case got := <-other.Events():
		t.Errorf("subscriber of another ride received %v", got)
	default:
	}
}

func TestRegistry_StalledSubscriberIsDropped(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	stalled := r.Subscribe("ride-1")
	defer r.Close()

	// Fill the subscriber's buffer, then one more. The overflow broadcast
	// must drop it without blocking the broadcaster.
	for i := 0; i < subscriptionBuffer+1; i++ {
		r.Broadcast(testEvent("ride-1", int64(i+1)))
	}

	if n := r.SubscriberCount("ride-1"); n != 0 {
		t.Fatalf("expected stalled subscriber to be dropped, %d remain", n)
	}

	// The dropped subscriber's channel ends after its buffered events.
	drained := 0
	for range stalled.Events() {
		drained++
	}
	if drained != subscriptionBuffer {
		t.Errorf("expected %d buffered events before close, got %d", subscriptionBuffer, drained)
	}
}

func TestRegistry_UnsubscribeTwice_NoPanic(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	sub := r.Subscribe("ride-1")

	r.Unsubscribe(sub)
	r.Unsubscribe(sub)

	if n := r.SubscriberCount("ride-1"); n != 0 {
		t.Errorf("expected 0 subscribers, got %d", n)
	}
}

func TestRegistry_SubscribeAfterClose_ReturnsClosedChannel(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Close()

	sub := r.Subscribe("ride-1")
	if _, ok := <-sub.Events(); ok {
		t.Error("expected closed channel from a closed registry")
	}
}
