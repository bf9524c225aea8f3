package service

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"magadrive/internal/domain"
)

// subscriptionBuffer is the per-listener channel depth. A listener that
// falls this far behind is dropped rather than allowed to stall broadcast.
const subscriptionBuffer = 16

// Subscription is one listener's handle on a ride's live event stream.
type Subscription struct {
	id     string
	rideID string
	ch     chan *domain.RideEvent
}

// RideID returns the ride this subscription listens to.
func (s *Subscription) RideID() string { return s.rideID }

// Events returns the live event channel. The channel is closed when the
// subscription is dropped or the registry shuts down.
func (s *Subscription) Events() <-chan *domain.RideEvent { return s.ch }

// Registry maps ride IDs to their currently subscribed listeners and fans
// lifecycle events out to them. Delivery is best-effort: a listener that
// cannot keep up is dropped, never waited on.
type Registry struct {
	mu     sync.RWMutex
	subs   map[string]map[string]*Subscription
	closed bool
}

// NewRegistry creates a new connection registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]map[string]*Subscription)}
}

// Subscribe registers a new listener for the ride's live events.
func (r *Registry) Subscribe(rideID string) *Subscription {
	sub := &Subscription{
		id:     uuid.New().String(),
		rideID: rideID,
		ch:     make(chan *domain.RideEvent, subscriptionBuffer),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		close(sub.ch)
		return sub
	}
	if r.subs[rideID] == nil {
		r.subs[rideID] = make(map[string]*Subscription)
	}
	r.subs[rideID][sub.id] = sub
	return sub
}

// Unsubscribe removes a listener and closes its channel.
func (r *Registry) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(sub)
}

// remove must be called with the write lock held. The presence check makes
// a concurrent Unsubscribe/drop race close the channel exactly once.
func (r *Registry) remove(sub *Subscription) {
	listeners, ok := r.subs[sub.rideID]
	if !ok {
		return
	}
	if _, ok := listeners[sub.id]; !ok {
		return
	}
	delete(listeners, sub.id)
	if len(listeners) == 0 {
		delete(r.subs, sub.rideID)
	}
	close(sub.ch)
}

// Broadcast delivers the event to every listener currently subscribed to
// its ride. A listener whose buffer is full is dropped and the drop is
// logged; the broadcaster never blocks or reports an error.
func (r *Registry) Broadcast(event *domain.RideEvent) {
	r.mu.RLock()
	var stalled []*Subscription
	for _, sub := range r.subs[event.RideID] {
		select {
		case sub.ch <- event:
		default:
			stalled = append(stalled, sub)
		}
	}
	r.mu.RUnlock()

	if len(stalled) == 0 {
		return
	}

	r.mu.Lock()
	for _, sub := range stalled {
		r.remove(sub)
		log.Printf("fanout: dropped stalled subscriber ride_id=%s sub_id=%s", sub.rideID, sub.id)
	}
	r.mu.Unlock()
}

// SubscriberCount returns the number of listeners for a ride.
func (r *Registry) SubscriberCount(rideID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[rideID])
}

// Close drops every listener. Used at process shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for _, listeners := range r.subs {
		for _, sub := range listeners {
			close(sub.ch)
		}
	}
	r.subs = make(map[string]map[string]*Subscription)
}
