// Package channels maps domain concerns onto transport channel names.
// The router owns the desired-subscription set: subscribing while
// disconnected is recorded, and the wire subscription is (re-)issued
// whenever the transport reaches connected. Domain callers are
// responsible for unsubscribing when an entity leaves scope, e.g. a
// trip completing.
package channels

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"haulsync/internal/events"
	"haulsync/internal/transport"
)

// Well-known channel names.
const (
	HOSUpdates    = "hos_updates"
	TripUpdates   = "trip_updates"
	Notifications = "notifications"
)

// TripChannel derives a per-trip channel name. Unsubscribe uses the
// identical derivation, so cleanup always matches.
func TripChannel(id int64) string {
	return fmt.Sprintf("trip_%d", id)
}

// TripID reverses TripChannel. Returns false for any other channel.
func TripID(channel string) (int64, bool) {
	rest, ok := strings.CutPrefix(channel, "trip_")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Router deduplicates channel subscriptions and replays them on every
// reconnect.
type Router struct {
	tr transport.Transport

	mu      sync.Mutex
	desired map[string]struct{}
}

// NewRouter creates a router bound to the transport and session bus.
func NewRouter(tr transport.Transport, bus *events.Bus) *Router {
	r := &Router{
		tr:      tr,
		desired: make(map[string]struct{}),
	}
	bus.Subscribe(func(events.Event) { r.replay() }, events.TransportConnected)
	return r
}

// Subscribe records the channel and issues the wire subscription when
// connected. Redundant calls never reach the transport twice; the
// transport's own bookkeeping makes even a raced duplicate harmless.
func (r *Router) Subscribe(channel string) {
	r.mu.Lock()
	if _, ok := r.desired[channel]; ok {
		r.mu.Unlock()
		return
	}
	r.desired[channel] = struct{}{}
	r.mu.Unlock()

	if r.tr.State() == transport.StateConnected {
		r.tr.Subscribe(channel)
	}
}

// Unsubscribe removes the channel from the desired set and the wire.
// Idempotent.
func (r *Router) Unsubscribe(channel string) {
	r.mu.Lock()
	if _, ok := r.desired[channel]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.desired, channel)
	r.mu.Unlock()

	r.tr.Unsubscribe(channel)
}

// SubscribeHOS watches Hours-of-Service updates.
func (r *Router) SubscribeHOS() { r.Subscribe(HOSUpdates) }

// SubscribeTrips watches trip-list updates.
func (r *Router) SubscribeTrips() { r.Subscribe(TripUpdates) }

// SubscribeNotifications watches pushed notifications.
func (r *Router) SubscribeNotifications() { r.Subscribe(Notifications) }

// SubscribeTrip watches a single trip's updates.
func (r *Router) SubscribeTrip(id int64) { r.Subscribe(TripChannel(id)) }

// UnsubscribeTrip stops watching a trip, typically after it completes
// or is cancelled.
func (r *Router) UnsubscribeTrip(id int64) { r.Unsubscribe(TripChannel(id)) }

// Subscribed returns the desired channel list, sorted for stable
// display.
func (r *Router) Subscribed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.desired))
	for ch := range r.desired {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// replay re-issues every desired subscription after a (re)connect.
func (r *Router) replay() {
	r.mu.Lock()
	channels := make([]string, 0, len(r.desired))
	for ch := range r.desired {
		channels = append(channels, ch)
	}
	r.mu.Unlock()

	for _, ch := range channels {
		r.tr.Subscribe(ch)
	}
}
