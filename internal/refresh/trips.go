package refresh

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"

	"haulsync/internal/api"
	"haulsync/internal/channels"
	"haulsync/internal/clock"
	"haulsync/internal/events"
	"haulsync/internal/settings"
	"haulsync/internal/transport"
)

// TripsClient fetches the driver's trip list.
type TripsClient interface {
	ListTrips(ctx context.Context) ([]api.Trip, error)
}

// Trips caches the trip list. Pushed trip_update frames upsert single
// rows; the poll loop replaces the whole list.
type Trips struct {
	*controller
	client TripsClient
	bus    *events.Bus

	mu      sync.Mutex
	byID    map[int64]api.Trip
	loaded  bool
	lastErr error
}

// NewTrips creates the trips refresh controller and subscribes it to
// pushed updates on the trip_updates channel.
func NewTrips(client TripsClient, sett *settings.Service, bus *events.Bus, clk clock.Clock) *Trips {
	t := &Trips{client: client, bus: bus, byID: make(map[int64]api.Trip)}
	t.controller = newController("trips", sett, clk, t.doFetch)
	bus.Subscribe(t.handleWire, events.MessageReceived)
	return t
}

// Snapshot returns the cached trips ordered by planned start time.
// Before the first successful load it is empty, the conservative
// fallback for a list.
func (t *Trips) Snapshot() []api.Trip {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]api.Trip, 0, len(t.byID))
	for _, trip := range t.byID {
		out = append(out, trip)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlannedStartTime.Equal(out[j].PlannedStartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].PlannedStartTime.Before(out[j].PlannedStartTime)
	})
	return out
}

// Loaded reports whether the list has ever been fetched.
func (t *Trips) Loaded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loaded
}

// LastError returns the most recent fetch failure, cleared on success.
func (t *Trips) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// HasOverdueTrips reports whether any in-progress trip has passed its
// planned end time. Derived on every call, never cached.
func (t *Trips) HasOverdueTrips() bool {
	now := t.clk.Now()
	for _, trip := range t.Snapshot() {
		if trip.Status == api.TripInProgress && !trip.PlannedEndTime.IsZero() && trip.PlannedEndTime.Before(now) {
			return true
		}
	}
	return false
}

// ActiveCount reports how many trips are planned or in progress.
func (t *Trips) ActiveCount() int {
	n := 0
	for _, trip := range t.Snapshot() {
		if trip.Status == api.TripPlanned || trip.Status == api.TripInProgress {
			n++
		}
	}
	return n
}

func (t *Trips) doFetch(ctx context.Context) error {
	list, err := t.client.ListTrips(ctx)
	if err != nil {
		t.mu.Lock()
		t.lastErr = err
		t.mu.Unlock()
		return err
	}

	t.mu.Lock()
	t.byID = make(map[int64]api.Trip, len(list))
	for _, trip := range list {
		t.byID[trip.ID] = trip
	}
	t.loaded = true
	t.lastErr = nil
	t.mu.Unlock()

	t.bus.Publish(events.Event{Type: events.TripUpdated, Payload: t.Snapshot()})
	return nil
}

// handleWire upserts pushed trip rows. A push counts as cache freshness
// for the poll guard.
func (t *Trips) handleWire(e events.Event) {
	if e.Channel != channels.TripUpdates {
		if _, perTrip := channels.TripID(e.Channel); !perTrip {
			return
		}
	}

	msg, ok := e.Payload.(transport.Message)
	if !ok || msg.Type != "trip_update" {
		return
	}

	var trip api.Trip
	if err := json.Unmarshal(msg.Data, &trip); err != nil {
		log.Printf("[Refresh] trips: invalid push frame: %v", err)
		return
	}

	t.mu.Lock()
	t.byID[trip.ID] = trip
	t.loaded = true
	t.mu.Unlock()

	t.bus.Publish(events.Event{Type: events.TripUpdated, Payload: t.Snapshot()})
	t.markFresh()
}
