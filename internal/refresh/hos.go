package refresh

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"haulsync/internal/api"
	"haulsync/internal/channels"
	"haulsync/internal/clock"
	"haulsync/internal/events"
	"haulsync/internal/settings"
	"haulsync/internal/transport"
)

// HOSClient fetches the server-computed Hours-of-Service snapshot.
type HOSClient interface {
	HOSStatus(ctx context.Context) (*api.HOSStatus, error)
}

// HOS caches the driver's Hours-of-Service status. Pushed hos_status
// frames apply directly; otherwise the poll loop keeps it fresh.
type HOS struct {
	*controller
	client HOSClient
	bus    *events.Bus

	mu      sync.Mutex
	cur     api.HOSStatus
	loaded  bool
	lastErr error
}

// NewHOS creates the HOS refresh controller and subscribes it to pushed
// updates on the hos_updates channel.
func NewHOS(client HOSClient, sett *settings.Service, bus *events.Bus, clk clock.Clock) *HOS {
	h := &HOS{client: client, bus: bus}
	h.controller = newController("hos", sett, clk, h.doFetch)
	bus.Subscribe(h.handleWire, events.MessageReceived)
	return h
}

// Snapshot returns the cached status. Before the first successful load
// it is the conservative fallback: no hours available, so the UI never
// suggests drive time the server has not confirmed.
func (h *HOS) Snapshot() api.HOSStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded {
		return fallbackHOS()
	}
	cur := h.cur
	cur.Violations = append([]string(nil), h.cur.Violations...)
	return cur
}

// Loaded reports whether a snapshot has ever been fetched or pushed.
func (h *HOS) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded
}

// LastError returns the most recent fetch failure, cleared on success.
func (h *HOS) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// IsApproachingLimit reports whether the driver should plan rest soon.
// Derived from the current snapshot on every call, never cached.
func (h *HOS) IsApproachingLimit() bool {
	s := h.Snapshot()
	return len(s.Violations) > 0 || s.HoursAvailable <= 10
}

func (h *HOS) doFetch(ctx context.Context) error {
	status, err := h.client.HOSStatus(ctx)
	if err != nil {
		h.mu.Lock()
		h.lastErr = err
		h.mu.Unlock()
		return err
	}
	h.apply(*status)
	return nil
}

// apply replaces the cache and notifies consumers.
func (h *HOS) apply(status api.HOSStatus) {
	h.mu.Lock()
	h.cur = status
	h.loaded = true
	h.lastErr = nil
	h.mu.Unlock()

	h.bus.Publish(events.Event{Type: events.HOSStatusUpdated, Payload: status})
}

// handleWire applies pushed hos_status frames. A push counts as cache
// freshness for the poll guard.
func (h *HOS) handleWire(e events.Event) {
	if e.Channel != channels.HOSUpdates {
		return
	}
	msg, ok := e.Payload.(transport.Message)
	if !ok || msg.Type != "hos_status" {
		return
	}

	var status api.HOSStatus
	if err := json.Unmarshal(msg.Data, &status); err != nil {
		log.Printf("[Refresh] hos: invalid push frame: %v", err)
		return
	}

	h.apply(status)
	h.markFresh()
}

// fallbackHOS is the conservative first-load snapshot.
func fallbackHOS() api.HOSStatus {
	return api.HOSStatus{
		CurrentStatus:  "off_duty",
		HoursAvailable: 0,
		CycleType:      "70_hour",
	}
}
