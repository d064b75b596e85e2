package transport

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"haulsync/internal/events"
)

// Poller is the backend surface the polling transport drains. It is
// implemented by the api client.
type Poller interface {
	Health(ctx context.Context) error
	PollChannel(ctx context.Context, channel string, since time.Time) ([]Message, error)
}

// maxPollFailures is how many consecutive full-cycle failures are
// tolerated before the logical connection is considered dropped.
const maxPollFailures = 3

// Polling is the interval-poll stand-in for a persistent socket. It
// honors the exact same lifecycle contract as the WebSocket transport:
// Connect performs a health check and transitions through connecting to
// connected, subscribed channels are drained every interval, and
// repeated failures drop the connection through disconnected.
type Polling struct {
	poller   Poller
	bus      *events.Bus
	interval time.Duration

	mu        sync.Mutex
	state     State
	subs      map[string]struct{}
	since     map[string]time.Time
	stop      chan struct{}
	failures  int
	reconnect bool

	wg sync.WaitGroup
}

// NewPolling creates a polling transport draining the given backend at
// the given interval.
func NewPolling(poller Poller, bus *events.Bus, interval time.Duration) *Polling {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Polling{
		poller:   poller,
		bus:      bus,
		interval: interval,
		subs:     make(map[string]struct{}),
		since:    make(map[string]time.Time),
	}
}

// Connect performs a backend health check and starts the poll loop.
// No-op if already connected or connecting.
func (t *Polling) Connect() {
	t.mu.Lock()
	if t.state != StateDisconnected {
		t.mu.Unlock()
		return
	}
	t.state = StateConnecting
	t.reconnect = true
	t.mu.Unlock()

	t.bus.Publish(events.Event{Type: events.TransportConnecting})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	err := t.poller.Health(ctx)
	cancel()

	if err != nil {
		t.mu.Lock()
		t.state = StateDisconnected
		t.mu.Unlock()

		t.bus.Publish(events.Event{
			Type:    events.TransportError,
			Message: fmt.Sprintf("health check: %v", err),
		})
		t.bus.Publish(events.Event{Type: events.TransportDisconnected})
		t.scheduleReconnect()
		return
	}

	stop := make(chan struct{})

	t.mu.Lock()
	if !t.reconnect || t.state != StateConnecting {
		// Disconnect won the race while the health check was in
		// flight; stay down.
		t.mu.Unlock()
		return
	}
	t.state = StateConnected
	t.stop = stop
	t.failures = 0
	// Stale bookkeeping from a previous connection must not swallow the
	// router's re-subscription replay.
	t.subs = make(map[string]struct{})
	t.since = make(map[string]time.Time)
	t.mu.Unlock()

	t.bus.Publish(events.Event{Type: events.TransportConnected})

	t.wg.Add(1)
	go t.loop(stop)
}

// Disconnect stops the poll loop, clears subscription bookkeeping and
// emits disconnected. Idempotent.
func (t *Polling) Disconnect() {
	t.mu.Lock()
	t.reconnect = false
	if t.state == StateDisconnected {
		t.mu.Unlock()
		return
	}
	stop := t.stop
	t.stop = nil
	t.state = StateDisconnected
	t.subs = make(map[string]struct{})
	t.since = make(map[string]time.Time)
	t.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	t.wg.Wait()

	t.bus.Publish(events.Event{Type: events.TransportDisconnected})
}

// Send accepts a frame when connected. The polling transport has no
// upstream frame channel, so accepted frames are dropped; domain writes
// go through the api client instead.
func (t *Polling) Send(msg Message) bool {
	t.mu.Lock()
	connected := t.state == StateConnected
	t.mu.Unlock()

	if connected {
		t.bus.Publish(events.Event{Type: events.MessageSent, Channel: msg.Channel})
	}
	return connected
}

// Subscribe adds the channel to the poll set. Redundant calls are no-ops.
func (t *Polling) Subscribe(channel string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.subs[channel]; ok {
		return
	}
	t.subs[channel] = struct{}{}
	t.since[channel] = time.Now().UTC()
}

// Unsubscribe removes the channel from the poll set. Idempotent.
func (t *Polling) Unsubscribe(channel string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subs, channel)
	delete(t.since, channel)
}

// State returns the current lifecycle state.
func (t *Polling) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Polling) loop(stop chan struct{}) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !t.pollOnce() {
				return
			}
		}
	}
}

// pollOnce drains every subscribed channel. The request round-trip time
// doubles as the latency sample a socket would get from ping/pong.
// Returns false when the logical connection dropped.
func (t *Polling) pollOnce() bool {
	t.mu.Lock()
	channels := make([]string, 0, len(t.subs))
	for ch := range t.subs {
		channels = append(channels, ch)
	}
	t.mu.Unlock()

	start := time.Now()
	failed := false

	for _, ch := range channels {
		t.mu.Lock()
		since := t.since[ch]
		t.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), t.interval)
		msgs, err := t.poller.PollChannel(ctx, ch, since)
		cancel()

		if err != nil {
			log.Printf("[Poll] Channel %q: %v", ch, err)
			failed = true
			continue
		}

		t.mu.Lock()
		t.since[ch] = time.Now().UTC()
		t.mu.Unlock()

		for _, msg := range msgs {
			if msg.Channel == "" {
				msg.Channel = ch
			}
			t.bus.Publish(events.Event{
				Type:    events.MessageReceived,
				Channel: msg.Channel,
				Payload: msg,
			})
		}
	}

	if failed {
		t.mu.Lock()
		t.failures++
		dropped := t.failures >= maxPollFailures
		t.mu.Unlock()
		if dropped {
			t.handleDrop()
			return false
		}
		return true
	}

	t.mu.Lock()
	t.failures = 0
	t.mu.Unlock()

	t.bus.Publish(events.Event{
		Type:     events.TransportLatency,
		Metadata: map[string]string{"ms": strconv.FormatInt(time.Since(start).Milliseconds(), 10)},
	})
	return true
}

// handleDrop transitions to disconnected after repeated poll failures
// and schedules a reconnect unless Disconnect was requested.
func (t *Polling) handleDrop() {
	t.mu.Lock()
	if t.state != StateConnected {
		t.mu.Unlock()
		return
	}
	stop := t.stop
	t.stop = nil
	t.state = StateDisconnected
	t.subs = make(map[string]struct{})
	t.since = make(map[string]time.Time)
	retry := t.reconnect
	t.mu.Unlock()

	if stop != nil {
		close(stop)
	}

	t.bus.Publish(events.Event{
		Type:    events.TransportError,
		Message: fmt.Sprintf("backend unreachable after %d poll cycles", maxPollFailures),
	})
	t.bus.Publish(events.Event{Type: events.TransportDisconnected})

	if retry {
		t.scheduleReconnect()
	}
}

func (t *Polling) scheduleReconnect() {
	time.AfterFunc(reconnectWait, func() {
		t.mu.Lock()
		retry := t.reconnect && t.state == StateDisconnected
		t.mu.Unlock()
		if retry {
			t.Connect()
		}
	})
}
