// Package connmon turns raw transport lifecycle and latency events into
// a stable connection status snapshot for the UI and the refresh
// controllers. It never retries connections itself; that is the
// transport's job.
package connmon

import (
	"strconv"
	"sync"
	"time"

	"haulsync/internal/clock"
	"haulsync/internal/events"
)

// Quality is the discrete connection-quality grade derived from the
// last observed latency sample.
type Quality string

const (
	QualityExcellent    Quality = "excellent"
	QualityGood         Quality = "good"
	QualityFair         Quality = "fair"
	QualityPoor         Quality = "poor"
	QualityDisconnected Quality = "disconnected"
)

// Latency thresholds for quality grading, in milliseconds.
const (
	excellentBelow = 100
	goodBelow      = 500
	fairBelow      = 1000
)

const defaultTick = 5 * time.Second

// Metrics is the derived connection metrics record.
type Metrics struct {
	Uptime            time.Duration `json:"uptime_ms"`
	LatencyMS         int64         `json:"latency_ms"`
	MessagesSent      int64         `json:"messages_sent"`
	MessagesReceived  int64         `json:"messages_received"`
	ReconnectAttempts int           `json:"reconnect_attempts"`
	Quality           Quality       `json:"connection_quality"`
	LastConnected     time.Time     `json:"last_connected,omitzero"`
	LastDisconnected  time.Time     `json:"last_disconnected,omitzero"`
}

// Status is the stable snapshot exposed to consumers.
type Status struct {
	IsConnected    bool    `json:"is_connected"`
	IsConnecting   bool    `json:"is_connecting"`
	IsReconnecting bool    `json:"is_reconnecting"`
	LastError      string  `json:"last_error,omitempty"`
	Metrics        Metrics `json:"metrics"`
}

// Monitor derives the status snapshot from bus events and a fixed
// recompute tick.
type Monitor struct {
	bus *events.Bus
	clk clock.Clock

	mu          sync.Mutex
	st          Status
	connectedAt time.Time
	latencyMS   int64 // -1 until the first sample arrives

	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewMonitor creates a monitor subscribed to the session bus.
func NewMonitor(bus *events.Bus, clk clock.Clock) *Monitor {
	if clk == nil {
		clk = clock.Real{}
	}
	m := &Monitor{bus: bus, clk: clk, latencyMS: -1}
	m.st.Metrics.Quality = QualityDisconnected

	bus.Subscribe(m.handle,
		events.TransportConnecting,
		events.TransportConnected,
		events.TransportDisconnected,
		events.TransportError,
		events.TransportLatency,
		events.MessageSent,
		events.MessageReceived,
	)
	return m
}

// Start begins the periodic recompute tick.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	stop := m.stop
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(defaultTick)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.mu.Lock()
				m.recompute()
				m.mu.Unlock()
			}
		}
	}()
}

// Stop halts the recompute tick. The monitor keeps handling bus events
// until Reset.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stop := m.stop
	m.stop = nil
	m.mu.Unlock()

	close(stop)
	m.wg.Wait()
}

// Status returns a copy of the current snapshot.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recompute()
	return m.st
}

// Reset restores disconnected defaults. Called on session teardown so a
// new login never sees the previous session's metrics.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = Status{}
	m.st.Metrics.Quality = QualityDisconnected
	m.connectedAt = time.Time{}
	m.latencyMS = -1
}

// handle processes one raw event. Bus dispatch is synchronous, so
// lifecycle transitions are never observed out of order.
func (m *Monitor) handle(e events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch e.Type {
	case events.TransportConnecting:
		m.st.IsConnecting = true
		m.st.IsConnected = false
		if !m.st.Metrics.LastDisconnected.IsZero() {
			m.st.Metrics.ReconnectAttempts++
		}

	case events.TransportConnected:
		now := m.clk.Now()
		m.st.IsConnected = true
		m.st.IsConnecting = false
		m.st.LastError = ""
		m.st.Metrics.LastConnected = now
		// Uptime is measured from the most recent transition into
		// connected, so it resets on every reconnect.
		m.connectedAt = now
		m.latencyMS = -1

	case events.TransportDisconnected:
		if m.st.IsConnected {
			m.st.Metrics.LastDisconnected = m.clk.Now()
		}
		m.st.IsConnected = false
		m.st.IsConnecting = false
		m.connectedAt = time.Time{}

	case events.TransportError:
		m.st.LastError = e.Message

	case events.TransportLatency:
		if ms, err := strconv.ParseInt(e.Metadata["ms"], 10, 64); err == nil {
			m.latencyMS = ms
		}

	case events.MessageSent:
		m.st.Metrics.MessagesSent++

	case events.MessageReceived:
		m.st.Metrics.MessagesReceived++
	}

	m.recompute()
}

// recompute refreshes the derived fields. Caller holds the lock.
func (m *Monitor) recompute() {
	if m.st.IsConnected {
		m.st.Metrics.Uptime = m.clk.Now().Sub(m.connectedAt)
	} else {
		m.st.Metrics.Uptime = 0
	}

	if m.latencyMS >= 0 {
		m.st.Metrics.LatencyMS = m.latencyMS
	} else {
		m.st.Metrics.LatencyMS = 0
	}

	m.st.IsReconnecting = !m.st.IsConnected && !m.st.Metrics.LastDisconnected.IsZero()
	m.st.Metrics.Quality = m.quality()
}

// quality grades the last latency sample. Disconnected always trumps a
// stale sample.
func (m *Monitor) quality() Quality {
	if !m.st.IsConnected {
		return QualityDisconnected
	}
	switch {
	case m.latencyMS < 0:
		return QualityGood // connected, no sample yet
	case m.latencyMS <= excellentBelow:
		return QualityExcellent
	case m.latencyMS <= goodBelow:
		return QualityGood
	case m.latencyMS <= fairBelow:
		return QualityFair
	default:
		return QualityPoor
	}
}
