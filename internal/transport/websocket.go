package transport

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"haulsync/internal/events"
)

const (
	readLimit     = 64 * 1024
	readDeadline  = 90 * time.Second
	pingInterval  = 30 * time.Second
	writeDeadline = 10 * time.Second
	reconnectWait = 5 * time.Second
)

// pingData is the payload of ping frames; the backend echoes the
// timestamp back in the pong so round-trip latency can be measured.
type pingData struct {
	Timestamp int64 `json:"timestamp"`
}

// WebSocket is the persistent-socket transport. Lifecycle, inbound
// frames and latency samples are published on the session bus.
type WebSocket struct {
	url    string
	token  string
	bus    *events.Bus
	dialer *websocket.Dialer

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	subs      map[string]struct{}
	done      chan struct{}
	reconnect bool // re-dial after an unexpected drop

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// NewWebSocket creates a WebSocket transport for the given endpoint.
// The token, when non-empty, is sent as a bearer Authorization header
// during the handshake.
func NewWebSocket(url, token string, bus *events.Bus) *WebSocket {
	return &WebSocket{
		url:   url,
		token: token,
		bus:   bus,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		},
		subs: make(map[string]struct{}),
	}
}

// Connect dials the backend. No-op if already connected or connecting.
// The caller always observes a terminal lifecycle event: connected on
// success, or error followed by disconnected on failure.
func (t *WebSocket) Connect() {
	t.mu.Lock()
	if t.state != StateDisconnected {
		t.mu.Unlock()
		return
	}
	t.state = StateConnecting
	t.reconnect = true
	t.mu.Unlock()

	t.bus.Publish(events.Event{Type: events.TransportConnecting})

	header := http.Header{}
	if t.token != "" {
		header.Set("Authorization", "Bearer "+t.token)
	}

	conn, _, err := t.dialer.Dial(t.url, header)
	if err != nil {
		t.mu.Lock()
		t.state = StateDisconnected
		t.mu.Unlock()

		t.bus.Publish(events.Event{
			Type:    events.TransportError,
			Message: fmt.Sprintf("dial %s: %v", t.url, err),
		})
		t.bus.Publish(events.Event{Type: events.TransportDisconnected})
		t.scheduleReconnect()
		return
	}

	done := make(chan struct{})

	t.mu.Lock()
	if !t.reconnect || t.state != StateConnecting {
		// Disconnect won the race while the dial was in flight;
		// drop the fresh socket and stay down.
		t.mu.Unlock()
		conn.Close()
		return
	}
	t.conn = conn
	t.state = StateConnected
	t.done = done
	// Stale bookkeeping from a previous connection must not swallow the
	// router's re-subscription replay.
	t.subs = make(map[string]struct{})
	t.mu.Unlock()

	t.bus.Publish(events.Event{Type: events.TransportConnected})

	t.wg.Add(2)
	go t.readLoop(conn, done)
	go t.pingLoop(conn, done)
}

// Disconnect closes the socket, clears subscription bookkeeping and
// emits disconnected. Idempotent. Disables automatic re-dialing.
func (t *WebSocket) Disconnect() {
	t.mu.Lock()
	t.reconnect = false
	if t.state == StateDisconnected {
		t.mu.Unlock()
		return
	}
	conn := t.conn
	done := t.done
	t.conn = nil
	t.done = nil
	t.state = StateDisconnected
	t.subs = make(map[string]struct{})
	t.mu.Unlock()

	if done != nil {
		close(done)
	}
	if conn != nil {
		t.writeMu.Lock()
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"),
			time.Now().Add(writeDeadline),
		)
		t.writeMu.Unlock()
		conn.Close()
	}

	t.bus.Publish(events.Event{Type: events.TransportDisconnected})
}

// Send writes a frame to the socket. Returns false when not connected
// or the write fails; delivery is never guaranteed.
func (t *WebSocket) Send(msg Message) bool {
	t.mu.Lock()
	conn := t.conn
	connected := t.state == StateConnected
	t.mu.Unlock()

	if !connected || conn == nil {
		return false
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WS] Marshal frame: %v", err)
		return false
	}

	t.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	err = conn.WriteMessage(websocket.TextMessage, payload)
	t.writeMu.Unlock()

	if err != nil {
		log.Printf("[WS] Write failed: %v", err)
		return false
	}

	t.bus.Publish(events.Event{Type: events.MessageSent, Channel: msg.Channel})
	return true
}

// Subscribe records the channel and, when connected, sends the
// subscribe frame. Redundant calls are no-ops.
func (t *WebSocket) Subscribe(channel string) {
	t.mu.Lock()
	if _, ok := t.subs[channel]; ok {
		t.mu.Unlock()
		return
	}
	t.subs[channel] = struct{}{}
	t.mu.Unlock()

	t.Send(Message{Type: "subscribe", Channel: channel})
}

// Unsubscribe removes the channel and, when connected, sends the
// unsubscribe frame. Idempotent.
func (t *WebSocket) Unsubscribe(channel string) {
	t.mu.Lock()
	if _, ok := t.subs[channel]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.subs, channel)
	t.mu.Unlock()

	t.Send(Message{Type: "unsubscribe", Channel: channel})
}

// State returns the current lifecycle state.
func (t *WebSocket) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// readLoop reads frames until the connection drops.
func (t *WebSocket) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer t.wg.Done()

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Read error: %v", err)
			}
			t.handleDrop(conn, done, err)
			return
		}

		conn.SetReadDeadline(time.Now().Add(readDeadline))

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("[WS] Invalid frame: %v", err)
			continue
		}

		t.handleFrame(msg)
	}
}

// handleFrame routes a parsed frame. Protocol frames (acks, pong) are
// consumed here; everything else is republished for domain consumers.
func (t *WebSocket) handleFrame(msg Message) {
	switch msg.Type {
	case "connection_established":
		log.Printf("[WS] Connection acknowledged by backend")

	case "subscribed", "unsubscribed":
		log.Printf("[WS] %s ack for channel %q", msg.Type, msg.Channel)

	case "pong":
		var p pingData
		if err := json.Unmarshal(msg.Data, &p); err != nil || p.Timestamp == 0 {
			return
		}
		latency := time.Now().UnixMilli() - p.Timestamp
		if latency < 0 {
			latency = 0
		}
		t.bus.Publish(events.Event{
			Type:     events.TransportLatency,
			Metadata: map[string]string{"ms": strconv.FormatInt(latency, 10)},
		})

	default:
		t.bus.Publish(events.Event{
			Type:    events.MessageReceived,
			Channel: msg.Channel,
			Payload: msg,
		})
	}
}

// pingLoop sends periodic application pings carrying a timestamp so the
// pong can be turned into a latency sample.
func (t *WebSocket) pingLoop(conn *websocket.Conn, done chan struct{}) {
	defer t.wg.Done()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			data, _ := json.Marshal(pingData{Timestamp: time.Now().UnixMilli()})
			if !t.Send(Message{Type: "ping", Data: data}) {
				return
			}
		}
	}
}

// handleDrop transitions to disconnected after an unexpected close and
// schedules a re-dial unless Disconnect was requested.
func (t *WebSocket) handleDrop(conn *websocket.Conn, done chan struct{}, err error) {
	t.mu.Lock()
	if t.conn != conn {
		// Disconnect already cleaned up this connection.
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.done = nil
	t.state = StateDisconnected
	t.subs = make(map[string]struct{})
	retry := t.reconnect
	t.mu.Unlock()

	close(done)
	conn.Close()

	t.bus.Publish(events.Event{
		Type:    events.TransportError,
		Message: fmt.Sprintf("connection lost: %v", err),
	})
	t.bus.Publish(events.Event{Type: events.TransportDisconnected})

	if retry {
		t.scheduleReconnect()
	}
}

// scheduleReconnect re-dials after a fixed wait. The connection monitor
// observes the resulting connecting event as a reconnection attempt.
func (t *WebSocket) scheduleReconnect() {
	time.AfterFunc(reconnectWait, func() {
		t.mu.Lock()
		retry := t.reconnect && t.state == StateDisconnected
		t.mu.Unlock()
		if retry {
			t.Connect()
		}
	})
}
