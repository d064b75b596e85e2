// Package transport provides the logical connection to the backend. The
// contract is transport-agnostic: the same lifecycle, send and
// subscription semantics hold whether the concrete implementation is a
// persistent WebSocket or an interval poll loop, so the connection
// monitor and channel router never care which one is active.
package transport

import "encoding/json"

// State is the connection lifecycle state.
//
// Valid transitions: disconnected → connecting → connected →
// disconnected, and connecting → disconnected on failure. There is no
// connected → connecting edge; a dropped connection always passes
// through disconnected first.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Message is the wire frame exchanged with the backend. Inbound frames
// are republished on the session bus as MessageReceived events with the
// frame in the payload.
type Message struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Transport is the logical connection contract.
//
// Connect and Disconnect are idempotent. Connect always produces a
// terminal lifecycle event (connected, or error followed by
// disconnected) and never panics on underlying failure. Send is
// fire-and-forget: the boolean only says the frame was handed to the
// transport, not that it was delivered. Subscribe and Unsubscribe are
// safe to call redundantly.
type Transport interface {
	Connect()
	Disconnect()
	Send(msg Message) bool
	Subscribe(channel string)
	Unsubscribe(channel string)
	State() State
}
