package events

import "time"

// EventType identifies the kind of event being published.
type EventType string

const (
	// Transport lifecycle events
	TransportConnecting   EventType = "transport_connecting"
	TransportConnected    EventType = "transport_connected"
	TransportDisconnected EventType = "transport_disconnected"
	TransportError        EventType = "transport_error"
	TransportLatency      EventType = "transport_latency"

	// Wire events
	MessageReceived EventType = "message_received"
	MessageSent     EventType = "message_sent"

	// Domain events for the presentation layer
	NotificationReceived EventType = "notification_received"
	NotificationsChanged EventType = "notifications_changed"
	HOSStatusUpdated     EventType = "hos_status_updated"
	TripUpdated          EventType = "trip_updated"
	Toast                EventType = "toast"
	ToastCleared         EventType = "toast_cleared"
)

// Event is the payload published through the bus.
//
// Payload holds the typed per-event value where one exists:
// transport.Message for MessageReceived, *notify.Notification for
// NotificationReceived and Toast, and the updated domain snapshot for
// HOSStatusUpdated and TripUpdated. Metadata carries small string
// attributes such as the millisecond sample on TransportLatency.
type Event struct {
	Type      EventType         `json:"type"`
	Channel   string            `json:"channel,omitempty"`
	Message   string            `json:"message,omitempty"`
	Payload   any               `json:"payload,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
