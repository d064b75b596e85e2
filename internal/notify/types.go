package notify

import (
	"strconv"
	"strings"
	"time"

	"haulsync/internal/api"
)

// Type classifies a notification.
type Type string

const (
	TypeInfo         Type = "info"
	TypeSuccess      Type = "success"
	TypeWarning      Type = "warning"
	TypeError        Type = "error"
	TypeHOSViolation Type = "hos_violation"
	TypeTripUpdate   Type = "trip_update"
	TypeMaintenance  Type = "maintenance"
	TypeDocument     Type = "document"
	TypeSystem       Type = "system"
)

// Priority orders notifications: low < normal < high < urgent.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// rank returns the ordering weight, which doubles as the backend wire
// value.
func (p Priority) rank() int {
	switch p {
	case PriorityLow:
		return api.PriorityLow
	case PriorityHigh:
		return api.PriorityHigh
	case PriorityUrgent:
		return api.PriorityUrgent
	default:
		return api.PriorityNormal
	}
}

// priorityFromWire maps the backend integer back to a priority name.
func priorityFromWire(v int) Priority {
	switch v {
	case api.PriorityLow:
		return PriorityLow
	case api.PriorityHigh:
		return PriorityHigh
	case api.PriorityUrgent:
		return PriorityUrgent
	default:
		return PriorityNormal
	}
}

// Default category for records created without one.
const CategoryGeneral = "general"

// Well-known categories used by the bulk clear actions.
const (
	CategoryHOSCompliance  = "hos_compliance"
	CategoryTripManagement = "trip_management"
)

// Action is an optional callback attached to a notification. It is
// never persisted remotely.
type Action struct {
	Label string
	Run   func()
}

// Notification is one alert surfaced to the user. Records whose ID
// carries the backend prefix are the authoritative projection of a
// server row and are only ever mutated through the read-state ledger.
type Notification struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Type       Type       `json:"type"`
	Category   string     `json:"category"`
	Priority   Priority   `json:"priority"`
	Persistent bool       `json:"persistent"`
	Sound      bool       `json:"sound"`
	Vibration  bool       `json:"vibration"`
	CreatedAt  time.Time  `json:"created_at"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	Action     *Action    `json:"-"`
}

// backendPrefix marks ids that project a server row. The id is the
// sole reconciliation key between the local and backend views.
const backendPrefix = "backend-"

// BackendID derives the local id for a server notification row.
func BackendID(serverID int64) string {
	return backendPrefix + strconv.FormatInt(serverID, 10)
}

// isBackendID reports whether the id projects a server row.
func isBackendID(id string) bool {
	return strings.HasPrefix(id, backendPrefix)
}

// serverID extracts the server row id from a backend-prefixed id.
func serverID(id string) (int64, bool) {
	if !isBackendID(id) {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.TrimPrefix(id, backendPrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// fromBackend converts a server row into its local projection.
func fromBackend(n api.Notification) *Notification {
	category := n.Data.Category
	if category == "" {
		category = CategoryGeneral
	}
	priority := priorityFromWire(n.Priority)
	return &Notification{
		ID:         BackendID(n.ID),
		Title:      n.Title,
		Message:    n.Message,
		Type:       Type(n.NotificationType),
		Category:   category,
		Priority:   priority,
		Persistent: n.Data.Persistent || priority == PriorityUrgent,
		Sound:      n.Data.Sound,
		Vibration:  n.Data.Vibration,
		CreatedAt:  n.CreatedAt,
		ReadAt:     n.ReadAt,
	}
}

// toCreateRequest builds the backend projection of a local record.
func toCreateRequest(n *Notification) api.CreateNotificationRequest {
	return api.CreateNotificationRequest{
		Title:            n.Title,
		Message:          n.Message,
		NotificationType: string(n.Type),
		Priority:         n.Priority.rank(),
		Data: api.NotificationData{
			Category:   n.Category,
			Persistent: n.Persistent,
			Sound:      n.Sound,
			Vibration:  n.Vibration,
		},
	}
}
