package api

import "time"

// Priority wire values. The backend stores priority as a small integer;
// the client maps it to the ordered names low < normal < high < urgent.
const (
	PriorityLow    = 0
	PriorityNormal = 1
	PriorityHigh   = 2
	PriorityUrgent = 3
)

// NotificationData is the closed set of extension fields round-tripped
// through the backend's data bag. Unknown keys sent by the backend are
// ignored; missing keys fall back to zero values (category defaulting
// happens in the notification store).
type NotificationData struct {
	Category   string `json:"category,omitempty"`
	Persistent bool   `json:"persistent,omitempty"`
	Sound      bool   `json:"sound,omitempty"`
	Vibration  bool   `json:"vibration,omitempty"`
}

// Notification is a server-of-record notification row.
type Notification struct {
	ID               int64            `json:"id"`
	Title            string           `json:"title"`
	Message          string           `json:"message"`
	NotificationType string           `json:"notification_type"`
	IsRead           bool             `json:"is_read"`
	Priority         int              `json:"priority"`
	CreatedAt        time.Time        `json:"created_at"`
	ReadAt           *time.Time       `json:"read_at,omitempty"`
	Data             NotificationData `json:"data"`
}

// CreateNotificationRequest is the projection of a locally created
// notification POSTed to the backend for durability. Action callbacks
// are never persisted remotely.
type CreateNotificationRequest struct {
	Title            string           `json:"title"`
	Message          string           `json:"message"`
	NotificationType string           `json:"notification_type"`
	Priority         int              `json:"priority"`
	Data             NotificationData `json:"data"`
}

// HOSStatus is the server-computed Hours-of-Service snapshot. All
// compliance math lives server-side; the client only caches and
// displays it.
type HOSStatus struct {
	CurrentStatus           string   `json:"current_status"`
	HoursUsedThisCycle      float64  `json:"hours_used_this_cycle"`
	HoursAvailable          float64  `json:"hours_available"`
	ConsecutiveOffDutyHours float64  `json:"consecutive_off_duty_hours"`
	CycleType               string   `json:"cycle_type"`
	CycleStartDate          string   `json:"cycle_start_date"`
	Violations              []string `json:"violations,omitempty"`
}

// Trip is a planned or active trip row.
type Trip struct {
	ID               int64     `json:"id"`
	TripName         string    `json:"trip_name"`
	Status           string    `json:"status"`
	PlannedStartTime time.Time `json:"planned_start_time"`
	PlannedEndTime   time.Time `json:"planned_end_time"`
	HoursAvailable   float64   `json:"hours_available"`
	TotalDistance    float64   `json:"total_distance"`
}

// Trip status values as stored by the backend.
const (
	TripPlanned    = "planned"
	TripInProgress = "in_progress"
	TripCompleted  = "completed"
	TripCancelled  = "cancelled"
)
