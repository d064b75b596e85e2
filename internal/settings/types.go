package settings

import "time"

// Setting represents one persisted configuration row
type Setting struct {
	ID          int64     `json:"id"`
	Category    string    `json:"category"`
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	ValueType   string    `json:"value_type"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SettingsGrouped represents settings grouped by category
type SettingsGrouped map[string][]Setting

// Snapshot is the typed view of the client settings consumed by the
// notification store and refresh controllers.
type Snapshot struct {
	SoundEnabled      bool   `json:"sound_enabled"`
	VibrationEnabled  bool   `json:"vibration_enabled"`
	DesktopEnabled    bool   `json:"desktop_enabled"`
	AutoMarkRead      bool   `json:"auto_mark_read"`
	PriorityFilter    string `json:"priority_filter"` // all, low, normal, high, urgent
	MaxStored         int    `json:"max_stored"`
	QuietHoursEnabled bool   `json:"quiet_hours_enabled"`
	QuietHoursStart   string `json:"quiet_hours_start"` // "HH:MM" local time
	QuietHoursEnd     string `json:"quiet_hours_end"`   // "HH:MM" local time
	AutoRefresh       bool   `json:"auto_refresh"`
	RefreshInterval   int    `json:"refresh_interval_secs"`
}
