package settings

import (
	"database/sql"
	"strconv"
	"sync"
)

// Service is the typed settings accessor used by the rest of the sync
// layer. The snapshot is loaded once at construction and kept in sync
// with the database on every mutation, so hot-path reads (quiet hours,
// retention checks) never hit disk.
type Service struct {
	db *sql.DB

	mu  sync.RWMutex
	cur Snapshot
}

// NewService initializes the settings table and loads the snapshot.
func NewService(db *sql.DB) (*Service, error) {
	if err := InitSettingsTable(db); err != nil {
		return nil, err
	}
	s := &Service{db: db}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns a copy of the settings snapshot.
func (s *Service) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Grouped returns the raw setting rows grouped by category, for
// settings screens that render per-category sections with the row
// descriptions.
func (s *Service) Grouped() (SettingsGrouped, error) {
	return GetSettingsGrouped(s.db)
}

// Update applies the mutation, persists every changed row and refreshes
// the snapshot. A validation failure leaves both the database and the
// snapshot untouched.
func (s *Service) Update(mutate func(*Snapshot)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cur
	mutate(&next)

	for _, row := range snapshotRows(next) {
		if row.value == snapshotValue(s.cur, row.category, row.key) {
			continue
		}
		if err := UpdateSetting(s.db, row.category, row.key, row.value); err != nil {
			// Re-read so a partial write never leaves the snapshot stale.
			s.reloadLocked()
			return err
		}
	}

	s.cur = next
	return nil
}

// reload refreshes the snapshot from the database.
func (s *Service) reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked()
}

func (s *Service) reloadLocked() error {
	rows, err := GetAllSettings(s.db)
	if err != nil {
		return err
	}

	cur := Snapshot{}
	for _, r := range rows {
		applyRow(&cur, r)
	}
	s.cur = cur
	return nil
}

// settingRow pairs a snapshot field with its persisted row address.
type settingRow struct {
	category, key, value string
}

func snapshotRows(s Snapshot) []settingRow {
	return []settingRow{
		{"notifications", "sound_enabled", strconv.FormatBool(s.SoundEnabled)},
		{"notifications", "vibration_enabled", strconv.FormatBool(s.VibrationEnabled)},
		{"notifications", "desktop_enabled", strconv.FormatBool(s.DesktopEnabled)},
		{"notifications", "auto_mark_read", strconv.FormatBool(s.AutoMarkRead)},
		{"notifications", "priority_filter", s.PriorityFilter},
		{"notifications", "max_stored", strconv.Itoa(s.MaxStored)},
		{"quiet_hours", "enabled", strconv.FormatBool(s.QuietHoursEnabled)},
		{"quiet_hours", "start", s.QuietHoursStart},
		{"quiet_hours", "end", s.QuietHoursEnd},
		{"refresh", "auto_refresh", strconv.FormatBool(s.AutoRefresh)},
		{"refresh", "interval_secs", strconv.Itoa(s.RefreshInterval)},
	}
}

func snapshotValue(s Snapshot, category, key string) string {
	for _, row := range snapshotRows(s) {
		if row.category == category && row.key == key {
			return row.value
		}
	}
	return ""
}

func applyRow(s *Snapshot, r Setting) {
	switch r.Category + "." + r.Key {
	case "notifications.sound_enabled":
		s.SoundEnabled = r.Value == "true"
	case "notifications.vibration_enabled":
		s.VibrationEnabled = r.Value == "true"
	case "notifications.desktop_enabled":
		s.DesktopEnabled = r.Value == "true"
	case "notifications.auto_mark_read":
		s.AutoMarkRead = r.Value == "true"
	case "notifications.priority_filter":
		s.PriorityFilter = r.Value
	case "notifications.max_stored":
		s.MaxStored, _ = strconv.Atoi(r.Value)
	case "quiet_hours.enabled":
		s.QuietHoursEnabled = r.Value == "true"
	case "quiet_hours.start":
		s.QuietHoursStart = r.Value
	case "quiet_hours.end":
		s.QuietHoursEnd = r.Value
	case "refresh.auto_refresh":
		s.AutoRefresh = r.Value == "true"
	case "refresh.interval_secs":
		s.RefreshInterval, _ = strconv.Atoi(r.Value)
	}
}
