package settings

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewServiceLoadsDefaults(t *testing.T) {
	db := setupTestDB(t)
	svc, err := NewService(db)
	if err != nil {
		t.Fatal(err)
	}

	cur := svc.Current()
	if !cur.SoundEnabled || cur.MaxStored != 50 || cur.QuietHoursStart != "22:00" {
		t.Errorf("unexpected defaults: %+v", cur)
	}
	if cur.PriorityFilter != "all" || cur.RefreshInterval != 60 {
		t.Errorf("unexpected defaults: %+v", cur)
	}
}

func TestUpdatePersistsMutation(t *testing.T) {
	db := setupTestDB(t)
	svc, err := NewService(db)
	if err != nil {
		t.Fatal(err)
	}

	err = svc.Update(func(s *Snapshot) {
		s.SoundEnabled = false
		s.MaxStored = 10
		s.QuietHoursEnabled = true
	})
	if err != nil {
		t.Fatal(err)
	}

	// A second service over the same DB sees the persisted values.
	svc2, err := NewService(db)
	if err != nil {
		t.Fatal(err)
	}
	cur := svc2.Current()
	if cur.SoundEnabled || cur.MaxStored != 10 || !cur.QuietHoursEnabled {
		t.Errorf("mutation not persisted: %+v", cur)
	}
}

func TestUpdateRejectsInvalidValues(t *testing.T) {
	db := setupTestDB(t)
	svc, err := NewService(db)
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Update(func(s *Snapshot) { s.PriorityFilter = "loud" }); err == nil {
		t.Error("expected error for bad priority filter")
	}
	if err := svc.Update(func(s *Snapshot) { s.QuietHoursStart = "25:99" }); err == nil {
		t.Error("expected error for bad quiet hours time")
	}
	if err := svc.Update(func(s *Snapshot) { s.MaxStored = 0 }); err == nil {
		t.Error("expected error for zero retention cap")
	}

	// Snapshot must be unchanged after rejected updates.
	cur := svc.Current()
	if cur.PriorityFilter != "all" || cur.QuietHoursStart != "22:00" || cur.MaxStored != 50 {
		t.Errorf("rejected update leaked into snapshot: %+v", cur)
	}
}

func TestUpdateSettingValidatesType(t *testing.T) {
	db := setupTestDB(t)
	if err := InitSettingsTable(db); err != nil {
		t.Fatal(err)
	}

	if err := UpdateSetting(db, "refresh", "interval_secs", "not-a-number"); err == nil {
		t.Error("expected error for non-integer interval")
	}
	if err := UpdateSetting(db, "refresh", "interval_secs", "2"); err == nil {
		t.Error("expected error for interval below minimum")
	}
	if err := UpdateSetting(db, "refresh", "interval_secs", "30"); err != nil {
		t.Errorf("valid update failed: %v", err)
	}
}

func TestGetSettingsGrouped(t *testing.T) {
	db := setupTestDB(t)
	if err := InitSettingsTable(db); err != nil {
		t.Fatal(err)
	}

	grouped, err := GetSettingsGrouped(db)
	if err != nil {
		t.Fatal(err)
	}
	for _, cat := range []string{"notifications", "quiet_hours", "refresh"} {
		if len(grouped[cat]) == 0 {
			t.Errorf("missing category %s", cat)
		}
	}
}
