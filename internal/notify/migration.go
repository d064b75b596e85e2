package notify

import (
	"database/sql"
	"fmt"
	"time"
)

const timeFormat = "2006-01-02 15:04:05"

// Migrate creates the read-state ledger table. The ledger is a separate
// persisted set of notification ids considered read: notification
// records themselves are immutable snapshots of server or local state,
// and read marks must survive full store rebuilds.
func Migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS notification_reads (
			id      TEXT PRIMARY KEY,
			read_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`)
	if err != nil {
		return fmt.Errorf("notification reads migration: %w", err)
	}
	return nil
}

// markReadRow inserts an id into the ledger. Idempotent.
func markReadRow(db *sql.DB, id string, at time.Time) error {
	_, err := db.Exec(`
		INSERT OR IGNORE INTO notification_reads (id, read_at)
		VALUES (?, ?)`, id, at.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("mark read %s: %w", id, err)
	}
	return nil
}

// readSet loads the full ledger.
func readSet(db *sql.DB) (map[string]struct{}, error) {
	rows, err := db.Query(`SELECT id FROM notification_reads`)
	if err != nil {
		return nil, fmt.Errorf("load read ledger: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan read ledger: %w", err)
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}
