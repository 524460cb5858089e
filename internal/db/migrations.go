package db

import (
	"database/sql"
	"fmt"
)

// migrations are applied in order after schema creation. The index of a
// migration plus one is its version, tracked in PRAGMA user_version.
// Append new migrations at the end; never reorder.
var migrations = []string{
	// 1: partial index backing the expiry sweep.
	`CREATE INDEX IF NOT EXISTS idx_items_pending_expiry
	     ON items(expiry_date) WHERE notified = 0`,

	// 2: notification history is read per user, newest first.
	`CREATE INDEX IF NOT EXISTS idx_notifications_user_sent
	     ON notifications(user_id, sent_at)`,
}

// Migrate applies migrations newer than the database's user_version.
func Migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", i+1, err)
		}
	}

	return nil
}
