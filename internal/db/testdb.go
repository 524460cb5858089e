package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// NewTestDB creates a fresh in-memory SQLite database with the schema applied.
func NewTestDB(tb testing.TB) *sql.DB {
	tb.Helper()
	return newTestDB(tb, ":memory:")
}

// NewTestFileDB is like NewTestDB but backs the database with a file in a
// temporary directory, so several connections share it.
func NewTestFileDB(tb testing.TB) *sql.DB {
	tb.Helper()
	return newTestDB(tb, filepath.Join(tb.TempDir(), "freshtrack.sqlite3"))
}

func newTestDB(tb testing.TB, path string) *sql.DB {
	tb.Helper()

	db, err := Open(path)
	if err != nil {
		tb.Fatalf("opening test database: %v", err)
	}

	if err := EnsureSchema(db); err != nil {
		db.Close()
		tb.Fatalf("creating test database schema: %v", err)
	}

	tb.Cleanup(func() { db.Close() })

	return db
}
