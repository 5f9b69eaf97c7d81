package database

import (
	"os"
	"path/filepath"
	"testing"
)

// setupTestDB returns a DSN for a fresh test database. It defaults to a SQLite
// file in a per-test temp dir; TEST_DATABASE_URL points the tests at
// PostgreSQL instead, in which case the tables are emptied on cleanup.
func setupTestDB(t *testing.T) (dsn string, cleanup func()) {
	t.Helper()

	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		return url, func() {
			db, err := New(url)
			if err != nil {
				return
			}
			defer db.Close()
			db.conn.Exec("DELETE FROM detected_phrases")
			db.conn.Exec("DELETE FROM analyses")
		}
	}

	return filepath.Join(t.TempDir(), "aidetector_test.db"), func() {}
}

// setupTestDatabase opens and migrates a test database
func setupTestDatabase(t *testing.T) (*DB, func()) {
	t.Helper()
	dsn, dbCleanup := setupTestDB(t)

	db, err := New(dsn)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db, func() {
		db.Close()
		dbCleanup()
	}
}
