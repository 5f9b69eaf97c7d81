package database

import (
	"fmt"
	"log/slog"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

const schemaVersionTable = `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
`

// migrations are written in the SQL subset shared by SQLite and PostgreSQL
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_analyses_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS analyses (
				id TEXT PRIMARY KEY,
				text TEXT NOT NULL,
				source TEXT NOT NULL DEFAULT '',
				verdict TEXT NOT NULL,
				ai_probability INTEGER NOT NULL,
				word_count INTEGER NOT NULL,
				result TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
			CREATE INDEX IF NOT EXISTS idx_analyses_verdict ON analyses(verdict);
		`,
	},
	{
		Version: 2,
		Name:    "create_detected_phrases_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS detected_phrases (
				analysis_id TEXT NOT NULL,
				phrase TEXT NOT NULL,
				category TEXT NOT NULL,
				count INTEGER NOT NULL,
				PRIMARY KEY (analysis_id, phrase, category),
				FOREIGN KEY (analysis_id) REFERENCES analyses(id) ON DELETE CASCADE
			);
			CREATE INDEX IF NOT EXISTS idx_detected_phrases_phrase ON detected_phrases(phrase);
		`,
	},
}

// Migrate runs all pending migrations
func (db *DB) Migrate() error {
	logger := slog.Default().With("component", "database")

	if _, err := db.conn.Exec(schemaVersionTable); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var currentVersion int
	if err := db.conn.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	logger.Debug("current schema version", "version", currentVersion)

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		logger.Info("applying migration", "version", migration.Version, "name", migration.Name)
		tx, err := db.conn.Beginx()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run migration %d (%s): %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec(tx.Rebind("INSERT INTO schema_version (version) VALUES (?)"), migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration
func (db *DB) SchemaVersion() (int, error) {
	var version int
	if err := db.conn.Get(&version, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
