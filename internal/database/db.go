package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/XSAM/otelsql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an analysis does not exist
var ErrNotFound = errors.New("analysis not found")

// DB represents the database connection
type DB struct {
	conn *sqlx.DB
}

// New opens a database. postgres:// URLs and "host=..." strings use
// PostgreSQL; anything else is treated as a SQLite file path. Every
// statement is traced through the global tracer provider.
func New(dsn string) (*DB, error) {
	driver, source := driverFor(dsn)

	sqlDB, err := otelsql.Open(driver, source,
		otelsql.WithAttributes(attribute.String("db.system", driver)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn := sqlx.NewDb(sqlDB, driver)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == "sqlite" {
		// SQLite allows a single writer
		conn.SetMaxOpenConns(1)
	}

	return &DB{conn: conn}, nil
}

func driverFor(dsn string) (driver, source string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return "postgres", dsn
	default:
		source = strings.TrimPrefix(dsn, "sqlite://")
		sep := "?"
		if strings.Contains(source, "?") {
			sep = "&"
		}
		return "sqlite", source + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection
func (db *DB) Conn() *sql.DB {
	return db.conn.DB
}

// DriverName reports the SQL driver in use
func (db *DB) DriverName() string {
	return db.conn.DriverName()
}

// Stats returns connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.conn.Stats()
}
