// Package db is the capture catalogue: a SQLite database indexing the
// capture directories a deployment has recorded, managed through
// versioned migrations.
package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/logic.report/internal/timeutil"
)

// DefaultPath is the catalogue file used when no path is configured.
const DefaultPath = "captures.db"

type DB struct {
	*sql.DB
	clock timeutil.Clock
}

// NewDB opens the catalogue at path, creating it if needed, and applies
// all pending migrations.
func NewDB(path string) (*DB, error) {
	database, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	if err := database.MigrateUp(MigrationsFS()); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}

	return database, nil
}

// OpenDB opens the catalogue without touching the schema. The migrate
// CLI uses this so migrations stay the only schema authority.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &DB{DB: sqlDB, clock: timeutil.RealClock{}}, nil
}

// retryOnBusy runs fn, retrying with exponential backoff while SQLite
// reports the database locked. Other errors return immediately.
func (db *DB) retryOnBusy(fn func() error) error {
	const maxAttempts = 5
	delay := 10 * time.Millisecond

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			db.clock.Sleep(delay)
			delay *= 2
		}
		if err = fn(); err == nil || !isSQLiteBusy(err) {
			return err
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", maxAttempts, err)
}

// isSQLiteBusy reports whether err is a SQLite lock contention error.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
