package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Dialect implements the history store SQL for SQLite.
type Dialect struct{}

// NewDialect creates a new SQLite dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

// Name returns the driver name for logging
func (d *Dialect) Name() string { return "sqlite" }

// Placeholder returns "?" regardless of position.
func (d *Dialect) Placeholder(int) string { return "?" }

// SupportsReturning is true; ids come back from INSERT ... RETURNING.
func (d *Dialect) SupportsReturning() bool { return true }

// BoolToStorage converts bool to SQLite storage format (integer 0/1)
func (d *Dialect) BoolToStorage(b bool) any {
	if b {
		return 1
	}
	return 0
}

// TimeToStorage stores times as RFC3339Nano text in UTC.
func (d *Dialect) TimeToStorage(t time.Time) any {
	return t.UTC().Format(time.RFC3339Nano)
}

// BoolFromStorage converts SQLite integer storage to bool
func (d *Dialect) BoolFromStorage(val any) bool {
	switch v := val.(type) {
	case int64:
		return v != 0
	case int:
		return v != 0
	case bool:
		return v
	}
	return false
}

// TimeFromStorage parses the RFC3339Nano text written by TimeToStorage.
func (d *Dialect) TimeFromStorage(val any) (time.Time, error) {
	switch v := val.(type) {
	case string:
		return time.Parse(time.RFC3339Nano, v)
	case []byte:
		return time.Parse(time.RFC3339Nano, string(v))
	case time.Time:
		return v.UTC(), nil
	case nil:
		return time.Time{}, nil
	}
	return time.Time{}, fmt.Errorf("unexpected sqlite time value %T", val)
}

// Connect opens the database with a single connection; SQLite allows one
// writer at a time.
func (d *Dialect) Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(10 * time.Minute)
	return db, nil
}

// EnsureStatements returns the table and index creation statements.
func (d *Dialect) EnsureStatements(runs, outcomes string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			suite TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			passed INTEGER NOT NULL,
			total INTEGER NOT NULL,
			healthy INTEGER NOT NULL DEFAULT 0
		)`, runs),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id INTEGER NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			passed INTEGER NOT NULL,
			detail TEXT NULL,
			duration_ms INTEGER NOT NULL,
			PRIMARY KEY (run_id, position)
		)`, outcomes, runs),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_suite ON %s (suite, id)`, runs, runs),
	}
}
