package postgresql

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Dialect implements the history store SQL for PostgreSQL via pgx stdlib.
type Dialect struct{}

// NewDialect creates a new PostgreSQL dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

// Name returns the driver name for logging
func (d *Dialect) Name() string { return "postgresql" }

// Placeholder returns $1, $2, ...
func (d *Dialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// SupportsReturning is true; ids come back from INSERT ... RETURNING.
func (d *Dialect) SupportsReturning() bool { return true }

// BoolToStorage returns b unchanged; postgres has a native boolean.
func (d *Dialect) BoolToStorage(b bool) any { return b }

// TimeToStorage returns t unchanged for a TIMESTAMPTZ column.
func (d *Dialect) TimeToStorage(t time.Time) any { return t.UTC() }

// BoolFromStorage converts PostgreSQL bool storage to bool
func (d *Dialect) BoolFromStorage(val any) bool {
	b, ok := val.(bool)
	return ok && b
}

// TimeFromStorage converts a scanned TIMESTAMPTZ value.
func (d *Dialect) TimeFromStorage(val any) (time.Time, error) {
	switch v := val.(type) {
	case time.Time:
		return v.UTC(), nil
	case *time.Time:
		if v == nil {
			return time.Time{}, nil
		}
		return v.UTC(), nil
	case nil:
		return time.Time{}, nil
	}
	return time.Time{}, fmt.Errorf("unexpected postgres time value %T", val)
}

// Connect establishes a pooled connection and pings it.
func (d *Dialect) Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL database: %w", err)
	}
	return db, nil
}

// EnsureStatements returns the table and index creation statements.
func (d *Dialect) EnsureStatements(runs, outcomes string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			suite TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			passed INTEGER NOT NULL,
			total INTEGER NOT NULL,
			healthy BOOLEAN NOT NULL DEFAULT FALSE
		)`, runs),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id BIGINT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			passed BOOLEAN NOT NULL,
			detail TEXT NULL,
			duration_ms BIGINT NOT NULL,
			PRIMARY KEY (run_id, position)
		)`, outcomes, runs),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_suite ON %s (suite, id)`, runs, runs),
	}
}
