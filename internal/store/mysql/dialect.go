package mysql

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Dialect implements the history store SQL for MySQL and MariaDB.
type Dialect struct{}

// NewDialect creates a new MySQL dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

// Name returns the driver name for logging
func (d *Dialect) Name() string { return "mysql" }

// Placeholder returns "?" regardless of position.
func (d *Dialect) Placeholder(int) string { return "?" }

// SupportsReturning is false: MySQL has no INSERT ... RETURNING, the id comes
// from LastInsertId.
func (d *Dialect) SupportsReturning() bool { return false }

func (d *Dialect) BoolToStorage(b bool) any { return b }

// TimeToStorage stores t in UTC for a DATETIME(6) column.
func (d *Dialect) TimeToStorage(t time.Time) any { return t.UTC() }

// BoolFromStorage accepts TINYINT(1) values from both the binary and the text
// protocol.
func (d *Dialect) BoolFromStorage(val any) bool {
	switch v := val.(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case []byte:
		n, err := strconv.Atoi(string(v))
		return err == nil && n != 0
	}
	return false
}

// TimeFromStorage converts a scanned DATETIME value. parseTime=true yields
// time.Time; text protocol rows without it yield bytes.
func (d *Dialect) TimeFromStorage(val any) (time.Time, error) {
	switch v := val.(type) {
	case time.Time:
		return v.UTC(), nil
	case []byte:
		return time.ParseInLocation("2006-01-02 15:04:05.999999", string(v), time.UTC)
	case string:
		return time.ParseInLocation("2006-01-02 15:04:05.999999", v, time.UTC)
	case nil:
		return time.Time{}, nil
	}
	return time.Time{}, fmt.Errorf("unexpected mysql time value %T", val)
}

// Connect opens a pooled connection.
func (d *Dialect) Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(3 * time.Minute)
	return db, nil
}

// EnsureStatements returns the table creation statements. MySQL has no
// CREATE INDEX IF NOT EXISTS, so the suite index is declared inline.
func (d *Dialect) EnsureStatements(runs, outcomes string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			suite VARCHAR(255) NOT NULL,
			started_at DATETIME(6) NOT NULL,
			finished_at DATETIME(6) NOT NULL,
			passed INT NOT NULL,
			total INT NOT NULL,
			healthy BOOLEAN NOT NULL DEFAULT FALSE,
			INDEX idx_%s_suite (suite, id)
		)`, runs, runs),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id BIGINT NOT NULL,
			position INT NOT NULL,
			name VARCHAR(255) NOT NULL,
			passed BOOLEAN NOT NULL,
			detail TEXT NULL,
			duration_ms BIGINT NOT NULL,
			PRIMARY KEY (run_id, position),
			FOREIGN KEY (run_id) REFERENCES %s(id) ON DELETE CASCADE
		)`, outcomes, runs),
	}
}
