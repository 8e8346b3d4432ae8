package store

import (
	"database/sql"
	"strings"
	"time"

	"github.com/loykin/pushprobe/internal/store/mysql"
	"github.com/loykin/pushprobe/internal/store/postgresql"
	"github.com/loykin/pushprobe/internal/store/sqlite"
)

// Dialect hides the differences between the supported SQL backends.
type Dialect interface {
	Name() string
	Placeholder(index int) string
	// SupportsReturning reports whether INSERT ... RETURNING id is available.
	SupportsReturning() bool
	BoolToStorage(b bool) any
	TimeToStorage(t time.Time) any
	BoolFromStorage(val any) bool
	TimeFromStorage(val any) (time.Time, error)
	Connect(dsn string) (*sql.DB, error)
	EnsureStatements(runs, outcomes string) []string
}

var (
	_ Dialect = (*sqlite.Dialect)(nil)
	_ Dialect = (*postgresql.Dialect)(nil)
	_ Dialect = (*mysql.Dialect)(nil)
)

// rebind rewrites "?" placeholders into the dialect's positional form.
func rebind(d Dialect, query string) string {
	if d.Placeholder(1) == "?" {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString(d.Placeholder(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
