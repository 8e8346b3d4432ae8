package store

import (
	"fmt"
	"regexp"

	"github.com/loykin/pushprobe/internal/constants"
	"github.com/loykin/pushprobe/internal/retry"
	"github.com/loykin/pushprobe/internal/store/mysql"
	"github.com/loykin/pushprobe/internal/store/postgresql"
	"github.com/loykin/pushprobe/internal/store/sqlite"
	"github.com/loykin/pushprobe/internal/util"
)

// Supported drivers.
const (
	DriverSqlite     = "sqlite"
	DriverPostgresql = "postgresql"
	DriverMySQL      = "mysql"
)

// TableNames overrides the default history table names.
type TableNames struct {
	Runs     string `mapstructure:"runs" yaml:"runs"`
	Outcomes string `mapstructure:"outcomes" yaml:"outcomes"`
}

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

func (t TableNames) withDefaults() TableNames {
	t.Runs = util.TrimWithDefault(t.Runs, constants.DefaultRunsTable)
	t.Outcomes = util.TrimWithDefault(t.Outcomes, constants.DefaultOutcomesTable)
	return t
}

func (t TableNames) validate() error {
	for _, n := range []string{t.Runs, t.Outcomes} {
		if !tableNameRe.MatchString(n) {
			return fmt.Errorf("invalid table name %q", n)
		}
	}
	if t.Runs == t.Outcomes {
		return fmt.Errorf("runs and outcomes tables must differ (%q)", t.Runs)
	}
	return nil
}

// Config selects the history backend.
type Config struct {
	Driver     string            `mapstructure:"driver" yaml:"driver"`
	TableNames TableNames        `mapstructure:"table_names" yaml:"table_names"`
	SQLite     sqlite.Config     `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres   postgresql.Config `mapstructure:"postgres" yaml:"postgres"`
	MySQL      mysql.Config      `mapstructure:"mysql" yaml:"mysql"`
	// Retry applies to every write; nil uses retry.DefaultRetryConfig.
	Retry *retry.Config `mapstructure:"-" yaml:"-"`
}

func normalizeDriver(d string) (string, error) {
	switch util.TrimAndLower(d) {
	case "", "sqlite", "sqlite3":
		return DriverSqlite, nil
	case "postgres", "postgresql", "pg", "pgx":
		return DriverPostgresql, nil
	case "mysql", "mariadb":
		return DriverMySQL, nil
	}
	return "", fmt.Errorf("unsupported store driver %q", d)
}
