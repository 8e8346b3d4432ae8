package sqlite

import (
	"fmt"

	"github.com/loykin/pushprobe/internal/util"
)

const (
	busyTimeoutMS    = 5000
	foreignKeysParam = "_pragma=foreign_keys(1)"
)

// Config points at the history database file. DSN wins over Path; with
// neither set the store is in-memory.
type Config struct {
	Path string `mapstructure:"path" yaml:"path"`
	DSN  string `mapstructure:"dsn" yaml:"dsn"`
}

// ConnString returns the DSN handed to the modernc driver.
func (c Config) ConnString() string {
	if dsn, ok := util.TrimEmptyCheck(c.DSN); ok {
		return dsn
	}
	if path, ok := util.TrimEmptyCheck(c.Path); ok {
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&%s", path, busyTimeoutMS, foreignKeysParam)
	}
	return ":memory:"
}
