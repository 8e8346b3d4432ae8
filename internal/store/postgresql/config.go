package postgresql

import (
	"fmt"
	"net/url"

	"github.com/loykin/pushprobe/internal/constants"
	"github.com/loykin/pushprobe/internal/util"
)

// Config holds either a DSN or the parts to build one.
type Config struct {
	DSN      string `mapstructure:"dsn" yaml:"dsn"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// ConnString prefers the explicit DSN and otherwise builds a postgres:// URL
// from the host fields. It returns "" when neither is configured.
func (c Config) ConnString() string {
	if dsn, ok := util.TrimEmptyCheck(c.DSN); ok {
		return dsn
	}
	host, ok := util.TrimEmptyCheck(c.Host)
	if !ok {
		return ""
	}
	port := c.Port
	if port == 0 {
		port = constants.DefaultPostgresPort
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", host, port),
		Path:     "/" + util.TrimWithDefault(c.DBName, ""),
		RawQuery: "sslmode=" + url.QueryEscape(util.TrimWithDefault(c.SSLMode, constants.DefaultPostgresSSLMode)),
	}
	if user, ok := util.TrimEmptyCheck(c.User); ok {
		if c.Password != "" {
			u.User = url.UserPassword(user, c.Password)
		} else {
			u.User = url.User(user)
		}
	}
	return u.String()
}
