package mysql

import (
	"strconv"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/loykin/pushprobe/internal/util"
)

const defaultPort = 3306

// Config holds either a DSN or the parts to build one.
type Config struct {
	DSN      string `mapstructure:"dsn" yaml:"dsn"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
}

// ConnString returns a go-sql-driver DSN with parseTime enabled and times in
// UTC. It returns "" when neither a DSN nor a host is configured.
func (c Config) ConnString() string {
	var cfg *driver.Config
	if dsn, ok := util.TrimEmptyCheck(c.DSN); ok {
		parsed, err := driver.ParseDSN(dsn)
		if err != nil {
			return dsn
		}
		cfg = parsed
	} else {
		host, ok := util.TrimEmptyCheck(c.Host)
		if !ok {
			return ""
		}
		port := c.Port
		if port == 0 {
			port = defaultPort
		}
		cfg = driver.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = host + ":" + strconv.Itoa(port)
		cfg.User = c.User
		cfg.Passwd = c.Password
		cfg.DBName = c.DBName
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}
