// Package config loads the pushprobe YAML document, applies PUSHPROBE_*
// environment and flag overrides, and builds the immutable run Settings.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/loykin/pushprobe/internal/auth"
	"github.com/loykin/pushprobe/internal/checks"
	"github.com/loykin/pushprobe/internal/common"
	"github.com/loykin/pushprobe/internal/fakeapi"
	"github.com/loykin/pushprobe/internal/store"
	"github.com/loykin/pushprobe/internal/suite"
	"github.com/loykin/pushprobe/internal/util"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// PUSHPROBE_PROVIDER_API_KEY for provider.api_key.
const EnvPrefix = "PUSHPROBE"

// EnvConfig is a name/value pair whose value may come from the process
// environment.
type EnvConfig struct {
	Name         string `mapstructure:"name" yaml:"name"`
	Value        string `mapstructure:"value" yaml:"value"`
	ValueFromEnv string `mapstructure:"valueFromEnv" yaml:"valueFromEnv"`
}

func (e EnvConfig) resolve() string {
	if e.Value != "" {
		return e.Value
	}
	if name, ok := util.TrimEmptyCheck(e.ValueFromEnv); ok {
		v := os.Getenv(name)
		if v == "" {
			slog.Warn("env variable requested but empty or not set", "name", e.Name, "env_var", name)
		}
		return v
	}
	return ""
}

func resolveEnv(list []EnvConfig) map[string]string {
	if len(list) == 0 {
		return nil
	}
	out := make(map[string]string, len(list))
	for _, kv := range list {
		if kv.Name == "" {
			continue
		}
		out[kv.Name] = kv.resolve()
	}
	return out
}

type LoggingConfig struct {
	Level         string `mapstructure:"level" yaml:"level"`                   // error, warn, info, debug
	Format        string `mapstructure:"format" yaml:"format"`                 // text, json, color
	MaskSensitive *bool  `mapstructure:"mask_sensitive" yaml:"mask_sensitive"` // enable/disable sensitive data masking
	Color         *bool  `mapstructure:"color" yaml:"color"`
}

type ClientConfig struct {
	Insecure      bool   `mapstructure:"insecure" yaml:"insecure"`
	MinTLSVersion string `mapstructure:"min_tls_version" yaml:"min_tls_version"`
	MaxTLSVersion string `mapstructure:"max_tls_version" yaml:"max_tls_version"`
}

// BackendConfig addresses the application backend.
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// Auth is sent on booking and notification routes.
	Auth auth.Config `mapstructure:"auth" yaml:"auth"`
	// AdminAuth is sent on /api/admin routes; defaults to Auth.
	AdminAuth auth.Config `mapstructure:"admin_auth" yaml:"admin_auth"`
}

// ProviderConfig addresses the push provider.
type ProviderConfig struct {
	BaseURL string                 `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration          `mapstructure:"timeout" yaml:"timeout"`
	AppID   string                 `mapstructure:"app_id" yaml:"app_id"`
	APIKey  string                 `mapstructure:"api_key" yaml:"api_key"`
	Message checks.ProviderMessage `mapstructure:"message" yaml:"message"`
}

// ServiceConfig describes the locally started backend for managed suites.
type ServiceConfig struct {
	Command        string         `mapstructure:"command" yaml:"command"`
	Args           []string       `mapstructure:"args" yaml:"args"`
	Dir            string         `mapstructure:"dir" yaml:"dir"`
	Env            []EnvConfig    `mapstructure:"env" yaml:"env"`
	ReadyPatterns  []string       `mapstructure:"ready_patterns" yaml:"ready_patterns"`
	StartupTimeout time.Duration  `mapstructure:"startup_timeout" yaml:"startup_timeout"`
	SettleDelay    *time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	StopTimeout    time.Duration  `mapstructure:"stop_timeout" yaml:"stop_timeout"`
}

// CommandConfig is an external command exposed as step "command:<name>".
type CommandConfig struct {
	Name    string        `mapstructure:"name" yaml:"name"`
	Path    string        `mapstructure:"path" yaml:"path"`
	Args    []string      `mapstructure:"args" yaml:"args"`
	Dir     string        `mapstructure:"dir" yaml:"dir"`
	Env     []EnvConfig   `mapstructure:"env" yaml:"env"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type StoreConfig struct {
	Disabled bool `mapstructure:"disabled" yaml:"disabled"`
	// Keep prunes history to the newest Keep runs after each save; 0 keeps all.
	Keep         int `mapstructure:"keep" yaml:"keep"`
	store.Config `mapstructure:",squash" yaml:",inline"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// MockConfig drives `pushprobe mock`.
type MockConfig struct {
	BackendAddr  string            `mapstructure:"backend_addr" yaml:"backend_addr"`
	ProviderAddr string            `mapstructure:"provider_addr" yaml:"provider_addr"`
	JWTSecret    string            `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	AdminRole    string            `mapstructure:"admin_role" yaml:"admin_role"`
	Bookings     []fakeapi.Booking `mapstructure:"bookings" yaml:"bookings"`
	Players      int               `mapstructure:"players" yaml:"players"`
}

// ConfigDoc is the YAML document as written by the user.
type ConfigDoc struct {
	Backend             BackendConfig       `mapstructure:"backend" yaml:"backend"`
	Local               BackendConfig       `mapstructure:"local" yaml:"local"`
	Provider            ProviderConfig      `mapstructure:"provider" yaml:"provider"`
	Client              ClientConfig        `mapstructure:"client" yaml:"client"`
	Service             ServiceConfig       `mapstructure:"service" yaml:"service"`
	Phones              []string            `mapstructure:"phones" yaml:"phones"`
	AllowEmptyBookings  bool                `mapstructure:"allow_empty_bookings" yaml:"allow_empty_bookings"`
	Notifications       suite.Notifications `mapstructure:"notifications" yaml:"notifications"`
	Registration        checks.Registration `mapstructure:"registration" yaml:"registration"`
	InvalidRegistration checks.Registration `mapstructure:"invalid_registration" yaml:"invalid_registration"`
	FlutterDir          string              `mapstructure:"flutter_dir" yaml:"flutter_dir"`
	Vars                []EnvConfig         `mapstructure:"vars" yaml:"vars"`
	Checks              []checks.Definition `mapstructure:"checks" yaml:"checks"`
	Commands            []CommandConfig     `mapstructure:"commands" yaml:"commands"`
	Suites              []suite.Definition  `mapstructure:"suites" yaml:"suites"`
	SuitesFile          string              `mapstructure:"suites_file" yaml:"suites_file"`
	Strict              bool                `mapstructure:"strict" yaml:"strict"`
	Store               StoreConfig         `mapstructure:"store" yaml:"store"`
	Metrics             MetricsConfig       `mapstructure:"metrics" yaml:"metrics"`
	Mock                MockConfig          `mapstructure:"mock" yaml:"mock"`
	Logging             LoggingConfig       `mapstructure:"logging" yaml:"logging"`

	baseDir string
}

// Load decodes the YAML file at path. Relative paths inside the document
// resolve against the file's directory.
func (c *ConfigDoc) Load(path string) error {
	clean := filepath.Clean(path)
	if info, statErr := os.Stat(clean); statErr != nil || !info.Mode().IsRegular() {
		if statErr != nil {
			return statErr
		}
		return fmt.Errorf("not a regular file: %s", clean)
	}
	// #nosec G304 -- config path is provided intentionally by the user/CI; cleaned and validated above
	f, err := os.Open(clean)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse %s: %w", clean, err)
	}
	c.baseDir = filepath.Dir(clean)
	return nil
}

// overridable lists the scalar keys that PUSHPROBE_* variables and flags may
// replace. YAML keys are case sensitive in places (service env names, check
// bodies), so the document itself never round-trips through viper.
var overridable = []string{
	"backend.base_url",
	"backend.timeout",
	"local.base_url",
	"provider.base_url",
	"provider.timeout",
	"provider.app_id",
	"provider.api_key",
	"phones",
	"strict",
	"flutter_dir",
	"suites_file",
	"store.disabled",
	"store.driver",
	"store.keep",
	"store.sqlite.path",
	"store.postgres.dsn",
	"store.mysql.dsn",
	"metrics.textfile",
	"logging.level",
	"logging.format",
}

// NewViper returns a viper instance reading PUSHPROBE_* variables, with "."
// in keys mapped to "_".
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ApplyOverrides copies every overridable key that v has a value for (from
// the environment or a bound flag) onto the document.
func (c *ConfigDoc) ApplyOverrides(v *viper.Viper) error {
	if v == nil {
		return nil
	}
	overlay := map[string]any{}
	for _, key := range overridable {
		if !v.IsSet(key) {
			continue
		}
		setNested(overlay, strings.Split(key, "."), v.Get(key))
	}
	if len(overlay) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		WeaklyTypedInput: true,
		Squash:           true,
		// Lists such as phones replace the YAML value instead of merging into it.
		ZeroFields: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(overlay); err != nil {
		return fmt.Errorf("apply overrides: %w", err)
	}
	return nil
}

func setNested(m map[string]any, path []string, val any) {
	for _, p := range path[:len(path)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[path[len(path)-1]] = val
}

// resolvePath makes p relative to the config file directory.
func (c *ConfigDoc) resolvePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) || c.baseDir == "" {
		return p
	}
	return filepath.Join(c.baseDir, p)
}

func (c *ConfigDoc) parseLogLevel() (common.LogLevel, error) {
	switch util.TrimAndLower(c.Logging.Level) {
	case "error":
		return common.LogLevelError, nil
	case "warn", "warning":
		return common.LogLevelWarn, nil
	case "info", "":
		return common.LogLevelInfo, nil
	case "debug":
		return common.LogLevelDebug, nil
	default:
		return common.LogLevelInfo, fmt.Errorf("invalid logging level: %s (valid: error, warn, info, debug)", c.Logging.Level)
	}
}

// SetupLogging configures the global logger based on config settings
func (c *ConfigDoc) SetupLogging() error {
	level, err := c.parseLogLevel()
	if err != nil {
		return err
	}

	format := util.TrimAndLower(c.Logging.Format)
	useColor := format == "color" || format == "colour"
	if c.Logging.Color != nil {
		useColor = *c.Logging.Color
	}

	var logger *common.Logger
	switch format {
	case "json":
		logger = common.NewJSONLogger(level)
	case "color", "colour", "text", "":
		if useColor {
			logger = common.NewColorLogger(level)
		} else {
			logger = common.NewLogger(level)
		}
	default:
		return fmt.Errorf("invalid logging format: %s (valid: text, json, color)", c.Logging.Format)
	}

	masking := true
	if c.Logging.MaskSensitive != nil {
		masking = *c.Logging.MaskSensitive
	}
	logger.EnableMasking(masking)
	common.SetDefaultLogger(logger)

	logger.Debug("logging configured",
		"level", util.TrimWithDefault(util.TrimAndLower(c.Logging.Level), "info"),
		"format", util.TrimWithDefault(format, "text"),
		"color", useColor,
		"mask_sensitive", masking)
	return nil
}
