package config

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/loykin/pushprobe/internal/auth"
	"github.com/loykin/pushprobe/internal/checks"
	"github.com/loykin/pushprobe/internal/common"
	"github.com/loykin/pushprobe/internal/constants"
	"github.com/loykin/pushprobe/internal/httpc"
	"github.com/loykin/pushprobe/internal/step"
	"github.com/loykin/pushprobe/internal/store"
	"github.com/loykin/pushprobe/internal/suite"
	"github.com/loykin/pushprobe/internal/supervisor"
	"github.com/loykin/pushprobe/internal/util"
)

// CommandStepPrefix prefixes the step name of every configured command.
const CommandStepPrefix = "command:"

// Settings is everything a run needs, built once from a ConfigDoc.
type Settings struct {
	Env      suite.Env
	Registry *suite.Registry
	Strict   bool
	// Store is nil when history is disabled.
	Store           *store.Config
	HistoryKeep     int
	MetricsTextfile string
}

// Settings builds clients, credentials, extra steps and the suite registry.
func (c *ConfigDoc) Settings() (*Settings, error) {
	tlsCfg := httpc.TLSConfig(c.Client.Insecure, c.Client.MinTLSVersion, c.Client.MaxTLSVersion)
	auth.SetTLSConfig(tlsCfg)

	env := suite.Env{
		Phones:              util.NonEmpty(c.Phones),
		AllowEmptyBookings:  c.AllowEmptyBookings,
		Notifications:       c.Notifications,
		ProviderMessage:     c.Provider.Message,
		Registration:        c.Registration,
		InvalidRegistration: c.InvalidRegistration,
		FlutterDir:          c.resolvePath(c.FlutterDir),
		AppID:               strings.TrimSpace(c.Provider.AppID),
	}

	var err error
	if env.Backend, err = newClient(c.Backend.BaseURL, constants.DefaultBackendBaseURL, c.Backend.Timeout, constants.DefaultBackendTimeout, tlsCfg); err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}
	if env.Local, err = newClient(c.Local.BaseURL, constants.DefaultBackendBaseURL, c.Local.Timeout, constants.DefaultBackendTimeout, tlsCfg); err != nil {
		return nil, fmt.Errorf("local: %w", err)
	}
	if env.Provider, err = newClient(c.Provider.BaseURL, constants.DefaultProviderBaseURL, c.Provider.Timeout, constants.DefaultProviderTimeout, tlsCfg); err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}

	if env.BackendAuth, err = buildAuth(c.Backend.Auth); err != nil {
		return nil, fmt.Errorf("backend.auth: %w", err)
	}
	env.AdminAuth = env.BackendAuth
	if !c.Backend.AdminAuth.IsZero() {
		if env.AdminAuth, err = buildAuth(c.Backend.AdminAuth); err != nil {
			return nil, fmt.Errorf("backend.admin_auth: %w", err)
		}
	}
	if key := strings.TrimSpace(c.Provider.APIKey); key != "" {
		if env.ProviderKey, err = (auth.ProviderKeyConfig{Key: key}).Method(); err != nil {
			return nil, fmt.Errorf("provider.api_key: %w", err)
		}
	} else {
		common.LogWarn("provider.api_key is not set; provider steps will be rejected")
	}

	if c.Service.Command != "" {
		env.Service = c.serviceSpec()
	}

	extra, err := c.extraSteps(env)
	if err != nil {
		return nil, err
	}
	env.Extra = extra

	custom := append([]suite.Definition(nil), c.Suites...)
	if path, ok := util.TrimEmptyCheck(c.SuitesFile); ok {
		cat, err := suite.LoadCatalog(c.resolvePath(path))
		if err != nil {
			return nil, err
		}
		custom = append(custom, cat.Suites...)
	}
	reg, err := suite.NewRegistry(custom...)
	if err != nil {
		return nil, err
	}

	s := &Settings{
		Env:             env,
		Registry:        reg,
		Strict:          c.Strict,
		HistoryKeep:     c.Store.Keep,
		MetricsTextfile: c.resolvePath(c.Metrics.Textfile),
	}
	if !c.Store.Disabled {
		sc := c.Store.Config
		if sc.SQLite.Path == "" && sc.SQLite.DSN == "" {
			sc.SQLite.Path = constants.DefaultSQLitePath
		}
		sc.SQLite.Path = c.resolvePath(sc.SQLite.Path)
		s.Store = &sc
	}
	return s, nil
}

func newClient(base, defBase string, timeout, defTimeout time.Duration, tlsCfg *tls.Config) (*httpc.Client, error) {
	if timeout <= 0 {
		timeout = defTimeout
	}
	return httpc.New(httpc.Options{
		BaseURL: util.TrimWithDefault(base, defBase),
		Timeout: timeout,
		TLS:     tlsCfg,
	})
}

func buildAuth(c auth.Config) (auth.Method, error) {
	if c.IsZero() {
		return nil, nil
	}
	return auth.Build(c)
}

func (c *ConfigDoc) serviceSpec() *supervisor.Spec {
	spec := &supervisor.Spec{
		Command:        c.Service.Command,
		Args:           c.Service.Args,
		Dir:            c.resolvePath(c.Service.Dir),
		Env:            resolveEnv(c.Service.Env),
		ReadyPatterns:  util.NonEmpty(c.Service.ReadyPatterns),
		StartupTimeout: c.Service.StartupTimeout,
		SettleDelay:    constants.DefaultSettleDelay,
		StopTimeout:    c.Service.StopTimeout,
	}
	if c.Service.SettleDelay != nil {
		spec.SettleDelay = *c.Service.SettleDelay
	}
	return spec
}

// vars are available to check templates as {{.name}}.
func (c *ConfigDoc) vars(env suite.Env) map[string]string {
	v := map[string]string{
		"app_id":       env.AppID,
		"backend_url":  env.Backend.BaseURL(),
		"local_url":    env.Local.BaseURL(),
		"provider_url": env.Provider.BaseURL(),
	}
	if len(env.Phones) > 0 {
		v["phone"] = env.Phones[0]
	}
	for k, val := range resolveEnv(c.Vars) {
		v[k] = val
	}
	return v
}

// extraSteps builds the configured declarative checks and commands.
func (c *ConfigDoc) extraSteps(env suite.Env) ([]step.Step, error) {
	targets := map[string]checks.Target{
		suite.TargetBackend: {Client: env.Backend, Auth: env.BackendAuth},
		suite.TargetLocal:   {Client: env.Local, Auth: env.BackendAuth},
		"admin":             {Client: env.Backend, Auth: env.AdminAuth},
		"provider":          {Client: env.Provider, Auth: env.ProviderKey},
	}
	out, err := checks.BuildAll(c.Checks, targets, c.vars(env))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(out)+len(c.Commands))
	for _, s := range out {
		if _, dup := seen[s.Name()]; dup {
			return nil, fmt.Errorf("duplicate check name: %s", s.Name())
		}
		seen[s.Name()] = struct{}{}
	}
	for i, cmd := range c.Commands {
		name := strings.TrimSpace(cmd.Name)
		if name == "" {
			return nil, fmt.Errorf("commands[%d]: name is required", i)
		}
		if strings.TrimSpace(cmd.Path) == "" {
			return nil, fmt.Errorf("command %s: path is required", name)
		}
		stepName := CommandStepPrefix + name
		if _, dup := seen[stepName]; dup {
			return nil, fmt.Errorf("duplicate command name: %s", name)
		}
		seen[stepName] = struct{}{}
		out = append(out, &checks.Command{
			StepName: stepName,
			Path:     cmd.Path,
			Args:     cmd.Args,
			Dir:      c.resolvePath(cmd.Dir),
			Env:      resolveEnv(cmd.Env),
			Timeout:  cmd.Timeout,
		})
	}
	return out, nil
}
