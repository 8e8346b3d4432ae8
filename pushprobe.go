// Package pushprobe runs verification suites against a booking backend and
// its push provider, and records the results.
package pushprobe

import (
	"context"

	"github.com/loykin/pushprobe/internal/auth"
	"github.com/loykin/pushprobe/internal/httpc"
	"github.com/loykin/pushprobe/internal/metrics"
	"github.com/loykin/pushprobe/internal/report"
	"github.com/loykin/pushprobe/internal/runner"
	"github.com/loykin/pushprobe/internal/step"
	"github.com/loykin/pushprobe/internal/store"
	"github.com/loykin/pushprobe/internal/suite"
	"github.com/loykin/pushprobe/internal/supervisor"
)

// Re-export commonly used types for public API

// Step is one named, self-contained probe.
type Step = step.Step

// Outcome is the recorded result of a step.
type Outcome = step.Outcome

// Details is the usual shape of an Outcome detail.
type Details = step.Details

// NewStep wraps fn as a Step. Returning an error marks the step failed with
// the error text as detail.
func NewStep(name string, fn func(ctx context.Context) (bool, any, error)) Step {
	return step.New(name, fn)
}

// Client sends requests against one base URL.
type Client = httpc.Client

type ClientOptions = httpc.Options

// NewClient builds a Client; BaseURL must be http(s)://host[:port].
func NewClient(opts ClientOptions) (*Client, error) { return httpc.New(opts) }

// AuthMethod Plugin-style provider interface and registration
type AuthMethod = auth.Method

type AuthFactory = auth.Factory

// RegisterAuthProvider exposes custom auth provider registration for library users.
func RegisterAuthProvider(typ string, f AuthFactory) { auth.Register(typ, f) }

// NewAuth builds a registered auth method from its settings map.
func NewAuth(typ string, settings map[string]any) (AuthMethod, error) {
	return auth.New(typ, settings)
}

// Env holds the clients and inputs suites are built from.
type Env = suite.Env

type Suite = suite.Suite

type SuiteDefinition = suite.Definition

type Registry = suite.Registry

// BuiltinSuites lists the suites available without configuration.
func BuiltinSuites() []SuiteDefinition {
	return append([]SuiteDefinition(nil), suite.Builtins...)
}

// NewRegistry returns the built-in suites plus custom definitions.
func NewRegistry(custom ...SuiteDefinition) (*Registry, error) { return suite.NewRegistry(custom...) }

type ResultSet = runner.ResultSet

type Summary = report.Summary

// Sentinel errors from RunSuite.
var (
	ErrStartupFault  = runner.ErrStartupFault
	ErrDuplicateStep = runner.ErrDuplicateStep
)

// RunSuite runs s to completion and summarises it. Managed suites start and
// stop their service. The result set and summary are returned even when the
// run ends early with ErrStartupFault or a context error.
func RunSuite(ctx context.Context, s *Suite, observers ...func(Outcome)) (*ResultSet, Summary, error) {
	sup := supervisor.New()
	defer sup.StopAll()

	opts := s.RunnerOptions(sup)
	for _, o := range observers {
		opts = append(opts, runner.WithObserver(o))
	}
	rs, err := runner.New(opts...).Run(ctx, s.Steps)
	if rs == nil {
		return nil, Summary{}, err
	}
	sum := report.Aggregate(rs.Outcomes())
	sum.Suite = s.Name
	sum.Elapsed = rs.Elapsed()
	return rs, sum, err
}

// Recorder collects Prometheus metrics and latency quantiles for a suite.
// Pass its Observe method to RunSuite and mount Handler to serve /metrics.
type Recorder = metrics.Recorder

// NewRecorder returns a Recorder with its own registry.
func NewRecorder(suite string) *Recorder { return metrics.New(suite) }

// Store is the run history store.
type Store = store.Store

type StoreConfig = store.Config

// Supported history drivers.
const (
	DriverSqlite     = store.DriverSqlite
	DriverPostgresql = store.DriverPostgresql
	DriverMySQL      = store.DriverMySQL
)

// OpenStore opens the history store and creates its tables.
func OpenStore(ctx context.Context, cfg StoreConfig) (*Store, error) { return store.Open(ctx, cfg) }
