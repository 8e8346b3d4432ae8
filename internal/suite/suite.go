// Package suite turns named suite definitions into runnable step lists.
package suite

import (
	"fmt"
	"sort"

	"github.com/loykin/pushprobe/internal/runner"
	"github.com/loykin/pushprobe/internal/step"
	"github.com/loykin/pushprobe/internal/supervisor"
)

// Suite is a built, ready-to-run suite.
type Suite struct {
	Name        string
	Description string
	Steps       []step.Step
	// Service is non-nil for managed suites.
	Service *supervisor.Spec
}

// RunnerOptions returns the options that attach the managed service, if any.
func (s *Suite) RunnerOptions(sup *supervisor.Supervisor) []runner.Option {
	if s.Service == nil || sup == nil {
		return nil
	}
	return []runner.Option{runner.WithService(sup, *s.Service)}
}

// Registry holds the built-in suites plus any loaded from configuration.
// Later definitions replace earlier ones with the same name.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry returns a registry seeded with Builtins and then custom.
func NewRegistry(custom ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]Definition, len(Builtins)+len(custom))}
	for _, d := range Builtins {
		r.defs[d.Name] = d
	}
	for _, d := range custom {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		r.defs[d.Name] = d
	}
	return r, nil
}

// Names returns the suite names sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.defs))
	for n := range r.defs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Build resolves every step of the named suite against env. It fails before
// anything runs when a step cannot be built.
func (r *Registry) Build(name string, env Env) (*Suite, error) {
	d, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown suite %q (available: %v)", name, r.Names())
	}
	return d.Build(env)
}

// Build resolves d's steps against env.
func (d Definition) Build(env Env) (*Suite, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	s := &Suite{Name: d.Name, Description: d.Description, Steps: make([]step.Step, 0, len(d.Steps))}
	if d.Managed {
		if env.Service == nil || env.Service.Command == "" {
			return nil, fmt.Errorf("suite %s: managed suite requires service.command", d.Name)
		}
		spec := *env.Service
		s.Service = &spec
	}
	for _, name := range d.Steps {
		st, err := env.step(name, d.target())
		if err != nil {
			return nil, fmt.Errorf("suite %s: step %s: %w", d.Name, name, err)
		}
		s.Steps = append(s.Steps, st)
	}
	return s, nil
}
