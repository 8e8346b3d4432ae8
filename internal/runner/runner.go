// Package runner executes steps sequentially with fault isolation and
// collects their outcomes.
package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/loykin/pushprobe/internal/common"
	"github.com/loykin/pushprobe/internal/constants"
	"github.com/loykin/pushprobe/internal/step"
	"github.com/loykin/pushprobe/internal/supervisor"
)

var (
	// ErrStartupFault is returned when the managed service never became ready.
	ErrStartupFault = errors.New("service failed to start")
	// ErrDuplicateStep is returned before anything runs when two steps share a name.
	ErrDuplicateStep = errors.New("duplicate step name")
	// ErrInvalidStep is returned for nil steps or steps without a name.
	ErrInvalidStep = errors.New("invalid step")
)

const (
	// SkippedStartupDetail is recorded for steps not run after a startup fault.
	SkippedStartupDetail = "skipped: service failed to start"
	// SkippedCancelledDetail is recorded for steps not run after cancellation.
	SkippedCancelledDetail = "skipped: run cancelled"
)

// Observer is notified after each outcome is recorded.
type Observer func(step.Outcome)

// Option configures a Runner.
type Option func(*Runner)

// WithService makes the runner start spec through sup before the first step,
// record the start as the serverStart outcome, and stop it when the run ends.
func WithService(sup *supervisor.Supervisor, spec supervisor.Spec) Option {
	return func(r *Runner) {
		r.sup = sup
		r.service = &spec
	}
}

// WithLogger sets the runner's logger.
func WithLogger(l *common.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver registers a callback invoked for each recorded outcome.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// Runner sequences steps. It never runs two steps concurrently and never
// retries a step.
type Runner struct {
	sup       *supervisor.Supervisor
	service   *supervisor.Spec
	logger    *common.Logger
	observers []Observer
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{logger: common.GetLogger()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("runner")
	return r
}

// Run executes steps in declaration order. The returned ResultSet always has
// one outcome per step (plus serverStart when a service is managed), even
// when Run also returns an error.
func (r *Runner) Run(ctx context.Context, steps []step.Step) (*ResultSet, error) {
	if err := r.validate(steps); err != nil {
		return nil, err
	}

	capacity := len(steps)
	if r.service != nil {
		capacity++
	}
	rs := newResultSet(capacity)
	rs.StartedAt = time.Now()
	defer func() {
		rs.FinishedAt = time.Now()
		rs.seal()
	}()

	if r.service != nil {
		handle, err := r.startService(ctx, rs)
		defer r.stopService(handle)
		if err != nil {
			// Interrupted while waiting for readiness: a cancelled run, not a broken service.
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				r.skipAll(rs, steps, SkippedCancelledDetail)
				return rs, fmt.Errorf("service start interrupted: %w", ctxErr)
			}
			r.skipAll(rs, steps, SkippedStartupDetail)
			return rs, fmt.Errorf("%w: %v", ErrStartupFault, err)
		}
	}

	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			r.skipAll(rs, steps[i:], SkippedCancelledDetail)
			return rs, err
		}
		r.record(rs, r.execute(ctx, s))
	}

	r.logger.Info("run finished", "passed", rs.Passed(), "total", rs.Len())
	return rs, nil
}

func (r *Runner) validate(steps []step.Step) error {
	seen := make(map[string]struct{}, len(steps)+1)
	if r.service != nil {
		if r.sup == nil {
			return fmt.Errorf("%w: service configured without supervisor", ErrInvalidStep)
		}
		seen[constants.StepServerStart] = struct{}{}
	}
	for i, s := range steps {
		if s == nil {
			return fmt.Errorf("%w: step %d is nil", ErrInvalidStep, i)
		}
		name := s.Name()
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: step %d has no name", ErrInvalidStep, i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateStep, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

func (r *Runner) startService(ctx context.Context, rs *ResultSet) (*supervisor.Handle, error) {
	start := time.Now()
	h, err := r.sup.Start(ctx, *r.service)
	o := step.Outcome{Name: constants.StepServerStart, Duration: time.Since(start)}
	if err != nil {
		o.Detail = err.Error()
	} else {
		o.Passed = true
		o.Detail = step.Details{"pid": h.PID(), "command": r.service.CommandLine()}
	}
	r.record(rs, o)
	return h, err
}

func (r *Runner) stopService(h *supervisor.Handle) {
	if h == nil {
		return
	}
	if err := r.sup.Stop(h); err != nil {
		r.logger.Error("failed to stop service", "error", err)
	}
}

// execute runs one step, converting errors and panics into failed outcomes.
func (r *Runner) execute(ctx context.Context, s step.Step) (o step.Outcome) {
	name := s.Name()
	log := r.logger.WithStep(name)
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("step panicked", "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
			o = step.Fail(name, fmt.Sprintf("panic: %v", rec))
		}
		o.Name = name
		if o.Duration == 0 {
			o.Duration = time.Since(start)
		}
	}()

	log.Debug("step started")
	out, err := s.Execute(ctx)
	if err != nil {
		log.Warn("step faulted", "error", err)
		return step.Fail(name, err.Error())
	}
	return out
}

func (r *Runner) record(rs *ResultSet, o step.Outcome) {
	if err := rs.add(o); err != nil {
		// names were validated up front
		r.logger.Error("failed to record outcome", "error", err)
		return
	}
	log := r.logger.WithStep(o.Name)
	if o.Passed {
		log.Info("step passed", "duration", o.Duration)
	} else {
		log.Warn("step failed", "duration", o.Duration, "detail", fmt.Sprint(o.Detail))
	}
	for _, obs := range r.observers {
		obs(o)
	}
}

func (r *Runner) skipAll(rs *ResultSet, steps []step.Step, detail string) {
	for _, s := range steps {
		r.record(rs, step.Fail(s.Name(), detail))
	}
}
