package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alessio/shellescape"
	"github.com/loykin/pushprobe/internal/common"
	"github.com/loykin/pushprobe/internal/constants"
)

// Spec describes the service to spawn and how to decide it is up.
type Spec struct {
	Command string
	Args    []string
	Dir     string
	// Env is appended to the inherited environment.
	Env map[string]string
	// ReadyPatterns are matched as substrings of stdout lines; any match wins.
	ReadyPatterns  []string
	StartupTimeout time.Duration
	// SettleDelay is waited after the ready line before Start returns.
	SettleDelay time.Duration
	StopTimeout time.Duration
}

// CommandLine returns the shell-quoted command for logs.
func (s Spec) CommandLine() string {
	return shellescape.QuoteCommand(append([]string{s.Command}, s.Args...))
}

func (s Spec) withDefaults() Spec {
	if len(s.ReadyPatterns) == 0 {
		s.ReadyPatterns = constants.DefaultReadyPatterns
	}
	if s.StartupTimeout <= 0 {
		s.StartupTimeout = constants.DefaultStartupTimeout
	}
	if s.StopTimeout <= 0 {
		s.StopTimeout = constants.DefaultStopTimeout
	}
	if s.SettleDelay < 0 {
		s.SettleDelay = 0
	}
	return s
}

func (s Spec) environ() []string {
	env := os.Environ()
	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+s.Env[k])
	}
	return env
}

func (s Spec) isReadyLine(line string) bool {
	for _, p := range s.ReadyPatterns {
		if p != "" && strings.Contains(line, p) {
			return true
		}
	}
	return false
}

// Handle is the caller's view of a supervised process. The underlying
// *exec.Cmd stays private to the Supervisor.
type Handle struct {
	id   int
	spec Spec
	cmd  *exec.Cmd

	mu    sync.Mutex
	state State
	pid   int

	stopMu   sync.Mutex
	stopping atomic.Bool
	done     chan struct{}
	waitErr  error
	out      tail
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// PID returns the process id, or 0 when spawning failed.
func (h *Handle) PID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pid
}

// Output returns the last captured stdout and stderr lines.
func (h *Handle) Output() []string { return h.out.snapshot() }

// Exited reports whether the process has terminated.
func (h *Handle) Exited() bool {
	if h.done == nil {
		return true
	}
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Err returns the error from waiting on the process once it terminated,
// such as "exit status 3". It is nil while the process runs.
func (h *Handle) Err() error {
	if h.done == nil || !h.Exited() {
		return nil
	}
	return h.waitErr
}

// ExitCode returns the exit code once the process terminated, or -1.
func (h *Handle) ExitCode() int {
	if !h.Exited() || h.cmd == nil || h.cmd.ProcessState == nil {
		return -1
	}
	return h.cmd.ProcessState.ExitCode()
}

// Supervisor spawns services and guarantees they are terminated.
type Supervisor struct {
	logger *common.Logger

	mu      sync.Mutex
	handles map[int]*Handle
	nextID  int
}

// New creates a Supervisor logging through the default logger.
func New() *Supervisor {
	return &Supervisor{
		logger:  common.GetLogger().WithComponent("supervisor"),
		handles: make(map[int]*Handle),
	}
}

// WithLogger replaces the supervisor's logger.
func (s *Supervisor) WithLogger(l *common.Logger) *Supervisor {
	if l != nil {
		s.logger = l.WithComponent("supervisor")
	}
	return s
}

// Start spawns the process and blocks until it is ready, exits, or the
// startup timeout elapses. On failure the process is killed and the handle
// is returned in StateFailed together with a *StartupError.
func (s *Supervisor) Start(ctx context.Context, spec Spec) (*Handle, error) {
	spec = spec.withDefaults()
	h := &Handle{spec: spec, state: StateStarting}

	if strings.TrimSpace(spec.Command) == "" {
		h.state = StateFailed
		return h, &StartupError{Command: "", Err: errors.New("empty command")}
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.environ()
	setProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		h.state = StateFailed
		return h, &StartupError{Command: spec.CommandLine(), Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		h.state = StateFailed
		return h, &StartupError{Command: spec.CommandLine(), Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	s.logger.Info("starting service", "command", spec.CommandLine(), "dir", spec.Dir)
	if err := cmd.Start(); err != nil {
		h.state = StateFailed
		return h, &StartupError{Command: spec.CommandLine(), Err: err}
	}

	h.cmd = cmd
	h.pid = cmd.Process.Pid
	h.done = make(chan struct{})
	s.register(h)
	log := s.logger.WithService(spec.Command, h.pid)

	ready := make(chan struct{})
	var readyOnce sync.Once
	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		scanLines(stdout, func(line string) {
			h.out.add(line)
			log.Debug("service stdout", "line", line)
			if spec.isReadyLine(line) {
				readyOnce.Do(func() { close(ready) })
			}
		})
	}()
	go func() {
		defer readers.Done()
		scanLines(stderr, func(line string) {
			h.out.add(line)
			log.Warn("service stderr", "line", line)
		})
	}()
	go func() {
		// Pipes must be drained before Wait closes them.
		readers.Wait()
		h.waitErr = cmd.Wait()
		close(h.done)
		if h.State() == StateReady && !h.stopping.Load() {
			log.Warn("service exited while ready", "exit_code", cmd.ProcessState.ExitCode())
		}
	}()

	timer := time.NewTimer(spec.StartupTimeout)
	defer timer.Stop()

	var cause error
	select {
	case <-ready:
		cause = s.settle(ctx, h)
	case <-h.done:
		cause = ErrExitedEarly
	case <-timer.C:
		cause = ErrStartupTimeout
	case <-ctx.Done():
		cause = ctx.Err()
	}

	if cause == nil {
		h.setState(StateReady)
		log.Info("service ready", "state", StateReady.String())
		return h, nil
	}

	h.setState(StateFailed)
	if !h.Exited() {
		if err := s.terminate(h, log); err != nil {
			log.Error("failed to kill service after startup failure", "error", err)
		}
	}
	startErr := &StartupError{Command: spec.CommandLine(), Err: cause, Output: h.Output()}
	if errors.Is(cause, ErrExitedEarly) {
		startErr.Exit = h.Err()
	}
	log.Error("service failed to start", "error", cause)
	return h, startErr
}

func (s *Supervisor) settle(ctx context.Context, h *Handle) error {
	if h.spec.SettleDelay <= 0 {
		return nil
	}
	t := time.NewTimer(h.spec.SettleDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-h.done:
		return ErrExitedEarly
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop terminates the process group: SIGTERM, then SIGKILL after the stop
// timeout. Calling Stop on a stopped handle is a no-op.
func (s *Supervisor) Stop(h *Handle) error {
	if h == nil {
		return nil
	}
	h.stopMu.Lock()
	defer h.stopMu.Unlock()

	if h.State() == StateStopped {
		return nil
	}
	h.stopping.Store(true)
	var err error
	if !h.Exited() {
		err = s.terminate(h, s.logger.WithService(h.spec.Command, h.PID()))
	}
	h.setState(StateStopped)
	s.unregister(h)
	return err
}

// StopAll stops every handle still owned by the supervisor.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	handles := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		if err := s.Stop(h); err != nil {
			s.logger.Error("failed to stop service", "error", err, "pid", h.PID())
		}
	}
}

func (s *Supervisor) terminate(h *Handle, log *common.Logger) error {
	log.Info("stopping service", "timeout", h.spec.StopTimeout)
	if err := signalTerm(h.cmd); err != nil && !h.Exited() {
		log.Warn("SIGTERM failed", "error", err)
	}

	select {
	case <-h.done:
		return nil
	case <-time.After(h.spec.StopTimeout):
	}

	log.Warn("service ignored SIGTERM, sending SIGKILL")
	if err := signalKill(h.cmd); err != nil && !h.Exited() {
		return fmt.Errorf("kill pid %d: %w", h.pid, err)
	}
	select {
	case <-h.done:
		return nil
	case <-time.After(h.spec.StopTimeout):
		return fmt.Errorf("pid %d still running after SIGKILL", h.pid)
	}
}

func (s *Supervisor) register(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	h.id = s.nextID
	s.handles[h.id] = h
}

func (s *Supervisor) unregister(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, h.id)
}

// Running returns the number of handles still owned.
func (s *Supervisor) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}
