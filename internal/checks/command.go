package checks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	"github.com/loykin/pushprobe/internal/common"
	"github.com/loykin/pushprobe/internal/constants"
	"github.com/loykin/pushprobe/internal/step"
)

// Command runs an external test command (e.g. flutter test) to completion.
// Exit code 0 passes; any other exit code fails with the output tail as
// detail. A command that cannot be started is a fault.
type Command struct {
	StepName string
	Path     string
	Args     []string
	Dir      string
	Env      map[string]string
	Timeout  time.Duration
}

// Name returns the step name.
func (c *Command) Name() string { return c.StepName }

// CommandLine returns the shell-quoted command.
func (c *Command) CommandLine() string {
	return shellescape.QuoteCommand(append([]string{c.Path}, c.Args...))
}

// Execute runs the command and waits for it, bounded by Timeout.
func (c *Command) Execute(ctx context.Context) (step.Outcome, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := common.GetLogger().WithStep(c.StepName)
	log.Info("running command", "command", c.CommandLine(), "dir", c.Dir)

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = os.Environ()
	for k, v := range c.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	// Grandchildren may keep the output pipe open after the kill.
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err == nil {
		return step.Outcome{Name: c.StepName, Passed: true, Detail: step.Details{"exitCode": 0}, Duration: elapsed}, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return step.Outcome{Name: c.StepName, Detail: fmt.Sprintf("timeout after %s", timeout), Duration: elapsed}, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return step.Outcome{
			Name:     c.StepName,
			Detail:   step.Details{"exitCode": exitErr.ExitCode(), "output": tailLines(out.String(), 10)},
			Duration: elapsed,
		}, nil
	}
	return step.Outcome{}, fmt.Errorf("run %s: %w", c.CommandLine(), err)
}

func tailLines(s string, n int) []string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// FlutterTests runs the mobile notification integration tests.
func FlutterTests(dir string) step.Step {
	return &Command{
		StepName: constants.StepFlutterTests,
		Path:     "flutter",
		Args:     []string{"test", "test/notification_integration_test.dart", "--verbose"},
		Dir:      dir,
	}
}
