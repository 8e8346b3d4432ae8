//go:build unix

package supervisor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shSpec(script string) Spec {
	return Spec{
		Command:        "sh",
		Args:           []string{"-c", script},
		StartupTimeout: 5 * time.Second,
		StopTimeout:    time.Second,
	}
}

func TestStart_ReadyThenStop(t *testing.T) {
	sup := New()
	h, err := sup.Start(context.Background(), shSpec(`echo booting; echo "Server running on port 5000"; sleep 30`))
	require.NoError(t, err)
	assert.Equal(t, StateReady, h.State())
	assert.Greater(t, h.PID(), 0)
	assert.Equal(t, 1, sup.Running())
	assert.NoError(t, h.Err())

	require.NoError(t, sup.Stop(h))
	assert.Equal(t, StateStopped, h.State())
	assert.True(t, h.Exited())
	assert.Equal(t, 0, sup.Running())

	// idempotent
	require.NoError(t, sup.Stop(h))
	assert.Equal(t, StateStopped, h.State())
}

func TestStart_TimeoutKillsProcess(t *testing.T) {
	sup := New()
	spec := shSpec(`echo still booting; sleep 30`)
	spec.StartupTimeout = 200 * time.Millisecond
	spec.StopTimeout = 500 * time.Millisecond

	start := time.Now()
	h, err := sup.Start(context.Background(), spec)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)

	var se *StartupError
	require.True(t, errors.As(err, &se))
	assert.True(t, errors.Is(err, ErrStartupTimeout))
	assert.Equal(t, StateFailed, h.State())
	assert.True(t, h.Exited())
	assert.Contains(t, se.Output, "still booting")

	require.NoError(t, sup.Stop(h))
	assert.Equal(t, StateStopped, h.State())
}

func TestStart_ExitBeforeReady(t *testing.T) {
	sup := New()
	h, err := sup.Start(context.Background(), shSpec(`echo "Error: Cannot find module" >&2; exit 3`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExitedEarly))
	assert.Equal(t, StateFailed, h.State())
	assert.Equal(t, 3, h.ExitCode())
	assert.Contains(t, err.Error(), "Cannot find module")

	var se *StartupError
	require.True(t, errors.As(err, &se))
	require.Error(t, se.Exit)
	assert.Equal(t, "exit status 3", se.Exit.Error())
	assert.Equal(t, se.Exit, h.Err())
	assert.Contains(t, err.Error(), "(exit status 3)")
}

func TestStart_ReadyLineOnStderrIsIgnored(t *testing.T) {
	sup := New()
	spec := shSpec(`echo "listening on port 5000" >&2; sleep 30`)
	spec.StartupTimeout = 300 * time.Millisecond
	spec.StopTimeout = 500 * time.Millisecond

	h, err := sup.Start(context.Background(), spec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStartupTimeout))
	assert.Equal(t, StateFailed, h.State())
	assert.Contains(t, h.Output(), "listening on port 5000")
}

func TestStart_StderrDoesNotFailStartup(t *testing.T) {
	sup := New()
	h, err := sup.Start(context.Background(), shSpec(`echo "warning: deprecated" >&2; echo "listening on port 5000"; sleep 30`))
	require.NoError(t, err)
	defer func() { _ = sup.Stop(h) }()
	assert.Equal(t, StateReady, h.State())
}

func TestStart_SpawnFailure(t *testing.T) {
	sup := New()
	h, err := sup.Start(context.Background(), Spec{Command: "/nonexistent/pushprobe-server"})
	require.Error(t, err)
	var se *StartupError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StateFailed, h.State())
	assert.Equal(t, 0, h.PID())
	require.NoError(t, sup.Stop(h))
}

func TestStart_EmptyCommand(t *testing.T) {
	h, err := New().Start(context.Background(), Spec{Command: "  "})
	require.Error(t, err)
	assert.Equal(t, StateFailed, h.State())
}

func TestStart_EnvPassthrough(t *testing.T) {
	sup := New()
	spec := shSpec(`echo "mode=$NODE_ENV"; echo "listening on port $PORT"; sleep 30`)
	spec.Env = map[string]string{"PORT": "5123", "NODE_ENV": "development"}
	h, err := sup.Start(context.Background(), spec)
	require.NoError(t, err)
	defer func() { _ = sup.Stop(h) }()

	out := strings.Join(h.Output(), "\n")
	assert.Contains(t, out, "mode=development")
	assert.Contains(t, out, "listening on port 5123")
}

func TestStart_SettleDelay(t *testing.T) {
	sup := New()
	spec := shSpec(`echo "listening on port 1"; sleep 30`)
	spec.SettleDelay = 150 * time.Millisecond
	start := time.Now()
	h, err := sup.Start(context.Background(), spec)
	require.NoError(t, err)
	defer func() { _ = sup.Stop(h) }()
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestStart_ContextCancelled(t *testing.T) {
	sup := New()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	h, err := sup.Start(ctx, shSpec(`sleep 30`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, StateFailed, h.State())
}

func TestStop_EscalatesToKill(t *testing.T) {
	sup := New()
	spec := shSpec(`trap "" TERM; echo "listening on port 1"; while true; do sleep 0.05; done`)
	spec.StopTimeout = 200 * time.Millisecond
	h, err := sup.Start(context.Background(), spec)
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, sup.Stop(h))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, h.Exited())
}

func TestStopAll(t *testing.T) {
	sup := New()
	var handles []*Handle
	for i := 0; i < 3; i++ {
		h, err := sup.Start(context.Background(), shSpec(`echo "listening on port 1"; sleep 30`))
		require.NoError(t, err)
		handles = append(handles, h)
	}
	assert.Equal(t, 3, sup.Running())

	sup.StopAll()
	assert.Equal(t, 0, sup.Running())
	for _, h := range handles {
		assert.Equal(t, StateStopped, h.State())
		assert.True(t, h.Exited())
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.True(t, StateFailed.IsTerminal())
	assert.False(t, StateReady.IsTerminal())
}

func TestSpecCommandLine(t *testing.T) {
	s := Spec{Command: "node", Args: []string{"server.js", "--name", "my app"}}
	assert.Equal(t, `node server.js --name 'my app'`, s.CommandLine())
}
