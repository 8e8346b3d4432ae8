package supervisor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStartupTimeout: no readiness line within the startup timeout.
	ErrStartupTimeout = errors.New("readiness pattern not seen before startup timeout")
	// ErrExitedEarly: the process exited before printing a readiness line.
	ErrExitedEarly = errors.New("process exited before becoming ready")
)

// StartupError is returned by Start when the process never reached Ready.
type StartupError struct {
	Command string
	Err     error
	// Exit is the wait error of a process that exited before becoming ready.
	Exit error
	// Output holds the last captured stdout/stderr lines.
	Output []string
}

func (e *StartupError) Error() string {
	msg := fmt.Sprintf("service %q failed to start: %v", e.Command, e.Err)
	if e.Exit != nil {
		msg += " (" + e.Exit.Error() + ")"
	}
	if len(e.Output) > 0 {
		msg += " (last output: " + strings.Join(e.Output[max(0, len(e.Output)-3):], " | ") + ")"
	}
	return msg
}

func (e *StartupError) Unwrap() error { return e.Err }
