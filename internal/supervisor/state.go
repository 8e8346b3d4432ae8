// Package supervisor owns the lifecycle of a locally spawned service-under-test:
// spawn, wait for a readiness line on stdout, and guaranteed termination.
package supervisor

// State is the lifecycle state of a supervised process.
type State int

const (
	// StateStarting: spawned, readiness pattern not seen yet.
	StateStarting State = iota
	// StateReady: readiness pattern seen (and settle delay elapsed).
	StateReady
	// StateFailed: spawn error, early exit, or startup timeout.
	StateFailed
	// StateStopped: terminated by Stop. Terminal.
	StateStopped
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition except Stop can happen.
func (s State) IsTerminal() bool {
	return s == StateFailed || s == StateStopped
}
