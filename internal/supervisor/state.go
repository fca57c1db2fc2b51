// Package supervisor manages the lifecycle of the real-time engine process.
package supervisor

// State represents the current lifecycle state of the engine runner.
//
// Paused is a controller-side belief derived from the last pause/play
// command sent over the control bus; the engine itself reports no paused
// state distinct from running.
type State int

const (
	// StateIdle is the initial state before any launch.
	StateIdle State = iota

	// StateLaunching indicates the engine process is being spawned.
	StateLaunching

	// StateRunning indicates the engine confirmed start and is active.
	StateRunning

	// StatePaused indicates the last transport command sent was pause.
	StatePaused

	// StateExited indicates the engine terminated with a benign exit code.
	StateExited

	// StateError indicates a launch failure or an abnormal exit.
	StateError
)

// String returns the display name emitted with every state-change event.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateLaunching:
		return "Launching"
	case StateRunning:
		return "Running"
	case StatePaused:
		return "Paused"
	case StateExited:
		return "Exited"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// CanStart reports whether a new launch is accepted from this state.
func (s State) CanStart() bool {
	return s == StateIdle || s == StateExited || s == StateError
}

// IsActive reports whether an engine process is nominally alive
// (spawning, running, or believed paused).
func (s State) IsActive() bool {
	return s == StateLaunching || s == StateRunning || s == StatePaused
}

// ControlsLive reports whether control-bus sends are allowed: the engine has
// confirmed start and has not exited. Edits made while Launching are dropped
// at this boundary; the console re-flushes current values once Running.
func (s State) ControlsLive() bool {
	return s == StateRunning || s == StatePaused
}
