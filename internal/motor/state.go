package motor

import "github.com/traysonr/rover-control-core/internal/model"

// runState is the backend-internal IDLE/RUNNING_SAFE/RUNNING_ACTIVE/
// STOPPING state machine of spec.md §4.4.3.
type runState int

const (
	stateIdle runState = iota
	stateRunningSafe
	stateRunningActive
	stateStopping
)

func (s runState) String() string {
	switch s {
	case stateIdle:
		return "IDLE"
	case stateRunningSafe:
		return "RUNNING_SAFE"
	case stateRunningActive:
		return "RUNNING_ACTIVE"
	case stateStopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

// next computes the backend's next runState given the freshly-applied
// command and whether it is currently considered stale.
func (s runState) next(cmd model.DriveCommand, stale bool) runState {
	if s == stateStopping {
		return stateIdle
	}
	if stale || !cmd.EnableRequest || cmd.Estop {
		return stateRunningSafe
	}
	return stateRunningActive
}

// statusString maps the spec.md §9 FAULTED/ENABLED/STOPPED system-state
// resolution: FAULTED wins whenever the latest telemetry carries a fault
// bit, else ENABLED tracks the backend's own enabled flag, else STOPPED.
func statusString(enabled, hasFault bool) string {
	switch {
	case hasFault:
		return "FAULTED"
	case enabled:
		return "ENABLED"
	default:
		return "STOPPED"
	}
}
