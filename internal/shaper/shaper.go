// Package shaper implements the teleop command pipeline: deadband
// re-scaling, differential mixing, scaling, and slew-rate limiting, applied
// in that order to turn a TeleopInput into a DriveCommand.
package shaper

import (
	"math"
	"time"

	"github.com/traysonr/rover-control-core/internal/model"
)

// Config holds the Shaper's tunable parameters (spec.md §4.3 / §6
// teleop.max_speed, teleop.deadband, teleop.slew_rate_per_sec).
type Config struct {
	MaxSpeed float64 // (0,1], default 1.0
	Deadband float64 // [0,1), default 0.05
	SlewRate float64 // units/second, (0,∞), default 2.0
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{MaxSpeed: 1.0, Deadband: 0.05, SlewRate: 2.0}
}

// State is the Shaper's per-instance memory: the previous output per axis
// and the timestamp of the previous input, used to compute dt for slew. The
// zero value is a valid starting state; the first Shape call initializes
// the timestamp reference with dt=0, so its output stays at the previous
// (zero) value.
type State struct {
	PrevLeft  float64
	PrevRight float64
	PrevTs    time.Time
	primed    bool
}

// applyDeadband maps x through the deadband-with-rescale transform: values
// within the deadband collapse to exactly 0; values beyond it are rescaled
// so the full [-1,1] range is still reachable.
func applyDeadband(x, deadband float64) float64 {
	ax := math.Abs(x)
	if ax < deadband {
		return 0
	}
	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	return sign * (ax - deadband) / (1 - deadband)
}

// mix applies the differential-drive mix and clips magnitude (not
// direction) if either side would exceed 1.
func mix(throttle, turn float64) (left, right float64) {
	left = throttle + turn
	right = throttle - turn
	if m := math.Max(math.Abs(left), math.Abs(right)); m > 1 {
		left /= m
		right /= m
	}
	return left, right
}

// slewLimit clips the change from prev to target to at most maxDelta in
// magnitude.
func slewLimit(prev, target, maxDelta float64) float64 {
	delta := target - prev
	if delta > maxDelta {
		delta = maxDelta
	} else if delta < -maxDelta {
		delta = -maxDelta
	}
	return prev + delta
}

// Shape runs the four transformations in order and returns the resulting
// DriveCommand plus the updated State for the next call.
func Shape(cfg Config, prev State, in model.TeleopInput, now time.Time) (model.DriveCommand, State) {
	dbThrottle := applyDeadband(in.Throttle, cfg.Deadband)
	dbTurn := applyDeadband(in.Turn, cfg.Deadband)

	left, right := mix(dbThrottle, dbTurn)
	left *= cfg.MaxSpeed
	right *= cfg.MaxSpeed

	// The first call has no previous timestamp to measure dt against, so it
	// establishes the dt reference with dt=0: the rover stays at its
	// starting (rest) output until a second input arrives to measure a real
	// elapsed time against.
	dt := 0.0
	if prev.primed {
		dt = now.Sub(prev.PrevTs).Seconds()
		if dt < 0 {
			dt = 0
		}
	}
	maxDelta := cfg.SlewRate * dt
	next := State{
		PrevLeft:  slewLimit(prev.PrevLeft, left, maxDelta),
		PrevRight: slewLimit(prev.PrevRight, right, maxDelta),
		PrevTs:    now,
		primed:    true,
	}

	cmd := model.DriveCommand{
		Left:          next.PrevLeft,
		Right:         next.PrevRight,
		EnableRequest: in.Enable,
		Estop:         in.Estop,
		Ts:            now,
		Source:        "teleop",
	}
	return cmd, next
}
