// Package motor implements the backend-agnostic motor-control dispatch
// layer: a shared Controller contract, stale-command watchdog, and the two
// concrete backends (UART/dsPIC and direct GPIO/PWM H-bridge).
package motor

import (
	"context"

	"github.com/traysonr/rover-control-core/internal/model"
)

// Controller is the capability interface both backends satisfy, matching
// the teacher's transport.FrameDecoder/FrameBatchEncoder style of
// interface-per-capability over a tagged union — this system has exactly
// two backends, a closed set, so one interface with two implementers is the
// natural fit.
type Controller interface {
	// Start opens the backend and launches its goroutines. Start must not
	// block past the initial open/claim; ongoing work runs on its own
	// goroutines until Stop or ctx is canceled.
	Start(ctx context.Context) error

	// Stop drives the hardware to rest, tears down goroutines, and
	// releases any claimed resources (port, GPIO pins). Safe to call once
	// after Start; idempotent against repeated calls.
	Stop() error

	// Submit hands the backend the latest DriveCommand. Non-blocking: the
	// backend's own sender/listener cadence picks it up.
	Submit(cmd model.DriveCommand)

	// Status reports the backend's current MotorStatus snapshot.
	Status() model.MotorStatus

	// Telemetry returns the most recently received telemetry, if this
	// backend tracks any (ok=false otherwise).
	Telemetry() (model.Telemetry, bool)

	// LinkStatus returns the backend's link health, if it tracks any
	// (ok=false otherwise).
	LinkStatus() (model.LinkStatus, bool)
}
