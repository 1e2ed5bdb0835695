// Package model holds the shared data types that flow across the bus
// between the teleop shaper, the motor dispatch layer, and its backends.
package model

import "time"

// TeleopInput is one operator intent sample, bounds-checked at ingress by
// whatever produces it (the excluded HTTP/WebSocket collaborator, or the
// debug ASCII input in cmd/rover-control).
type TeleopInput struct {
	Throttle float64 // [-1,1]
	Turn     float64 // [-1,1]
	Enable   bool
	Estop    bool
	Ts       time.Time
}

// DriveCommand is the shaped, per-side wheel command consumed by a motor
// backend. Ts is monotonically non-decreasing per Source.
type DriveCommand struct {
	Left          float64 // [-1,1]
	Right         float64 // [-1,1]
	EnableRequest bool
	Estop         bool
	Ts            time.Time
	Source        string // "teleop", "watchdog_stale", "watchdog_never", ...
}

// Fault bit positions reported in Telemetry.FaultFlags, mirroring the wire
// protocol's TELEMETRY payload (internal/protocol).
const (
	FaultWatchdog    uint16 = 0x01
	FaultEstopActive uint16 = 0x02
	FaultUndervolt   uint16 = 0x04
	FaultOvervolt    uint16 = 0x08
	FaultDriver      uint16 = 0x10
	FaultOvercurrent uint16 = 0x20
	FaultThermal     uint16 = 0x40
)

// Telemetry is decoded from a TELEMETRY frame received from the motion MCU.
type Telemetry struct {
	LeftPWM    int16 // [-10000,10000]
	RightPWM   int16
	BusMV      uint16
	FaultFlags uint16
	AgeMS      uint16 // firmware's own view of last-command age
	Ts         time.Time
}

// HasFault reports whether any fault bit is set.
func (t Telemetry) HasFault() bool { return t.FaultFlags != 0 }

// LinkStatus is a snapshot of a backend's link health counters. Counters
// never decrease for the lifetime of the backend instance.
type LinkStatus struct {
	Connected       bool
	FramesSent      uint64
	FramesReceived  uint64
	CRCErrors       uint64
	LastTelemetryTs time.Time
	LastCommandTs   time.Time
}

// MotorStatus is the coarse status every backend reports via Controller.Status.
type MotorStatus struct {
	Enabled       bool
	LastCommandTs time.Time
	HasFault      bool
	BackendTag    string
}
