package protocol

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/traysonr/rover-control-core/internal/model"
)

// ErrBadPayloadLen is returned when a frame's payload length does not match
// what its msg_type requires.
var ErrBadPayloadLen = errors.New("protocol: unexpected payload length for msg_type")

// DecodedDriveCmd is the decoded form of a DRIVE_CMD payload (6 bytes:
// left_q15, right_q15, flags).
type DecodedDriveCmd struct {
	Left          float64
	Right         float64
	Estop         bool
	EnableRequest bool
}

// DecodeDriveCmd parses a DRIVE_CMD payload.
func DecodeDriveCmd(payload []byte) (DecodedDriveCmd, error) {
	if len(payload) != DriveCmdPayloadLen {
		return DecodedDriveCmd{}, ErrBadPayloadLen
	}
	left := int16(binary.LittleEndian.Uint16(payload[0:2]))
	right := int16(binary.LittleEndian.Uint16(payload[2:4]))
	flags := binary.LittleEndian.Uint16(payload[4:6])
	return DecodedDriveCmd{
		Left:          Q15ToSpeed(left),
		Right:         Q15ToSpeed(right),
		Estop:         flags&FlagEstop != 0,
		EnableRequest: flags&FlagEnableRequest != 0,
	}, nil
}

// DecodeTelemetry parses a TELEMETRY payload (10 bytes: left_pwm, right_pwm,
// bus_mv, fault_flags, age_ms).
func DecodeTelemetry(payload []byte, now time.Time) (model.Telemetry, error) {
	if len(payload) != TelemetryPayloadLen {
		return model.Telemetry{}, ErrBadPayloadLen
	}
	return model.Telemetry{
		LeftPWM:    int16(binary.LittleEndian.Uint16(payload[0:2])),
		RightPWM:   int16(binary.LittleEndian.Uint16(payload[2:4])),
		BusMV:      binary.LittleEndian.Uint16(payload[4:6]),
		FaultFlags: binary.LittleEndian.Uint16(payload[6:8]),
		AgeMS:      binary.LittleEndian.Uint16(payload[8:10]),
		Ts:         now,
	}, nil
}

// EncodeTelemetry is the inverse of DecodeTelemetry; used by tests and by
// anything exercising the link from the MCU side (e.g. a hardware
// simulator).
func EncodeTelemetry(t model.Telemetry) []byte {
	payload := make([]byte, TelemetryPayloadLen)
	binary.LittleEndian.PutUint16(payload[0:2], uint16(t.LeftPWM))
	binary.LittleEndian.PutUint16(payload[2:4], uint16(t.RightPWM))
	binary.LittleEndian.PutUint16(payload[4:6], t.BusMV)
	binary.LittleEndian.PutUint16(payload[6:8], t.FaultFlags)
	binary.LittleEndian.PutUint16(payload[8:10], t.AgeMS)
	return payload
}
