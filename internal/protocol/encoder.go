package protocol

import (
	"encoding/binary"
	"sync/atomic"
)

// Encoder builds wire frames. It is stateful only in seq, which increments
// per sent frame and wraps modulo 256.
type Encoder struct {
	seq atomic.Uint32
}

// Encode prepends SOF+header to payload and appends the CRC, returning the
// complete wire frame.
func (e *Encoder) Encode(msgType uint8, payload []byte) []byte {
	seq := uint8(e.seq.Add(1) - 1)
	n := len(payload)
	frame := make([]byte, 2+4+n+2)
	frame[0] = SOF0
	frame[1] = SOF1
	frame[2] = ProtocolVersion
	frame[3] = msgType
	frame[4] = seq
	frame[5] = uint8(n)
	copy(frame[6:6+n], payload)

	crc := crc16CCITT(frame[2 : 6+n])
	binary.LittleEndian.PutUint16(frame[6+n:], crc)
	return frame
}

// EncodeDriveCmd builds a DRIVE_CMD frame for the given normalized speeds
// and flags.
func (e *Encoder) EncodeDriveCmd(left, right float64, estop, enableRequest bool) []byte {
	payload := make([]byte, DriveCmdPayloadLen)
	binary.LittleEndian.PutUint16(payload[0:2], uint16(SpeedToQ15(left)))
	binary.LittleEndian.PutUint16(payload[2:4], uint16(SpeedToQ15(right)))
	var flags uint16
	if estop {
		flags |= FlagEstop
	}
	if enableRequest {
		flags |= FlagEnableRequest
	}
	binary.LittleEndian.PutUint16(payload[4:6], flags)
	return e.Encode(MsgDriveCmd, payload)
}
