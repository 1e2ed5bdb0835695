// Package protocol implements the binary framed wire protocol to the motion
// MCU: a little-endian, CRC-16/CCITT-FALSE-protected frame format with a
// byte-streaming, self-resynchronizing parser, plus an ASCII fallback codec
// used only for manual debugging.
//
// Wire layout (version 1):
//
//	| 0xAA | 0x55 | version(1) | msg_type(1) | seq(1) | len(1) | payload[len] | crc16(2) |
//
// CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF, no reflection, no final xor)
// is computed over version..payload[len-1] — header and payload, never SOF
// or the CRC field itself.
package protocol

// Frame is a decoded wire frame. It is transient: reconstructed by the
// parser and discarded after dispatch.
type Frame struct {
	Version uint8
	MsgType uint8
	Seq     uint8
	Payload []byte
	CRC     uint16
}

// SOF bytes.
const (
	SOF0 = 0xAA
	SOF1 = 0x55
)

// ProtocolVersion is the only version this implementation emits or accepts.
const ProtocolVersion uint8 = 0x01

// Message types.
const (
	MsgDriveCmd    uint8 = 0x01
	MsgStopCmd     uint8 = 0x02
	MsgTelemetry   uint8 = 0x10
	MsgEncoderData uint8 = 0x11
	MsgHeartbeat   uint8 = 0xFE
	MsgErrorReport uint8 = 0xFF
)

// DRIVE_CMD flags (payload's trailing u16).
const (
	FlagEstop         uint16 = 0x0001
	FlagEnableRequest uint16 = 0x0002
)

// Fixed payload sizes for the message types this implementation encodes and
// decodes; the payload decoders return ErrBadPayloadLen on a length mismatch.
const (
	DriveCmdPayloadLen  = 6
	TelemetryPayloadLen = 10
)

// MaxPayloadLen is the largest payload the wire format's u8 length field can
// express.
const MaxPayloadLen = 255
