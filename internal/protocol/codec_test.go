package protocol

import (
	"bytes"
	"testing"

	"github.com/traysonr/rover-control-core/internal/model"
)

func TestEncodeDecode_DriveCmd_RoundTrip(t *testing.T) {
	enc := &Encoder{}
	wire := enc.EncodeDriveCmd(0.5, -0.25, false, true)

	var got []Frame
	p := NewParser()
	p.Feed(wire, func(f Frame) { got = append(got, f) })

	if len(got) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(got))
	}
	d, err := DecodeDriveCmd(got[0].Payload)
	if err != nil {
		t.Fatalf("DecodeDriveCmd: %v", err)
	}
	if diff := d.Left - 0.5; diff > 1e-4 || diff < -1e-4 {
		t.Fatalf("left = %v, want ~0.5", d.Left)
	}
	if diff := d.Right - (-0.25); diff > 1e-4 || diff < -1e-4 {
		t.Fatalf("right = %v, want ~-0.25", d.Right)
	}
	if d.Estop {
		t.Fatalf("estop should be false")
	}
	if !d.EnableRequest {
		t.Fatalf("enable_request should be true")
	}
}

func TestParse_Encode_RoundTrip_WithGarbagePrefix(t *testing.T) {
	enc := &Encoder{}
	wire := enc.EncodeDriveCmd(1, -1, true, false)

	garbage := []byte{0x00, 0xFF, 0xAA, 0x12, 0x55, 0x00}
	stream := append(append([]byte{}, garbage...), wire...)

	var got []Frame
	p := NewParser()
	p.Feed(stream, func(f Frame) { got = append(got, f) })

	if len(got) != 1 {
		t.Fatalf("expected exactly 1 frame after garbage prefix, got %d", len(got))
	}
	if got[0].MsgType != MsgDriveCmd {
		t.Fatalf("unexpected msg_type %x", got[0].MsgType)
	}
}

func TestCRC_MatchesEmbedded(t *testing.T) {
	enc := &Encoder{}
	wire := enc.Encode(MsgHeartbeat, nil)
	headerAndPayload := wire[2 : len(wire)-2]
	embedded := uint16(wire[len(wire)-2]) | uint16(wire[len(wire)-1])<<8
	if got := crc16CCITT(headerAndPayload); got != embedded {
		t.Fatalf("computed CRC %04x != embedded %04x", got, embedded)
	}
}

func TestParser_CRCBitFlip_RejectsOneFrame(t *testing.T) {
	telemetry := EncodeTelemetry(telemetrySample())
	enc := &Encoder{}
	wire := enc.Encode(MsgTelemetry, telemetry)

	corrupted := append([]byte{}, wire...)
	corrupted[8] ^= 0x01 // flip one payload bit

	valid := enc.Encode(MsgTelemetry, telemetry)

	p := NewParser()
	var frames []Frame
	p.Feed(corrupted, func(f Frame) { frames = append(frames, f) })
	if len(frames) != 0 {
		t.Fatalf("expected corrupted frame to be rejected, got %d frames", len(frames))
	}
	if p.CRCErrors != 1 {
		t.Fatalf("expected exactly 1 crc error, got %d", p.CRCErrors)
	}

	p.Feed(valid, func(f Frame) { frames = append(frames, f) })
	if len(frames) != 1 {
		t.Fatalf("expected subsequent valid frame to still decode, got %d frames", len(frames))
	}
}

func TestParser_Resync_OnOverlappingSOF(t *testing.T) {
	enc := &Encoder{}
	valid := enc.Encode(MsgTelemetry, EncodeTelemetry(telemetrySample()))

	stream := append([]byte{SOF0, SOF0, SOF1}, valid[2:]...)

	p := NewParser()
	var frames []Frame
	p.Feed(stream, func(f Frame) { frames = append(frames, f) })
	if len(frames) != 1 {
		t.Fatalf("expected exactly 1 telemetry frame, got %d", len(frames))
	}
}

func TestParser_NeverPanics_OnRepeatedHeaderPattern(t *testing.T) {
	p := NewParser()
	data := bytes.Repeat([]byte{0xAA, 0x55, 0x01, 0xFF, 0x10, 0x00, 0x2A}, 200)
	p.Feed(data, func(Frame) {})
}

func telemetrySample() model.Telemetry {
	return model.Telemetry{LeftPWM: 1234, RightPWM: -1234, BusMV: 12000, FaultFlags: 0, AgeMS: 10}
}
