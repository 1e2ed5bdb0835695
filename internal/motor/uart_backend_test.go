package motor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/traysonr/rover-control-core/internal/bus"
	"github.com/traysonr/rover-control-core/internal/model"
	"github.com/traysonr/rover-control-core/internal/protocol"
	"github.com/traysonr/rover-control-core/internal/serialport"
)

// fakePort is an in-memory serialport.Port: writes are recorded, reads
// replay a configurable byte stream once and then return io.EOF at once,
// which the receiver goroutine treats as a transient condition and retries.
type fakePort struct {
	mu      sync.Mutex
	written [][]byte
	toRead  []byte
	closed  bool
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte{}, p...)
	f.written = append(f.written, cp)
	return len(p), nil
}

func (f *fakePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.toRead) == 0 {
		return 0, io.EOF
	}
	n := copy(p, f.toRead)
	f.toRead = f.toRead[n:]
	return n, nil
}

func (f *fakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePort) lastWrite() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.written) == 0 {
		return nil
	}
	return f.written[len(f.written)-1]
}

func (f *fakePort) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.written)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestUartBackend(t *testing.T, port *fakePort) (*UartBackend, *bus.Bus, func()) {
	t.Helper()
	openSerialPort = func(name string, baud int, to time.Duration) (serialport.Port, error) { return port, nil }
	t.Cleanup(func() { openSerialPort = serialport.Open })
	sleepFn = func(time.Duration) {}
	t.Cleanup(func() { sleepFn = time.Sleep })

	b := bus.New()
	cfg := DefaultUartBackendConfig()
	cfg.CommandRateHz = 200 // fast tick to keep tests quick
	u := NewUartBackend(cfg, b, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	if err := u.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return u, b, cancel
}

func TestUartBackend_NoCommandEverSeen_SendsDisabledStop(t *testing.T) {
	port := &fakePort{}
	u, _, cancel := newTestUartBackend(t, port)
	defer cancel()
	defer u.Stop()

	deadline := time.After(time.Second)
	for port.writeCount() == 0 {
		select {
		case <-deadline:
			t.Fatalf("expected at least one DRIVE_CMD frame to be sent")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	frame := port.lastWrite()
	var got []protocol.Frame
	p := protocol.NewParser()
	p.Feed(frame, func(f protocol.Frame) { got = append(got, f) })
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 decodable frame, got %d", len(got))
	}
	d, err := protocol.DecodeDriveCmd(got[0].Payload)
	if err != nil {
		t.Fatalf("DecodeDriveCmd: %v", err)
	}
	if d.EnableRequest {
		t.Fatalf("expected enable_request=false before any command has ever arrived")
	}
}

func TestUartBackend_StaleSubmittedCommand_SubstitutesSafeZeroSpeed(t *testing.T) {
	port := &fakePort{}
	u, b, cancel := newTestUartBackend(t, port)
	defer cancel()
	defer u.Stop()

	stale := model.DriveCommand{Left: 0.8, Right: -0.6, EnableRequest: true, Ts: time.Now().Add(-time.Hour)}
	bus.Publish(b, "drive_command", stale)

	time.Sleep(50 * time.Millisecond)

	frame := port.lastWrite()
	if frame == nil {
		t.Fatalf("expected at least one frame sent")
	}
	var got []protocol.Frame
	p := protocol.NewParser()
	p.Feed(frame, func(f protocol.Frame) { got = append(got, f) })
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 decodable frame, got %d", len(got))
	}
	d, err := protocol.DecodeDriveCmd(got[0].Payload)
	if err != nil {
		t.Fatalf("DecodeDriveCmd: %v", err)
	}
	if d.Left != 0 || d.Right != 0 {
		t.Fatalf("expected zero speeds for a stale command, got left=%v right=%v", d.Left, d.Right)
	}
	if d.Estop {
		t.Fatalf("stale substitution must never set estop (would latch firmware estop)")
	}
	if !d.EnableRequest {
		t.Fatalf("stale substitution must keep enable_request true")
	}
}

func TestUartBackend_FreshCommand_PassesThroughUnmodified(t *testing.T) {
	port := &fakePort{}
	u, b, cancel := newTestUartBackend(t, port)
	defer cancel()
	defer u.Stop()

	fresh := model.DriveCommand{Left: 0.5, Right: -0.25, EnableRequest: true, Ts: time.Now()}
	bus.Publish(b, "drive_command", fresh)

	time.Sleep(50 * time.Millisecond)

	frame := port.lastWrite()
	var got []protocol.Frame
	p := protocol.NewParser()
	p.Feed(frame, func(f protocol.Frame) { got = append(got, f) })
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 decodable frame, got %d", len(got))
	}
	d, err := protocol.DecodeDriveCmd(got[0].Payload)
	if err != nil {
		t.Fatalf("DecodeDriveCmd: %v", err)
	}
	if diff := d.Left - 0.5; diff > 1e-3 || diff < -1e-3 {
		t.Fatalf("left = %v, want ~0.5", d.Left)
	}
}

func TestUartBackend_ReceivesTelemetry(t *testing.T) {
	enc := &protocol.Encoder{}
	telemetry := model.Telemetry{LeftPWM: 500, RightPWM: -500, BusMV: 12000, FaultFlags: 0, AgeMS: 5}
	wire := enc.Encode(protocol.MsgTelemetry, protocol.EncodeTelemetry(telemetry))

	port := &fakePort{toRead: wire}
	u, _, cancel := newTestUartBackend(t, port)
	defer cancel()
	defer u.Stop()

	deadline := time.After(time.Second)
	for {
		if _, ok := u.Telemetry(); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected telemetry to be received")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	got, ok := u.Telemetry()
	if !ok {
		t.Fatalf("expected telemetry present")
	}
	if got.LeftPWM != 500 || got.RightPWM != -500 {
		t.Fatalf("unexpected telemetry: %+v", got)
	}

	link, ok := u.LinkStatus()
	if !ok {
		t.Fatalf("expected uart backend to report link status")
	}
	if link.FramesReceived == 0 {
		t.Fatalf("expected frames_received to be nonzero")
	}
}

func TestUartBackend_Stop_Idempotent(t *testing.T) {
	port := &fakePort{}
	u, _, cancel := newTestUartBackend(t, port)
	defer cancel()

	if err := u.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := u.Stop(); err != nil {
		t.Fatalf("second Stop must also succeed: %v", err)
	}
	if !port.closed {
		t.Fatalf("expected port to be closed")
	}
}
