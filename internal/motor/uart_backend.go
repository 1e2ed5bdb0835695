package motor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/traysonr/rover-control-core/internal/bus"
	"github.com/traysonr/rover-control-core/internal/metrics"
	"github.com/traysonr/rover-control-core/internal/model"
	"github.com/traysonr/rover-control-core/internal/protocol"
	"github.com/traysonr/rover-control-core/internal/serialport"
	"github.com/traysonr/rover-control-core/internal/transport"
)

// readBufSize is the per-Read scratch buffer size for the receiver
// goroutine.
const readBufSize = 256

// rxBackoffMin/Max govern the exponential backoff applied to transient
// serial read errors, mirroring the teacher's cmd/can-server/backend_serial.go.
const (
	rxBackoffMin = 10 * time.Millisecond
	rxBackoffMax = 1 * time.Second
)

// UartBackendConfig holds the wiring parameters spec.md §6 lists under
// hardware_gateway.*.
type UartBackendConfig struct {
	Device        string
	Baud          int
	ReadTimeout   time.Duration
	CommandRateHz int
	MaxCommandAge time.Duration
	TxQueueSize   int
}

// DefaultUartBackendConfig returns spec.md's documented defaults.
func DefaultUartBackendConfig() UartBackendConfig {
	return UartBackendConfig{
		Device:        "/dev/serial0",
		Baud:          115200,
		ReadTimeout:   100 * time.Millisecond,
		CommandRateHz: 50,
		MaxCommandAge: 250 * time.Millisecond,
		TxQueueSize:   8,
	}
}

// openSerialPort is a seam for tests.
var openSerialPort = serialport.Open

// sleepFn allows tests to intercept backoff sleeps.
var sleepFn = time.Sleep

// UartBackend drives the motion MCU over a framed serial link: a subscriber
// goroutine maintains the current command, a ticker-driven sender goroutine
// encodes and writes at a fixed rate through a transport.AsyncTx, and a
// receiver goroutine decodes inbound frames and publishes telemetry.
type UartBackend struct {
	cfg UartBackendConfig
	b   *bus.Bus
	log *slog.Logger

	port   serialport.Port
	parser *protocol.Parser
	enc    *protocol.Encoder
	tx     *transport.AsyncTx[[]byte]

	current    atomic.Pointer[model.DriveCommand]
	warner     *staleWarner
	state      runState
	stateMu    sync.Mutex
	enabled    atomic.Bool
	lastFault  atomic.Bool
	lastCmdTs  atomic.Int64 // UnixNano send instant, spec's last_command_ts; 0 if never sent
	framesSent atomic.Uint64
	framesRecv atomic.Uint64
	crcErrors  atomic.Uint64
	telemetry  atomic.Pointer[model.Telemetry]

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewUartBackend constructs a backend bound to b; it does not open the
// serial port until Start is called.
func NewUartBackend(cfg UartBackendConfig, b *bus.Bus, log *slog.Logger) *UartBackend {
	return &UartBackend{
		cfg:    cfg,
		b:      b,
		log:    log,
		parser: protocol.NewParser(),
		enc:    &protocol.Encoder{},
		warner: newStaleWarner(2 * time.Second),
	}
}

// Start opens the serial port and launches the subscriber, sender, and
// receiver goroutines.
func (u *UartBackend) Start(ctx context.Context) error {
	port, err := openSerialPort(u.cfg.Device, u.cfg.Baud, u.cfg.ReadTimeout)
	if err != nil {
		metrics.IncError(mapErrToMetric(ErrPortOpen))
		return fmt.Errorf("%w: %v", ErrPortOpen, err)
	}
	u.port = port
	u.log.Info("uart_backend_open", "device", u.cfg.Device, "baud", u.cfg.Baud)

	runCtx, cancel := context.WithCancel(ctx)
	u.cancel = cancel

	u.tx = transport.NewAsyncTx[[]byte](runCtx, u.cfg.TxQueueSize, u.writeFrame, transport.Hooks{
		OnError: func(err error) { u.log.Warn("uart_tx_error", "error", err) },
		OnDrop: func() error {
			metrics.IncError(mapErrToMetric(ErrTxOverflow))
			u.log.Warn("uart_tx_overflow")
			return ErrTxOverflow
		},
	})

	u.runSubscriber(runCtx)
	u.runSender(runCtx)
	u.runReceiver(runCtx)
	return nil
}

func (u *UartBackend) writeFrame(frame []byte) error {
	if _, err := u.port.Write(frame); err != nil {
		metrics.IncError(mapErrToMetric(ErrPortWrite))
		return fmt.Errorf("%w: %v", ErrPortWrite, err)
	}
	u.framesSent.Add(1)
	u.lastCmdTs.Store(time.Now().UnixNano())
	metrics.IncUartTx()
	return nil
}

// runSubscriber maintains the "current command" slot: written here, read by
// the sender goroutine, full-value replacement under an atomic.Pointer per
// spec.md §4.4's shared-resource policy.
func (u *UartBackend) runSubscriber(ctx context.Context) {
	q := bus.Subscribe[model.DriveCommand](u.b, "drive_command", bus.DefaultCapacity)
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		defer bus.Unsubscribe(u.b, "drive_command", q)
		for {
			select {
			case <-ctx.Done():
				return
			case <-q.Closed:
				return
			case cmd, ok := <-q.C:
				if !ok {
					return
				}
				c := cmd
				u.current.Store(&c)
			}
		}
	}()
}

// runSender fires at a fixed period, applies the staleness rule, encodes,
// and hands the frame to the AsyncTx writer — never blocking on the port
// itself.
func (u *UartBackend) runSender(ctx context.Context) {
	period := time.Second / time.Duration(u.cfg.CommandRateHz)
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				u.sendTick()
			}
		}
	}()
}

func (u *UartBackend) sendTick() {
	now := time.Now()
	cmd := u.resolveCommand(now)

	stale := cmd.Source == "watchdog_stale" || cmd.Source == "watchdog_never"
	u.stateMu.Lock()
	u.state = u.state.next(cmd, stale)
	u.stateMu.Unlock()
	u.enabled.Store(!stale && cmd.EnableRequest && !cmd.Estop)

	frame := u.enc.EncodeDriveCmd(cmd.Left, cmd.Right, cmd.Estop, cmd.EnableRequest)
	_ = u.tx.SendValue(frame)
}

// resolveCommand applies spec.md §4.4's staleness substitution: no command
// ever seen → disabled stop; a command present but aged out → safe zero-
// speed stop without latching estop; otherwise the command itself.
func (u *UartBackend) resolveCommand(now time.Time) model.DriveCommand {
	ptr := u.current.Load()
	if ptr == nil {
		return NeverCommand(now)
	}
	cmd := *ptr
	age := now.Sub(cmd.Ts)
	if Stale(cmd.Ts, now, u.cfg.MaxCommandAge) {
		u.warner.Warn(u.log, now, age, u.cfg.MaxCommandAge)
		return SafeCommand(now)
	}
	return cmd
}

// runReceiver blocks on port reads on its own goroutine, feeding the byte
// stream to the parser and dispatching decoded frames.
func (u *UartBackend) runReceiver(ctx context.Context) {
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		defer u.log.Info("uart_rx_end")
		buf := make([]byte, readBufSize)
		backoff := rxBackoffMin
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			n, err := u.port.Read(buf)
			if n > 0 {
				u.parser.Feed(buf[:n], u.onFrame)
				u.crcErrors.Store(u.parser.CRCErrors)
				backoff = rxBackoffMin
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					continue
				}
				metrics.IncError(mapErrToMetric(ErrPortRead))
				u.log.Warn("uart_read_error", "error", err, "backoff", backoff)
				sleepFn(backoff)
				backoff *= 2
				if backoff > rxBackoffMax {
					backoff = rxBackoffMax
				}
			}
		}
	}()
}

func (u *UartBackend) onFrame(f protocol.Frame) {
	now := time.Now()
	switch f.MsgType {
	case protocol.MsgTelemetry:
		t, err := protocol.DecodeTelemetry(f.Payload, now)
		if err != nil {
			metrics.IncDecodeError()
			u.log.Debug("uart_decode_error", "msg_type", f.MsgType, "error", err)
			return
		}
		u.framesRecv.Add(1)
		tCopy := t
		u.telemetry.Store(&tCopy)
		u.lastFault.Store(t.HasFault())
		metrics.IncUartRx()
		bus.Publish(u.b, "telemetry", t)
	case protocol.MsgEncoderData:
		u.framesRecv.Add(1)
		u.log.Debug("uart_encoder_data", "seq", f.Seq)
	default:
		u.framesRecv.Add(1)
		u.log.Debug("uart_unknown_msg_type", "msg_type", f.MsgType, "seq", f.Seq)
	}
}

// Stop tears down the AsyncTx and goroutines, writes a final safe command
// directly to the port, and closes the port.
func (u *UartBackend) Stop() error {
	if u.cancel != nil {
		u.cancel()
	}
	if u.tx != nil {
		u.tx.Close()
	}
	u.wg.Wait()
	if u.port != nil {
		safe := SafeCommand(time.Now())
		_, _ = u.port.Write(u.enc.EncodeDriveCmd(safe.Left, safe.Right, safe.Estop, safe.EnableRequest))
		_ = u.port.Close()
	}
	return nil
}

func (u *UartBackend) Submit(cmd model.DriveCommand) {
	bus.Publish(u.b, "drive_command", cmd)
}

func (u *UartBackend) Status() model.MotorStatus {
	var lastCmd time.Time
	if ns := u.lastCmdTs.Load(); ns != 0 {
		lastCmd = time.Unix(0, ns)
	}
	return model.MotorStatus{
		Enabled:       u.enabled.Load(),
		LastCommandTs: lastCmd,
		HasFault:      u.lastFault.Load(),
		BackendTag:    "uart",
	}
}

func (u *UartBackend) Telemetry() (model.Telemetry, bool) {
	ptr := u.telemetry.Load()
	if ptr == nil {
		return model.Telemetry{}, false
	}
	return *ptr, true
}

func (u *UartBackend) LinkStatus() (model.LinkStatus, bool) {
	var lastTele, lastCmd time.Time
	if ptr := u.telemetry.Load(); ptr != nil {
		lastTele = ptr.Ts
	}
	if ns := u.lastCmdTs.Load(); ns != 0 {
		lastCmd = time.Unix(0, ns)
	}
	return model.LinkStatus{
		Connected:       u.port != nil,
		FramesSent:      u.framesSent.Load(),
		FramesReceived:  u.framesRecv.Load(),
		CRCErrors:       u.crcErrors.Load(),
		LastTelemetryTs: lastTele,
		LastCommandTs:   lastCmd,
	}, true
}
