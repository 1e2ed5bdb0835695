package motor

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/traysonr/rover-control-core/internal/bus"
	"github.com/traysonr/rover-control-core/internal/gpio"
	"github.com/traysonr/rover-control-core/internal/metrics"
	"github.com/traysonr/rover-control-core/internal/model"
)

// PwmPins is the L298N-style H-bridge pin mapping of spec.md §6
// (control.pi_pwm.{left_in1,left_in2,left_ena,right_in3,right_in4,right_enb}).
type PwmPins struct {
	LeftIn1, LeftIn2, LeftEna    int
	RightIn3, RightIn4, RightEnb int
}

// PwmBackendConfig holds the wiring parameters spec.md §6 lists under
// control.pi_pwm.*.
type PwmBackendConfig struct {
	Pins          PwmPins
	PwmFrequency  int
	MaxCommandAge time.Duration
	Deadband      float64
	PollInterval  time.Duration
}

// DefaultPwmBackendConfig returns spec.md's documented defaults.
func DefaultPwmBackendConfig() PwmBackendConfig {
	return PwmBackendConfig{
		PwmFrequency:  1000,
		MaxCommandAge: 250 * time.Millisecond,
		Deadband:      0.05,
		PollInterval:  100 * time.Millisecond,
	}
}

// gpioOpen, gpioClose, newOutputPin, and newPWM are seams for tests to
// substitute fakes instead of claiming real GPIO hardware.
var (
	gpioOpen     = gpio.Open
	gpioClose    = gpio.Close
	newOutputPin = gpio.NewOutputPin
	newPWM       = gpio.NewPWM
)

// PwmBackend drives an L298N-style H-bridge directly over six GPIO lines:
// two direction pins and one software-PWM enable pin per side. It carries no
// telemetry or link status (spec.md §9's resolved open question).
type PwmBackend struct {
	cfg PwmBackendConfig
	b   *bus.Bus
	log *slog.Logger

	leftIn1, leftIn2, rightIn3, rightIn4 gpio.OutputPin
	leftPWM, rightPWM                    *gpio.PWM

	current   atomic.Pointer[model.DriveCommand]
	warner    *staleWarner
	state     runState
	stateMu   sync.Mutex
	enabled   atomic.Bool
	lastCmdTs atomic.Int64

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPwmBackend constructs a backend bound to b; it does not claim any GPIO
// resources until Start is called.
func NewPwmBackend(cfg PwmBackendConfig, b *bus.Bus, log *slog.Logger) *PwmBackend {
	return &PwmBackend{cfg: cfg, b: b, log: log, warner: newStaleWarner(2 * time.Second)}
}

// Start claims the GPIO chip, configures the six pins (all driven low
// before any PWM is enabled, per spec.md §6), starts both PWM generators at
// zero duty, and launches the listener goroutine.
func (p *PwmBackend) Start(ctx context.Context) error {
	if err := gpioOpen(); err != nil {
		metrics.IncError(mapErrToMetric(ErrGPIOClaim))
		return ErrGPIOClaim
	}

	pins := p.cfg.Pins
	p.leftIn1 = newOutputPin(pins.LeftIn1)
	p.leftIn2 = newOutputPin(pins.LeftIn2)
	p.rightIn3 = newOutputPin(pins.RightIn3)
	p.rightIn4 = newOutputPin(pins.RightIn4)
	leftEna := newOutputPin(pins.LeftEna)
	rightEnb := newOutputPin(pins.RightEnb)

	p.leftPWM = newPWM(leftEna, p.cfg.PwmFrequency)
	p.rightPWM = newPWM(rightEnb, p.cfg.PwmFrequency)

	p.log.Info("pwm_backend_start",
		"left", []int{pins.LeftIn1, pins.LeftIn2, pins.LeftEna},
		"right", []int{pins.RightIn3, pins.RightIn4, pins.RightEnb},
		"freq_hz", p.cfg.PwmFrequency)

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.runListener(runCtx)
	return nil
}

// runListener subscribes to drive_command with a poll-interval timeout: on
// each message it applies the command immediately; on timeout it runs the
// staleness check and, if stale, drives the motors to stop.
func (p *PwmBackend) runListener(ctx context.Context) {
	q := bus.Subscribe[model.DriveCommand](p.b, "drive_command", bus.DefaultCapacity)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer bus.Unsubscribe(p.b, "drive_command", q)
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
				p.current.Store(&c)
				p.lastCmdTs.Store(c.Ts.UnixNano())
				p.applyCommand(c)
			case <-time.After(p.cfg.PollInterval):
				p.checkStale()
			}
		}
	}()
}

func (p *PwmBackend) checkStale() {
	ptr := p.current.Load()
	if ptr == nil {
		return
	}
	now := time.Now()
	age := now.Sub(ptr.Ts)
	if Stale(ptr.Ts, now, p.cfg.MaxCommandAge) {
		p.warner.Warn(p.log, now, age, p.cfg.MaxCommandAge)
		p.applyStop()
	}
}

// applyCommand implements spec.md §4.4.2's exact truth table: estop or
// enable_request=false forces the stop row on both sides; otherwise a
// per-backend deadband (distinct from the Shaper's) is applied before
// mapping each side to direction pins plus PWM duty.
func (p *PwmBackend) applyCommand(cmd model.DriveCommand) {
	stale := false
	p.stateMu.Lock()
	p.state = p.state.next(cmd, stale)
	p.stateMu.Unlock()

	if cmd.Estop || !cmd.EnableRequest {
		p.applyStop()
		return
	}
	p.enabled.Store(true)

	left := cmd.Left
	if math.Abs(left) <= p.cfg.Deadband {
		left = 0
	}
	right := cmd.Right
	if math.Abs(right) <= p.cfg.Deadband {
		right = 0
	}

	p.setMotor(p.leftIn1, p.leftIn2, p.leftPWM, left)
	p.setMotor(p.rightIn3, p.rightIn4, p.rightPWM, right)
}

// setMotor maps a normalized [-1,1] speed to a direction pin pair plus PWM
// duty percentage, matching the original's forward/reverse/stop rows.
func (p *PwmBackend) setMotor(in1, in2 gpio.OutputPin, pwm *gpio.PWM, speed float64) {
	switch {
	case speed > 0:
		in1.High()
		in2.Low()
		pwm.SetDuty(math.Min(speed, 1) * 100)
	case speed < 0:
		in1.Low()
		in2.High()
		pwm.SetDuty(math.Min(-speed, 1) * 100)
	default:
		in1.Low()
		in2.Low()
		pwm.SetDuty(0)
	}
}

// applyStop drives every direction pin low and both PWM generators to zero
// duty, and clears enabled — the backend's "RUNNING_SAFE" hardware state.
func (p *PwmBackend) applyStop() {
	p.leftIn1.Low()
	p.leftIn2.Low()
	p.rightIn3.Low()
	p.rightIn4.Low()
	if p.leftPWM != nil {
		p.leftPWM.SetDuty(0)
	}
	if p.rightPWM != nil {
		p.rightPWM.SetDuty(0)
	}
	p.enabled.Store(false)
}

// Stop tears down the listener goroutine, drives the motors to rest, stops
// both PWM generators, and releases the GPIO chip — in that order, so
// nothing touches a pin after the chip is closed. A Stop without a running
// Start, including a repeated Stop, does nothing.
func (p *PwmBackend) Stop() error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	p.cancel = nil
	p.wg.Wait()
	p.applyStop()
	if p.leftPWM != nil {
		p.leftPWM.Stop()
	}
	if p.rightPWM != nil {
		p.rightPWM.Stop()
	}
	return gpioClose()
}

func (p *PwmBackend) Submit(cmd model.DriveCommand) {
	bus.Publish(p.b, "drive_command", cmd)
}

func (p *PwmBackend) Status() model.MotorStatus {
	var lastCmd time.Time
	if ns := p.lastCmdTs.Load(); ns != 0 {
		lastCmd = time.Unix(0, ns)
	}
	return model.MotorStatus{
		Enabled:       p.enabled.Load(),
		LastCommandTs: lastCmd,
		HasFault:      false,
		BackendTag:    "pi_pwm",
	}
}

// Telemetry always reports absent: the PWM backend has no telemetry source.
func (p *PwmBackend) Telemetry() (model.Telemetry, bool) { return model.Telemetry{}, false }

// LinkStatus always reports absent: the PWM backend tracks no link.
func (p *PwmBackend) LinkStatus() (model.LinkStatus, bool) { return model.LinkStatus{}, false }
