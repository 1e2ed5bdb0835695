package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/traysonr/rover-control-core/internal/bus"
	"github.com/traysonr/rover-control-core/internal/motor"
)

// defaultPwmPoll matches motor.DefaultPwmBackendConfig's poll interval; not
// yet exposed as its own flag since spec.md §6 doesn't list it separately.
const defaultPwmPoll = 100 * time.Millisecond

func durationMS(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

// initBackend constructs the motor.Controller selected by cfg.backend. It
// does not call Start; the caller owns the backend's lifecycle.
func initBackend(cfg *appConfig, b *bus.Bus, l *slog.Logger) (motor.Controller, error) {
	switch cfg.backend {
	case "uart":
		uc := motor.UartBackendConfig{
			Device:        cfg.serialDev,
			Baud:          cfg.baud,
			ReadTimeout:   cfg.serialReadTO,
			CommandRateHz: cfg.commandRateHz,
			MaxCommandAge: durationMS(cfg.maxCmdAgeUartMs),
			TxQueueSize:   8,
		}
		return motor.NewUartBackend(uc, b, l.With("backend", "uart")), nil
	case "pi_pwm":
		pc := motor.PwmBackendConfig{
			Pins: motor.PwmPins{
				LeftIn1: cfg.leftIn1, LeftIn2: cfg.leftIn2, LeftEna: cfg.leftEna,
				RightIn3: cfg.rightIn3, RightIn4: cfg.rightIn4, RightEnb: cfg.rightEnb,
			},
			PwmFrequency:  cfg.pwmFrequency,
			MaxCommandAge: durationMS(cfg.maxCmdAgePwmMs),
			Deadband:      cfg.pwmDeadband,
			PollInterval:  defaultPwmPoll,
		}
		return motor.NewPwmBackend(pc, b, l.With("backend", "pi_pwm")), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.backend)
	}
}
