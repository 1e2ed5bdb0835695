package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// appConfig is the daemon's full configuration surface, matching spec.md §6.
type appConfig struct {
	// hardware_gateway.* (UART backend)
	serialDev       string
	baud            int
	serialReadTO    time.Duration
	commandRateHz   int
	maxCmdAgeUartMs int

	// control.pi_pwm.* (PWM backend)
	leftIn1, leftIn2, leftEna    int
	rightIn3, rightIn4, rightEnb int
	pwmFrequency                int
	maxCmdAgePwmMs               int
	pwmDeadband                  float64

	// teleop.* (Shaper)
	teleopMaxSpeed float64
	teleopDeadband float64
	teleopSlewRate float64

	// backend selection: uart|pi_pwm
	backend string

	// ambient
	logFormat       string
	logLevel        string
	metricsAddr     string
	logMetricsEvery time.Duration

	// mDNS discovery
	mdnsEnable bool
	mdnsName   string

	// manual debug input
	debugStdin bool
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}

	serialDev := flag.String("serial", "/dev/serial0", "UART device path")
	baud := flag.Int("baud", 115200, "UART baud rate")
	serialReadTO := flag.Duration("serial-read-timeout", 100*time.Millisecond, "UART read timeout")
	commandRateHz := flag.Int("command-rate-hz", 50, "UART sender task frequency (Hz)")
	maxCmdAgeUartMs := flag.Int("max-command-age-ms", 250, "UART stale-command threshold (ms)")

	leftIn1 := flag.Int("pwm-left-in1", 17, "PWM backend: left motor direction pin 1 (BCM)")
	leftIn2 := flag.Int("pwm-left-in2", 27, "PWM backend: left motor direction pin 2 (BCM)")
	leftEna := flag.Int("pwm-left-ena", 22, "PWM backend: left motor PWM enable pin (BCM)")
	rightIn3 := flag.Int("pwm-right-in3", 23, "PWM backend: right motor direction pin 1 (BCM)")
	rightIn4 := flag.Int("pwm-right-in4", 24, "PWM backend: right motor direction pin 2 (BCM)")
	rightEnb := flag.Int("pwm-right-enb", 25, "PWM backend: right motor PWM enable pin (BCM)")
	pwmFrequency := flag.Int("pwm-frequency", 1000, "PWM backend: software PWM frequency (Hz)")
	maxCmdAgePwmMs := flag.Int("pwm-max-command-age-ms", 250, "PWM backend: stale-command threshold (ms)")
	pwmDeadband := flag.Float64("pwm-deadband", 0.05, "PWM backend: per-side deadband")

	teleopMaxSpeed := flag.Float64("teleop-max-speed", 1.0, "Shaper: max speed scale (0,1]")
	teleopDeadband := flag.Float64("teleop-deadband", 0.05, "Shaper: input deadband [0,1)")
	teleopSlewRate := flag.Float64("teleop-slew-rate", 2.0, "Shaper: slew rate, units/second")

	backend := flag.String("backend", "uart", "Motor backend: uart|pi_pwm")

	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")

	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS advertisement")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default rover-control-<hostname>)")

	debugStdin := flag.Bool("debug-stdin", false, "Read manual teleop input (D/S/E lines) from stdin")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.serialDev = *serialDev
	cfg.baud = *baud
	cfg.serialReadTO = *serialReadTO
	cfg.commandRateHz = *commandRateHz
	cfg.maxCmdAgeUartMs = *maxCmdAgeUartMs
	cfg.leftIn1, cfg.leftIn2, cfg.leftEna = *leftIn1, *leftIn2, *leftEna
	cfg.rightIn3, cfg.rightIn4, cfg.rightEnb = *rightIn3, *rightIn4, *rightEnb
	cfg.pwmFrequency = *pwmFrequency
	cfg.maxCmdAgePwmMs = *maxCmdAgePwmMs
	cfg.pwmDeadband = *pwmDeadband
	cfg.teleopMaxSpeed = *teleopMaxSpeed
	cfg.teleopDeadband = *teleopDeadband
	cfg.teleopSlewRate = *teleopSlewRate
	cfg.backend = *backend
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName
	cfg.debugStdin = *debugStdin

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed configuration.
// It does not open devices or claim GPIO pins — only checks values/ranges.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.backend {
	case "uart", "pi_pwm":
	default:
		return fmt.Errorf("invalid backend: %s", c.backend)
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	if c.serialReadTO <= 0 {
		return fmt.Errorf("serial-read-timeout must be > 0")
	}
	if c.commandRateHz <= 0 {
		return fmt.Errorf("command-rate-hz must be > 0")
	}
	if c.teleopMaxSpeed <= 0 || c.teleopMaxSpeed > 1 {
		return fmt.Errorf("teleop-max-speed must be in (0,1] (got %v)", c.teleopMaxSpeed)
	}
	if c.teleopDeadband < 0 || c.teleopDeadband >= 1 {
		return fmt.Errorf("teleop-deadband must be in [0,1) (got %v)", c.teleopDeadband)
	}
	if c.teleopSlewRate <= 0 {
		return fmt.Errorf("teleop-slew-rate must be > 0")
	}
	if c.pwmFrequency <= 0 {
		return fmt.Errorf("pwm-frequency must be > 0")
	}
	return nil
}

// applyEnvOverrides maps ROVER_* environment variables onto config fields
// unless a corresponding flag was explicitly set. Flag always wins over env.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	str := func(flagName, env string, dst *string) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			*dst = v
		}
	}
	intVal := func(flagName, env string, dst *int) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("invalid %s: %w", env, err)
				}
				return
			}
			*dst = n
		}
	}
	floatVal := func(flagName, env string, dst *float64) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("invalid %s: %w", env, err)
				}
				return
			}
			*dst = f
		}
	}
	durationVal := func(flagName, env string, dst *time.Duration) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("invalid %s: %w", env, err)
				}
				return
			}
			*dst = d
		}
	}
	boolVal := func(flagName, env string, dst *bool) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				*dst = true
			case "0", "false", "no", "off":
				*dst = false
			}
		}
	}

	str("serial", "ROVER_SERIAL", &c.serialDev)
	intVal("baud", "ROVER_BAUD", &c.baud)
	durationVal("serial-read-timeout", "ROVER_SERIAL_READ_TIMEOUT", &c.serialReadTO)
	intVal("command-rate-hz", "ROVER_COMMAND_RATE_HZ", &c.commandRateHz)
	intVal("max-command-age-ms", "ROVER_MAX_COMMAND_AGE_MS", &c.maxCmdAgeUartMs)

	intVal("pwm-left-in1", "ROVER_PWM_LEFT_IN1", &c.leftIn1)
	intVal("pwm-left-in2", "ROVER_PWM_LEFT_IN2", &c.leftIn2)
	intVal("pwm-left-ena", "ROVER_PWM_LEFT_ENA", &c.leftEna)
	intVal("pwm-right-in3", "ROVER_PWM_RIGHT_IN3", &c.rightIn3)
	intVal("pwm-right-in4", "ROVER_PWM_RIGHT_IN4", &c.rightIn4)
	intVal("pwm-right-enb", "ROVER_PWM_RIGHT_ENB", &c.rightEnb)
	intVal("pwm-frequency", "ROVER_PWM_FREQUENCY", &c.pwmFrequency)
	intVal("pwm-max-command-age-ms", "ROVER_PWM_MAX_COMMAND_AGE_MS", &c.maxCmdAgePwmMs)
	floatVal("pwm-deadband", "ROVER_PWM_DEADBAND", &c.pwmDeadband)

	floatVal("teleop-max-speed", "ROVER_TELEOP_MAX_SPEED", &c.teleopMaxSpeed)
	floatVal("teleop-deadband", "ROVER_TELEOP_DEADBAND", &c.teleopDeadband)
	floatVal("teleop-slew-rate", "ROVER_TELEOP_SLEW_RATE", &c.teleopSlewRate)

	str("backend", "ROVER_BACKEND", &c.backend)
	str("log-format", "ROVER_LOG_FORMAT", &c.logFormat)
	str("log-level", "ROVER_LOG_LEVEL", &c.logLevel)
	str("metrics-addr", "ROVER_METRICS", &c.metricsAddr)
	durationVal("log-metrics-interval", "ROVER_LOG_METRICS_INTERVAL", &c.logMetricsEvery)

	boolVal("mdns-enable", "ROVER_MDNS_ENABLE", &c.mdnsEnable)
	str("mdns-name", "ROVER_MDNS_NAME", &c.mdnsName)
	boolVal("debug-stdin", "ROVER_DEBUG_STDIN", &c.debugStdin)

	return firstErr
}
