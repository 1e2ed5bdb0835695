package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/traysonr/rover-control-core/internal/model"
)

// ASCIICodec is a line-oriented text codec used only for manual debugging;
// it is never interleaved with the binary codec on a live link.
//
// Outbound: "D <l> <r>\n", "S\n", "E\n".
// Inbound telemetry: "T <left_pwm> <right_pwm> <bus_mv> <fault> <age>\n".
type ASCIICodec struct{}

// EncodeDrive formats a drive line for the given normalized speeds.
func (ASCIICodec) EncodeDrive(left, right float64) string {
	return fmt.Sprintf("D %.4f %.4f\n", left, right)
}

// EncodeStop formats the stop line.
func (ASCIICodec) EncodeStop() string { return "S\n" }

// EncodeEstop formats the emergency-stop line.
func (ASCIICodec) EncodeEstop() string { return "E\n" }

// ParseLine parses one debug input line into a TeleopInput. Recognized
// forms: "D <throttle> <turn>", "S" (enable=false), "E" (estop=true).
func ParseLine(line string, now time.Time) (model.TeleopInput, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return model.TeleopInput{}, fmt.Errorf("protocol: empty debug input line")
	}
	switch fields[0] {
	case "D":
		if len(fields) != 3 {
			return model.TeleopInput{}, fmt.Errorf("protocol: malformed D line %q", line)
		}
		throttle, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return model.TeleopInput{}, fmt.Errorf("protocol: bad throttle in %q: %w", line, err)
		}
		turn, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return model.TeleopInput{}, fmt.Errorf("protocol: bad turn in %q: %w", line, err)
		}
		return model.TeleopInput{Throttle: throttle, Turn: turn, Enable: true, Ts: now}, nil
	case "S":
		return model.TeleopInput{Enable: false, Ts: now}, nil
	case "E":
		return model.TeleopInput{Enable: true, Estop: true, Ts: now}, nil
	default:
		return model.TeleopInput{}, fmt.Errorf("protocol: unrecognized debug input line %q", line)
	}
}

// DecodeTelemetryLine parses a "T <left_pwm> <right_pwm> <bus_mv> <fault> <age>" line.
func DecodeTelemetryLine(line string, now time.Time) (model.Telemetry, error) {
	fields := strings.Fields(line)
	if len(fields) != 6 || fields[0] != "T" {
		return model.Telemetry{}, fmt.Errorf("protocol: malformed telemetry line %q", line)
	}
	vals := make([]int64, 5)
	for i, f := range fields[1:] {
		v, err := strconv.ParseInt(f, 10, 32)
		if err != nil {
			return model.Telemetry{}, fmt.Errorf("protocol: bad field %d in %q: %w", i, line, err)
		}
		vals[i] = v
	}
	return model.Telemetry{
		LeftPWM:    int16(vals[0]),
		RightPWM:   int16(vals[1]),
		BusMV:      uint16(vals[2]),
		FaultFlags: uint16(vals[3]),
		AgeMS:      uint16(vals[4]),
		Ts:         now,
	}, nil
}

// ReadLines scans newline-delimited debug input from r, invoking onLine for
// each line read (trailing newline stripped). Returns when r is exhausted or
// an error other than io.EOF occurs.
func ReadLines(r io.Reader, onLine func(string)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		onLine(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return nil
}
