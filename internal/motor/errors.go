package motor

import (
	"errors"

	"github.com/traysonr/rover-control-core/internal/metrics"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrPortOpen   = errors.New("port_open")
	ErrPortRead   = errors.New("port_read")
	ErrPortWrite  = errors.New("port_write")
	ErrGPIOClaim  = errors.New("gpio_claim")
	ErrGPIOWrite  = errors.New("gpio_write")
	ErrTxOverflow = errors.New("tx_overflow")
)

// mapErrToMetric maps wrapped sentinel errors to metrics error labels.
func mapErrToMetric(err error) string {
	switch {
	case errors.Is(err, ErrPortOpen):
		return metrics.ErrSerialOpen
	case errors.Is(err, ErrPortRead):
		return metrics.ErrSerialRead
	case errors.Is(err, ErrPortWrite):
		return metrics.ErrSerialWrite
	case errors.Is(err, ErrTxOverflow):
		return metrics.ErrSerialOverflow
	case errors.Is(err, ErrGPIOClaim):
		return metrics.ErrGPIOClaim
	case errors.Is(err, ErrGPIOWrite):
		return metrics.ErrGPIOWrite
	default:
		return "other"
	}
}
