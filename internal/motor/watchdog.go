package motor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/traysonr/rover-control-core/internal/metrics"
	"github.com/traysonr/rover-control-core/internal/model"
)

// Stale reports whether a command timestamped cmdTs is too old, relative to
// now, to still be trusted by a backend (spec's "absent" rule: age >
// maxAge).
func Stale(cmdTs, now time.Time, maxAge time.Duration) bool {
	return now.Sub(cmdTs) > maxAge
}

// SafeCommand returns the substitute a backend drives the hardware with
// once the active command has gone stale: zero speeds, enable_request kept
// true and estop forced false so firmware never latches an estop from a
// watchdog timeout.
func SafeCommand(now time.Time) model.DriveCommand {
	return model.DriveCommand{EnableRequest: true, Estop: false, Ts: now, Source: "watchdog_stale"}
}

// NeverCommand is the substitute used when no command has ever arrived:
// disabled outright, distinct from the stale-but-previously-seen case.
func NeverCommand(now time.Time) model.DriveCommand {
	return model.DriveCommand{EnableRequest: false, Estop: false, Ts: now, Source: "watchdog_never"}
}

// staleWarner rate-limits the "stale command" warning to at most once every
// warnInterval, mirroring hardware_gateway.py's _last_stale_warn_time /
// _stale_warn_interval pair.
type staleWarner struct {
	mu           sync.Mutex
	last         time.Time
	warnInterval time.Duration
}

func newStaleWarner(warnInterval time.Duration) *staleWarner {
	return &staleWarner{warnInterval: warnInterval}
}

// Warn logs a stale-command warning if at least warnInterval has elapsed
// since the last one, and always increments the stale counter.
func (w *staleWarner) Warn(log *slog.Logger, now time.Time, age, maxAge time.Duration) {
	metrics.IncWatchdogStale()
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.last.IsZero() && now.Sub(w.last) < w.warnInterval {
		return
	}
	w.last = now
	log.Warn("stale_command", "age", age, "max_age", maxAge)
}
