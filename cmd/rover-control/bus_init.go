package main

import (
	"log/slog"

	"github.com/traysonr/rover-control-core/internal/bus"
)

// initBus constructs the shared bus.Bus and logs build info, mirroring the
// teacher's hub construction in cmd/can-server/hub_init.go.
func initBus(l *slog.Logger) *bus.Bus {
	l.Info("bus_init", "version", version, "commit", commit, "date", date)
	return bus.New()
}
