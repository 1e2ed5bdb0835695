package shaper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/traysonr/rover-control-core/internal/bus"
	"github.com/traysonr/rover-control-core/internal/model"
)

// Service is the bus's single subscriber of teleop_input and single
// publisher of drive_command: a single goroutine running Shape over each
// input as it arrives, so State needs no locking.
type Service struct {
	b   *bus.Bus
	cfg Config
	log *slog.Logger
}

// NewService constructs a Service with the given Config (use DefaultConfig
// when unsure).
func NewService(b *bus.Bus, cfg Config, log *slog.Logger) *Service {
	return &Service{b: b, cfg: cfg, log: log}
}

// Run subscribes to teleop_input and publishes a DriveCommand for every
// input received, until ctx is canceled. Run does not block: it starts its
// own goroutine, registered on wg, and returns; wg.Wait() for it during
// shutdown.
func (s *Service) Run(ctx context.Context, wg *sync.WaitGroup) {
	q := bus.Subscribe[model.TeleopInput](s.b, "teleop_input", bus.DefaultCapacity)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer bus.Unsubscribe(s.b, "teleop_input", q)
		defer s.log.Info("shaper_stop")

		var state State
		for {
			select {
			case <-ctx.Done():
				return
			case <-q.Closed:
				return
			case in, ok := <-q.C:
				if !ok {
					return
				}
				now := in.Ts
				if now.IsZero() {
					now = time.Now()
				}
				var cmd model.DriveCommand
				cmd, state = Shape(s.cfg, state, in, now)
				bus.Publish(s.b, "drive_command", cmd)
			}
		}
	}()
}
