package main

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/traysonr/rover-control-core/internal/bus"
	"github.com/traysonr/rover-control-core/internal/protocol"
)

// startDebugStdin reads newline-delimited "D"/"S"/"E" lines from stdin and
// publishes each as a TeleopInput, standing in for the excluded
// HTTP/WebSocket operator link during manual bench testing.
func startDebugStdin(ctx context.Context, b *bus.Bus, l *slog.Logger, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.Info("debug_stdin_start")
		err := protocol.ReadLines(os.Stdin, func(line string) {
			if ctx.Err() != nil {
				return
			}
			in, perr := protocol.ParseLine(line, time.Now())
			if perr != nil {
				l.Warn("debug_stdin_parse_error", "error", perr, "line", line)
				return
			}
			bus.Publish(b, "teleop_input", in)
		})
		if err != nil {
			l.Error("debug_stdin_error", "error", err)
		}
		l.Info("debug_stdin_stop")
	}()
}
