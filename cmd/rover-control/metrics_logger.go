package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/traysonr/rover-control-core/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"uart_tx", snap.UartFramesSent,
					"uart_rx", snap.UartFramesReceived,
					"version_errors", snap.VersionErrors,
					"crc_errors", snap.CRCErrors,
					"decode_errors", snap.DecodeErrors,
					"watchdog_stale", snap.WatchdogStale,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
