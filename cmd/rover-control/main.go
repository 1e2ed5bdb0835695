package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/traysonr/rover-control-core/internal/discovery"
	"github.com/traysonr/rover-control-core/internal/metrics"
	"github.com/traysonr/rover-control-core/internal/shaper"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("rover-control %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(2)
	}

	l := setupLogger(cfg.logFormat, cfg.logLevel)
	b := initBus(l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	backend, err := initBackend(cfg, b, l)
	if err != nil {
		l.Error("backend_init_error", "error", err)
		return
	}
	if err := backend.Start(ctx); err != nil {
		l.Error("backend_start_error", "error", err)
		return
	}
	defer func() {
		if serr := backend.Stop(); serr != nil {
			l.Error("backend_stop_error", "error", serr)
		}
	}()

	shaperCfg := shaper.Config{
		MaxSpeed: cfg.teleopMaxSpeed,
		Deadband: cfg.teleopDeadband,
		SlewRate: cfg.teleopSlewRate,
	}
	shaper.NewService(b, shaperCfg, l.With("component", "shaper")).Run(ctx, &wg)

	if cfg.debugStdin {
		startDebugStdin(ctx, b, l.With("component", "debug_stdin"), &wg)
	}

	// Ready once the backend is open and running; backend.Start already
	// returned without error by this point.
	metrics.SetReadinessFunc(func() bool { return ctx.Err() == nil })

	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srv := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srv.Shutdown(context.Background()) }()
	}

	if cfg.mdnsEnable {
		port := metricsPort(cfg.metricsAddr)
		dcfg := discovery.Config{Enable: true, Name: cfg.mdnsName, Version: version, Commit: commit}
		cleanupMDNS, derr := discovery.Start(ctx, dcfg, port)
		if derr != nil {
			l.Warn("mdns_start_failed", "error", derr)
		} else {
			l.Info("mdns_started", "port", port)
			defer cleanupMDNS()
		}
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	wg.Wait()
}

// metricsPort extracts the numeric port from an addr of the form
// "host:port" or ":port"; returns 0 if addr is empty or unparsable.
func metricsPort(addr string) int {
	if addr == "" {
		return 0
	}
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return 0
	}
	return n
}
