// Package discovery advertises this rover's metrics/health endpoint over
// mDNS so an operator-side tool can find it on the LAN without a hardcoded
// address.
package discovery

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/grandcat/zeroconf"
)

const serviceType = "_rover-control._tcp"

// Config holds the advertisement's tunables (spec.md §6's discovery
// surface).
type Config struct {
	Enable  bool
	Name    string // instance name; hostname-derived default if empty
	Version string
	Commit  string
}

// Start registers the service via mDNS and returns a cleanup function. If
// cfg.Enable is false, Start is a no-op returning a no-op cleanup.
func Start(ctx context.Context, cfg Config, port int) (func(), error) {
	if !cfg.Enable {
		return func() {}, nil
	}
	instance := cfg.Name
	if instance == "" {
		host, _ := os.Hostname()
		instance = fmt.Sprintf("rover-control-%s", host)
	}
	meta := []string{
		"version=" + cfg.Version,
		"commit=" + cfg.Commit,
	}
	svc, err := zeroconf.Register(instance, serviceType, "local.", port, meta, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		svc.Shutdown()
	}()
	return func() { close(done); svc.Shutdown(); time.Sleep(50 * time.Millisecond) }, nil
}
