package engine

import (
	"context"
	"net"
	"net/url"
	"time"

	"github.com/xpanvictor/presenced/pkg/Logger"
)

// ReachabilityProbe answers whether the remote service is reachable right
// now. The default implementation dials the API host's TCP port.
type ReachabilityProbe interface {
	Reachable(ctx context.Context) bool
}

type dialProbe struct {
	addr    string
	timeout time.Duration
}

// NewDialProbe builds a probe for the remote API's base URL.
func NewDialProbe(baseURL string) ReachabilityProbe {
	addr := "slack.com:443"
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		host := u.Host
		if u.Port() == "" {
			host = net.JoinHostPort(u.Hostname(), "443")
		}
		addr = host
	}
	return &dialProbe{addr: addr, timeout: 3 * time.Second}
}

func (p *dialProbe) Reachable(ctx context.Context) bool {
	d := net.Dialer{Timeout: p.timeout}
	conn, err := d.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// ConnectivityWatcher tracks reachability transitions. On the transition
// from unreachable to reachable it fires onOnline, which realigns the
// applied cache with remote truth and runs an immediate reconciliation
// pass. Nothing is queued while offline: writes simply fail through the
// normal retry policy and the next pass retries.
type ConnectivityWatcher struct {
	probe    ReachabilityProbe
	logger   *Logger.Logger
	online   bool
	seeded   bool
	onOnline func(ctx context.Context)
	onChange func(online bool)
}

func NewConnectivityWatcher(probe ReachabilityProbe, logger *Logger.Logger) *ConnectivityWatcher {
	return &ConnectivityWatcher{probe: probe, logger: logger}
}

func (w *ConnectivityWatcher) OnOnline(fn func(ctx context.Context)) {
	w.onOnline = fn
}

func (w *ConnectivityWatcher) OnChange(fn func(online bool)) {
	w.onChange = fn
}

// Check probes once and fires callbacks on transitions. Called only from
// the engine's connectivity job, so it needs no lock of its own.
func (w *ConnectivityWatcher) Check(ctx context.Context) {
	reachable := w.probe.Reachable(ctx)
	wasOnline, seeded := w.online, w.seeded
	w.online = reachable
	w.seeded = true

	if seeded && reachable == wasOnline {
		return
	}
	if w.onChange != nil {
		w.onChange(reachable)
	}
	if reachable && seeded && !wasOnline {
		w.logger.Info("connectivity restored, triggering resync")
		if w.onOnline != nil {
			w.onOnline(ctx)
		}
	}
}
