package relay

import (
	"context"
	"time"

	"scriptrelay/pkg/logger"
	"scriptrelay/pkg/protocol"

	"github.com/jonboulle/clockwork"
)

// Monitor drives the application-level liveness check. It runs two
// independent loops on the same interval: one enqueues a ping probe to
// every client, the other scans for clients whose last pong is older than
// the timeout and evicts them. Probe-send failures are never evicted by
// the probe loop itself; eviction belongs to the timeout scan and to the
// broadcast engine's own failure handling, so the two paths cannot race
// over the same client.
type Monitor struct {
	registry *Registry
	clock    clockwork.Clock
	interval time.Duration
	timeout  time.Duration
	log      *logger.Logger
}

// NewMonitor creates a heartbeat monitor. interval is the probe period,
// timeout the eviction threshold; they need not be equal.
func NewMonitor(registry *Registry, clock clockwork.Clock, interval, timeout time.Duration, log *logger.Logger) *Monitor {
	return &Monitor{
		registry: registry,
		clock:    clock,
		interval: interval,
		timeout:  timeout,
		log:      log,
	}
}

// Start launches the probe and timeout-scan loops. Both stop when the
// context is cancelled; connection churn never cancels a tick.
func (m *Monitor) Start(ctx context.Context) {
	go m.probeLoop(ctx)
	go m.scanLoop(ctx)
}

func (m *Monitor) probeLoop(ctx context.Context) {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.probeOnce()
		}
	}
}

func (m *Monitor) scanLoop(ctx context.Context) {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.scanOnce()
		}
	}
}

// probeOnce enqueues a ping to every client in one registry snapshot and
// returns the (sent, total) tally for observability.
func (m *Monitor) probeOnce() (sent, total int) {
	metricProbes.Inc()

	snapshot := m.registry.SnapshotSenders()
	total = len(snapshot)
	if total == 0 {
		return 0, 0
	}

	probe := protocol.PingFrame()
	for _, ref := range snapshot {
		if ref.Sender.TrySend(probe) {
			sent++
		}
	}

	if sent < total {
		m.log.DebugWith("heartbeat probe partially sent", "sent", sent, "total", total)
	}
	return sent, total
}

// scanOnce evicts every client whose last pong is strictly older than the
// timeout and returns the evicted identifiers.
func (m *Monitor) scanOnce() []uint64 {
	expired := m.registry.Expired(m.timeout)
	if len(expired) == 0 {
		return nil
	}

	removed := m.registry.Evict(expired)
	for _, id := range removed {
		metricEvictions.WithLabelValues("heartbeat_timeout").Inc()
		m.log.InfoWith("client heartbeat timed out", "clientID", id, "timeout", m.timeout.String())
	}
	return removed
}
