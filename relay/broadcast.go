package relay

import (
	"scriptrelay/pkg/logger"
)

// Broadcaster fans one payload out to every registered client
type Broadcaster struct {
	registry *Registry
	log      *logger.Logger
}

// NewBroadcaster creates a broadcaster over the given registry
func NewBroadcaster(registry *Registry, log *logger.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		log:      log,
	}
}

// Broadcast attempts best-effort delivery of payload to every client in a
// registry snapshot and returns the (delivered, total) tally. One client's
// failure never prevents delivery to the others. Clients whose enqueue
// failed are evicted in a single follow-up pass, after the send loop, so
// the registry lock is never held across a send.
func (b *Broadcaster) Broadcast(payload []byte) (delivered, total int) {
	snapshot := b.registry.SnapshotSenders()
	total = len(snapshot)
	if total == 0 {
		metricBroadcasts.WithLabelValues(outcomeLabel(0, 0)).Inc()
		return 0, 0
	}

	var failed []uint64
	for _, ref := range snapshot {
		if ref.Sender.TrySend(payload) {
			delivered++
			metricSends.WithLabelValues("delivered").Inc()
		} else {
			// A client that disconnected between snapshot and send lands
			// here; that is a failed send, not an error.
			failed = append(failed, ref.ID)
			metricSends.WithLabelValues("failed").Inc()
			b.log.WarnWith("failed to send to client", "clientID", ref.ID)
		}
	}

	if len(failed) > 0 {
		removed := b.registry.Evict(failed)
		for _, id := range removed {
			metricEvictions.WithLabelValues("send_failure").Inc()
			b.log.InfoWith("client evicted after failed send", "clientID", id)
		}
	}

	metricBroadcasts.WithLabelValues(outcomeLabel(delivered, total)).Inc()
	return delivered, total
}

func outcomeLabel(delivered, total int) string {
	switch {
	case total == 0:
		return "no_clients"
	case delivered == total:
		return "delivered"
	case delivered == 0:
		return "failed"
	default:
		return "partial"
	}
}
