package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_connected_clients",
		Help: "Number of currently connected executor clients.",
	})

	metricBroadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_broadcasts_total",
		Help: "Broadcast attempts by outcome.",
	}, []string{"outcome"})

	metricSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_sends_total",
		Help: "Per-client enqueue attempts during broadcasts by result.",
	}, []string{"result"})

	metricEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_evictions_total",
		Help: "Clients evicted from the registry by reason.",
	}, []string{"reason"})

	metricProbes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_heartbeat_probes_total",
		Help: "Heartbeat probe ticks executed.",
	})
)
