package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Counters exposed on /metrics. Labels stay low-cardinality: actor kind and
// message/dispatch kind only, never room or user names.
var (
	ConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardline_connections_total",
			Help: "WebSocket connections accepted, by actor kind.",
		},
		[]string{"kind"},
	)

	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardline_messages_total",
			Help: "Frames processed by room actors, by frame kind.",
		},
		[]string{"kind"},
	)

	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardline_dispatch_total",
			Help: "Alert fan-out dispatches, by target kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(ConnectionsTotal, MessagesTotal, DispatchTotal)
}
