package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tutorconnect"

// Metrics are the hub's prometheus collectors.
type Metrics struct {
	Connections prometheus.Gauge
	Rooms       prometheus.Gauge
	Joins       prometheus.Counter
	Leaves      *prometheus.CounterVec // reason: leave|disconnect
	Relayed     *prometheus.CounterVec // type, mode: direct|broadcast
	Dropped     *prometheus.CounterVec // reason
	Lifecycle   *prometheus.CounterVec // sink, result
}

// New registers the collectors on reg. A nil reg gets a private registry so
// tests can build as many hubs as they like.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "signaling",
			Name:      "connections",
			Help:      "Currently registered signaling connections.",
		}),
		Rooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "signaling",
			Name:      "rooms",
			Help:      "Rooms with at least one member.",
		}),
		Joins: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signaling",
			Name:      "joins_total",
			Help:      "Joins that changed room membership.",
		}),
		Leaves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signaling",
			Name:      "departures_total",
			Help:      "Room departures by reason.",
		}, []string{"reason"}),
		Relayed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signaling",
			Name:      "relayed_total",
			Help:      "Messages relayed, per recipient.",
		}, []string{"type", "mode"}),
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signaling",
			Name:      "dropped_total",
			Help:      "Messages dropped by reason.",
		}, []string{"reason"}),
		Lifecycle: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "events_total",
			Help:      "Lifecycle events handled per sink and result.",
		}, []string{"sink", "result"}),
	}
}
