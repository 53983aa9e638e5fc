package metrics

import (
	"mercator-hq/warden/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// BroadcastMetrics tracks event fan-out.
//
// Metrics:
//   - warden_broadcast_events_total: Published events by type
//   - warden_broadcast_dropped_total: Events dropped from full subscriber queues
//   - warden_broadcast_subscribers: Current subscriber count
type BroadcastMetrics struct {
	eventsTotal  *prometheus.CounterVec
	droppedTotal prometheus.Counter
	subscribers  prometheus.Gauge
}

// NewBroadcastMetrics creates and registers broadcast metrics with the provided registry.
func NewBroadcastMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *BroadcastMetrics {
	bm := &BroadcastMetrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "broadcast",
				Name:      "events_total",
				Help:      "Total number of events published",
			},
			[]string{"type"},
		),
		droppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "broadcast",
				Name:      "dropped_total",
				Help:      "Total number of events dropped because a subscriber queue was full",
			},
		),
		subscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "broadcast",
				Name:      "subscribers",
				Help:      "Current number of subscribers",
			},
		),
	}

	registry.MustRegister(bm.eventsTotal, bm.droppedTotal, bm.subscribers)
	return bm
}
