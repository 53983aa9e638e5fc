package metrics

import (
	"time"

	"mercator-hq/warden/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics tracks decision creation, execution and review.
//
// Metrics:
//   - warden_engine_decisions_total: Decisions created by category and action
//   - warden_engine_evaluation_duration_seconds: Evaluate latency
//   - warden_engine_executions_total: Executor outcomes by action
//   - warden_engine_dedup_hits_total: Evaluations answered from the event-id cache
//   - warden_review_operations_total: Review and overturn outcomes
type EngineMetrics struct {
	decisionsTotal     *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	executionsTotal    *prometheus.CounterVec
	dedupHitsTotal     prometheus.Counter
	reviewOpsTotal     *prometheus.CounterVec
}

// NewEngineMetrics creates and registers engine metrics with the provided registry.
func NewEngineMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EngineMetrics {
	em := &EngineMetrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "engine",
				Name:      "decisions_total",
				Help:      "Total number of moderation decisions created",
			},
			[]string{"category", "action"},
		),

		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "engine",
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of content evaluation in seconds, including executor calls",
				Buckets:   cfg.DurationBuckets,
			},
		),

		executionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "engine",
				Name:      "executions_total",
				Help:      "Total number of action executor invocations by outcome",
			},
			[]string{"action", "outcome"},
		),

		dedupHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "engine",
				Name:      "dedup_hits_total",
				Help:      "Total number of redelivered events answered with an existing decision",
			},
		),

		reviewOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "review",
				Name:      "operations_total",
				Help:      "Total number of review and overturn operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
	}

	registry.MustRegister(
		em.decisionsTotal,
		em.evaluationDuration,
		em.executionsTotal,
		em.dedupHitsTotal,
		em.reviewOpsTotal,
	)

	return em
}

// RecordDecision increments the decision counter and observes the duration.
func (em *EngineMetrics) RecordDecision(category, action string, duration time.Duration) {
	em.decisionsTotal.WithLabelValues(category, action).Inc()
	em.evaluationDuration.Observe(duration.Seconds())
}
