package metrics

import (
	"mercator-hq/warden/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// AuditMetrics tracks audit log appends.
//
// Metrics:
//   - warden_audit_entries_total: Appended entries by action type and actor
//   - warden_audit_append_retries_total: Retried append attempts
//   - warden_audit_append_failures_total: Appends that failed after all retries
type AuditMetrics struct {
	entriesTotal        *prometheus.CounterVec
	appendRetriesTotal  prometheus.Counter
	appendFailuresTotal prometheus.Counter
}

// NewAuditMetrics creates and registers audit metrics with the provided registry.
func NewAuditMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AuditMetrics {
	am := &AuditMetrics{
		entriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "audit",
				Name:      "entries_total",
				Help:      "Total number of audit entries appended",
			},
			[]string{"action_type", "actor"},
		),
		appendRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "audit",
				Name:      "append_retries_total",
				Help:      "Total number of retried audit append attempts",
			},
		),
		appendFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "audit",
				Name:      "append_failures_total",
				Help:      "Total number of audit appends that failed after retries",
			},
		),
	}

	registry.MustRegister(am.entriesTotal, am.appendRetriesTotal, am.appendFailuresTotal)
	return am
}
