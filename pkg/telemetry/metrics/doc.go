// Package metrics provides Prometheus metrics for Warden.
//
// A single Collector owns a registry and the metric families for the
// decision engine, review service, audit log, broadcaster and HTTP API:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordDecision("spam", "warn", 3*time.Millisecond)
//	collector.RecordExecution("warn", "success")
//	router.Handle("/metrics", collector.Handler())
//
// Label values are drawn from closed enums (category, action, action type,
// actor) or router patterns, so cardinality is bounded without a limiter.
package metrics
