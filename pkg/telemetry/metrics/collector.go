package metrics

import (
	"strconv"
	"time"

	"mercator-hq/warden/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector owns every Prometheus metric Warden exports.
//
// All Record methods are safe on a nil *Collector and on a collector whose
// config has Enabled=false, so components can hold an optional collector
// without guarding each call.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	engineMetrics    *EngineMetrics
	auditMetrics     *AuditMetrics
	broadcastMetrics *BroadcastMetrics
	httpMetrics      *HTTPMetrics
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a new registry is created and
// the Go runtime and process collectors are registered on it.
//
// Example:
//
//	cfg := &config.MetricsConfig{Enabled: true, Namespace: "warden"}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = prometheus.DefBuckets
	}

	return &Collector{
		config:           cfg,
		registry:         registry,
		engineMetrics:    NewEngineMetrics(cfg, registry),
		auditMetrics:     NewAuditMetrics(cfg, registry),
		broadcastMetrics: NewBroadcastMetrics(cfg, registry),
		httpMetrics:      NewHTTPMetrics(cfg, registry),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordDecision records a created decision and how long evaluation took.
func (c *Collector) RecordDecision(category, action string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.engineMetrics.RecordDecision(category, action, duration)
}

// RecordExecution records an action executor outcome: "success", "failure"
// or "timeout".
func (c *Collector) RecordExecution(action, outcome string) {
	if !c.enabled() {
		return
	}
	c.engineMetrics.executionsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordDedupHit records an evaluation answered from the event-id cache.
func (c *Collector) RecordDedupHit() {
	if !c.enabled() {
		return
	}
	c.engineMetrics.dedupHitsTotal.Inc()
}

// RecordReviewOperation records a review or overturn attempt.
func (c *Collector) RecordReviewOperation(operation, outcome string) {
	if !c.enabled() {
		return
	}
	c.engineMetrics.reviewOpsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordAuditEntry records a successfully appended audit entry.
func (c *Collector) RecordAuditEntry(actionType, actor string) {
	if !c.enabled() {
		return
	}
	c.auditMetrics.entriesTotal.WithLabelValues(actionType, actor).Inc()
}

// RecordAuditAppendFailure records an append that failed after all retries.
func (c *Collector) RecordAuditAppendFailure() {
	if !c.enabled() {
		return
	}
	c.auditMetrics.appendFailuresTotal.Inc()
}

// RecordAuditAppendRetry records a single retried append attempt.
func (c *Collector) RecordAuditAppendRetry() {
	if !c.enabled() {
		return
	}
	c.auditMetrics.appendRetriesTotal.Inc()
}

// RecordBroadcastEvent records a published event by type.
func (c *Collector) RecordBroadcastEvent(eventType string) {
	if !c.enabled() {
		return
	}
	c.broadcastMetrics.eventsTotal.WithLabelValues(eventType).Inc()
}

// RecordBroadcastDropped records events dropped from a full subscriber queue.
func (c *Collector) RecordBroadcastDropped(n int) {
	if !c.enabled() || n <= 0 {
		return
	}
	c.broadcastMetrics.droppedTotal.Add(float64(n))
}

// SetBroadcastSubscribers sets the current subscriber count.
func (c *Collector) SetBroadcastSubscribers(n int) {
	if !c.enabled() {
		return
	}
	c.broadcastMetrics.subscribers.Set(float64(n))
}

// RecordHTTPRequest records a served HTTP request. route is the router
// pattern, not the raw path, to bound cardinality.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if !c.enabled() {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.httpMetrics.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpMetrics.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
