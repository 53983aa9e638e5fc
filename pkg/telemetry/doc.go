// Package telemetry groups the observability packages used by Warden.
//
// # Components
//
//   - logging: slog setup with context fields and content redaction
//   - metrics: Prometheus collectors for the engine, review, audit log,
//     broadcaster and HTTP API
//   - tracing: OpenTelemetry tracer with an OTLP/gRPC exporter
//   - health: liveness, readiness and version endpoints
//
// # Usage
//
//	cfg := config.GetConfig()
//
//	logger, err := logging.New(logging.FromConfig(&cfg.Telemetry.Logging, os.Stderr))
//	slog.SetDefault(logger)
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordDecision("spam", "mute", time.Since(start))
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(context.Background())
//
// # Redaction
//
// With telemetry.logging.redact_content, participant content and identities
// are masked in every log attribute, and emails, IPv4 addresses and phone
// numbers are replaced inside other string values. Custom patterns can be
// configured.
package telemetry
