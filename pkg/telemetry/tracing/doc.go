// Package tracing provides OpenTelemetry distributed tracing for warden.
//
// When tracing is enabled, New installs a global tracer provider that
// exports over OTLP/gRPC and registers the W3C Trace Context and Baggage
// propagators. Components obtain tracers with
// otel.Tracer(tracing.InstrumentationName) and therefore produce noop spans
// until tracing is enabled.
//
// Spans cover decision evaluation, executor calls, reviews and overturns.
// Attributes carry ids, categories, actions and confidences, never the
// moderated content.
//
// # Sampling
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    sampler: ratio
//	    sample_ratio: 0.1
//	    endpoint: localhost:4317
package tracing
