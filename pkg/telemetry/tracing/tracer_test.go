package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/moderation"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.TracingConfig
		wantErr bool
		enabled bool
	}{
		{
			name:    "nil config",
			config:  nil,
			wantErr: true,
		},
		{
			name: "disabled tracing",
			config: &config.TracingConfig{
				Enabled:     false,
				ServiceName: "warden",
			},
		},
		{
			name: "enabled with always sampler",
			config: &config.TracingConfig{
				Enabled:     true,
				Sampler:     SamplerAlways,
				Endpoint:    "localhost:4317",
				ServiceName: "warden",
				OTLP:        config.OTLPConfig{Insecure: true, Timeout: time.Second},
			},
			enabled: true,
		},
		{
			name: "invalid sampler",
			config: &config.TracingConfig{
				Enabled:     true,
				Sampler:     "sometimes",
				Endpoint:    "localhost:4317",
				ServiceName: "warden",
			},
			wantErr: true,
		},
		{
			name: "ratio out of range",
			config: &config.TracingConfig{
				Enabled:     true,
				Sampler:     SamplerRatio,
				SampleRatio: 1.5,
				Endpoint:    "localhost:4317",
				ServiceName: "warden",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config, "test")
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			defer tracer.Shutdown(context.Background())

			if tracer.Enabled() != tt.enabled {
				t.Errorf("Enabled() = %v, want %v", tracer.Enabled(), tt.enabled)
			}
		})
	}
}

func TestTracer_DisabledProducesNoopSpans(t *testing.T) {
	tracer, err := New(&config.TracingConfig{Enabled: false}, "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, span := tracer.Start(context.Background(), "moderation.evaluate")
	defer span.End()

	if span.SpanContext().IsValid() {
		t.Error("expected invalid span context from disabled tracer")
	}
	if id := TraceID(ctx); id != "" {
		t.Errorf("TraceID() = %q, want empty", id)
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestTraceID(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	if got := TraceID(ctx); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("TraceID() = %q", got)
	}
	if got := TraceID(context.Background()); got != "" {
		t.Errorf("TraceID() on empty context = %q, want empty", got)
	}
}

func TestSpanHelpers_AcceptNoopSpans(t *testing.T) {
	tracer, _ := New(&config.TracingConfig{Enabled: false}, "test")
	_, span := tracer.Start(context.Background(), "test")
	defer span.End()

	// None of these may panic on a noop span.
	SetError(span, errors.New("boom"))
	SetError(span, nil)
	SetStatus(span, nil)
	SetStatus(span, errors.New("boom"))
	SetEventAttributes(span, moderation.ContentEvent{RoomID: "room-1", ParticipantID: "p-1", EventID: "evt-1"},
		moderation.Classification{Category: moderation.CategorySpam, Confidence: 0.9})
	SetDecisionAttributes(span, &moderation.Decision{ID: "dec-1", Action: moderation.ActionWarn, Status: moderation.StatusPending})
	SetDecisionAttributes(span, nil)
	SetPolicyAttributes(span, "policy-spam", true)
}
