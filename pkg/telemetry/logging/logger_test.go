package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/warden/pkg/config"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("failed to decode log line %q: %v", buf.String(), err)
	}
	return m
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "valid JSON config", config: Config{Level: "info", Format: "json", RedactContent: true}},
		{name: "valid text config", config: Config{Level: "debug", Format: "text"}},
		{name: "valid console config", config: Config{Level: "warn", Format: "console"}},
		{name: "defaults", config: Config{}},
		{name: "invalid log level", config: Config{Level: "invalid"}, wantErr: true},
		{name: "invalid format", config: Config{Format: "invalid"}, wantErr: true},
		{
			name: "invalid redact pattern",
			config: Config{
				RedactContent:  true,
				RedactPatterns: []config.RedactPattern{{Name: "broken", Pattern: "("}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.Writer = &bytes.Buffer{}
			logger, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	logger.Info("ignored")
	if buf.Len() != 0 {
		t.Errorf("info record should be filtered, got %q", buf.String())
	}

	logger.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("warn record missing, got %q", buf.String())
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: "text", Writer: &buf})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	logger.Info("decision created", "action", "warn")
	if !strings.Contains(buf.String(), "action=warn") {
		t.Errorf("expected text output, got %q", buf.String())
	}
}

func TestLogger_RedactsContent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{RedactContent: true, Writer: &buf})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	logger.Info("event received",
		"content", "you are terrible",
		"participant_identity", "alice",
		"note", "reach me at alice@example.com from 10.0.0.7",
		"confidence", 0.91,
	)

	m := decodeLine(t, &buf)
	if m["content"] != Redacted {
		t.Errorf("content = %v, want %s", m["content"], Redacted)
	}
	if m["participant_identity"] != Redacted {
		t.Errorf("participant_identity = %v, want %s", m["participant_identity"], Redacted)
	}
	note := m["note"].(string)
	if strings.Contains(note, "alice@example.com") || strings.Contains(note, "10.0.0.7") {
		t.Errorf("note not redacted: %q", note)
	}
	if m["confidence"] != 0.91 {
		t.Errorf("confidence = %v, want 0.91", m["confidence"])
	}
}

func TestLogger_RedactsWithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{RedactContent: true, Writer: &buf})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	logger.With("participant_identity", "bob").Info("grouped",
		slog.Group("event", slog.String("content", "spam spam"), slog.String("room_id", "room-1")),
		"error", errors.New("webhook rejected bob@example.org"),
	)

	m := decodeLine(t, &buf)
	if m["participant_identity"] != Redacted {
		t.Errorf("With() attribute not redacted: %v", m["participant_identity"])
	}
	event := m["event"].(map[string]any)
	if event["content"] != Redacted {
		t.Errorf("grouped content not redacted: %v", event["content"])
	}
	if event["room_id"] != "room-1" {
		t.Errorf("room_id = %v, want room-1", event["room_id"])
	}
	if strings.Contains(m["error"].(string), "bob@example.org") {
		t.Errorf("error not redacted: %v", m["error"])
	}
}

func TestLogger_NoRedactionWhenDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	logger.Info("event received", "content", "hello")
	if m := decodeLine(t, &buf); m["content"] != "hello" {
		t.Errorf("content = %v, want hello", m["content"])
	}
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithDecisionID(ctx, "dec-abc")
	ctx = WithRoomID(ctx, "room-9")

	logger.InfoContext(ctx, "decision created")

	m := decodeLine(t, &buf)
	want := map[string]string{
		"request_id":  "req-1",
		"decision_id": "dec-abc",
		"room_id":     "room-9",
		"trace_id":    "4bf92f3577b34da6a3ce929d0e0e4736",
	}
	for k, v := range want {
		if m[k] != v {
			t.Errorf("%s = %v, want %s", k, m[k], v)
		}
	}
}

func TestFromConfig(t *testing.T) {
	var buf bytes.Buffer
	cfg := FromConfig(&config.LoggingConfig{
		Level:         "debug",
		Format:        "text",
		AddSource:     true,
		RedactContent: true,
	}, &buf)

	if cfg.Level != "debug" || cfg.Format != "text" || !cfg.AddSource || !cfg.RedactContent {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Writer != &buf {
		t.Error("writer not carried over")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
