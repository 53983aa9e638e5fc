package logging

import (
	"log/slog"
	"strings"
	"testing"

	"mercator-hq/warden/pkg/config"
)

func TestRedactor_RedactString(t *testing.T) {
	r, err := NewRedactor(nil)
	if err != nil {
		t.Fatalf("NewRedactor() failed: %v", err)
	}

	tests := []struct {
		name   string
		input  string
		hidden string
	}{
		{name: "email", input: "contact alice@example.com now", hidden: "alice@example.com"},
		{name: "ipv4", input: "client 192.168.1.100 connected", hidden: "192.168.1.100"},
		{name: "phone", input: "call 555-123-4567", hidden: "555-123-4567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.RedactString(tt.input)
			if strings.Contains(got, tt.hidden) {
				t.Errorf("RedactString(%q) = %q, still contains %q", tt.input, got, tt.hidden)
			}
		})
	}

	if got := r.RedactString("mute applied"); got != "mute applied" {
		t.Errorf("clean string changed: %q", got)
	}
}

func TestRedactor_CustomPattern(t *testing.T) {
	r, err := NewRedactor([]config.RedactPattern{
		{Name: "room_token", Pattern: `rt_[a-z0-9]+`, Replacement: "rt_***"},
	})
	if err != nil {
		t.Fatalf("NewRedactor() failed: %v", err)
	}

	if got := r.RedactString("joined with rt_abc123"); got != "joined with rt_***" {
		t.Errorf("RedactString() = %q", got)
	}
}

func TestRedactor_RedactAttr(t *testing.T) {
	r, err := NewRedactor(nil)
	if err != nil {
		t.Fatalf("NewRedactor() failed: %v", err)
	}

	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{name: "content key", attr: slog.String("content", "anything"), want: Redacted},
		{name: "identity key", attr: slog.String("participant_identity", "alice"), want: Redacted},
		{name: "non-string sensitive key", attr: slog.Int("content", 42), want: Redacted},
		{name: "ordinary key", attr: slog.String("action", "mute"), want: "mute"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.RedactAttr(tt.attr)
			if got.Value.String() != tt.want {
				t.Errorf("RedactAttr() = %q, want %q", got.Value.String(), tt.want)
			}
		})
	}

	if got := r.RedactAttr(slog.Float64("confidence", 0.5)); got.Value.Float64() != 0.5 {
		t.Errorf("numeric value changed: %v", got.Value)
	}
}
