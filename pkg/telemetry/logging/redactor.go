package logging

import (
	"fmt"
	"log/slog"
	"regexp"

	"mercator-hq/warden/pkg/config"
)

// Redacted replaces the whole value of a sensitive attribute.
const Redacted = "[REDACTED]"

// Built-in pattern names.
const (
	PatternEmail = "email"
	PatternPhone = "phone"
	PatternIPv4  = "ipv4"
)

// sensitiveKeys are attribute keys whose values are never logged.
var sensitiveKeys = map[string]struct{}{
	"content":              {},
	"participant_identity": {},
}

// Redactor masks participant content and identifying values in log
// attributes.
type Redactor struct {
	patterns []redactPattern
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// NewRedactor creates a Redactor with the built-in patterns followed by
// custom ones. An invalid custom pattern is an error.
func NewRedactor(custom []config.RedactPattern) (*Redactor, error) {
	r := &Redactor{
		patterns: []redactPattern{
			{
				name:        PatternEmail,
				regex:       regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
				replacement: "***@***",
			},
			{
				name:        PatternIPv4,
				regex:       regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
				replacement: "*.*.*.*",
			},
			{
				name:        PatternPhone,
				regex:       regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`),
				replacement: "***-***-****",
			},
		},
	}

	for _, p := range custom {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("redact pattern %q: %w", p.Name, err)
		}
		r.patterns = append(r.patterns, redactPattern{
			name:        p.Name,
			regex:       regex,
			replacement: p.Replacement,
		})
	}

	return r, nil
}

// RedactString applies every pattern to value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// RedactAttr returns a with sensitive values masked. Groups are walked
// recursively.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[a.Key]; ok {
		return slog.String(a.Key, Redacted)
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, r.RedactString(v.String()))
	case slog.KindGroup:
		group := v.Group()
		out := make([]slog.Attr, len(group))
		for i, ga := range group {
			out[i] = r.RedactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	case slog.KindAny:
		if err, ok := v.Any().(error); ok && err != nil {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
		return slog.Attr{Key: a.Key, Value: v}
	default:
		return slog.Attr{Key: a.Key, Value: v}
	}
}
