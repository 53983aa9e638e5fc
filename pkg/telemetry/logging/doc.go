// Package logging builds the process slog.Logger.
//
// The returned logger wraps a JSON or text handler with two behaviours:
//
//   - Records logged through the *Context methods carry request_id,
//     decision_id and room_id from the context, plus trace_id when a span
//     is active.
//   - With RedactContent set, the content and participant_identity
//     attributes are replaced with [REDACTED], and emails, phone numbers
//     and IPv4 addresses inside other string values are masked.
//
// Usage:
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", RedactContent: true})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	slog.InfoContext(ctx, "decision created", "content", text) // content is redacted
package logging
