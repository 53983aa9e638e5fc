package executor

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/engine"
	"mercator-hq/warden/pkg/moderation"
)

// Executor types accepted in configuration.
const (
	TypeLog     = "log"
	TypeWebhook = "webhook"
)

// New builds the executor selected by cfg.
func New(cfg *config.ExecutorConfig) (engine.Executor, error) {
	switch cfg.Type {
	case TypeLog, "":
		return NewLogExecutor(nil), nil
	case TypeWebhook:
		return NewWebhookExecutor(cfg.Webhook)
	default:
		return nil, fmt.Errorf("unknown executor type %q (valid: log, webhook)", cfg.Type)
	}
}

// LogExecutor records actions in the process log and performs no external
// side effect. It is the default when no signaling integration is set up.
type LogExecutor struct {
	logger *slog.Logger
}

// NewLogExecutor creates a LogExecutor. A nil logger uses slog.Default.
func NewLogExecutor(logger *slog.Logger) *LogExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogExecutor{logger: logger.With("component", "executor.log")}
}

// Execute logs the action.
func (l *LogExecutor) Execute(ctx context.Context, d *moderation.Decision) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "moderation action dispatched",
		"decision_id", d.ID,
		"action", d.Action,
		"room_id", d.RoomID,
		"participant_id", d.ParticipantID,
		"classification", d.Classification,
		"confidence", d.Confidence,
	)
	return nil
}
