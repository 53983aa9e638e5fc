package engine

import (
	"context"

	"mercator-hq/warden/pkg/moderation"
)

// Executor performs the side effect of a decision: notifying the
// participant, muting them, or queueing the content for human review.
//
// Execute receives a copy of the decision and must be idempotent per
// decision id, because pending decisions are retried after ambiguous
// failures. The context carries the engine's executor timeout.
type Executor interface {
	Execute(ctx context.Context, d *moderation.Decision) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, d *moderation.Decision) error

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, d *moderation.Decision) error {
	return f(ctx, d)
}
