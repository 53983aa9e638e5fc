package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/warden/pkg/audit"
	"mercator-hq/warden/pkg/broadcast"
	"mercator-hq/warden/pkg/decision"
	"mercator-hq/warden/pkg/moderation"
	"mercator-hq/warden/pkg/telemetry/metrics"
	"mercator-hq/warden/pkg/telemetry/tracing"
)

// Service applies human review and overturn decisions. Each call runs in
// the decision's exclusive section, so concurrent calls on one decision
// serialize and the second is validated against the first's result.
type Service struct {
	decisions decision.Store
	locker    *decision.Locker
	audit     audit.Appender
	publisher broadcast.Publisher

	metrics *metrics.Collector
	tracer  trace.Tracer
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records review metrics on collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(s *Service) { s.metrics = collector }
}

// WithClock replaces the wall clock. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. locker must be shared with the engine.
// A nil publisher discards events.
func NewService(decisions decision.Store, locker *decision.Locker, appender audit.Appender, publisher broadcast.Publisher, opts ...Option) *Service {
	if publisher == nil {
		publisher = broadcast.Discard
	}
	s := &Service{
		decisions: decisions,
		locker:    locker,
		audit:     appender,
		publisher: publisher,
		tracer:    otel.Tracer(tracing.InstrumentationName),
		logger:    slog.Default().With("component", "review"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Review records a reviewer's disposition of a flagged decision. Only
// flag_for_review decisions that are neither reviewed nor overturned are
// eligible; anything else fails with a *moderation.ReviewStateError.
func (s *Service) Review(ctx context.Context, id string, approved bool, notes string) (*moderation.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "review.review")
	defer span.End()
	span.SetAttributes(attribute.String(tracing.AttrDecisionID, id), attribute.String(tracing.AttrReviewOp, "review"))

	notes = strings.TrimSpace(notes)

	d, err := s.transition(ctx, id, "review",
		func(cur *moderation.Decision) bool {
			return cur.Action == moderation.ActionFlagForReview &&
				cur.Status.CanTransitionTo(moderation.StatusReviewed)
		},
		func(cur *moderation.Decision, now time.Time) {
			cur.Status = moderation.StatusReviewed
			cur.Review = &moderation.Review{Approved: approved, Notes: notes, ReviewedAt: now}
		},
		func(prev, cur *moderation.Decision) audit.Entry {
			verdict := "rejected"
			if approved {
				verdict = "approved"
			}
			return audit.Entry{
				DecisionID: cur.ID,
				ActionType: audit.ActionDecisionReviewed,
				Actor:      audit.ActorAdmin,
				Reason:     strings.TrimSpace(fmt.Sprintf("Decision reviewed: %s. %s", verdict, notes)),
				Metadata: map[string]any{
					"approved":        approved,
					"notes":           notes,
					"previous_status": string(prev.Status),
					"classification":  string(cur.Classification),
					"action":          string(cur.Action),
				},
			}
		},
	)
	if err != nil {
		tracing.SetError(span, err)
		return nil, err
	}
	tracing.SetDecisionAttributes(span, d)
	return d, nil
}

// Overturn reverses a decision. reason is required. Any status except
// overturned is eligible. Overturning records the reversal only; it does
// not undo a side effect that was already applied.
func (s *Service) Overturn(ctx context.Context, id, reason string) (*moderation.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "review.overturn")
	defer span.End()
	span.SetAttributes(attribute.String(tracing.AttrDecisionID, id), attribute.String(tracing.AttrReviewOp, "overturn"))

	reason = strings.TrimSpace(reason)
	if reason == "" {
		s.metrics.RecordReviewOperation("overturn", "rejected")
		tracing.SetError(span, moderation.ErrMissingReason)
		return nil, moderation.ErrMissingReason
	}

	d, err := s.transition(ctx, id, "overturn",
		func(cur *moderation.Decision) bool {
			return cur.Status.CanTransitionTo(moderation.StatusOverturned)
		},
		func(cur *moderation.Decision, now time.Time) {
			cur.Status = moderation.StatusOverturned
			cur.Overturn = &moderation.Overturn{Reason: reason, OverturnedAt: now}
		},
		func(prev, cur *moderation.Decision) audit.Entry {
			return audit.Entry{
				DecisionID: cur.ID,
				ActionType: audit.ActionDecisionOverturned,
				Actor:      audit.ActorAdmin,
				Reason:     reason,
				Metadata: map[string]any{
					"reason":          reason,
					"original_action": string(cur.Action),
					"classification":  string(cur.Classification),
					"confidence":      cur.Confidence,
					"previous_status": string(prev.Status),
				},
			}
		},
	)
	if err != nil {
		tracing.SetError(span, err)
		return nil, err
	}
	tracing.SetDecisionAttributes(span, d)
	return d, nil
}

// transition validates and commits one status change under the decision's
// lock. The audit entry is appended before the store update, so the new
// status is never visible without the entry behind it.
func (s *Service) transition(
	ctx context.Context,
	id, op string,
	eligible func(cur *moderation.Decision) bool,
	apply func(cur *moderation.Decision, now time.Time),
	entry func(prev, cur *moderation.Decision) audit.Entry,
) (*moderation.Decision, error) {
	unlock := s.locker.Lock(id)
	defer unlock()

	cur, err := s.decisions.Get(ctx, id)
	if err != nil {
		s.metrics.RecordReviewOperation(op, "error")
		return nil, err
	}

	if !eligible(cur) {
		s.metrics.RecordReviewOperation(op, "rejected")
		s.logger.Info("review operation rejected", "operation", op, "decision_id", id, "action", cur.Action, "status", cur.Status)
		return nil, &moderation.ReviewStateError{
			DecisionID: id,
			Op:         op,
			Action:     cur.Action,
			Status:     cur.Status,
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pctx := context.WithoutCancel(ctx)

	prev := cur.Clone()
	now := s.now().UTC()
	apply(cur, now)
	cur.UpdatedAt = now

	e, err := s.audit.Append(pctx, entry(prev, cur))
	if err != nil {
		s.metrics.RecordReviewOperation(op, "error")
		return nil, fmt.Errorf("record %s of %s: %w", op, id, err)
	}

	if err := s.decisions.Update(pctx, cur, prev.Status); err != nil {
		s.metrics.RecordReviewOperation(op, "error")
		s.logger.Error("decision update failed after audit append",
			"operation", op,
			"decision_id", id,
			"audit_id", e.ID,
			"error", err,
		)
		return nil, fmt.Errorf("%s decision %s: %w", op, id, err)
	}

	s.publisher.PublishDecision(cur)
	s.publisher.PublishAudit(e)
	s.metrics.RecordReviewOperation(op, "success")
	s.logger.Info("decision "+op+" recorded",
		"decision_id", id,
		"previous_status", prev.Status,
		"status", cur.Status,
	)
	return cur, nil
}
