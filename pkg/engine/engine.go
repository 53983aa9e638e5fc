package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/warden/pkg/audit"
	"mercator-hq/warden/pkg/broadcast"
	"mercator-hq/warden/pkg/decision"
	"mercator-hq/warden/pkg/moderation"
	"mercator-hq/warden/pkg/policy"
	"mercator-hq/warden/pkg/telemetry/metrics"
	"mercator-hq/warden/pkg/telemetry/tracing"
)

// PolicySource returns a consistent snapshot of the policy for a category.
// *policy.Store and *policy.Service both satisfy it.
type PolicySource interface {
	Get(category moderation.Category) (policy.Policy, error)
}

// Config contains engine settings.
type Config struct {
	// ExecutorTimeout bounds each executor call. Zero leaves only the
	// caller's deadline.
	ExecutorTimeout time.Duration

	// DedupCacheSize is the number of upstream event ids remembered.
	// Zero disables dedup.
	DedupCacheSize int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		ExecutorTimeout: 5 * time.Second,
		DedupCacheSize:  10000,
	}
}

// Dependencies are the collaborators an Engine is built from. Locker must
// be the same instance the review service uses.
type Dependencies struct {
	Policies  PolicySource
	Decisions decision.Store
	Locker    *decision.Locker
	Audit     audit.Appender
	Executor  Executor
	Publisher broadcast.Publisher
}

// Engine turns classified content events into recorded decisions and drives
// their execution.
type Engine struct {
	config    Config
	policies  PolicySource
	decisions decision.Store
	locker    *decision.Locker
	audit     audit.Appender
	executor  Executor
	publisher broadcast.Publisher

	dedup   *lru.Cache[string, string]
	metrics *metrics.Collector
	tracer  trace.Tracer
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records engine metrics on collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = collector }
}

// WithClock replaces the wall clock. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator replaces the decision id generator. Used in tests.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// New creates an Engine.
func New(deps Dependencies, cfg Config, opts ...Option) (*Engine, error) {
	switch {
	case deps.Policies == nil:
		return nil, errors.New("engine: policy source is required")
	case deps.Decisions == nil:
		return nil, errors.New("engine: decision store is required")
	case deps.Audit == nil:
		return nil, errors.New("engine: audit appender is required")
	case deps.Executor == nil:
		return nil, errors.New("engine: executor is required")
	}
	if deps.Locker == nil {
		deps.Locker = decision.NewLocker()
	}
	if deps.Publisher == nil {
		deps.Publisher = broadcast.Discard
	}

	e := &Engine{
		config:    cfg,
		policies:  deps.Policies,
		decisions: deps.Decisions,
		locker:    deps.Locker,
		audit:     deps.Audit,
		executor:  deps.Executor,
		publisher: deps.Publisher,
		tracer:    otel.Tracer(tracing.InstrumentationName),
		logger:    slog.Default().With("component", "engine"),
		now:       time.Now,
		newID:     NewDecisionID,
	}
	for _, opt := range opts {
		opt(e)
	}

	if cfg.DedupCacheSize > 0 {
		cache, err := lru.New[string, string](cfg.DedupCacheSize)
		if err != nil {
			return nil, fmt.Errorf("engine: create dedup cache: %w", err)
		}
		e.dedup = cache
	}

	return e, nil
}

// NewDecisionID returns a fresh decision id of the form dec-<12 hex>.
func NewDecisionID() string {
	return "dec-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Evaluate records the decision for a classified content event and, for a
// non-none action, invokes the executor.
//
// The decision and its decision_created audit entry are durable before the
// executor runs. If ctx is cancelled before that point nothing is recorded;
// after it, cancellation only cuts the executor call short.
//
// When the executor fails or times out, Evaluate returns the pending
// decision together with a *moderation.ExecutionError. Any other error
// comes with a nil decision.
//
// A redelivered event whose EventID is still in the dedup cache returns the
// decision created the first time without running anything.
func (e *Engine) Evaluate(ctx context.Context, event moderation.ContentEvent, cls moderation.Classification) (*moderation.Decision, error) {
	start := e.now()

	ctx, span := e.tracer.Start(ctx, "engine.evaluate")
	defer span.End()

	if err := event.Validate(); err != nil {
		tracing.SetError(span, err)
		return nil, err
	}
	if err := cls.Validate(); err != nil {
		tracing.SetError(span, err)
		return nil, err
	}
	tracing.SetEventAttributes(span, event, cls)

	d, created, err := e.record(ctx, event, cls)
	if err != nil {
		tracing.SetError(span, err)
		return nil, err
	}
	tracing.SetDecisionAttributes(span, d)

	if !created {
		span.SetAttributes(attribute.Bool(tracing.AttrDedupHit, true))
		e.metrics.RecordDedupHit()
		e.logger.Debug("duplicate content event", "event_id", event.EventID, "decision_id", d.ID)
		return d, nil
	}

	e.metrics.RecordDecision(string(d.Classification), string(d.Action), e.now().Sub(start))
	e.logger.Info("decision created",
		"decision_id", d.ID,
		"room_id", d.RoomID,
		"classification", d.Classification,
		"confidence", d.Confidence,
		"action", d.Action,
		"policy_id", d.PolicyID,
	)

	if d.Action == moderation.ActionNone {
		return d, nil
	}

	result, err := e.execute(ctx, d)
	if err != nil {
		tracing.SetError(span, err)
	}
	return result, err
}

// record persists a new decision and its creation entry, or returns the
// decision already recorded for the event id. The boolean reports whether a
// decision was created.
func (e *Engine) record(ctx context.Context, event moderation.ContentEvent, cls moderation.Classification) (*moderation.Decision, bool, error) {
	if event.EventID != "" {
		unlock := e.locker.Lock("event:" + event.EventID)
		defer unlock()

		existing, err := e.lookupEvent(ctx, event.EventID)
		if err != nil {
			return nil, false, fmt.Errorf("look up event %s: %w", event.EventID, err)
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	action, p, err := resolve(e.policies, cls)
	if err != nil {
		return nil, false, fmt.Errorf("read policy for %s: %w", cls.Category, err)
	}
	if p.ID != "" {
		_, span := e.tracer.Start(ctx, "engine.policy_snapshot")
		tracing.SetPolicyAttributes(span, p.ID, p.Enabled)
		span.End()
	}

	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	now := e.now().UTC()
	d := &moderation.Decision{
		ID:                  e.newID(),
		RoomID:              event.RoomID,
		ParticipantID:       event.ParticipantID,
		ParticipantIdentity: event.ParticipantIdentity,
		Content:             event.Content,
		ContentType:         event.ContentType,
		Classification:      cls.Category,
		Confidence:          cls.Confidence,
		Action:              action,
		Status:              moderation.StatusPending,
		PolicyID:            p.ID,
		Timestamp:           now,
		Reasoning:           cls.Reasoning,
		Metadata:            maps.Clone(event.Metadata),
		EventID:             event.EventID,
		UpdatedAt:           now,
	}
	// Nothing to execute, so the decision is resolved on creation.
	if action == moderation.ActionNone {
		d.Status = moderation.StatusExecuted
	}

	unlock := e.locker.Lock(d.ID)
	defer unlock()

	// Past this point the record must be written in full or not at all.
	pctx := context.WithoutCancel(ctx)

	if err := e.decisions.Create(pctx, d); err != nil {
		return nil, false, fmt.Errorf("persist decision: %w", err)
	}

	entry, err := e.audit.Append(pctx, audit.Entry{
		DecisionID: d.ID,
		ActionType: audit.ActionDecisionCreated,
		Actor:      audit.ActorAI,
		Reason:     fmt.Sprintf("Moderation decision created: %s with confidence %.2f", d.Classification, d.Confidence),
		Metadata:   map[string]any{"decision": snapshot(d)},
	})
	if err != nil {
		if rerr := e.decisions.Remove(pctx, d.ID); rerr != nil {
			e.logger.Error("failed to roll back unaudited decision", "decision_id", d.ID, "error", rerr)
		}
		return nil, false, fmt.Errorf("record decision %s: %w", d.ID, err)
	}

	if e.dedup != nil && d.EventID != "" {
		e.dedup.Add(d.EventID, d.ID)
	}

	e.publisher.PublishDecision(d)
	e.publisher.PublishAudit(entry)
	return d, true, nil
}

// lookupEvent returns the decision recorded for eventID, or nil if the event
// is new. A cached id whose decision is gone is evicted; any other store
// error is returned so the event is not recorded twice.
func (e *Engine) lookupEvent(ctx context.Context, eventID string) (*moderation.Decision, error) {
	if e.dedup == nil {
		return nil, nil
	}
	id, ok := e.dedup.Get(eventID)
	if !ok {
		return nil, nil
	}
	d, err := e.decisions.Get(ctx, id)
	if errors.Is(err, moderation.ErrNotFound) {
		e.dedup.Remove(eventID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// execute invokes the executor for d without holding the decision's lock
// and then commits the outcome.
func (e *Engine) execute(ctx context.Context, d *moderation.Decision) (*moderation.Decision, error) {
	ctx, span := e.tracer.Start(ctx, "engine.execute")
	defer span.End()
	tracing.SetDecisionAttributes(span, d)

	execCtx, cancel := ctx, context.CancelFunc(func() {})
	if e.config.ExecutorTimeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, e.config.ExecutorTimeout)
	}
	err := e.executor.Execute(execCtx, d.Clone())
	timedOut := errors.Is(execCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
	cancel()

	if err != nil {
		outcome := "failure"
		if timedOut {
			outcome = "timeout"
		}
		e.metrics.RecordExecution(string(d.Action), outcome)
		span.SetAttributes(attribute.Bool(tracing.AttrExecTimeout, timedOut))

		execErr := &moderation.ExecutionError{
			DecisionID: d.ID,
			Action:     d.Action,
			Timeout:    timedOut,
			Cause:      err,
		}
		tracing.SetError(span, execErr)
		e.logger.Warn("action execution failed, decision left pending",
			"decision_id", d.ID,
			"action", d.Action,
			"timeout", timedOut,
			"error", err,
		)
		return d, execErr
	}
	e.metrics.RecordExecution(string(d.Action), "success")

	if !d.Action.AutoExecutes() {
		// Flagged content stays pending until a human reviews it.
		result, err := e.recordFlagged(ctx, d.ID)
		if err != nil {
			tracing.SetError(span, err)
		}
		return result, err
	}

	result, err := e.commitExecuted(ctx, d.ID)
	if err != nil {
		tracing.SetError(span, err)
		return result, err
	}
	return result, nil
}

// commitExecuted records a successful execution under the decision's lock.
func (e *Engine) commitExecuted(ctx context.Context, id string) (*moderation.Decision, error) {
	unlock := e.locker.Lock(id)
	defer unlock()

	pctx := context.WithoutCancel(ctx)

	cur, err := e.decisions.Get(pctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload decision %s: %w", id, err)
	}

	switch cur.Status {
	case moderation.StatusPending:
		prev := cur.Clone()
		cur.Status = moderation.StatusExecuted
		cur.UpdatedAt = e.now().UTC()

		// The entry goes first so the executed status is never visible
		// without it.
		entry, err := e.audit.Append(pctx, executedEntry(cur, nil))
		if err != nil {
			return prev, fmt.Errorf("record execution of %s: %w", id, err)
		}
		if err := e.decisions.Update(pctx, cur, moderation.StatusPending); err != nil {
			e.logger.Error("decision update failed after audit append",
				"decision_id", id,
				"audit_id", entry.ID,
				"error", err,
			)
			return prev, fmt.Errorf("commit execution of %s: %w", id, err)
		}

		e.publisher.PublishDecision(cur)
		e.publisher.PublishAudit(entry)
		e.logger.Info("action executed", "decision_id", id, "action", cur.Action)
		return cur, nil

	case moderation.StatusOverturned:
		// The side effect happened after the reversal. Record it without
		// moving the decision out of its terminal state.
		entry, err := e.audit.Append(pctx, executedEntry(cur, map[string]any{
			"status_unchanged": string(moderation.StatusOverturned),
		}))
		if err != nil {
			return cur, fmt.Errorf("record execution of %s: %w", id, err)
		}
		e.publisher.PublishAudit(entry)
		e.logger.Warn("action executed on overturned decision", "decision_id", id, "action", cur.Action)
		return cur, nil

	default:
		// A concurrent retry already committed the outcome.
		return cur, nil
	}
}

// recordFlagged appends content_flagged once the executor has queued a
// flagged decision for review. The status is left as it is.
func (e *Engine) recordFlagged(ctx context.Context, id string) (*moderation.Decision, error) {
	unlock := e.locker.Lock(id)
	defer unlock()

	pctx := context.WithoutCancel(ctx)

	cur, err := e.decisions.Get(pctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload decision %s: %w", id, err)
	}

	entry, err := e.audit.Append(pctx, audit.Entry{
		DecisionID: cur.ID,
		ActionType: audit.ActionContentFlagged,
		Actor:      audit.ActorSystem,
		Reason:     fmt.Sprintf("Content flagged for review: participant %s", cur.ParticipantIdentity),
		Metadata: map[string]any{
			"action":               string(cur.Action),
			"participant_id":       cur.ParticipantID,
			"participant_identity": cur.ParticipantIdentity,
			"room_id":              cur.RoomID,
			"classification":       string(cur.Classification),
			"confidence":           cur.Confidence,
			"status":               string(cur.Status),
		},
	})
	if err != nil {
		return cur, fmt.Errorf("record flag of %s: %w", id, err)
	}

	e.publisher.PublishAudit(entry)
	e.logger.Info("content flagged for review", "decision_id", id)
	return cur, nil
}

// Retry re-invokes the executor for a pending decision. Decisions that are
// no longer pending, or whose action is none, are rejected with a
// *moderation.ReviewStateError.
func (e *Engine) Retry(ctx context.Context, id string) (*moderation.Decision, error) {
	d, err := e.decisions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status != moderation.StatusPending || d.Action == moderation.ActionNone {
		return nil, &moderation.ReviewStateError{
			DecisionID: d.ID,
			Op:         "retry",
			Action:     d.Action,
			Status:     d.Status,
		}
	}

	e.logger.Info("retrying action execution", "decision_id", id, "action", d.Action)
	return e.execute(ctx, d)
}

// Decision returns the stored decision with the given id.
func (e *Engine) Decision(ctx context.Context, id string) (*moderation.Decision, error) {
	return e.decisions.Get(ctx, id)
}

func executedEntry(d *moderation.Decision, extra map[string]any) audit.Entry {
	metadata := map[string]any{
		"action":               string(d.Action),
		"participant_id":       d.ParticipantID,
		"participant_identity": d.ParticipantIdentity,
		"room_id":              d.RoomID,
		"classification":       string(d.Classification),
		"confidence":           d.Confidence,
	}
	maps.Copy(metadata, extra)

	return audit.Entry{
		DecisionID: d.ID,
		ActionType: audit.ActionActionExecuted,
		Actor:      audit.ActorSystem,
		Reason:     fmt.Sprintf("Action executed: %s on participant %s", d.Action, d.ParticipantIdentity),
		Metadata:   metadata,
	}
}

// snapshot renders d for audit metadata. The entry keeps its own copy, so
// later status changes never show through.
func snapshot(d *moderation.Decision) map[string]any {
	s := map[string]any{
		"decision_id":          d.ID,
		"room_id":              d.RoomID,
		"participant_id":       d.ParticipantID,
		"participant_identity": d.ParticipantIdentity,
		"content":              d.Content,
		"content_type":         string(d.ContentType),
		"classification":       string(d.Classification),
		"confidence_score":     d.Confidence,
		"action":               string(d.Action),
		"status":               string(d.Status),
		"policy_id":            d.PolicyID,
		"timestamp":            d.Timestamp.Format(time.RFC3339Nano),
	}
	if d.Reasoning != "" {
		s["reasoning"] = d.Reasoning
	}
	if d.EventID != "" {
		s["event_id"] = d.EventID
	}
	return s
}
