package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"mercator-hq/warden/pkg/moderation"
	"mercator-hq/warden/pkg/telemetry/metrics"
)

// Config contains Log settings.
type Config struct {
	// AppendRetries is the number of retries after a failed storage append.
	AppendRetries int

	// RetryInitialInterval and RetryMaxInterval bound the exponential backoff
	// between append attempts.
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

// DefaultConfig returns the default Log configuration.
func DefaultConfig() Config {
	return Config{
		AppendRetries:        3,
		RetryInitialInterval: 50 * time.Millisecond,
		RetryMaxInterval:     time.Second,
	}
}

// Log is the append-only audit log. It is the only component that assigns
// audit ids, timestamps and sequence numbers.
type Log struct {
	storage Storage
	config  Config
	metrics *metrics.Collector
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sequence uint64
	lastTime time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithMetrics records append metrics on collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(l *Log) { l.metrics = collector }
}

// WithClock replaces the wall clock. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// NewLog creates a Log over storage and resumes the sequence from the
// highest stored entry.
func NewLog(ctx context.Context, storage Storage, cfg Config, opts ...Option) (*Log, error) {
	l := &Log{
		storage: storage,
		config:  cfg,
		logger:  slog.Default().With("component", "audit.log"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	last, err := storage.LastSequence(ctx)
	if err != nil {
		return nil, fmt.Errorf("read last audit sequence: %w", err)
	}
	l.sequence = last

	return l, nil
}

// Append assigns id, timestamp and sequence to a copy of entry and persists
// it. Storage failures are retried with backoff; when retries are exhausted
// the returned error matches moderation.ErrStorageUnavailable.
//
// The caller's ID, Sequence and Timestamp are ignored.
func (l *Log) Append(ctx context.Context, entry Entry) (*Entry, error) {
	if !entry.ActionType.Valid() {
		return nil, fmt.Errorf("invalid audit action type %q", entry.ActionType)
	}
	if !entry.Actor.Valid() {
		return nil, fmt.Errorf("invalid audit actor %q", entry.Actor)
	}

	stored := entry.Clone()
	l.assign(stored)

	if err := l.store(ctx, stored); err != nil {
		l.metrics.RecordAuditAppendFailure()
		l.logger.Error("audit append failed",
			"audit_id", stored.ID,
			"decision_id", stored.DecisionID,
			"action_type", stored.ActionType,
			"error", err,
		)
		if errors.Is(err, moderation.ErrStorageUnavailable) {
			return nil, err
		}
		return nil, moderation.NewStorageError("audit", "append", err)
	}

	l.metrics.RecordAuditEntry(string(stored.ActionType), string(stored.Actor))
	l.logger.Debug("audit entry appended",
		"audit_id", stored.ID,
		"sequence", stored.Sequence,
		"decision_id", stored.DecisionID,
		"action_type", stored.ActionType,
		"actor", stored.Actor,
	)

	return stored.Clone(), nil
}

// assign sets id, sequence and a non-decreasing timestamp.
func (l *Log) assign(e *Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.now().UTC()
	if ts.Before(l.lastTime) {
		ts = l.lastTime
	}
	l.lastTime = ts
	l.sequence++

	e.ID = NewID()
	e.Sequence = l.sequence
	e.Timestamp = ts
}

func (l *Log) store(ctx context.Context, e *Entry) error {
	b := backoff.NewExponentialBackOff()
	if l.config.RetryInitialInterval > 0 {
		b.InitialInterval = l.config.RetryInitialInterval
	}
	if l.config.RetryMaxInterval > 0 {
		b.MaxInterval = l.config.RetryMaxInterval
	}
	b.MaxElapsedTime = 0

	var policy backoff.BackOff = backoff.WithMaxRetries(b, uint64(max(l.config.AppendRetries, 0)))
	policy = backoff.WithContext(policy, ctx)

	attempt := 0
	op := func() error {
		attempt++
		err := l.storage.Append(ctx, e)
		if err == nil {
			return nil
		}
		if !errors.Is(err, moderation.ErrStorageUnavailable) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		l.metrics.RecordAuditAppendRetry()
		l.logger.Warn("retrying audit append",
			"audit_id", e.ID,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	}

	return backoff.RetryNotify(op, policy, notify)
}

// Get returns the entry with the given audit id.
func (l *Log) Get(ctx context.Context, id string) (*Entry, error) {
	return l.storage.Get(ctx, id)
}

// Query returns entries matching q, newest first.
func (l *Log) Query(ctx context.Context, q *Query) ([]*Entry, error) {
	return l.storage.Query(ctx, q)
}

// Count returns the number of entries matching q, ignoring pagination.
func (l *Log) Count(ctx context.Context, q *Query) (int64, error) {
	return l.storage.Count(ctx, q)
}

// Stats aggregates the whole log.
func (l *Log) Stats(ctx context.Context) (*Stats, error) {
	return l.storage.Stats(ctx)
}

// Export writes every entry matching q to w using exporter. Pagination in q
// is honored, so callers export everything by leaving Limit at zero.
func (l *Log) Export(ctx context.Context, q *Query, exporter Exporter, w io.Writer) (int, error) {
	entries, err := l.storage.Query(ctx, q)
	if err != nil {
		return 0, err
	}
	if err := exporter.Export(ctx, entries, w); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Ping checks the storage backend.
func (l *Log) Ping(ctx context.Context) error {
	return l.storage.Ping(ctx)
}

// Close closes the storage backend.
func (l *Log) Close() error {
	return l.storage.Close()
}

// NewID returns a fresh audit id of the form audit-<12 hex>.
func NewID() string {
	return "audit-" + shortHex()
}

func shortHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
