package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/warden/pkg/decision"
	"mercator-hq/warden/pkg/moderation"
)

// SweepResult summarizes one RetryPending pass.
type SweepResult struct {
	Attempted int
	Succeeded int
	Failed    int
}

// RetryPending retries up to batch pending warn and mute decisions created
// at least minAge ago, oldest first. Flagged decisions are left for human
// review. Individual execution failures are counted, not returned.
func (e *Engine) RetryPending(ctx context.Context, minAge time.Duration, batch int) (SweepResult, error) {
	var res SweepResult
	if batch <= 0 {
		batch = decision.DefaultLimit
	}
	cutoff := e.now().UTC().Add(-minAge)

	var due []*moderation.Decision
	for _, action := range []moderation.Action{moderation.ActionWarn, moderation.ActionMute} {
		ds, err := e.decisions.Query(ctx, &decision.Query{
			Action:      action,
			Status:      moderation.StatusPending,
			EndTime:     &cutoff,
			OldestFirst: true,
			Limit:       batch,
		})
		if err != nil {
			return res, fmt.Errorf("query pending %s decisions: %w", action, err)
		}
		due = append(due, ds...)
	}

	slices.SortStableFunc(due, func(a, b *moderation.Decision) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	if len(due) > batch {
		due = due[:batch]
	}

	for _, d := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Attempted++
		if _, err := e.execute(ctx, d); err != nil {
			res.Failed++
			continue
		}
		res.Succeeded++
	}
	return res, nil
}

// SweeperConfig configures the scheduled retry sweep.
type SweeperConfig struct {
	// Schedule is a cron expression; descriptors such as "@every 30s" are
	// accepted. Empty disables the sweeper.
	Schedule  string
	MinAge    time.Duration
	BatchSize int
}

// Sweeper runs RetryPending on a cron schedule.
type Sweeper struct {
	engine *Engine
	config SweeperConfig
	cron   *cron.Cron
	mu     sync.Mutex
	logger *slog.Logger

	running bool
}

// NewSweeper creates a sweeper for engine.
func NewSweeper(engine *Engine, cfg SweeperConfig) *Sweeper {
	return &Sweeper{
		engine: engine,
		config: cfg,
		// Skip a tick while the previous sweep is still running.
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: slog.Default().With("component", "engine.sweeper"),
	}
}

// Start schedules the sweep. The sweeper stops when ctx is cancelled.
// If the schedule is empty, Start does nothing.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.Schedule == "" {
		s.logger.Info("retry schedule not configured, skipping sweeper")
		return nil
	}
	if s.running {
		return fmt.Errorf("sweeper already running")
	}

	if _, err := cron.ParseStandard(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.config.Schedule, err)
	}

	if _, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.Sweep(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule retry sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("retry sweeper started",
		"schedule", s.config.Schedule,
		"min_age", s.config.MinAge,
		"batch_size", s.config.BatchSize,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Sweep runs one retry pass.
func (s *Sweeper) Sweep(ctx context.Context) SweepResult {
	res, err := s.engine.RetryPending(ctx, s.config.MinAge, s.config.BatchSize)
	if err != nil {
		s.logger.Error("retry sweep failed", "error", err, "attempted", res.Attempted)
		return res
	}

	if res.Attempted > 0 {
		s.logger.Info("retry sweep completed",
			"attempted", res.Attempted,
			"succeeded", res.Succeeded,
			"failed", res.Failed,
		)
	} else {
		s.logger.Debug("retry sweep completed, nothing due")
	}
	return res
}

// Stop stops the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("retry sweeper stopped")
	}
}

// IsRunning returns true if the sweeper is scheduled.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled sweep, or nil if none is scheduled.
func (s *Sweeper) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
