package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"mercator-hq/warden/pkg/api/handlers"
	"mercator-hq/warden/pkg/audit"
	"mercator-hq/warden/pkg/broadcast"
	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/decision"
	"mercator-hq/warden/pkg/engine"
	"mercator-hq/warden/pkg/executor"
	"mercator-hq/warden/pkg/policy"
	"mercator-hq/warden/pkg/review"
	"mercator-hq/warden/pkg/server"
	"mercator-hq/warden/pkg/telemetry/health"
	"mercator-hq/warden/pkg/telemetry/metrics"
	"mercator-hq/warden/pkg/telemetry/tracing"
)

// app holds the wired components of a warden process.
type app struct {
	cfg *config.Config

	metrics     *metrics.Collector
	tracer      *tracing.Tracer
	broadcaster *broadcast.Broadcaster
	decisions   decision.Store
	auditLog    *audit.Log
	policies    *policy.Service
	engine      *engine.Engine
	review      *review.Service
	health      *health.Checker
	server      *server.Server

	watcher *policy.Watcher
	sweeper *engine.Sweeper
}

// newApp builds every component from cfg. On error, whatever was already
// opened is closed.
func newApp(ctx context.Context, cfg *config.Config, build server.BuildInfo) (*app, error) {
	a := &app{cfg: cfg}
	fail := func(err error) (*app, error) {
		a.close(context.Background())
		return nil, err
	}

	a.metrics = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, build.Version)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize tracing: %w", err))
	}
	a.tracer = tracer

	a.broadcaster = broadcast.New(cfg.Broadcast.SubscriberBuffer, broadcast.WithMetrics(a.metrics))

	decisions, entries, err := openStores(&cfg.Storage)
	if err != nil {
		return fail(err)
	}
	a.decisions = decisions

	a.auditLog, err = audit.NewLog(ctx, entries, audit.Config{
		AppendRetries:        cfg.Audit.AppendRetries,
		RetryInitialInterval: cfg.Audit.RetryInitialInterval,
		RetryMaxInterval:     cfg.Audit.RetryMaxInterval,
	}, audit.WithMetrics(a.metrics))
	if err != nil {
		entries.Close()
		return fail(fmt.Errorf("failed to open audit log: %w", err))
	}

	a.policies = policy.NewService(policy.NewSeededStore(), a.auditLog, a.broadcaster)
	if path := cfg.Policy.FilePath; path != "" {
		changed, err := a.policies.ReloadFile(ctx, path)
		if err != nil {
			return fail(cli.NewConfigError("policy.file_path", err.Error()))
		}
		slog.Info("policy file applied", "path", path, "changed", changed)

		if cfg.Policy.Watch {
			a.watcher, err = policy.NewServiceWatcher(a.policies, path, cfg.Policy.Debounce)
			if err != nil {
				return fail(err)
			}
		}
	}

	exec, err := executor.New(&cfg.Executor)
	if err != nil {
		return fail(cli.NewConfigError("executor", err.Error()))
	}

	// Engine and review must serialize on the same decision locks.
	locker := decision.NewLocker()

	a.engine, err = engine.New(engine.Dependencies{
		Policies:  a.policies,
		Decisions: a.decisions,
		Locker:    locker,
		Audit:     a.auditLog,
		Executor:  exec,
		Publisher: a.broadcaster,
	}, engine.Config{
		ExecutorTimeout: cfg.Engine.ExecutorTimeout,
		DedupCacheSize:  cfg.Engine.DedupCacheSize,
	}, engine.WithMetrics(a.metrics))
	if err != nil {
		return fail(err)
	}

	a.review = review.NewService(a.decisions, locker, a.auditLog, a.broadcaster, review.WithMetrics(a.metrics))

	if cfg.Retry.Enabled {
		a.sweeper = engine.NewSweeper(a.engine, engine.SweeperConfig{
			Schedule:  cfg.Retry.Schedule,
			MinAge:    cfg.Retry.MinAge,
			BatchSize: cfg.Retry.BatchSize,
		})
	}

	a.health = health.New(cfg.Telemetry.Health.CheckTimeout)
	a.health.RegisterPinger("decisions", a.decisions)
	a.health.RegisterPinger("audit", a.auditLog)
	if webhook, ok := exec.(*executor.WebhookExecutor); ok {
		a.health.RegisterCheck("executor", func(ctx context.Context) error {
			if webhook.BreakerState() == "open" {
				return errors.New("webhook circuit breaker is open")
			}
			return nil
		})
	}

	a.server = server.New(cfg, server.Dependencies{
		Moderation: handlers.NewModerationHandler(a.engine, a.review, a.decisions, cfg.Server.MaxBodyBytes),
		Policies:   handlers.NewPolicyHandler(a.policies, cfg.Server.MaxBodyBytes),
		Audit: handlers.NewAuditHandler(a.auditLog, handlers.AuditConfig{
			DefaultLimit: cfg.Audit.DefaultLimit,
			MaxLimit:     cfg.Audit.MaxLimit,
			ExportPretty: cfg.Audit.ExportPretty,
		}),
		Stream:  handlers.NewStreamHandler(a.broadcaster, cfg.Broadcast),
		Health:  a.health,
		Metrics: a.metrics,
	}, build)

	return a, nil
}

// run serves until ctx is cancelled or a component fails. SIGHUP reloads
// the policy file.
func (a *app) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.sweeper != nil {
		if err := a.sweeper.Start(ctx); err != nil {
			return cli.NewConfigError("retry.schedule", err.Error())
		}
	}

	g.Go(func() error {
		return a.server.Start(ctx)
	})

	if a.watcher != nil {
		g.Go(func() error {
			return a.watcher.Run(ctx)
		})
	}

	if path := a.cfg.Policy.FilePath; path != "" {
		hup, stop := cli.ReloadSignal()
		g.Go(func() error {
			defer stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hup:
					changed, err := a.policies.ReloadFile(ctx, path)
					if err != nil {
						slog.Error("policy reload failed", "path", path, "error", err)
						continue
					}
					slog.Info("policy file reloaded on SIGHUP", "path", path, "changed", changed)
				}
			}
		})
	}

	return g.Wait()
}

// close releases every component in reverse dependency order.
func (a *app) close(ctx context.Context) {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.broadcaster != nil {
		a.broadcaster.Close()
	}
	if a.auditLog != nil {
		if err := a.auditLog.Close(); err != nil {
			slog.Error("failed to close audit log", "error", err)
		}
	}
	if a.decisions != nil {
		if err := a.decisions.Close(); err != nil {
			slog.Error("failed to close decision store", "error", err)
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			slog.Error("failed to shut down tracer", "error", err)
		}
	}
}
