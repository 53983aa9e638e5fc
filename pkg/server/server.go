package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"mercator-hq/warden/pkg/api/handlers"
	"mercator-hq/warden/pkg/api/middleware"
	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/telemetry/health"
	"mercator-hq/warden/pkg/telemetry/metrics"
	"mercator-hq/warden/pkg/telemetry/tracing"
)

// APIPrefix is the path prefix of every API route.
const APIPrefix = "/api/v1"

// BuildInfo is reported by the version endpoint.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Dependencies are the handlers and telemetry the server routes to. Nil
// handlers leave their routes unregistered.
type Dependencies struct {
	Moderation *handlers.ModerationHandler
	Policies   *handlers.PolicyHandler
	Audit      *handlers.AuditHandler
	Stream     http.Handler

	Health  *health.Checker
	Metrics *metrics.Collector
}

// Server is the warden HTTP API server.
type Server struct {
	config     *config.Config
	deps       Dependencies
	build      BuildInfo
	httpServer *http.Server
	listener   net.Listener

	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates a new API server.
func New(cfg *config.Config, deps Dependencies, build BuildInfo) *Server {
	return &Server{
		config: cfg,
		deps:   deps,
		build:  build,
	}
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully. It returns nil after a clean
// shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.Server.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.ListenAddress, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:        s.Handler(),
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting api server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

// Shutdown gracefully shuts down the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.config.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("api server stopped")
	})

	return shutdownErr
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler builds the router with the full middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	if s.config.Telemetry.Tracing.Enabled {
		r.Use(tracing.HTTPMiddleware)
	}
	r.Use(middleware.Logging(s.deps.Metrics))

	s.registerTelemetry(r)

	r.Route(APIPrefix, func(r chi.Router) {
		if s.deps.Moderation != nil {
			r.Route("/moderation", s.deps.Moderation.Routes)
		}
		if s.deps.Policies != nil {
			r.Route("/policies", s.deps.Policies.Routes)
		}
		if s.deps.Audit != nil {
			r.Route("/audit", s.deps.Audit.Routes)
		}
		if s.deps.Stream != nil {
			r.Method(http.MethodGet, "/ws", s.deps.Stream)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"not_found","message":"route not found"}}`))
	})

	if !s.config.Server.CORS.Enabled {
		return r
	}
	return s.corsHandler().Handler(r)
}

func (s *Server) registerTelemetry(r chi.Router) {
	hc := s.config.Telemetry.Health
	if hc.Enabled && s.deps.Health != nil {
		r.Method(http.MethodGet, hc.LivenessPath, s.deps.Health.LivenessHandler())
		r.Method(http.MethodHead, hc.LivenessPath, s.deps.Health.LivenessHandler())
		r.Method(http.MethodGet, hc.ReadinessPath, s.deps.Health.ReadinessHandler())
		r.Method(http.MethodHead, hc.ReadinessPath, s.deps.Health.ReadinessHandler())
		r.Method(http.MethodGet, hc.VersionPath, health.VersionHandler(s.build.Version, s.build.Commit, s.build.BuildTime))
	}

	mc := s.config.Telemetry.Metrics
	if mc.Enabled && s.deps.Metrics != nil {
		r.Method(http.MethodGet, mc.Path, s.deps.Metrics.Handler())
	}
}

func (s *Server) corsHandler() *cors.Cors {
	c := s.config.Server.CORS
	return cors.New(cors.Options{
		AllowedOrigins:   c.AllowedOrigins,
		AllowedMethods:   c.AllowedMethods,
		AllowedHeaders:   c.AllowedHeaders,
		ExposedHeaders:   c.ExposedHeaders,
		MaxAge:           c.MaxAge,
		AllowCredentials: c.AllowCredentials,
	})
}
