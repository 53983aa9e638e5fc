// Package server runs the warden HTTP API.
//
// The router is chi with this middleware chain, outermost first: request id,
// panic recovery, tracing (when enabled) and access logging with request
// metrics. CORS from github.com/rs/cors wraps the router when configured.
//
// Routes:
//
//	GET  /health, /ready, /version     liveness, readiness, build info
//	GET  /metrics                      Prometheus exposition
//	     /api/v1/moderation/...        evaluate, decisions, review, overturn, retry
//	     /api/v1/policies/...          list, get, update, toggle
//	     /api/v1/audit/...             list, get, stats, export
//	GET  /api/v1/ws                    real-time decision and audit stream
//
// Start blocks until its context is cancelled and then shuts down within
// server.shutdown_timeout:
//
//	srv := server.New(cfg, deps, server.BuildInfo{Version: version})
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
package server
