// Package health provides liveness, readiness and version endpoints.
//
//   - /health: the process is running
//   - /ready: the audit log and decision storage answer a ping
//   - /version: build information
//
// Usage:
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterPinger("audit_log", auditLog)
//	checker.RegisterPinger("decisions", decisionStore)
//
//	r.Get("/health", checker.LivenessHandler())
//	r.Get("/ready", checker.ReadinessHandler())
//	r.Get("/version", health.VersionHandler(version, commit, buildTime))
package health
