package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/warden/pkg/api/handlers"
	"mercator-hq/warden/pkg/audit"
	"mercator-hq/warden/pkg/audit/storage"
	"mercator-hq/warden/pkg/broadcast"
	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/policy"
	"mercator-hq/warden/pkg/telemetry/health"
	"mercator-hq/warden/pkg/telemetry/metrics"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func testServer(t *testing.T, readyErr error) *Server {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.ListenAddress = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = time.Second
	cfg.Server.CORS.AllowedOrigins = []string{"https://console.example.com"}

	log, err := audit.NewLog(context.Background(), storage.NewMemoryStorage(), audit.DefaultConfig())
	if err != nil {
		t.Fatalf("audit.NewLog() failed: %v", err)
	}
	bc := broadcast.New(8)
	t.Cleanup(bc.Close)

	checker := health.New(time.Second)
	checker.RegisterPinger("audit_log", pinger{err: readyErr})

	return New(cfg, Dependencies{
		Policies: handlers.NewPolicyHandler(policy.NewService(policy.NewSeededStore(), log, bc), 0),
		Audit:    handlers.NewAuditHandler(log, handlers.AuditConfig{}),
		Stream:   handlers.NewStreamHandler(bc, cfg.Broadcast),
		Health:   checker,
		Metrics:  metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry()),
	}, BuildInfo{Version: "1.0.0", Commit: "abc123"})
}

func TestServer_Routes(t *testing.T) {
	tests := []struct {
		name     string
		readyErr error
		method   string
		path     string
		wantCode int
		wantBody string
	}{
		{name: "liveness", method: http.MethodGet, path: "/health", wantCode: http.StatusOK, wantBody: `"status":"ok"`},
		{name: "readiness", method: http.MethodGet, path: "/ready", wantCode: http.StatusOK, wantBody: `"audit_log"`},
		{name: "readiness degraded", readyErr: errors.New("down"), method: http.MethodGet, path: "/ready", wantCode: http.StatusServiceUnavailable},
		{name: "version", method: http.MethodGet, path: "/version", wantCode: http.StatusOK, wantBody: `"version":"1.0.0"`},
		{name: "policies", method: http.MethodGet, path: "/api/v1/policies", wantCode: http.StatusOK, wantBody: `"policy-spam"`},
		{name: "audit stats", method: http.MethodGet, path: "/api/v1/audit/stats", wantCode: http.StatusOK, wantBody: `"total_entries":0`},
		{name: "moderation not registered", method: http.MethodGet, path: "/api/v1/moderation/decisions", wantCode: http.StatusNotFound, wantBody: `"not_found"`},
		{name: "unknown route", method: http.MethodGet, path: "/nope", wantCode: http.StatusNotFound, wantBody: `"not_found"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testServer(t, tt.readyErr).Handler()

			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("%s %s = %d, want %d (body %s)", tt.method, tt.path, rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body %s does not contain %s", rec.Body.String(), tt.wantBody)
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID header")
			}
		})
	}
}

func TestServer_Metrics(t *testing.T) {
	h := testServer(t, nil).Handler()

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/policies/policy-spam", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", rec.Code)
	}
	want := `warden_http_requests_total{method="GET",route="/api/v1/policies/{id}",status="200"} 1`
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("metrics output missing %s", want)
	}
}

func TestServer_CORS(t *testing.T) {
	h := testServer(t, nil).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/policies", nil)
	req.Header.Set("Origin", "https://console.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://console.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/policies", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got Access-Control-Allow-Origin = %q", got)
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	srv := testServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !srv.IsRunning() {
		t.Fatal("server should be running")
	}

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health = %d", resp.StatusCode)
	}

	if err := srv.Start(ctx); err == nil {
		t.Error("second Start should fail while running")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v after shutdown", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
	if srv.IsRunning() {
		t.Error("server should not be running after shutdown")
	}
}
