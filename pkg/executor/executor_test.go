package executor_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/executor"
	"mercator-hq/warden/pkg/moderation"
)

func testDecision() *moderation.Decision {
	return &moderation.Decision{
		ID:                  "dec-0123456789ab",
		RoomID:              "room-1",
		ParticipantID:       "p-42",
		ParticipantIdentity: "alice",
		Classification:      moderation.CategorySpam,
		Confidence:          0.82,
		Action:              moderation.ActionMute,
		Status:              moderation.StatusPending,
		PolicyID:            "policy-spam",
		Timestamp:           time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func webhookConfig(url string) config.WebhookConfig {
	return config.WebhookConfig{
		URL:          url,
		Timeout:      time.Second,
		MaxRetries:   2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
		Headers:      map[string]string{"Authorization": "Bearer token"},
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ExecutorConfig
		want    any
		wantErr bool
	}{
		{name: "default is log", cfg: config.ExecutorConfig{}, want: &executor.LogExecutor{}},
		{name: "log", cfg: config.ExecutorConfig{Type: "log"}, want: &executor.LogExecutor{}},
		{
			name: "webhook",
			cfg:  config.ExecutorConfig{Type: "webhook", Webhook: config.WebhookConfig{URL: "http://localhost:9"}},
			want: &executor.WebhookExecutor{},
		},
		{name: "webhook without url", cfg: config.ExecutorConfig{Type: "webhook"}, wantErr: true},
		{name: "unknown", cfg: config.ExecutorConfig{Type: "carrier-pigeon"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, err := executor.New(&tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, exec)
		})
	}
}

func TestLogExecutor_Execute(t *testing.T) {
	exec := executor.NewLogExecutor(nil)
	require.NoError(t, exec.Execute(context.Background(), testDecision()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, exec.Execute(ctx, testDecision()), context.Canceled)
}

func TestWebhookExecutor_Delivers(t *testing.T) {
	var got executor.Payload
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	exec, err := executor.NewWebhookExecutor(webhookConfig(srv.URL))
	require.NoError(t, err)

	require.NoError(t, exec.Execute(context.Background(), testDecision()))

	assert.Equal(t, "dec-0123456789ab", got.DecisionID)
	assert.Equal(t, moderation.ActionMute, got.Action)
	assert.Equal(t, moderation.CategorySpam, got.Classification)
	assert.InDelta(t, 0.82, got.Confidence, 1e-9)
	assert.Equal(t, "dec-0123456789ab", headers.Get(executor.IdempotencyHeader))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "Bearer token", headers.Get("Authorization"))
	assert.Equal(t, "disabled", exec.BreakerState())
}

func TestWebhookExecutor_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	exec, err := executor.NewWebhookExecutor(webhookConfig(srv.URL))
	require.NoError(t, err)

	require.NoError(t, exec.Execute(context.Background(), testDecision()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhookExecutor_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	exec, err := executor.NewWebhookExecutor(webhookConfig(srv.URL))
	require.NoError(t, err)

	err = exec.Execute(context.Background(), testDecision())
	var statusErr *executor.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhookExecutor_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	exec, err := executor.NewWebhookExecutor(webhookConfig(srv.URL))
	require.NoError(t, err)

	err = exec.Execute(context.Background(), testDecision())
	var statusErr *executor.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnprocessableEntity, statusErr.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWebhookExecutor_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := webhookConfig(srv.URL)
	cfg.MaxRetries = 0
	cfg.Breaker = config.BreakerConfig{
		Enabled:             true,
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             time.Minute,
		ConsecutiveFailures: 2,
	}
	exec, err := executor.NewWebhookExecutor(cfg)
	require.NoError(t, err)

	for range 2 {
		require.Error(t, exec.Execute(context.Background(), testDecision()))
	}
	assert.Equal(t, "open", exec.BreakerState())

	err = exec.Execute(context.Background(), testDecision())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWebhookExecutor_HonorsContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	exec, err := executor.NewWebhookExecutor(webhookConfig(srv.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = exec.Execute(ctx, testDecision())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded))
}
