package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"

	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/moderation"
	"mercator-hq/warden/pkg/telemetry/tracing"
)

// IdempotencyHeader carries the decision id so receivers can drop repeats.
const IdempotencyHeader = "Idempotency-Key"

// StatusError is returned when the webhook answers with a non-2xx status.
type StatusError struct {
	Code int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned status %d", e.Code)
}

// Payload is the JSON body posted for each action.
type Payload struct {
	DecisionID          string              `json:"decision_id"`
	Action              moderation.Action   `json:"action"`
	RoomID              string              `json:"room_id"`
	ParticipantID       string              `json:"participant_id"`
	ParticipantIdentity string              `json:"participant_identity"`
	Classification      moderation.Category `json:"classification"`
	Confidence          float64             `json:"confidence_score"`
	PolicyID            string              `json:"policy_id,omitempty"`
	Timestamp           time.Time           `json:"timestamp"`
}

// LeveledSlog adapts slog to retryablehttp's leveled logger. Intermediate
// request errors are logged as warnings because they are retried.
type LeveledSlog struct {
	inner *slog.Logger
}

func (l LeveledSlog) Error(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Warn(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Info(msg string, keysAndValues ...any) {
	l.inner.Debug(msg, keysAndValues...)
}

func (l LeveledSlog) Debug(msg string, keysAndValues ...any) {
	l.inner.Debug(msg, keysAndValues...)
}

// WebhookExecutor posts each action to an HTTP endpoint owned by the
// signaling integration. Transient failures are retried with backoff and
// repeated failures open a circuit breaker, so a dead endpoint fails fast
// and leaves decisions pending for the retry sweep.
type WebhookExecutor struct {
	url     string
	headers map[string]string
	client  *retryablehttp.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewWebhookExecutor creates a WebhookExecutor.
func NewWebhookExecutor(cfg config.WebhookConfig) (*WebhookExecutor, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook executor: url is required")
	}

	logger := slog.Default().With("component", "executor.webhook")

	client := retryablehttp.NewClient()
	client.HTTPClient.Transport = cleanhttp.DefaultPooledTransport()
	client.HTTPClient.Timeout = cfg.Timeout
	client.RetryMax = cfg.MaxRetries
	client.RetryWaitMin = cfg.RetryWaitMin
	client.RetryWaitMax = cfg.RetryWaitMax
	client.Logger = retryablehttp.LeveledLogger(LeveledSlog{inner: logger})
	client.CheckRetry = retryablehttp.DefaultRetryPolicy
	client.ErrorHandler = lastResponse

	w := &WebhookExecutor{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  client,
		logger:  logger,
	}

	if cfg.Breaker.Enabled {
		w.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "webhook-executor",
			MaxRequests: cfg.Breaker.MaxRequests,
			Interval:    cfg.Breaker.Interval,
			Timeout:     cfg.Breaker.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.Breaker.ConsecutiveFailures
			},
			IsSuccessful: isSuccessful,
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			},
		})
	}

	return w, nil
}

// Execute posts the decision. The decision id is sent as the idempotency
// key, so a retried decision is safe to deliver twice.
func (w *WebhookExecutor) Execute(ctx context.Context, d *moderation.Decision) error {
	if w.breaker == nil {
		return w.post(ctx, d)
	}

	_, err := w.breaker.Execute(func() (any, error) {
		return nil, w.post(ctx, d)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("webhook unavailable: %w", err)
	}
	return err
}

// BreakerState reports the circuit breaker state, or "disabled".
func (w *WebhookExecutor) BreakerState() string {
	if w.breaker == nil {
		return "disabled"
	}
	return w.breaker.State().String()
}

func (w *WebhookExecutor) post(ctx context.Context, d *moderation.Decision) error {
	body, err := json.Marshal(Payload{
		DecisionID:          d.ID,
		Action:              d.Action,
		RoomID:              d.RoomID,
		ParticipantID:       d.ParticipantID,
		ParticipantIdentity: d.ParticipantIdentity,
		Classification:      d.Classification,
		Confidence:          d.Confidence,
		PolicyID:            d.PolicyID,
		Timestamp:           d.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "warden-executor")
	req.Header.Set(IdempotencyHeader, d.ID)
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}
	tracing.Inject(ctx, req.Header)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}

	w.logger.DebugContext(ctx, "webhook delivered", "decision_id", d.ID, "action", d.Action, "status", resp.StatusCode)
	return nil
}

// lastResponse hands the final response back once retries are exhausted so
// its status code reaches the caller.
func lastResponse(resp *http.Response, err error, attempts int) (*http.Response, error) {
	if resp != nil {
		return resp, nil
	}
	return nil, fmt.Errorf("giving up after %d attempt(s): %w", attempts, err)
}

// isSuccessful keeps client errors and caller cancellation from tripping
// the breaker.
func isSuccessful(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code < 500
	}
	return false
}
