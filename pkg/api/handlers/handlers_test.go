package handlers_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/warden/pkg/api/handlers"
	"mercator-hq/warden/pkg/audit"
	"mercator-hq/warden/pkg/audit/storage"
	"mercator-hq/warden/pkg/broadcast"
	"mercator-hq/warden/pkg/decision"
	"mercator-hq/warden/pkg/engine"
	"mercator-hq/warden/pkg/moderation"
	"mercator-hq/warden/pkg/policy"
	"mercator-hq/warden/pkg/review"
)

type stack struct {
	router    http.Handler
	log       *audit.Log
	decisions *decision.MemoryStore
	bc        *broadcast.Broadcaster
	failExec  atomic.Bool
}

func newStack(t *testing.T) *stack {
	t.Helper()

	log, err := audit.NewLog(context.Background(), storage.NewMemoryStorage(), audit.Config{
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     time.Millisecond,
	})
	require.NoError(t, err)

	s := &stack{
		log:       log,
		decisions: decision.NewMemoryStore(),
		bc:        broadcast.New(64),
	}
	t.Cleanup(s.bc.Close)

	policies := policy.NewService(policy.NewSeededStore(), log, s.bc)
	locker := decision.NewLocker()
	exec := engine.ExecutorFunc(func(ctx context.Context, d *moderation.Decision) error {
		if s.failExec.Load() {
			return errors.New("room service unavailable")
		}
		return nil
	})

	eng, err := engine.New(engine.Dependencies{
		Policies:  policies,
		Decisions: s.decisions,
		Locker:    locker,
		Audit:     log,
		Executor:  exec,
		Publisher: s.bc,
	}, engine.Config{ExecutorTimeout: time.Second})
	require.NoError(t, err)

	reviews := review.NewService(s.decisions, locker, log, s.bc)

	r := chi.NewRouter()
	r.Route("/api/v1/moderation", handlers.NewModerationHandler(eng, reviews, s.decisions, 0).Routes)
	r.Route("/api/v1/policies", handlers.NewPolicyHandler(policies, 0).Routes)
	r.Route("/api/v1/audit", handlers.NewAuditHandler(log, handlers.AuditConfig{}).Routes)
	s.router = r
	return s
}

func (s *stack) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func evaluateBody(category moderation.Category, confidence float64) handlers.EvaluateRequest {
	return handlers.EvaluateRequest{
		Event: moderation.ContentEvent{
			RoomID:              "room-1",
			ParticipantID:       "p-1",
			ParticipantIdentity: "alice",
			Content:             "some message",
			ContentType:         moderation.ContentTypeText,
		},
		Classification: moderation.Classification{Category: category, Confidence: confidence},
	}
}

func (s *stack) evaluate(t *testing.T, category moderation.Category, confidence float64) *moderation.Decision {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/moderation/evaluate", evaluateBody(category, confidence))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[*moderation.Decision](t, rec)
}

func TestEvaluate(t *testing.T) {
	s := newStack(t)

	tests := []struct {
		name       string
		confidence float64
		action     moderation.Action
		status     moderation.Status
	}{
		{"flag", 0.9, moderation.ActionFlagForReview, moderation.StatusPending},
		{"mute", 0.75, moderation.ActionMute, moderation.StatusExecuted},
		{"warn", 0.55, moderation.ActionWarn, moderation.StatusExecuted},
		{"below thresholds", 0.2, moderation.ActionNone, moderation.StatusExecuted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := s.evaluate(t, moderation.CategoryHarassment, tt.confidence)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.status, d.Status)
			assert.NotEmpty(t, d.ID)
		})
	}
}

func TestEvaluate_InvalidInput(t *testing.T) {
	s := newStack(t)

	tests := []struct {
		name string
		body any
	}{
		{"malformed json", `{"event":`},
		{"empty body", ""},
		{"unknown field", `{"event":{},"classification":{},"extra":1}`},
		{"out of range confidence", evaluateBody(moderation.CategorySpam, 1.5)},
		{"unknown category", evaluateBody(moderation.Category("gossip"), 0.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/moderation/evaluate", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode[handlers.ErrorResponse](t, rec)
			assert.Equal(t, handlers.CodeInvalidRequest, body.Error.Code)
		})
	}
	assert.Equal(t, 0, s.decisions.Size())
}

func TestEvaluate_ExecutionFailureReturnsPendingDecision(t *testing.T) {
	s := newStack(t)
	s.failExec.Store(true)

	rec := s.do(t, http.MethodPost, "/api/v1/moderation/evaluate", evaluateBody(moderation.CategoryHarassment, 0.75))
	require.Equal(t, http.StatusBadGateway, rec.Code)

	body := decode[handlers.ErrorResponse](t, rec)
	assert.Equal(t, handlers.CodeExecutionFailed, body.Error.Code)
	require.NotNil(t, body.Decision)
	assert.Equal(t, moderation.StatusPending, body.Decision.Status)

	// Manual retry once the executor recovers.
	s.failExec.Store(false)
	rec = s.do(t, http.MethodPost, "/api/v1/moderation/decisions/"+body.Decision.ID+"/retry", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, moderation.StatusExecuted, decode[*moderation.Decision](t, rec).Status)

	// Nothing left to retry.
	rec = s.do(t, http.MethodPost, "/api/v1/moderation/decisions/"+body.Decision.ID+"/retry", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDecisions_ListGetStats(t *testing.T) {
	s := newStack(t)
	flagged := s.evaluate(t, moderation.CategoryHarassment, 0.9)
	s.evaluate(t, moderation.CategorySpam, 0.95)
	s.evaluate(t, moderation.CategoryNone, 0)

	rec := s.do(t, http.MethodGet, "/api/v1/moderation/decisions?classification=harassment", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[handlers.DecisionList](t, rec)
	require.Len(t, list.Decisions, 1)
	assert.Equal(t, flagged.ID, list.Decisions[0].ID)
	assert.Equal(t, int64(1), list.Total)
	assert.Equal(t, decision.DefaultLimit, list.Limit)

	rec = s.do(t, http.MethodGet, "/api/v1/moderation/decisions?min_confidence=0.5&limit=1", nil)
	list = decode[handlers.DecisionList](t, rec)
	assert.Len(t, list.Decisions, 1)
	assert.Equal(t, int64(2), list.Total)

	rec = s.do(t, http.MethodGet, "/api/v1/moderation/decisions/"+flagged.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, flagged.ID, decode[*moderation.Decision](t, rec).ID)

	rec = s.do(t, http.MethodGet, "/api/v1/moderation/decisions/dec-missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/moderation/decisions/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[decision.Stats](t, rec)
	assert.Equal(t, int64(3), stats.TotalDecisions)
	assert.Equal(t, int64(1), stats.ByAction[moderation.ActionNone])
	assert.Contains(t, stats.ByStatus, moderation.StatusOverturned)
	assert.InDelta(t, 0.925, stats.AverageConfidence, 1e-9)
}

func TestDecisions_ListRejectsBadFilters(t *testing.T) {
	s := newStack(t)
	for _, query := range []string{
		"action=ban",
		"status=lost",
		"min_confidence=high",
		"min_confidence=0.9&max_confidence=0.1",
		"start_time=yesterday",
		"limit=-1",
	} {
		rec := s.do(t, http.MethodGet, "/api/v1/moderation/decisions?"+query, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestReviewAndOverturn(t *testing.T) {
	s := newStack(t)
	d := s.evaluate(t, moderation.CategoryHarassment, 0.9)
	base := "/api/v1/moderation/decisions/" + d.ID

	rec := s.do(t, http.MethodPost, base+"/review", `{"notes":"missing approved"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/review", map[string]any{"approved": true, "notes": "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reviewed := decode[*moderation.Decision](t, rec)
	assert.Equal(t, moderation.StatusReviewed, reviewed.Status)

	rec = s.do(t, http.MethodPost, base+"/review", map[string]any{"approved": false})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, handlers.CodeInvalidReviewState, decode[handlers.ErrorResponse](t, rec).Error.Code)

	rec = s.do(t, http.MethodPost, base+"/overturn", map[string]any{"reason": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/overturn", map[string]any{"reason": "context was a quote"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, moderation.StatusOverturned, decode[*moderation.Decision](t, rec).Status)

	rec = s.do(t, http.MethodPost, "/api/v1/moderation/decisions/dec-missing/overturn", map[string]any{"reason": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPolicies(t *testing.T) {
	s := newStack(t)

	rec := s.do(t, http.MethodGet, "/api/v1/policies", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[handlers.PolicyList](t, rec).Policies, 5)

	rec = s.do(t, http.MethodGet, "/api/v1/policies/policy-spam", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.6, decode[policy.Policy](t, rec).WarnThreshold)

	rec = s.do(t, http.MethodGet, "/api/v1/policies/policy-gossip", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/policies/policy-spam", map[string]any{"warn_threshold": 0.5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[policy.Policy](t, rec)
	assert.Equal(t, 0.5, updated.WarnThreshold)
	assert.Equal(t, 0.8, updated.MuteThreshold)

	rec = s.do(t, http.MethodPut, "/api/v1/policies/policy-spam", map[string]any{"mute_threshold": 0.95})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, handlers.CodeInvalidThresholds, decode[handlers.ErrorResponse](t, rec).Error.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/policies/policy-spam/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[policy.Policy](t, rec).Enabled)

	entries, err := s.log.Query(context.Background(), &audit.Query{ActionType: audit.ActionPolicyUpdated})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, audit.ActorAdmin, e.Actor)
	}
}

func TestAudit_ListGetStats(t *testing.T) {
	s := newStack(t)
	d := s.evaluate(t, moderation.CategoryHarassment, 0.75)

	rec := s.do(t, http.MethodGet, "/api/v1/audit?decision_id="+d.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[handlers.AuditList](t, rec)
	require.Len(t, list.Entries, 2)
	assert.Equal(t, audit.ActionActionExecuted, list.Entries[0].ActionType)
	assert.Equal(t, audit.ActionDecisionCreated, list.Entries[1].ActionType)
	assert.Equal(t, 100, list.Limit)

	rec = s.do(t, http.MethodGet, "/api/v1/audit/"+list.Entries[1].ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, audit.ActorAI, decode[*audit.Entry](t, rec).Actor)

	rec = s.do(t, http.MethodGet, "/api/v1/audit/audit-missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/audit/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[audit.Stats](t, rec)
	assert.Equal(t, int64(2), stats.TotalEntries)
	assert.Contains(t, stats.ByActionType, audit.ActionContentFlagged)

	for _, query := range []string{"actor=robot", "action_type=deleted", "limit=100000"} {
		rec = s.do(t, http.MethodGet, "/api/v1/audit?"+query, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestAudit_Export(t *testing.T) {
	s := newStack(t)
	s.evaluate(t, moderation.CategoryHarassment, 0.75)

	rec := s.do(t, http.MethodGet, "/api/v1/audit/export?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment;"))
	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 3, "header plus two entries")

	rec = s.do(t, http.MethodGet, "/api/v1/audit/export?format=json&actor=ai", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []*audit.Entry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionDecisionCreated, entries[0].ActionType)

	rec = s.do(t, http.MethodGet, "/api/v1/audit/export?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAudit_ExportIgnoresListCap(t *testing.T) {
	log, err := audit.NewLog(context.Background(), storage.NewMemoryStorage(), audit.DefaultConfig())
	require.NoError(t, err)
	for range 8 {
		_, err := log.Append(context.Background(), audit.Entry{
			ActionType: audit.ActionPolicyUpdated,
			Actor:      audit.ActorAdmin,
			Reason:     "Policy updated: Spam",
		})
		require.NoError(t, err)
	}

	r := chi.NewRouter()
	r.Route("/audit", handlers.NewAuditHandler(log, handlers.AuditConfig{MaxLimit: 5}).Routes)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/audit/export?format=json")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []*audit.Entry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entries))
	assert.Len(t, entries, 8)

	rec = get("/audit/export?format=json&limit=3&offset=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entries))
	assert.Len(t, entries, 3)

	// Listing still pages.
	rec = get("/audit?limit=6")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"threshold order", &moderation.ThresholdOrderError{PolicyID: "p"}, http.StatusBadRequest, handlers.CodeInvalidThresholds},
		{"missing reason", moderation.ErrMissingReason, http.StatusBadRequest, handlers.CodeInvalidRequest},
		{"not found", moderation.NewNotFoundError("decision", "x"), http.StatusNotFound, handlers.CodeNotFound},
		{"review state", &moderation.ReviewStateError{DecisionID: "x", Op: "review"}, http.StatusConflict, handlers.CodeInvalidReviewState},
		{"execution", &moderation.ExecutionError{DecisionID: "x", Cause: errors.New("boom")}, http.StatusBadGateway, handlers.CodeExecutionFailed},
		{"storage", moderation.NewStorageError("sqlite", "append", errors.New("locked")), http.StatusServiceUnavailable, handlers.CodeStorageUnavailable},
		{"unknown", errors.New("surprise"), http.StatusInternalServerError, handlers.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := handlers.HandleError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}
