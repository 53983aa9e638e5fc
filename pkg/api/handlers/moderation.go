package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"mercator-hq/warden/pkg/decision"
	"mercator-hq/warden/pkg/moderation"
	"mercator-hq/warden/pkg/telemetry/logging"
)

// Evaluator creates and executes moderation decisions.
type Evaluator interface {
	Evaluate(ctx context.Context, event moderation.ContentEvent, cls moderation.Classification) (*moderation.Decision, error)
	Retry(ctx context.Context, id string) (*moderation.Decision, error)
}

// Reviewer records human review outcomes.
type Reviewer interface {
	Review(ctx context.Context, id string, approved bool, notes string) (*moderation.Decision, error)
	Overturn(ctx context.Context, id, reason string) (*moderation.Decision, error)
}

// DecisionReader is the read side of the decision store.
type DecisionReader interface {
	Get(ctx context.Context, id string) (*moderation.Decision, error)
	Query(ctx context.Context, q *decision.Query) ([]*moderation.Decision, error)
	Count(ctx context.Context, q *decision.Query) (int64, error)
	Stats(ctx context.Context) (*decision.Stats, error)
}

// EvaluateRequest is the body of POST /moderation/evaluate.
type EvaluateRequest struct {
	Event          moderation.ContentEvent   `json:"event"`
	Classification moderation.Classification `json:"classification"`
}

// ReviewRequest is the body of POST /decisions/{id}/review.
type ReviewRequest struct {
	Approved *bool  `json:"approved"`
	Notes    string `json:"notes,omitempty"`
}

// OverturnRequest is the body of POST /decisions/{id}/overturn.
type OverturnRequest struct {
	Reason string `json:"reason"`
}

// DecisionList is a page of decisions.
type DecisionList struct {
	Decisions []*moderation.Decision `json:"decisions"`
	Total     int64                  `json:"total"`
	Limit     int                    `json:"limit"`
	Offset    int                    `json:"offset"`
}

// ModerationHandler serves evaluation, decision queries and review.
type ModerationHandler struct {
	engine       Evaluator
	review       Reviewer
	decisions    DecisionReader
	maxBodyBytes int64
}

// NewModerationHandler creates a new moderation handler.
func NewModerationHandler(engine Evaluator, review Reviewer, decisions DecisionReader, maxBodyBytes int64) *ModerationHandler {
	return &ModerationHandler{
		engine:       engine,
		review:       review,
		decisions:    decisions,
		maxBodyBytes: maxBodyBytes,
	}
}

// Routes registers the moderation endpoints on r.
func (h *ModerationHandler) Routes(r chi.Router) {
	r.Post("/evaluate", h.Evaluate)
	r.Route("/decisions", func(r chi.Router) {
		r.Get("/", h.ListDecisions)
		r.Get("/stats", h.Stats)
		r.Get("/{id}", h.GetDecision)
		r.Post("/{id}/review", h.Review)
		r.Post("/{id}/overturn", h.Overturn)
		r.Post("/{id}/retry", h.Retry)
	})
}

// Evaluate handles POST /moderation/evaluate. A decision whose action could
// not be executed is still returned, with status 502.
func (h *ModerationHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := logging.WithRoomID(r.Context(), req.Event.RoomID)
	d, err := h.engine.Evaluate(ctx, req.Event, req.Classification)
	h.writeDecision(w, r.WithContext(ctx), http.StatusCreated, d, err)
}

// ListDecisions handles GET /moderation/decisions.
func (h *ModerationHandler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	q, err := parseDecisionQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	decisions, err := h.decisions.Query(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	total, err := h.decisions.Count(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if decisions == nil {
		decisions = []*moderation.Decision{}
	}

	writeJSON(w, http.StatusOK, DecisionList{
		Decisions: decisions,
		Total:     total,
		Limit:     q.Limit,
		Offset:    q.Offset,
	})
}

// Stats handles GET /moderation/decisions/stats.
func (h *ModerationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.decisions.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetDecision handles GET /moderation/decisions/{id}.
func (h *ModerationHandler) GetDecision(w http.ResponseWriter, r *http.Request) {
	d, err := h.decisions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Review handles POST /moderation/decisions/{id}/review.
func (h *ModerationHandler) Review(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Approved == nil {
		writeError(w, r, badRequest("approved is required"))
		return
	}

	id := chi.URLParam(r, "id")
	d, err := h.review.Review(logging.WithDecisionID(r.Context(), id), id, *req.Approved, req.Notes)
	h.writeDecision(w, r, http.StatusOK, d, err)
}

// Overturn handles POST /moderation/decisions/{id}/overturn.
func (h *ModerationHandler) Overturn(w http.ResponseWriter, r *http.Request) {
	var req OverturnRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	d, err := h.review.Overturn(logging.WithDecisionID(r.Context(), id), id, strings.TrimSpace(req.Reason))
	h.writeDecision(w, r, http.StatusOK, d, err)
}

// Retry handles POST /moderation/decisions/{id}/retry.
func (h *ModerationHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := h.engine.Retry(logging.WithDecisionID(r.Context(), id), id)
	h.writeDecision(w, r, http.StatusOK, d, err)
}

func (h *ModerationHandler) writeDecision(w http.ResponseWriter, r *http.Request, status int, d *moderation.Decision, err error) {
	if err == nil {
		writeJSON(w, status, d)
		return
	}

	var execErr *moderation.ExecutionError
	if errors.As(err, &execErr) && d != nil {
		code, body := HandleError(err)
		body.Decision = d
		writeJSON(w, code, body)
		return
	}
	writeError(w, r, err)
}

func parseDecisionQuery(r *http.Request) (*decision.Query, error) {
	values := r.URL.Query()
	q := &decision.Query{
		RoomID:         values.Get("room_id"),
		ParticipantID:  values.Get("participant_id"),
		Classification: moderation.Category(values.Get("classification")),
		Action:         moderation.Action(values.Get("action")),
		Status:         moderation.Status(values.Get("status")),
	}

	if q.Classification != "" && !q.Classification.Valid() {
		return nil, badRequest("invalid classification: %s", q.Classification)
	}
	if q.Action != "" && !q.Action.Valid() {
		return nil, badRequest("invalid action: %s", q.Action)
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, badRequest("invalid status: %s", q.Status)
	}

	var err error
	if q.MinConfidence, err = parseFloatParam(values, "min_confidence"); err != nil {
		return nil, err
	}
	if q.MaxConfidence, err = parseFloatParam(values, "max_confidence"); err != nil {
		return nil, err
	}
	if q.MinConfidence != nil && q.MaxConfidence != nil && *q.MinConfidence > *q.MaxConfidence {
		return nil, badRequest("min_confidence must not exceed max_confidence")
	}
	if q.StartTime, err = parseTimeParam(values, "start_time"); err != nil {
		return nil, err
	}
	if q.EndTime, err = parseTimeParam(values, "end_time"); err != nil {
		return nil, err
	}
	if q.StartTime != nil && q.EndTime != nil && q.StartTime.After(*q.EndTime) {
		return nil, badRequest("start_time must be before end_time")
	}
	if q.Limit, err = parseIntParam(values, "limit"); err != nil {
		return nil, err
	}
	if q.Offset, err = parseIntParam(values, "offset"); err != nil {
		return nil, err
	}
	if q.Limit == 0 {
		q.Limit = decision.DefaultLimit
	}
	return q, nil
}
