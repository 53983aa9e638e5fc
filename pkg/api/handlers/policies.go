package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mercator-hq/warden/pkg/audit"
	"mercator-hq/warden/pkg/policy"
)

// PolicyManager reads and changes policies.
type PolicyManager interface {
	List() []policy.Policy
	GetByID(id string) (policy.Policy, error)
	Update(ctx context.Context, id string, u policy.Update, actor audit.Actor) (policy.Policy, error)
	Toggle(ctx context.Context, id string, actor audit.Actor) (policy.Policy, error)
}

// PolicyList wraps the policy listing.
type PolicyList struct {
	Policies []policy.Policy `json:"policies"`
}

// PolicyHandler serves the policy endpoints. Changes are made on behalf of
// the admin actor.
type PolicyHandler struct {
	policies     PolicyManager
	maxBodyBytes int64
}

// NewPolicyHandler creates a new policy handler.
func NewPolicyHandler(policies PolicyManager, maxBodyBytes int64) *PolicyHandler {
	return &PolicyHandler{policies: policies, maxBodyBytes: maxBodyBytes}
}

// Routes registers the policy endpoints on r.
func (h *PolicyHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Post("/{id}/toggle", h.Toggle)
}

// List handles GET /policies.
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PolicyList{Policies: h.policies.List()})
}

// Get handles GET /policies/{id}.
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.policies.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Update handles PUT /policies/{id} with a partial body. Omitted fields are
// left unchanged.
func (h *PolicyHandler) Update(w http.ResponseWriter, r *http.Request) {
	var u policy.Update
	if err := decodeJSON(w, r, h.maxBodyBytes, &u); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.policies.Update(r.Context(), chi.URLParam(r, "id"), u, audit.ActorAdmin)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Toggle handles POST /policies/{id}/toggle.
func (h *PolicyHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	p, err := h.policies.Toggle(r.Context(), chi.URLParam(r, "id"), audit.ActorAdmin)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
