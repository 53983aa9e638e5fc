package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mercator-hq/warden/pkg/audit"
	"mercator-hq/warden/pkg/audit/export"
	"mercator-hq/warden/pkg/audit/query"
)

// AuditReader is the read side of the audit log.
type AuditReader interface {
	Get(ctx context.Context, id string) (*audit.Entry, error)
	Query(ctx context.Context, q *audit.Query) ([]*audit.Entry, error)
	Count(ctx context.Context, q *audit.Query) (int64, error)
	Stats(ctx context.Context) (*audit.Stats, error)
	Export(ctx context.Context, q *audit.Query, exporter audit.Exporter, w io.Writer) (int, error)
}

// AuditConfig bounds audit queries.
type AuditConfig struct {
	DefaultLimit int
	MaxLimit     int
	ExportPretty bool
}

// AuditList is a page of audit entries.
type AuditList struct {
	Entries []*audit.Entry `json:"entries"`
	Total   int64          `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// AuditHandler serves the read-only audit endpoints.
type AuditHandler struct {
	log    AuditReader
	config AuditConfig
	now    func() time.Time
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(log AuditReader, cfg AuditConfig) *AuditHandler {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = query.DefaultLimit
	}
	if cfg.MaxLimit <= 0 || cfg.MaxLimit > query.MaxLimit {
		cfg.MaxLimit = query.MaxLimit
	}
	return &AuditHandler{log: log, config: cfg, now: time.Now}
}

// Routes registers the audit endpoints on r.
func (h *AuditHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/stats", h.Stats)
	r.Get("/export", h.Export)
	r.Get("/{id}", h.Get)
}

// List handles GET /audit.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if q.Limit == 0 {
		q.Limit = h.config.DefaultLimit
	}

	entries, err := h.log.Query(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	total, err := h.log.Count(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}

	writeJSON(w, http.StatusOK, AuditList{
		Entries: entries,
		Total:   total,
		Limit:   q.Limit,
		Offset:  q.Offset,
	})
}

// Get handles GET /audit/{id}.
func (h *AuditHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.log.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Stats handles GET /audit/stats.
func (h *AuditHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.log.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Export handles GET /audit/export?format=json|csv as a file download. It
// takes the list filters; without a limit every matching entry is exported.
func (h *AuditHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	var exporter audit.Exporter
	switch format {
	case "json":
		exporter = export.NewJSONExporter(h.config.ExportPretty)
	default:
		var ok bool
		if exporter, ok = export.ForFormat(format); !ok {
			writeError(w, r, badRequest("unsupported export format %q (use json or csv)", format))
			return
		}
	}

	q, err := h.parseQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("audit-export-%s.%s", h.now().UTC().Format("20060102T150405Z"), format)
	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	// Render before writing the status so a storage failure still gets an
	// error response.
	var buf bytes.Buffer
	n, err := h.log.Export(r.Context(), q, exporter, &buf)
	if err != nil {
		w.Header().Del("Content-Disposition")
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.WarnContext(r.Context(), "audit export write failed", "error", err)
		return
	}
	slog.InfoContext(r.Context(), "audit exported", "format", format, "entries", n)
}

func (h *AuditHandler) parseQuery(r *http.Request) (*audit.Query, error) {
	values := r.URL.Query()
	q := &audit.Query{
		DecisionID: values.Get("decision_id"),
		ActionType: audit.ActionType(values.Get("action_type")),
		Actor:      audit.Actor(values.Get("actor")),
	}

	var err error
	if q.StartTime, err = parseTimeParam(values, "start_time"); err != nil {
		return nil, err
	}
	if q.EndTime, err = parseTimeParam(values, "end_time"); err != nil {
		return nil, err
	}
	if q.Limit, err = parseIntParam(values, "limit"); err != nil {
		return nil, err
	}
	if q.Offset, err = parseIntParam(values, "offset"); err != nil {
		return nil, err
	}
	if q.Limit > h.config.MaxLimit {
		return nil, badRequest("limit must be <= %d", h.config.MaxLimit)
	}

	if err := query.Validate(q); err != nil {
		return nil, err
	}
	return q, nil
}
