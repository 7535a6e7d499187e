package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/reviewer-invitations/internal/config"
	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
	"github.com/kirillkom/reviewer-invitations/internal/core/ports"
	"github.com/kirillkom/reviewer-invitations/internal/observability/metrics"
)

const (
	backpressureWait = 250 * time.Millisecond
	maxBodyBytes     = 1 << 20
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Router struct {
	cfg       config.Config
	queries   ports.ManuscriptQueryService
	workflow  ports.InvitationWorkflow
	metrics   *metrics.HTTPServerMetrics
	auth      *authenticator
	validator *requestValidator
}

func NewRouter(
	cfg config.Config,
	queries ports.ManuscriptQueryService,
	workflow ports.InvitationWorkflow,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	if httpMetrics == nil {
		httpMetrics = metrics.NewHTTPServerMetrics("api")
	}
	validator, err := newRequestValidator()
	if err != nil {
		// The document is embedded at build time.
		panic(err)
	}
	return &Router{
		cfg:       cfg,
		queries:   queries,
		workflow:  workflow,
		metrics:   httpMetrics,
		auth:      newAuthenticator(cfg.AuthJWTSecret),
		validator: validator,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.Handle("GET /metrics", rt.metrics.Handler())

	read, create, update, remove := domain.AccessRead, domain.AccessCreate, domain.AccessUpdate, domain.AccessDelete
	mux.HandleFunc("GET /v1/statuses", rt.auth.require(domain.ResourceDashboard, read, rt.listStatuses))

	mux.HandleFunc("GET /v1/manuscripts/{id}", rt.auth.require(domain.ResourceManuscripts, read, rt.getManuscript))
	mux.HandleFunc("PUT /v1/manuscripts/{id}/status", rt.auth.require(domain.ResourceManuscripts, update, rt.updateManuscriptStatus))
	mux.HandleFunc("GET /v1/manuscripts/{id}/reviewers", rt.auth.require(domain.ResourceReviewers, read, rt.listReviewers))
	mux.HandleFunc("GET /v1/manuscripts/{id}/invitations", rt.auth.require(domain.ResourceInvitations, read, rt.listInvitations))
	mux.HandleFunc("POST /v1/manuscripts/{id}/invitations", rt.auth.require(domain.ResourceInvitations, create, rt.sendInvitation))
	mux.HandleFunc("GET /v1/manuscripts/{id}/invitations/stats", rt.auth.require(domain.ResourceInvitations, read, rt.invitationStats))
	mux.HandleFunc("GET /v1/manuscripts/{id}/invitations/report.xlsx", rt.auth.require(domain.ResourceInvitations, read, rt.exportInvitations))
	mux.HandleFunc("GET /v1/manuscripts/{id}/queue", rt.auth.require(domain.ResourceInvitations, read, rt.listQueue))
	mux.HandleFunc("POST /v1/manuscripts/{id}/queue", rt.auth.require(domain.ResourceInvitations, create, rt.enqueueReviewer))
	mux.HandleFunc("POST /v1/manuscripts/{id}/queue/reorder", rt.auth.require(domain.ResourceInvitations, update, rt.reorderQueue))

	mux.HandleFunc("DELETE /v1/queue/{entryId}", rt.auth.require(domain.ResourceInvitations, remove, rt.removeQueueEntry))
	mux.HandleFunc("POST /v1/queue/{entryId}/dispatch", rt.auth.require(domain.ResourceInvitations, create, rt.dispatchQueueEntry))
	mux.HandleFunc("POST /v1/queue/{entryId}/move", rt.auth.require(domain.ResourceInvitations, update, rt.moveQueueEntry))

	mux.HandleFunc("POST /v1/invitations/{invitationId}/respond", rt.auth.require(domain.ResourceInvitations, update, rt.respondToInvitation))
	mux.HandleFunc("POST /v1/invitations/{invitationId}/submit-report", rt.auth.require(domain.ResourceInvitations, update, rt.submitReport))
	mux.HandleFunc("POST /v1/invitations/{invitationId}/complete", rt.auth.require(domain.ResourceInvitations, update, rt.completeReview))
	mux.HandleFunc("POST /v1/invitations/{invitationId}/revoke", rt.auth.require(domain.ResourceInvitations, update, rt.revokeInvitation))
	mux.HandleFunc("POST /v1/invitations/{invitationId}/invalidate", rt.auth.require(domain.ResourceInvitations, update, rt.invalidateReport))
	mux.HandleFunc("POST /v1/invitations/{invitationId}/remind", rt.auth.require(domain.ResourceInvitations, update, rt.sendReminder))
	mux.HandleFunc("PUT /v1/invitations/{invitationId}/expiration", rt.auth.require(domain.ResourceInvitations, update, rt.setExpiration))

	// The metrics middleware must see the request the mux annotates with its
	// pattern, so it wraps the mux directly.
	var handler http.Handler = rt.metrics.Middleware("api", mux)
	handler = rt.validator.middleware(handler)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusEntry struct {
	Value string `json:"value"`
	domain.StatusConfig
}

type statusGroup struct {
	Category domain.Category `json:"category"`
	Statuses []statusEntry   `json:"statuses"`
}

func (rt *Router) listStatuses(w http.ResponseWriter, _ *http.Request) {
	grouped := domain.StatusesByCategory()
	groups := make([]statusGroup, 0, len(domain.AllCategories))
	for _, category := range domain.AllCategories {
		entries := make([]statusEntry, 0, len(grouped[category]))
		for _, status := range grouped[category] {
			entries = append(entries, statusEntry{
				Value:        string(status),
				StatusConfig: domain.ManuscriptStatusConfig(string(status)),
			})
		}
		groups = append(groups, statusGroup{Category: category, Statuses: entries})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": groups,
		"options":    domain.StatusOptions(),
	})
}

func (rt *Router) getManuscript(w http.ResponseWriter, r *http.Request) {
	ms, err := rt.queries.GetManuscript(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

func (rt *Router) updateManuscriptStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status domain.ManuscriptStatus `json:"status"`
	}
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	ms, err := rt.queries.GetManuscript(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := rt.workflow.UpdateManuscriptStatus(r.Context(), ms.ID, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type listReviewersParams struct {
	SortBy         *string   `form:"sortBy"`
	MinMatchScore  *int      `form:"minMatchScore"`
	Availability   *[]string `form:"availability"`
	MaxCurrentLoad *int      `form:"maxCurrentLoad"`
	Search         *string   `form:"search"`
}

func bindListReviewersParams(r *http.Request) (listReviewersParams, error) {
	var params listReviewersParams
	query := r.URL.Query()
	bindings := []struct {
		name    string
		explode bool
		dest    any
	}{
		{"sortBy", true, &params.SortBy},
		{"minMatchScore", true, &params.MinMatchScore},
		{"availability", false, &params.Availability},
		{"maxCurrentLoad", true, &params.MaxCurrentLoad},
		{"search", true, &params.Search},
	}
	for _, b := range bindings {
		if err := runtime.BindQueryParameter("form", b.explode, false, b.name, query, b.dest); err != nil {
			return params, domain.WrapError(domain.ErrInvalidInput, "bind "+b.name, err)
		}
	}
	return params, nil
}

func (rt *Router) listReviewers(w http.ResponseWriter, r *http.Request) {
	params, err := bindListReviewersParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := domain.ReviewerQuery{
		ManuscriptID:   r.PathValue("id"),
		MinMatchScore:  params.MinMatchScore,
		MaxCurrentLoad: params.MaxCurrentLoad,
	}
	if params.SortBy != nil {
		q.SortBy = domain.ReviewerSortKey(*params.SortBy)
	}
	if params.Search != nil {
		q.Search = *params.Search
	}
	if params.Availability != nil {
		for _, a := range *params.Availability {
			if a = strings.TrimSpace(a); a != "" {
				q.Availability = append(q.Availability, domain.Availability(a))
			}
		}
	}

	reviewers, err := rt.queries.ListReviewers(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviewers": reviewers})
}

func (rt *Router) listInvitations(w http.ResponseWriter, r *http.Request) {
	invitations, err := rt.queries.ListInvitations(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invitations": invitations})
}

func (rt *Router) invitationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.queries.InvitationStats(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) exportInvitations(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := rt.queries.ExportInvitations(r.Context(), r.PathValue("id"), &buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "invitations-"+sanitizeHeaderToken(r.PathValue("id"))+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (rt *Router) listQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := rt.queries.ListQueue(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"queue": entries})
}

func (rt *Router) enqueueReviewer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReviewerID        string     `json:"reviewer_id"`
		Priority          string     `json:"priority"`
		ScheduledSendDate *time.Time `json:"scheduled_send_date"`
		Notes             string     `json:"notes"`
	}
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	ms, err := rt.queries.GetManuscript(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := rt.workflow.EnqueueReviewer(r.Context(), ports.EnqueueRequest{
		ManuscriptID:  ms.ID,
		ReviewerID:    req.ReviewerID,
		Priority:      domain.QueuePriority(req.Priority),
		ScheduledSend: req.ScheduledSendDate,
		Notes:         req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (rt *Router) reorderQueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EntryIDs []string `json:"entry_ids"`
	}
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	ms, err := rt.queries.GetManuscript(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := rt.workflow.ReorderQueue(r.Context(), ms.ID, req.EntryIDs); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) sendInvitation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReviewerID string `json:"reviewer_id"`
	}
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	ms, err := rt.queries.GetManuscript(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := rt.workflow.SendInvitation(r.Context(), ms.ID, req.ReviewerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (rt *Router) removeQueueEntry(w http.ResponseWriter, r *http.Request) {
	if err := rt.workflow.RemoveQueueEntry(r.Context(), r.PathValue("entryId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) dispatchQueueEntry(w http.ResponseWriter, r *http.Request) {
	inv, err := rt.workflow.DispatchQueueEntry(r.Context(), r.PathValue("entryId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (rt *Router) moveQueueEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
	}
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	if err := rt.workflow.MoveQueueEntry(r.Context(), r.PathValue("entryId"), domain.MoveDirection(req.Direction)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) respondToInvitation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Accept *bool `json:"accept"`
	}
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Accept == nil {
		writeError(w, r, domain.NewError(domain.ErrInvalidInput, "respond to invitation", "accept is required"))
		return
	}
	rt.writeInvitation(w, r, func(id string) (*domain.ReviewInvitation, error) {
		return rt.workflow.RespondToInvitation(r.Context(), id, *req.Accept)
	})
}

func (rt *Router) submitReport(w http.ResponseWriter, r *http.Request) {
	rt.writeInvitation(w, r, func(id string) (*domain.ReviewInvitation, error) {
		return rt.workflow.SubmitReport(r.Context(), id)
	})
}

func (rt *Router) completeReview(w http.ResponseWriter, r *http.Request) {
	rt.writeInvitation(w, r, func(id string) (*domain.ReviewInvitation, error) {
		return rt.workflow.CompleteReview(r.Context(), id)
	})
}

type reasonRequest struct {
	Reason  string `json:"reason"`
	Requeue bool   `json:"requeue"`
}

func (rt *Router) revokeInvitation(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	rt.writeInvitation(w, r, func(id string) (*domain.ReviewInvitation, error) {
		return rt.workflow.RevokeInvitation(r.Context(), id, req.Reason, req.Requeue)
	})
}

func (rt *Router) invalidateReport(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	rt.writeInvitation(w, r, func(id string) (*domain.ReviewInvitation, error) {
		return rt.workflow.InvalidateReport(r.Context(), id, req.Reason)
	})
}

func (rt *Router) sendReminder(w http.ResponseWriter, r *http.Request) {
	rt.writeInvitation(w, r, func(id string) (*domain.ReviewInvitation, error) {
		return rt.workflow.SendReminder(r.Context(), id)
	})
}

func (rt *Router) setExpiration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExpiresAt *time.Time `json:"expires_at"`
	}
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	rt.writeInvitation(w, r, func(id string) (*domain.ReviewInvitation, error) {
		return rt.workflow.SetExpiration(r.Context(), id, req.ExpiresAt)
	})
}

func (rt *Router) writeInvitation(w http.ResponseWriter, r *http.Request, fn func(id string) (*domain.ReviewInvitation, error)) {
	inv, err := fn(r.PathValue("invitationId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// decodeJSON reads a bounded JSON body. An empty body is accepted unless
// required is set.
func decodeJSON(r *http.Request, dst any, required bool) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "read body", err)
	}
	if len(body) > maxBodyBytes {
		return domain.NewError(domain.ErrInvalidInput, "read body", "request body exceeds %d bytes", maxBodyBytes)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		if required {
			return domain.NewError(domain.ErrInvalidInput, "read body", "request body is required")
		}
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return domain.NewError(domain.ErrInvalidInput, "decode body", "invalid json at offset %d", syntaxErr.Offset)
		}
		return domain.WrapError(domain.ErrInvalidInput, "decode body", err)
	}
	return nil
}

func sanitizeHeaderToken(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == '"' || r == '\\' || r > 0x7e {
			return '_'
		}
		return r
	}, s)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
