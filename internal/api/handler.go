// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github-dashboard/internal/apierr"
	"github-dashboard/internal/model"
	"github-dashboard/internal/store"
)

// DashboardService is the application surface the HTTP layer exposes.
type DashboardService interface {
	Repos(ctx context.Context, force bool) ([]model.Repository, error)
	Issues(ctx context.Context, force bool) ([]model.Issue, error)
	PullRequests(ctx context.Context, force bool) ([]model.PullRequest, error)
	Commits(ctx context.Context, force bool) ([]model.Commit, error)
	Stats(ctx context.Context, force bool) (model.Stats, error)
	Timeline(ctx context.Context, force bool) ([]model.TimelineEvent, error)
	Ops(ctx context.Context, force bool) (model.OpsSummary, error)
	Sync(ctx context.Context) (model.SyncReport, error)
	RunAutomation(ctx context.Context, apply, force bool) (model.AutomationReport, error)
}

// Documents is the persisted-document surface (rules, alerts, knowledge).
type Documents interface {
	Rules() ([]model.Rule, error)
	CreateRule(rule model.Rule) (model.Rule, error)
	UpdateRule(id string, patch store.RulePatch) (model.Rule, error)
	DeleteRule(id string) error

	Alerts() ([]model.Alert, error)
	CreateAlert(alert model.Alert) (model.Alert, error)
	AcknowledgeAlert(id string) (model.Alert, error)
	DeleteAlert(id string) error

	Knowledge() (map[string]model.Knowledge, error)
	SetKnowledge(repo string, entry model.Knowledge) (model.Knowledge, error)
	DeleteKnowledge(repo string) error
}

// Handler is the container for API dependencies.
type Handler struct {
	svc    DashboardService
	docs   Documents
	logger *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(svc DashboardService, docs Documents, logger *slog.Logger) http.Handler {
	h := &Handler{
		svc:    svc,
		docs:   docs,
		logger: logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		r.Get("/repos", h.getRepos)
		r.Get("/issues", h.getIssues)
		r.Get("/prs", h.getPRs)
		r.Get("/commits", h.getCommits)
		r.Get("/stats", h.getStats)
		r.Get("/timeline", h.getTimeline)
		r.Get("/ops", h.getOps)

		r.Post("/sync", h.postSync)
		r.Post("/automation/run", h.postAutomationRun)

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.listRules)
			r.Post("/", h.createRule)
			r.Patch("/{id}", h.updateRule)
			r.Delete("/{id}", h.deleteRule)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.listAlerts)
			r.Post("/", h.createAlert)
			r.Post("/{id}/ack", h.acknowledgeAlert)
			r.Delete("/{id}", h.deleteAlert)
		})

		r.Route("/knowledge", func(r chi.Router) {
			r.Get("/", h.getKnowledge)
			r.Post("/", h.setKnowledge)
			r.Delete("/", h.deleteKnowledge)
		})
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// wantRefresh reports whether the request asks for a cache bypass.
// GET /api/...?refresh=1
func wantRefresh(r *http.Request) bool {
	v := r.URL.Query().Get("refresh")
	return v == "1" || v == "true"
}

func (h *Handler) getRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := h.svc.Repos(r.Context(), wantRefresh(r))
	if err != nil {
		h.respondFetchError(w, "Failed to get repositories", err)
		return
	}
	respondWithJSON(w, http.StatusOK, repos)
}

func (h *Handler) getIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := h.svc.Issues(r.Context(), wantRefresh(r))
	if err != nil {
		h.respondFetchError(w, "Failed to get issues", err)
		return
	}
	respondWithJSON(w, http.StatusOK, issues)
}

func (h *Handler) getPRs(w http.ResponseWriter, r *http.Request) {
	prs, err := h.svc.PullRequests(r.Context(), wantRefresh(r))
	if err != nil {
		h.respondFetchError(w, "Failed to get pull requests", err)
		return
	}
	respondWithJSON(w, http.StatusOK, prs)
}

func (h *Handler) getCommits(w http.ResponseWriter, r *http.Request) {
	commits, err := h.svc.Commits(r.Context(), wantRefresh(r))
	if err != nil {
		h.respondFetchError(w, "Failed to get commits", err)
		return
	}
	respondWithJSON(w, http.StatusOK, commits)
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	overview, err := h.svc.Stats(r.Context(), wantRefresh(r))
	if err != nil {
		h.respondFetchError(w, "Failed to get stats", err)
		return
	}
	respondWithJSON(w, http.StatusOK, overview)
}

func (h *Handler) getTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.Timeline(r.Context(), wantRefresh(r))
	if err != nil {
		h.respondFetchError(w, "Failed to get timeline", err)
		return
	}
	respondWithJSON(w, http.StatusOK, events)
}

func (h *Handler) getOps(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Ops(r.Context(), wantRefresh(r))
	if err != nil {
		h.respondFetchError(w, "Failed to get ops summary", err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

// postSync runs a full fetch and snapshot.
// POST /api/sync
func (h *Handler) postSync(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Sync(r.Context())
	if err != nil {
		h.respondFetchError(w, "Sync failed", err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

// postAutomationRun evaluates all rules; {"apply": true} persists alerts.
// POST /api/automation/run
func (h *Handler) postAutomationRun(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Apply   bool `json:"apply"`
		Refresh bool `json:"refresh"`
	}
	if r.Body != nil {
		// An empty body means a dry run.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	report, err := h.svc.RunAutomation(r.Context(), body.Apply, body.Refresh)
	if err != nil {
		h.respondFetchError(w, "Automation run failed", err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.docs.Rules()
	if err != nil {
		h.logger.Error("Failed to list rules", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if rules == nil {
		rules = []model.Rule{}
	}
	respondWithJSON(w, http.StatusOK, rules)
}

type ruleRequest struct {
	Name       string               `json:"name"`
	Scope      string               `json:"scope"`
	Conditions model.RuleConditions `json:"conditions"`
	Actions    model.RuleActions    `json:"actions"`
	Enabled    *bool                `json:"enabled"`
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "Rule 'name' is required")
		return
	}

	rule := model.Rule{
		Name:       req.Name,
		Scope:      req.Scope,
		Conditions: req.Conditions,
		Actions:    req.Actions,
		Enabled:    req.Enabled == nil || *req.Enabled,
	}
	if rule.Scope == "" {
		rule.Scope = model.ScopeGlobal
	}

	created, err := h.docs.CreateRule(rule)
	if err != nil {
		h.logger.Error("Failed to create rule", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch store.RulePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	updated, err := h.docs.UpdateRule(id, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Rule not found")
			return
		}
		h.logger.Error("Failed to update rule", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.docs.DeleteRule(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Rule not found")
			return
		}
		h.logger.Error("Failed to delete rule", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.docs.Alerts()
	if err != nil {
		h.logger.Error("Failed to list alerts", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	respondWithJSON(w, http.StatusOK, alerts)
}

type alertRequest struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Repo     string `json:"repo"`
}

func (h *Handler) createAlert(w http.ResponseWriter, r *http.Request) {
	var req alertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Title == "" {
		respondWithError(w, http.StatusBadRequest, "Alert 'title' is required")
		return
	}

	created, err := h.docs.CreateAlert(model.Alert{
		Type:     req.Type,
		Severity: req.Severity,
		Title:    req.Title,
		Message:  req.Message,
		Repo:     req.Repo,
	})
	if err != nil {
		h.logger.Error("Failed to create alert", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *Handler) acknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	alert, err := h.docs.AcknowledgeAlert(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Alert not found")
			return
		}
		h.logger.Error("Failed to acknowledge alert", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, alert)
}

func (h *Handler) deleteAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.docs.DeleteAlert(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Alert not found")
			return
		}
		h.logger.Error("Failed to delete alert", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// getKnowledge returns the full map, or a single entry with ?repo=.
func (h *Handler) getKnowledge(w http.ResponseWriter, r *http.Request) {
	entries, err := h.docs.Knowledge()
	if err != nil {
		h.logger.Error("Failed to get knowledge", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if repo := r.URL.Query().Get("repo"); repo != "" {
		entry, ok := entries[repo]
		if !ok {
			respondWithError(w, http.StatusNotFound, "No knowledge for repository")
			return
		}
		respondWithJSON(w, http.StatusOK, entry)
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}

type knowledgeRequest struct {
	Repo  string   `json:"repo"`
	Tags  []string `json:"tags"`
	Notes string   `json:"notes"`
}

func (h *Handler) setKnowledge(w http.ResponseWriter, r *http.Request) {
	var req knowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Repo == "" {
		respondWithError(w, http.StatusBadRequest, "Knowledge 'repo' is required")
		return
	}

	entry, err := h.docs.SetKnowledge(req.Repo, model.Knowledge{Tags: req.Tags, Notes: req.Notes})
	if err != nil {
		h.logger.Error("Failed to set knowledge", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, entry)
}

func (h *Handler) deleteKnowledge(w http.ResponseWriter, r *http.Request) {
	repo := r.URL.Query().Get("repo")
	if repo == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'repo' is required")
		return
	}
	if err := h.docs.DeleteKnowledge(repo); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "No knowledge for repository")
			return
		}
		h.logger.Error("Failed to delete knowledge", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// respondFetchError maps fetch failures to status codes. A refused rate
// limit with no snapshot to fall back on surfaces as 503.
func (h *Handler) respondFetchError(w http.ResponseWriter, msg string, err error) {
	var rateErr *apierr.RateLimitError
	if errors.As(err, &rateErr) {
		h.logger.Warn(msg, "error", err)
		respondWithError(w, http.StatusServiceUnavailable, "GitHub rate limit exceeded, try again later")
		return
	}
	h.logger.Error(msg, "error", err)
	respondWithError(w, http.StatusInternalServerError, "Internal server error")
}
