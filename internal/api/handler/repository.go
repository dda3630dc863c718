package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	mw "github.com/edvin/borgdesk/internal/api/middleware"
	"github.com/edvin/borgdesk/internal/api/request"
	"github.com/edvin/borgdesk/internal/api/response"
	"github.com/edvin/borgdesk/internal/borg"
	"github.com/edvin/borgdesk/internal/core"
	"github.com/edvin/borgdesk/internal/model"
	"github.com/edvin/borgdesk/internal/platform"
	"github.com/edvin/borgdesk/internal/runner"
)

type Repository struct {
	svc       *core.RepositoryService
	jobs      *core.JobService
	analytics *core.AnalyticsService
	runner    *runner.Runner
}

func NewRepository(svc *core.RepositoryService, jobs *core.JobService, analytics *core.AnalyticsService, run *runner.Runner) *Repository {
	return &Repository{svc: svc, jobs: jobs, analytics: analytics, runner: run}
}

func (h *Repository) List(w http.ResponseWriter, r *http.Request) {
	repos, err := h.svc.ListByUser(r.Context(), mw.GetUserID(r.Context()))
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, repos)
}

func (h *Repository) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string   `json:"name" validate:"required,slug"`
		Path       string   `json:"path" validate:"required"`
		Encryption *string  `json:"encryption"`
		Passphrase *string  `json:"passphrase"`
		MaxSizeGB  *float64 `json:"max_size_gb"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	repo := &model.Repository{
		ID:         platform.NewID(),
		Name:       req.Name,
		Path:       req.Path,
		Encryption: req.Encryption,
		Passphrase: req.Passphrase,
		MaxSizeGB:  req.MaxSizeGB,
		UserID:     mw.GetUserID(r.Context()),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.svc.Create(r.Context(), repo); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusCreated, repo)
}

func (h *Repository) Get(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.ownedRepo(w, r)
	if !ok {
		return
	}
	response.WriteJSON(w, http.StatusOK, repo)
}

// Update applies the editable repository settings.
func (h *Repository) Update(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.ownedRepo(w, r)
	if !ok {
		return
	}

	var req struct {
		Name       *string  `json:"name"`
		Passphrase *string  `json:"passphrase"`
		MaxSizeGB  *float64 `json:"max_size_gb"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Name != nil {
		repo.Name = *req.Name
	}
	if req.Passphrase != nil {
		repo.Passphrase = req.Passphrase
	}
	if err := h.svc.Update(r.Context(), repo); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if req.MaxSizeGB != nil {
		if err := h.svc.UpdateMaxSize(r.Context(), repo.ID, *req.MaxSizeGB); err != nil {
			response.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		repo.MaxSizeGB = req.MaxSizeGB
	}

	response.WriteJSON(w, http.StatusOK, repo)
}

func (h *Repository) Delete(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.ownedRepo(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), repo.ID); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Archives returns the archive list from the latest successful list job.
func (h *Repository) Archives(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.ownedRepo(w, r)
	if !ok {
		return
	}

	job, err := h.jobs.LatestSuccessful(r.Context(), repo.ID, model.JobTypeList)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	archives := []borg.Archive{}
	if job != nil && len(job.Metadata) > 0 {
		var meta core.JobMetadata
		if err := json.Unmarshal(job.Metadata, &meta); err == nil {
			archives = meta.Archives
		}
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"archives":   archives,
		"refreshed":  job != nil,
		"as_of_job":  jobID(job),
		"repository": repo.ID,
	})
}

func jobID(job *model.Job) string {
	if job == nil {
		return ""
	}
	return job.ID
}

// RefreshArchives starts a list job so the archive view catches up with the
// repository.
func (h *Repository) RefreshArchives(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.ownedRepo(w, r)
	if !ok {
		return
	}
	job, err := h.runner.StartList(r.Context(), mw.GetUserID(r.Context()), repo.ID)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusAccepted, job)
}

// Prune starts a prune job with the requested retention.
func (h *Repository) Prune(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.ownedRepo(w, r)
	if !ok {
		return
	}

	var req struct {
		KeepDaily   int    `json:"keep_daily"`
		KeepWeekly  int    `json:"keep_weekly"`
		KeepMonthly int    `json:"keep_monthly"`
		Prefix      string `json:"prefix"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.runner.StartPrune(r.Context(), mw.GetUserID(r.Context()), repo.ID, borg.PruneOptions{
		KeepDaily:   req.KeepDaily,
		KeepWeekly:  req.KeepWeekly,
		KeepMonthly: req.KeepMonthly,
		Prefix:      req.Prefix,
	})
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusAccepted, job)
}

// Jobs lists the repository's recent jobs.
func (h *Repository) Jobs(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.ownedRepo(w, r)
	if !ok {
		return
	}
	jobs, err := h.jobs.ListByRepository(r.Context(), repo.ID, limitParam(r, 0))
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, jobs)
}

func (h *Repository) Stats(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.ownedRepo(w, r)
	if !ok {
		return
	}
	stats, err := h.analytics.RepositoryStats(r.Context(), repo.ID)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, stats)
}

func (h *Repository) GrowthChart(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.ownedRepo(w, r)
	if !ok {
		return
	}
	chart, err := h.analytics.GrowthChart(r.Context(), repo.ID)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, chart)
}

func (h *Repository) FrequencyChart(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.ownedRepo(w, r)
	if !ok {
		return
	}
	chart, err := h.analytics.FrequencyChart(r.Context(), repo.ID)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, chart)
}

func (h *Repository) Forecast(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.ownedRepo(w, r)
	if !ok {
		return
	}
	forecast, err := h.analytics.Forecast(r.Context(), repo.ID)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, forecast)
}

// ownedRepo loads the repository from the URL and checks it belongs to the
// caller. On failure the response is already written.
func (h *Repository) ownedRepo(w http.ResponseWriter, r *http.Request) (*model.Repository, bool) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	repo, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	if repo.UserID != mw.GetUserID(r.Context()) {
		response.WriteError(w, http.StatusForbidden, "no access to this repository")
		return nil, false
	}
	return repo, true
}
