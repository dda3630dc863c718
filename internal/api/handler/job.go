package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/edvin/borgdesk/internal/api/middleware"
	"github.com/edvin/borgdesk/internal/api/request"
	"github.com/edvin/borgdesk/internal/api/response"
	"github.com/edvin/borgdesk/internal/core"
	"github.com/edvin/borgdesk/internal/model"
	"github.com/edvin/borgdesk/internal/runner"
)

type Job struct {
	svc    *core.JobService
	runner *runner.Runner
}

func NewJob(svc *core.JobService, run *runner.Runner) *Job {
	return &Job{svc: svc, runner: run}
}

func (h *Job) List(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.svc.ListByUser(r.Context(), mw.GetUserID(r.Context()), limitParam(r, 0))
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, jobs)
}

func (h *Job) Get(w http.ResponseWriter, r *http.Request) {
	job, ok := h.ownedJob(w, r)
	if !ok {
		return
	}
	response.WriteJSON(w, http.StatusOK, job)
}

// Log returns the job output from the given byte offset, so a front end can
// poll a running job and append only what is new.
func (h *Job) Log(w http.ResponseWriter, r *http.Request) {
	job, ok := h.ownedJob(w, r)
	if !ok {
		return
	}

	offset := offsetParam(r)
	output := job.LogOutput
	if offset > len(output) {
		offset = len(output)
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"job_id":   job.ID,
		"status":   job.Status,
		"offset":   offset,
		"output":   output[offset:],
		"length":   len(output),
		"finished": job.Finished(),
	})
}

func (h *Job) Cancel(w http.ResponseWriter, r *http.Request) {
	job, ok := h.ownedJob(w, r)
	if !ok {
		return
	}
	if err := h.runner.Cancel(r.Context(), job.ID); err != nil {
		response.WriteError(w, http.StatusConflict, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": model.JobStatusCancelled})
}

func (h *Job) ownedJob(w http.ResponseWriter, r *http.Request) (*model.Job, bool) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	job, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	if job.UserID != mw.GetUserID(r.Context()) {
		response.WriteError(w, http.StatusForbidden, "no access to this job")
		return nil, false
	}
	return job, true
}
