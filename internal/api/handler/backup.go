package handler

import (
	"net/http"

	mw "github.com/edvin/borgdesk/internal/api/middleware"
	"github.com/edvin/borgdesk/internal/api/request"
	"github.com/edvin/borgdesk/internal/api/response"
	"github.com/edvin/borgdesk/internal/runner"
)

type Backup struct {
	runner *runner.Runner
}

func NewBackup(run *runner.Runner) *Backup {
	return &Backup{runner: run}
}

// Create starts a backup job and returns it immediately. Progress is
// observed through the job endpoints.
func (h *Backup) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RepositoryID string `json:"repository_id" validate:"required"`
		SourceID     string `json:"source_id" validate:"required"`
		ArchiveName  string `json:"archive_name"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.runner.StartBackup(r.Context(), mw.GetUserID(r.Context()), req.RepositoryID, req.SourceID, req.ArchiveName)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusAccepted, job)
}
