package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	mw "github.com/edvin/borgdesk/internal/api/middleware"
	"github.com/edvin/borgdesk/internal/api/request"
	"github.com/edvin/borgdesk/internal/api/response"
	"github.com/edvin/borgdesk/internal/core"
	"github.com/edvin/borgdesk/internal/model"
	"github.com/edvin/borgdesk/internal/mount"
)

type Mount struct {
	manager *mount.Manager
	svc     *core.MountService
	maxAge  time.Duration
}

func NewMount(manager *mount.Manager, svc *core.MountService, maxAge time.Duration) *Mount {
	return &Mount{manager: manager, svc: svc, maxAge: maxAge}
}

// Create mounts an archive and returns the record once it is browsable.
func (h *Mount) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RepositoryID string `json:"repository_id" validate:"required"`
		ArchiveName  string `json:"archive_name" validate:"required"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.manager.Mount(r.Context(), mw.GetUserID(r.Context()), req.RepositoryID, req.ArchiveName)
	if err != nil {
		response.WriteError(w, http.StatusConflict, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusCreated, record)
}

func (h *Mount) List(w http.ResponseWriter, r *http.Request) {
	mounts, err := h.svc.ListActiveByUser(r.Context(), mw.GetUserID(r.Context()))
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, mounts)
}

// Orphaned lists active mounts older than the configured maximum age.
func (h *Mount) Orphaned(w http.ResponseWriter, r *http.Request) {
	mounts, err := h.manager.OrphanedMounts(r.Context(), h.maxAge)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, mounts)
}

func (h *Mount) Delete(w http.ResponseWriter, r *http.Request) {
	record, ok := h.ownedMount(w, r)
	if !ok {
		return
	}
	if err := h.manager.Unmount(r.Context(), record.ID); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Browse lists a directory inside the mounted archive. The path query
// parameter is relative to the mount root.
func (h *Mount) Browse(w http.ResponseWriter, r *http.Request) {
	record, ok := h.ownedMount(w, r)
	if !ok {
		return
	}

	rel := r.URL.Query().Get("path")
	entries, err := h.manager.Browse(r.Context(), record.ID, rel)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"mount_id": record.ID,
		"path":     rel,
		"entries":  entries,
	})
}

// Download streams the selected files and directories as a ZIP archive.
func (h *Mount) Download(w http.ResponseWriter, r *http.Request) {
	record, ok := h.ownedMount(w, r)
	if !ok {
		return
	}

	var req struct {
		Paths []string `json:"paths" validate:"required,min=1"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	name := fmt.Sprintf("%s_%s.zip", record.ArchiveName, time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	if err := h.manager.BundleZIP(r.Context(), record.ID, req.Paths, w); err != nil {
		// Headers are already written, so the stream just ends short.
		zerolog.Ctx(r.Context()).Error().Err(err).Str("mount_id", record.ID).Msg("zip download failed")
	}
}

func (h *Mount) ownedMount(w http.ResponseWriter, r *http.Request) (*model.Mount, bool) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	record, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	if record.UserID != mw.GetUserID(r.Context()) {
		response.WriteError(w, http.StatusForbidden, "no access to this mount")
		return nil, false
	}
	return record, true
}
