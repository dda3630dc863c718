package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	mw "github.com/edvin/borgdesk/internal/api/middleware"
	"github.com/edvin/borgdesk/internal/api/request"
	"github.com/edvin/borgdesk/internal/api/response"
	"github.com/edvin/borgdesk/internal/core"
	"github.com/edvin/borgdesk/internal/model"
	"github.com/edvin/borgdesk/internal/platform"
)

type Source struct {
	svc *core.SourceService
}

func NewSource(svc *core.SourceService) *Source {
	return &Source{svc: svc}
}

func (h *Source) List(w http.ResponseWriter, r *http.Request) {
	sources, err := h.svc.ListByUser(r.Context(), mw.GetUserID(r.Context()))
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, sources)
}

func (h *Source) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string  `json:"name" validate:"required,slug"`
		SourceType string  `json:"source_type" validate:"required,oneof=local ssh"`
		Path       string  `json:"path" validate:"required"`
		SSHHost    *string `json:"ssh_host"`
		SSHPort    int     `json:"ssh_port"`
		SSHUser    *string `json:"ssh_user"`
		SSHKeyPath *string `json:"ssh_key_path"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SourceType == model.SourceTypeSSH && (req.SSHHost == nil || *req.SSHHost == "") {
		response.WriteError(w, http.StatusBadRequest, "ssh sources need ssh_host")
		return
	}

	port := req.SSHPort
	if port == 0 {
		port = 22
	}
	src := &model.Source{
		ID:         platform.NewID(),
		Name:       req.Name,
		SourceType: req.SourceType,
		Path:       req.Path,
		SSHHost:    req.SSHHost,
		SSHPort:    port,
		SSHUser:    req.SSHUser,
		SSHKeyPath: req.SSHKeyPath,
		UserID:     mw.GetUserID(r.Context()),
		CreatedAt:  time.Now(),
	}
	if err := h.svc.Create(r.Context(), src); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusCreated, src)
}

func (h *Source) Get(w http.ResponseWriter, r *http.Request) {
	src, ok := h.ownedSource(w, r)
	if !ok {
		return
	}
	response.WriteJSON(w, http.StatusOK, src)
}

func (h *Source) Update(w http.ResponseWriter, r *http.Request) {
	src, ok := h.ownedSource(w, r)
	if !ok {
		return
	}

	var req struct {
		Name       *string `json:"name"`
		Path       *string `json:"path"`
		SSHHost    *string `json:"ssh_host"`
		SSHPort    *int    `json:"ssh_port"`
		SSHUser    *string `json:"ssh_user"`
		SSHKeyPath *string `json:"ssh_key_path"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Name != nil {
		src.Name = *req.Name
	}
	if req.Path != nil {
		src.Path = *req.Path
	}
	if req.SSHHost != nil {
		src.SSHHost = req.SSHHost
	}
	if req.SSHPort != nil {
		src.SSHPort = *req.SSHPort
	}
	if req.SSHUser != nil {
		src.SSHUser = req.SSHUser
	}
	if req.SSHKeyPath != nil {
		src.SSHKeyPath = req.SSHKeyPath
	}

	if err := h.svc.Update(r.Context(), src); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, src)
}

func (h *Source) Delete(w http.ResponseWriter, r *http.Request) {
	src, ok := h.ownedSource(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), src.ID); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Source) ownedSource(w http.ResponseWriter, r *http.Request) (*model.Source, bool) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	src, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	if src.UserID != mw.GetUserID(r.Context()) {
		response.WriteError(w, http.StatusForbidden, "no access to this source")
		return nil, false
	}
	return src, true
}
