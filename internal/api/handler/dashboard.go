package handler

import (
	"net/http"

	mw "github.com/edvin/borgdesk/internal/api/middleware"
	"github.com/edvin/borgdesk/internal/api/response"
	"github.com/edvin/borgdesk/internal/core"
)

type Dashboard struct {
	svc *core.DashboardService
}

func NewDashboard(svc *core.DashboardService) *Dashboard {
	return &Dashboard{svc: svc}
}

func (h *Dashboard) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), mw.GetUserID(r.Context()))
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, stats)
}
