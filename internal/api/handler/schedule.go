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

type Schedule struct {
	svc *core.ScheduleService
}

func NewSchedule(svc *core.ScheduleService) *Schedule {
	return &Schedule{svc: svc}
}

type scheduleRequest struct {
	Name          string  `json:"name" validate:"required,slug"`
	RepositoryID  string  `json:"repository_id" validate:"required"`
	SourceID      string  `json:"source_id" validate:"required"`
	ArchivePrefix *string `json:"archive_prefix"`
	Frequency     string  `json:"frequency" validate:"required,oneof=daily weekly monthly"`
	Hour          int     `json:"hour" validate:"min=0,max=23"`
	Minute        int     `json:"minute" validate:"min=0,max=59"`
	DayOfWeek     *string `json:"day_of_week"`
	DayOfMonth    *int    `json:"day_of_month"`
	KeepDaily     int     `json:"keep_daily"`
	KeepWeekly    int     `json:"keep_weekly"`
	KeepMonthly   int     `json:"keep_monthly"`
	AutoPrune     bool    `json:"auto_prune"`
}

func (h *Schedule) List(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.svc.ListByUser(r.Context(), mw.GetUserID(r.Context()))
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, schedules)
}

func (h *Schedule) Create(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sc := &model.Schedule{
		ID:            platform.NewID(),
		Name:          req.Name,
		RepositoryID:  req.RepositoryID,
		SourceID:      req.SourceID,
		UserID:        mw.GetUserID(r.Context()),
		ArchivePrefix: req.ArchivePrefix,
		Frequency:     req.Frequency,
		Hour:          req.Hour,
		Minute:        req.Minute,
		DayOfWeek:     req.DayOfWeek,
		DayOfMonth:    req.DayOfMonth,
		KeepDaily:     req.KeepDaily,
		KeepWeekly:    req.KeepWeekly,
		KeepMonthly:   req.KeepMonthly,
		AutoPrune:     req.AutoPrune,
		IsActive:      true,
		CreatedAt:     time.Now(),
	}
	if _, err := sc.CronExpression(); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Create(r.Context(), sc); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusCreated, sc)
}

func (h *Schedule) Get(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.ownedSchedule(w, r)
	if !ok {
		return
	}
	response.WriteJSON(w, http.StatusOK, sc)
}

func (h *Schedule) Update(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.ownedSchedule(w, r)
	if !ok {
		return
	}

	var req scheduleRequest
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sc.Name = req.Name
	sc.RepositoryID = req.RepositoryID
	sc.SourceID = req.SourceID
	sc.ArchivePrefix = req.ArchivePrefix
	sc.Frequency = req.Frequency
	sc.Hour = req.Hour
	sc.Minute = req.Minute
	sc.DayOfWeek = req.DayOfWeek
	sc.DayOfMonth = req.DayOfMonth
	sc.KeepDaily = req.KeepDaily
	sc.KeepWeekly = req.KeepWeekly
	sc.KeepMonthly = req.KeepMonthly
	sc.AutoPrune = req.AutoPrune

	if _, err := sc.CronExpression(); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.Update(r.Context(), sc); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, sc)
}

func (h *Schedule) Enable(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Schedule) Disable(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Schedule) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	sc, ok := h.ownedSchedule(w, r)
	if !ok {
		return
	}
	sc.IsActive = active
	if err := h.svc.Update(r.Context(), sc); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, sc)
}

func (h *Schedule) Delete(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.ownedSchedule(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), sc.ID); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Schedule) ownedSchedule(w http.ResponseWriter, r *http.Request) (*model.Schedule, bool) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	sc, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	if sc.UserID != mw.GetUserID(r.Context()) {
		response.WriteError(w, http.StatusForbidden, "no access to this schedule")
		return nil, false
	}
	return sc, true
}
