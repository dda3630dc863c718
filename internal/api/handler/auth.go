package handler

import (
	"net/http"

	mw "github.com/edvin/borgdesk/internal/api/middleware"
	"github.com/edvin/borgdesk/internal/api/request"
	"github.com/edvin/borgdesk/internal/api/response"
	"github.com/edvin/borgdesk/internal/core"
	"github.com/edvin/borgdesk/internal/model"
)

type Auth struct {
	svc   *core.AuthService
	users *core.UserService
}

func NewAuth(svc *core.AuthService, users *core.UserService) *Auth {
	return &Auth{svc: svc, users: users}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Login authenticates a user and returns a signed token.
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, user, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		response.WriteError(w, http.StatusUnauthorized, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// Me returns the authenticated user.
func (h *Auth) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), mw.GetUserID(r.Context()))
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, user)
}
