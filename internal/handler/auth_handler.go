package handler

import (
	"context"
	"errors"
	"net/http"

	"go-gamification/internal/middleware"
	"go-gamification/internal/model"
	"go-gamification/internal/service"
	"go-gamification/pkg/apierror"
)

type loginService interface {
	Login(ctx context.Context, handle string, password string) (model.TokenResponse, error)
}

type passwordChanger interface {
	ChangePassword(ctx context.Context, userID int64, current string, next string) error
}

type AuthHandler struct {
	login    loginService
	accounts passwordChanger
	audit    *service.AuditService
}

func NewAuthHandler(login loginService, accounts passwordChanger, audit *service.AuditService) *AuthHandler {
	return &AuthHandler{login: login, accounts: accounts, audit: audit}
}

// Login answers with the bare token body rather than the usual envelope.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := payload.Validate(); err != nil {
		writeError(w, apierror.Unprocessable(model.ErrInvalidInput, "handle and password are required", err.Error()))
		return
	}

	actor := actorFromRequest(r)
	actor.Username = payload.Handle

	tokens, err := h.login.Login(r.Context(), payload.Handle, payload.Password)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			h.audit.Log(r.Context(), model.AuditActionLogin, actor, model.AuditStatusFailure, "", "invalid handle or password")
		}
		writeError(w, err)
		return
	}

	h.audit.Log(r.Context(), model.AuditActionLogin, actor, model.AuditStatusSuccess, "", "")
	writeJSON(w, http.StatusOK, tokens)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrNotLoggedIn)
		return
	}

	writeSuccess(w, http.StatusOK, claims, nil)
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrNotLoggedIn)
		return
	}

	var payload model.ChangePasswordRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := payload.Validate(); err != nil {
		writeError(w, apierror.Unprocessable(model.ErrInvalidInput, "current_password and new_password are required", err.Error()))
		return
	}

	actor := actorFromRequest(r)
	if err := h.accounts.ChangePassword(r.Context(), claims.SubjectID, payload.CurrentPassword, payload.NewPassword); err != nil {
		h.audit.Log(r.Context(), model.AuditActionPasswordChange, actor, model.AuditStatusFailure, "", err.Error())
		writeError(w, err)
		return
	}

	h.audit.Log(r.Context(), model.AuditActionPasswordChange, actor, model.AuditStatusSuccess, "", "")
	writeSuccess(w, http.StatusOK, map[string]any{"password_changed": true}, nil)
}
