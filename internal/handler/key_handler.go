package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"go-gamification/internal/model"
	"go-gamification/internal/service"
	"go-gamification/pkg/apierror"
)

type signingKeyAdmin interface {
	FetchAll(ctx context.Context) ([]model.SigningKey, error)
	Rotate(ctx context.Context) (model.SigningKey, error)
	Revoke(ctx context.Context, id int64) error
}

// KeyHandler exposes signing key metadata. Secret values never leave the
// service.
type KeyHandler struct {
	keys  signingKeyAdmin
	audit *service.AuditService
}

func NewKeyHandler(keys signingKeyAdmin, audit *service.AuditService) *KeyHandler {
	return &KeyHandler{keys: keys, audit: audit}
}

func (h *KeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.FetchAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.SigningKeyList{Keys: keys}, nil)
}

func (h *KeyHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	key, err := h.keys.Rotate(r.Context())
	if err != nil {
		h.audit.Log(r.Context(), model.AuditActionKeyRotate, actorFromRequest(r), model.AuditStatusFailure, "", err.Error())
		writeError(w, err)
		return
	}

	h.audit.Log(r.Context(), model.AuditActionKeyRotate, actorFromRequest(r), model.AuditStatusSuccess, keyResource(key.ID), "")
	writeSuccess(w, http.StatusCreated, key, nil)
}

func (h *KeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, apierror.BadRequest("invalid signing key id", raw))
		return
	}

	if err := h.keys.Revoke(r.Context(), id); err != nil {
		h.audit.Log(r.Context(), model.AuditActionKeyRevoke, actorFromRequest(r), model.AuditStatusFailure, keyResource(id), err.Error())
		writeError(w, err)
		return
	}

	h.audit.Log(r.Context(), model.AuditActionKeyRevoke, actorFromRequest(r), model.AuditStatusSuccess, keyResource(id), "")
	writeSuccess(w, http.StatusOK, map[string]any{"id": id, "revoked": true}, nil)
}

func keyResource(id int64) string {
	return fmt.Sprintf("signing_key:%d", id)
}
