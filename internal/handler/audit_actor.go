package handler

import (
	"net/http"

	"go-gamification/internal/middleware"
	"go-gamification/internal/model"
)

// actorFromRequest identifies who made r. Anonymous requests only carry an IP.
func actorFromRequest(r *http.Request) model.AuditActor {
	actor := model.AuditActor{IP: middleware.ClientIP(r)}

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return actor
	}

	actor.UserID = claims.SubjectID
	actor.Username = claims.Username

	return actor
}
