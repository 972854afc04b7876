package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-gamification/internal/config"
	"go-gamification/internal/handler"
	"go-gamification/internal/metrics"
	"go-gamification/internal/middleware"
	"go-gamification/internal/service"
)

type Handlers struct {
	Auth  *handler.AuthHandler
	Keys  *handler.KeyHandler
	Audit *handler.AuditHandler
	// Ready reports whether dependencies are reachable. Nil disables /ready.
	Ready func(ctx context.Context) error
}

func New(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	limiter middleware.Limiter,
	m *metrics.Metrics,
	h Handlers,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(limiter)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging(m))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if h.Ready != nil {
		r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
			if err := h.Ready(req.Context()); err != nil {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
	}
	r.Handle("/metrics", m.Handler())

	r.With(middleware.Timeout(cfg.RequestTimeout)).Post("/login", h.Auth.Login)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Post("/auth/login", h.Auth.Login)

		api.Group(func(protected chi.Router) {
			protected.Use(rateLimitMiddleware.Handler)
			protected.Use(authMiddleware.RequireAuth)

			protected.Get("/auth/me", h.Auth.Me)
			protected.Put("/auth/password", h.Auth.ChangePassword)

			protected.Group(func(admin chi.Router) {
				admin.Use(authMiddleware.RequireRoles(service.AdminRole))

				admin.Get("/signing-keys", h.Keys.List)
				admin.Post("/signing-keys/rotate", h.Keys.Rotate)
				admin.Delete("/signing-keys/{id}", h.Keys.Revoke)
				admin.Get("/audit", h.Audit.List)
			})
		})
	})

	return r
}
