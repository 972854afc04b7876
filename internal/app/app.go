package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"go-gamification/internal/config"
	"go-gamification/internal/database"
	"go-gamification/internal/handler"
	"go-gamification/internal/metrics"
	"go-gamification/internal/middleware"
	"go-gamification/internal/repository"
	"go-gamification/internal/router"
	"go-gamification/internal/service"
)

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	appRouter, cleanup, err := NewHandler(ctx, cfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{server: server, cleanupFuncs: append(cleanup, db.Close)}, nil
}

// NewHandler wires repositories, services and routes on top of an open
// database. The returned cleanup functions release everything except db.
func NewHandler(ctx context.Context, cfg *config.Config, db *database.DB) (http.Handler, []func(), error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	repos := repository.NewManager(db.SQL)

	hasher := service.NewCredentialService(service.CredentialConfig{
		Iterations:        cfg.PBKDF2Iterations,
		MinPasswordLength: cfg.PasswordMinLength,
		Concurrency:       cfg.HashConcurrency,
	}, m)
	keys := service.NewSigningKeyService(repos.SigningKeys(), m)
	tokens := service.NewTokenService(cfg.TokenTTL)
	accounts := service.NewAccountService(repos, repos.Credentials(), hasher)
	auditService := service.NewAuditService(repos.Audit())
	loginService := service.NewLoginService(repos.Users(), repos.Roles(), repos.Credentials(), hasher, keys, tokens, m)

	if err := keys.Bootstrap(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap signing key: %w", err)
	}

	if _, err := accounts.SeedAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return nil, nil, fmt.Errorf("failed to seed admin account: %w", err)
	}

	limiter, closeLimiter, err := newLimiter(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	var cleanup []func()
	if closeLimiter != nil {
		cleanup = append(cleanup, closeLimiter)
	}

	byKeyID := cfg.KeyResolution == config.KeyResolutionKID
	authMiddleware := middleware.NewAuthMiddleware(tokens, keys, byKeyID, m)
	slog.Info("token verification configured", "key_resolution", cfg.KeyResolution, "ttl", cfg.TokenTTL)

	return router.New(cfg, authMiddleware, limiter, m, router.Handlers{
		Auth:  handler.NewAuthHandler(loginService, accounts, auditService),
		Keys:  handler.NewKeyHandler(keys, auditService),
		Audit: handler.NewAuditHandler(auditService),
		Ready: db.Health,
	}), cleanup, nil
}

// newLimiter prefers Redis so limits are shared between instances. A
// non-positive RATE_LIMIT_RPM disables limiting.
func newLimiter(ctx context.Context, cfg *config.Config) (middleware.Limiter, func(), error) {
	if cfg.RateLimitRPM <= 0 {
		slog.Info("rate limiting disabled")
		return nil, nil, nil
	}

	if cfg.RedisURL == "" {
		slog.Info("rate limiting in memory", "rpm", cfg.RateLimitRPM)
		return middleware.NewMemoryLimiter(cfg.RateLimitRPM), nil, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		slog.Warn("redis unreachable, rate limiter will fail open until it recovers", "error", err)
	}

	slog.Info("rate limiting in redis", "rpm", cfg.RateLimitRPM, "addr", opts.Addr)
	return middleware.NewRedisLimiter(client, cfg.RateLimitRPM), func() { _ = client.Close() }, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}
