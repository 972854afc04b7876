package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go-gamification/internal/metrics"
	"go-gamification/internal/model"
	"go-gamification/pkg/apierror"
)

type tokenValidator interface {
	Validate(secret []byte, token string) (*model.Claims, error)
	KeyID(token string) (int64, bool)
}

type signingKeySource interface {
	Current(ctx context.Context) (model.SigningKey, error)
	FetchByID(ctx context.Context, id int64) (model.SigningKey, error)
}

type contextKey string

const authClaimsContextKey contextKey = "auth_claims"

// AuthMiddleware guards protected routes with bearer tokens. Every failure
// is reported as 403; only the message tells the cases apart.
type AuthMiddleware struct {
	tokens  tokenValidator
	keys    signingKeySource
	byKeyID bool
	metrics *metrics.Metrics
}

// NewAuthMiddleware verifies tokens against the current signing key, or
// against the key named in the token's kid header when byKeyID is set.
func NewAuthMiddleware(tokens tokenValidator, keys signingKeySource, byKeyID bool, m *metrics.Metrics) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, keys: keys, byKeyID: byKeyID, metrics: m}
}

func (m *AuthMiddleware) Authorize(r *http.Request) (*model.Claims, error) {
	fields := strings.Fields(r.Header.Get("Authorization"))
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		m.metrics.ObserveTokenValidation(metrics.ValidationNoHeader)
		return nil, apierror.Forbidden(model.ErrNotLoggedIn, "not logged in")
	}
	token := fields[1]

	key, err := m.resolveKey(r.Context(), token)
	if errors.Is(err, model.ErrKeyNotFound) {
		m.metrics.ObserveTokenValidation(metrics.ValidationInvalid)
		return nil, apierror.Forbidden(model.ErrInvalidToken, "access denied")
	}
	if err != nil {
		return nil, fmt.Errorf("resolve signing key: %w", err)
	}

	secret, err := key.Secret()
	if err != nil {
		return nil, fmt.Errorf("decode signing key %d: %w", key.ID, err)
	}

	claims, err := m.tokens.Validate(secret, token)
	if errors.Is(err, model.ErrTokenExpired) {
		m.metrics.ObserveTokenValidation(metrics.ValidationExpired)
		return nil, apierror.Forbidden(model.ErrTokenExpired, "token expired")
	}
	if err != nil {
		m.metrics.ObserveTokenValidation(metrics.ValidationInvalid)
		return nil, apierror.Forbidden(model.ErrInvalidToken, "access denied")
	}

	m.metrics.ObserveTokenValidation(metrics.ValidationOK)
	return claims, nil
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.Authorize(r)
		if err != nil {
			writeAuthError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), authClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles must run after RequireAuth. A request passes when its token
// carries any of allowedRoles.
func (m *AuthMiddleware) RequireRoles(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeAuthError(w, apierror.Forbidden(model.ErrNotLoggedIn, "not logged in"))
				return
			}

			for _, role := range allowedRoles {
				if claims.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeAuthError(w, apierror.Forbidden(model.ErrForbidden, "insufficient permissions"))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*model.Claims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(*model.Claims)
	return claims, ok
}

func (m *AuthMiddleware) resolveKey(ctx context.Context, token string) (model.SigningKey, error) {
	if m.byKeyID {
		if id, ok := m.tokens.KeyID(token); ok {
			return m.keys.FetchByID(ctx, id)
		}
	}
	return m.keys.Current(ctx)
}

func writeAuthError(w http.ResponseWriter, err error) {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		writeJSONError(w, apiErr.HTTPStatus, apiErr.Code, apiErr.Message)
		return
	}

	slog.Error("authorization failed", "error", err)
	writeJSONError(w, http.StatusInternalServerError, apierror.CodeInternal, "Unexpected server error")
}
