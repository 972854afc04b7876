package handler

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-gamification/internal/middleware"
	"go-gamification/internal/model"
	"go-gamification/internal/service"
)

type recordingAuditStore struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (s *recordingAuditStore) Log(_ context.Context, entry model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *recordingAuditStore) Query(context.Context, model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditEntry(nil), s.entries...), model.Meta{Page: 1, Limit: 50, Total: len(s.entries), TotalPages: 1}, nil
}

func (s *recordingAuditStore) last(t *testing.T) model.AuditEntry {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.entries)
	return s.entries[len(s.entries)-1]
}

type staticKeySource struct{ key model.SigningKey }

func (s staticKeySource) Current(context.Context) (model.SigningKey, error) { return s.key, nil }

func (s staticKeySource) FetchByID(context.Context, int64) (model.SigningKey, error) {
	return s.key, nil
}

// authenticated wraps next with a real gate and returns a token it accepts.
func authenticated(t *testing.T, roles []model.RoleRef, next http.Handler) (http.Handler, string) {
	t.Helper()

	key := model.SigningKey{ID: 1, Value: base64.StdEncoding.EncodeToString([]byte("handler test secret"))}
	tokens := service.NewTokenService(time.Hour)
	gate := middleware.NewAuthMiddleware(tokens, staticKeySource{key: key}, false, nil)

	token, err := tokens.IssueWithKey(key, model.UserIdentity{ID: 1, Username: "user1", Email: "user1@foo.com"}, roles, time.Hour)
	require.NoError(t, err)

	return gate.RequireAuth(next), token
}

func jsonBody(s string) *strings.Reader {
	return strings.NewReader(s)
}
