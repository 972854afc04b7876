//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-gamification/internal/app"
	"go-gamification/internal/config"
	"go-gamification/internal/database"
	"go-gamification/internal/model"
)

const (
	adminPassword = "integration-admin-password"
	testRPM       = 1000
)

// openDatabase connects to TEST_DATABASE_URL and empties every auth table.
func openDatabase(t *testing.T) *database.DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, url, 8, 1)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(ctx))
	_, err = db.SQL.ExecContext(ctx,
		`TRUNCATE audit_entries, signing_keys, credentials, user_roles, roles, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return db
}

func testConfig(mutate func(*config.Config)) *config.Config {
	cfg := &config.Config{
		ServerPort:        "0",
		RequestTimeout:    10 * time.Second,
		CORSOrigins:       []string{"*"},
		RateLimitRPM:      testRPM,
		PBKDF2Iterations:  100_000,
		HashConcurrency:   4,
		PasswordMinLength: 8,
		TokenTTL:          time.Hour,
		KeyResolution:     config.KeyResolutionCurrent,
		AdminUsername:     "admin",
		AdminEmail:        "admin@example.com",
		AdminPassword:     adminPassword,
	}
	if mutate != nil {
		mutate(cfg)
	}
	return cfg
}

func newServer(t *testing.T, db *database.DB, cfg *config.Config) *httptest.Server {
	t.Helper()

	h, cleanup, err := app.NewHandler(context.Background(), cfg, db)
	require.NoError(t, err)
	t.Cleanup(func() {
		for _, fn := range cleanup {
			fn()
		}
	})

	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return server
}

func login(t *testing.T, server *httptest.Server, handle string, password string) (*http.Response, model.TokenResponse) {
	t.Helper()

	payload, err := json.Marshal(map[string]string{"handle": handle, "password": password})
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/login", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var tokens model.TokenResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&tokens))
	}
	return resp, tokens
}

func loginAdmin(t *testing.T, server *httptest.Server) string {
	t.Helper()

	resp, tokens := login(t, server, "admin", adminPassword)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, tokens.AccessToken)
	return tokens.AccessToken
}

func doAuthRequest(t *testing.T, method string, url string, body []byte, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
