package service

import (
	"encoding/base64"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-gamification/internal/model"
	"go-gamification/pkg/apierror"
)

var (
	testSecret = []byte("0123456789abcdef0123456789abcdef")
	testUser   = model.UserIdentity{ID: 1, Username: "user1", Email: "user1@foo.com"}
	testRoles  = []model.RoleRef{{ID: 1, Name: "admin"}}
)

func requireTokenError(t *testing.T, err error, sentinel error, message string) {
	t.Helper()

	require.Error(t, err)
	require.ErrorIs(t, err, sentinel)

	var apiErr *apierror.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatus)
	assert.Equal(t, message, apiErr.Message)
}

func TestTokenService_RoundTrip(t *testing.T) {
	t.Parallel()

	svc := NewTokenService(time.Hour)

	token, err := svc.Issue(testSecret, testUser, testRoles, 3600*time.Second)
	require.NoError(t, err)
	require.Len(t, strings.Split(token, "."), 3)

	claims, err := svc.Validate(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.SubjectID)
	assert.Equal(t, "user1", claims.Username)
	assert.Equal(t, "user1@foo.com", claims.Email)
	assert.Equal(t, testRoles, claims.Roles)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestTokenService_WireFormat(t *testing.T) {
	t.Parallel()

	svc := NewTokenService(time.Hour)
	svc.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	token, err := svc.Issue(testSecret, testUser, testRoles, time.Minute)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"sub":1,"username":"user1","email":"user1@foo.com","roles":[{"id":1,"name":"admin"}],"exp":1700000060}`,
		string(payload))

	header, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	assert.Contains(t, string(header), `"alg":"HS256"`)
}

func TestTokenService_DefaultTTL(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	svc := NewTokenService(30 * time.Minute)
	svc.now = func() time.Time { return now }

	token, err := svc.Issue(testSecret, testUser, nil, 0)
	require.NoError(t, err)

	claims, err := svc.Validate(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*time.Minute).UTC(), claims.ExpiresAt)
	assert.Empty(t, claims.Roles)
	assert.NotNil(t, claims.Roles)
}

func TestTokenService_Expired(t *testing.T) {
	t.Parallel()

	svc := NewTokenService(time.Hour)

	t.Run("negative ttl", func(t *testing.T) {
		token, err := svc.Issue(testSecret, testUser, testRoles, -time.Second)
		require.NoError(t, err)

		_, err = svc.Validate(testSecret, token)
		requireTokenError(t, err, model.ErrTokenExpired, "JWT token has expired")
		require.NotErrorIs(t, err, model.ErrInvalidToken)
	})

	t.Run("expired ten seconds ago", func(t *testing.T) {
		token, err := svc.Issue(testSecret, testUser, testRoles, -10*time.Second)
		require.NoError(t, err)

		_, err = svc.Validate(testSecret, token)
		requireTokenError(t, err, model.ErrTokenExpired, "JWT token has expired")
	})

	t.Run("clock passes expiry", func(t *testing.T) {
		now := time.Unix(1_700_000_000, 0)
		clocked := NewTokenService(time.Hour)
		clocked.now = func() time.Time { return now }

		token, err := clocked.Issue(testSecret, testUser, testRoles, time.Minute)
		require.NoError(t, err)

		now = now.Add(time.Minute)
		_, err = clocked.Validate(testSecret, token)
		requireTokenError(t, err, model.ErrTokenExpired, "JWT token has expired")
	})

	t.Run("expired token with the wrong secret is invalid", func(t *testing.T) {
		token, err := svc.Issue(testSecret, testUser, testRoles, -time.Second)
		require.NoError(t, err)

		_, err = svc.Validate([]byte("another secret"), token)
		requireTokenError(t, err, model.ErrInvalidToken, "Invalid JWT token")
	})
}

func TestTokenService_Invalid(t *testing.T) {
	t.Parallel()

	svc := NewTokenService(time.Hour)
	token, err := svc.Issue(testSecret, testUser, testRoles, time.Hour)
	require.NoError(t, err)
	parts := strings.Split(token, ".")

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": 1,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": 1,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": 1}).SignedString(testSecret)
	require.NoError(t, err)

	cases := map[string]string{
		"different secret":  "",
		"empty":             "",
		"two segments":      parts[0] + "." + parts[1],
		"four segments":     token + ".extra",
		"empty signature":   parts[0] + "." + parts[1] + ".",
		"tampered payload":  parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(`{"sub":2,"exp":9999999999}`)) + "." + parts[2],
		"garbage":           "not.a.token",
		"alg none":          noneToken,
		"other hmac method": hs512,
		"missing exp":       noExpiry,
	}

	for name, candidate := range cases {
		t.Run(name, func(t *testing.T) {
			secret := testSecret
			if name == "different secret" {
				secret = []byte("a different secret entirely")
				candidate = token
			}

			_, err := svc.Validate(secret, candidate)
			requireTokenError(t, err, model.ErrInvalidToken, "Invalid JWT token")
		})
	}
}

func TestTokenService_KeyID(t *testing.T) {
	t.Parallel()

	svc := NewTokenService(time.Hour)
	key := model.SigningKey{ID: 42, Value: base64.StdEncoding.EncodeToString(testSecret)}

	token, err := svc.IssueWithKey(key, testUser, testRoles, time.Hour)
	require.NoError(t, err)

	id, ok := svc.KeyID(token)
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	claims, err := svc.Validate(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "user1", claims.Username)

	plain, err := svc.Issue(testSecret, testUser, testRoles, time.Hour)
	require.NoError(t, err)
	_, ok = svc.KeyID(plain)
	assert.False(t, ok)

	_, ok = svc.KeyID("garbage")
	assert.False(t, ok)
}

func TestTokenService_IssueWithUndecodableKey(t *testing.T) {
	t.Parallel()

	svc := NewTokenService(time.Hour)
	_, err := svc.IssueWithKey(model.SigningKey{ID: 1, Value: "%%%"}, testUser, testRoles, time.Hour)
	require.Error(t, err)
}
