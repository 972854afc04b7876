package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go-gamification/internal/metrics"
	"go-gamification/internal/model"
	"go-gamification/pkg/apierror"
)

type UserLookup interface {
	FindByHandle(ctx context.Context, handle string) (model.User, error)
}

type RoleLookup interface {
	RolesForUser(ctx context.Context, userID int64) ([]model.RoleRef, error)
}

type CredentialLookup interface {
	FindByUserID(ctx context.Context, userID int64) (model.Credential, error)
}

type currentKeyProvider interface {
	Current(ctx context.Context) (model.SigningKey, error)
}

// unknownHandlePassword only exists to give unknown handles a credential to
// be checked against.
const unknownHandlePassword = "no-such-user-placeholder"

// LoginService exchanges a handle and password for a bearer token.
type LoginService struct {
	users       UserLookup
	roles       RoleLookup
	credentials CredentialLookup
	hasher      *CredentialService
	keys        currentKeyProvider
	tokens      *TokenService
	metrics     *metrics.Metrics

	dummy model.Credential
}

func NewLoginService(
	users UserLookup,
	roles RoleLookup,
	credentials CredentialLookup,
	hasher *CredentialService,
	keys currentKeyProvider,
	tokens *TokenService,
	m *metrics.Metrics,
) *LoginService {
	s := &LoginService{
		users:       users,
		roles:       roles,
		credentials: credentials,
		hasher:      hasher,
		keys:        keys,
		tokens:      tokens,
		metrics:     m,
	}

	// Built up front so a miss costs one derivation, the same as a wrong
	// password.
	dummy, err := hasher.Hash(context.Background(), unknownHandlePassword)
	if err != nil {
		slog.Warn("could not prepare placeholder credential", "error", err)
	}
	s.dummy = dummy

	return s
}

// Login never reports which step rejected the attempt. Once the handle
// resolves, every failure up to and including password verification is the
// same 401, and unknown handles still pay for a full hash comparison. Only a
// failed user lookup, or a failure after the password checked out, is a 500.
func (s *LoginService) Login(ctx context.Context, handle string, password string) (model.TokenResponse, error) {
	user, err := s.users.FindByHandle(ctx, handle)
	if errors.Is(err, model.ErrUserNotFound) {
		s.verifyDummy(ctx, password)
		return model.TokenResponse{}, s.reject(metrics.LoginInvalid)
	}
	if err != nil {
		return model.TokenResponse{}, s.fail("user", err)
	}

	roles, err := s.roles.RolesForUser(ctx, user.ID)
	if err != nil {
		s.verifyDummy(ctx, password)
		return model.TokenResponse{}, s.collapse("roles", err)
	}

	credential, err := s.credentials.FindByUserID(ctx, user.ID)
	if errors.Is(err, model.ErrCredentialNotFound) {
		s.verifyDummy(ctx, password)
		return model.TokenResponse{}, s.reject(metrics.LoginInvalid)
	}
	if err != nil {
		s.verifyDummy(ctx, password)
		return model.TokenResponse{}, s.collapse("credential", err)
	}

	if err := s.hasher.Verify(ctx, credential, password); err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			return model.TokenResponse{}, s.reject(metrics.LoginInvalid)
		}
		return model.TokenResponse{}, s.collapse("verify", err)
	}

	key, err := s.keys.Current(ctx)
	if err != nil {
		return model.TokenResponse{}, s.fail("signing key", err)
	}

	token, err := s.tokens.IssueWithKey(key, user.Identity(), roles, 0)
	if err != nil {
		return model.TokenResponse{}, s.fail("issue", err)
	}

	s.metrics.ObserveLogin(metrics.LoginSuccess)
	slog.Info("login succeeded", "user_id", user.ID, "key_id", key.ID)

	return model.TokenResponse{
		AccessToken: token,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int64(s.tokens.DefaultTTL().Seconds()),
	}, nil
}

func (s *LoginService) verifyDummy(ctx context.Context, password string) {
	if s.dummy.Hash == "" {
		return
	}
	_ = s.hasher.Verify(ctx, s.dummy, password)
}

func (s *LoginService) reject(outcome string) error {
	s.metrics.ObserveLogin(outcome)
	return apierror.Unauthorized(model.ErrInvalidCredentials, "invalid handle or password")
}

// collapse logs an error raised after the handle resolved and answers with
// the ordinary rejection.
func (s *LoginService) collapse(stage string, err error) error {
	slog.Error("login failed", "stage", stage, "error", err)
	return s.reject(metrics.LoginError)
}

func (s *LoginService) fail(stage string, err error) error {
	s.metrics.ObserveLogin(metrics.LoginError)
	slog.Error("login failed", "stage", stage, "error", err)
	return fmt.Errorf("login %s: %w", stage, err)
}
