package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go-gamification/internal/model"
	"go-gamification/pkg/apierror"
)

const AdminRole = "admin"

type accountStore interface {
	CountUsers(ctx context.Context) (int, error)
	CreateAccount(ctx context.Context, user model.User, roleNames []string, credential model.Credential) (model.User, error)
}

type credentialStore interface {
	CredentialLookup
	Replace(ctx context.Context, userID int64, credential model.Credential) error
}

// AccountService manages stored passwords and seeds the first account.
type AccountService struct {
	accounts    accountStore
	credentials credentialStore
	hasher      *CredentialService
}

func NewAccountService(accounts accountStore, credentials credentialStore, hasher *CredentialService) *AccountService {
	return &AccountService{accounts: accounts, credentials: credentials, hasher: hasher}
}

// SeedAdmin creates an admin account when the user table is empty. It
// reports whether an account was created.
func (s *AccountService) SeedAdmin(ctx context.Context, username string, email string, password string) (bool, error) {
	if password == "" {
		return false, nil
	}

	count, err := s.accounts.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	if err := s.hasher.CheckPolicy(password); err != nil {
		return false, err
	}

	credential, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return false, err
	}

	user, err := s.accounts.CreateAccount(ctx, model.User{
		Username: strings.TrimSpace(username),
		Email:    strings.TrimSpace(email),
	}, []string{AdminRole}, credential)
	if errors.Is(err, model.ErrUserAlreadyExists) {
		// Another instance seeded first.
		slog.Info("admin account already present", "username", username)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	slog.Info("admin account created", "user_id", user.ID, "username", user.Username)
	return true, nil
}

// ChangePassword replaces the user's credential after checking the current
// password.
func (s *AccountService) ChangePassword(ctx context.Context, userID int64, current string, next string) error {
	if err := s.hasher.CheckPolicy(next); err != nil {
		return err
	}

	credential, err := s.credentials.FindByUserID(ctx, userID)
	if errors.Is(err, model.ErrCredentialNotFound) {
		return apierror.Unauthorized(model.ErrInvalidCredentials, "Password verification failed")
	}
	if err != nil {
		return err
	}

	if err := s.hasher.Verify(ctx, credential, current); err != nil {
		return err
	}

	replacement, err := s.hasher.Hash(ctx, next)
	if err != nil {
		return err
	}

	return s.credentials.Replace(ctx, userID, replacement)
}
