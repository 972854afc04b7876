package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/sync/semaphore"

	"go-gamification/internal/metrics"
	"go-gamification/internal/model"
	"go-gamification/pkg/apierror"
)

const (
	DefaultPBKDF2Iterations  = 100_000
	DefaultSaltSize          = 16
	DefaultDerivedKeySize    = sha256.Size
	DefaultMinPasswordLength = 8
)

type CredentialConfig struct {
	Iterations        int
	SaltSize          int
	KeySize           int
	MinPasswordLength int
	// Concurrency caps how many derivations run at once.
	Concurrency int
}

// CredentialService derives and checks PBKDF2-HMAC-SHA256 password hashes.
type CredentialService struct {
	cfg     CredentialConfig
	sem     *semaphore.Weighted
	random  io.Reader
	metrics *metrics.Metrics
}

func NewCredentialService(cfg CredentialConfig, m *metrics.Metrics) *CredentialService {
	if cfg.Iterations <= 0 {
		cfg.Iterations = DefaultPBKDF2Iterations
	}
	if cfg.SaltSize <= 0 {
		cfg.SaltSize = DefaultSaltSize
	}
	if cfg.KeySize <= 0 {
		cfg.KeySize = DefaultDerivedKeySize
	}
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = DefaultMinPasswordLength
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	return &CredentialService{
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(cfg.Concurrency)),
		random:  rand.Reader,
		metrics: m,
	}
}

func (s *CredentialService) Hash(ctx context.Context, password string) (model.Credential, error) {
	salt := make([]byte, s.cfg.SaltSize)
	if _, err := io.ReadFull(s.random, salt); err != nil {
		return model.Credential{}, fmt.Errorf("%w: %v", model.ErrEntropySource, err)
	}

	key, err := s.derive(ctx, password, salt)
	if err != nil {
		return model.Credential{}, err
	}

	return model.Credential{
		Salt: base64.StdEncoding.EncodeToString(salt),
		Hash: base64.StdEncoding.EncodeToString(key),
	}, nil
}

// Verify re-derives password with the stored salt and compares the result to
// the stored hash in constant time.
func (s *CredentialService) Verify(ctx context.Context, credential model.Credential, password string) error {
	salt, err := base64.StdEncoding.DecodeString(credential.Salt)
	if err != nil || len(salt) == 0 {
		return errPasswordVerification()
	}

	expected, err := base64.StdEncoding.DecodeString(credential.Hash)
	if err != nil || len(expected) == 0 {
		return errPasswordVerification()
	}

	derived, err := s.derive(ctx, password, salt)
	if err != nil {
		return err
	}

	if subtle.ConstantTimeCompare(derived, expected) != 1 {
		return errPasswordVerification()
	}

	return nil
}

func (s *CredentialService) CheckPolicy(password string) error {
	err := validation.Validate(password,
		validation.Required,
		validation.Length(s.cfg.MinPasswordLength, 0),
	)
	if err != nil {
		return apierror.Unprocessable(model.ErrPasswordPolicy,
			fmt.Sprintf("password must be at least %d characters", s.cfg.MinPasswordLength), err.Error())
	}
	return nil
}

func (s *CredentialService) derive(ctx context.Context, password string, salt []byte) ([]byte, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire hash worker: %w", err)
	}
	defer s.sem.Release(1)

	started := time.Now()
	key := pbkdf2.Key([]byte(password), salt, s.cfg.Iterations, s.cfg.KeySize, sha256.New)
	s.metrics.ObserveHash(time.Since(started))

	return key, nil
}

func errPasswordVerification() error {
	return apierror.Unauthorized(model.ErrInvalidCredentials, "Password verification failed")
}
