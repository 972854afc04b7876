package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go-gamification/internal/metrics"
	"go-gamification/internal/model"
)

// signingKeySize is the number of random bytes behind each HMAC secret.
const signingKeySize = 96

type signingKeyRepository interface {
	Insert(ctx context.Context, value string) (int64, error)
	Create(ctx context.Context, value string) (model.SigningKey, error)
	FetchByID(ctx context.Context, id int64) (model.SigningKey, error)
	FetchAll(ctx context.Context) ([]model.SigningKey, error)
	LatestActive(ctx context.Context) (model.SigningKey, error)
	UpdateRevoked(ctx context.Context, id int64, revoked bool) error
	EnsureActive(ctx context.Context, generate func() (string, error)) (model.SigningKey, bool, error)
}

// SigningKeyService owns the lifecycle of token signing secrets. Keys are
// read from the repository on every call and never cached.
type SigningKeyService struct {
	repo    signingKeyRepository
	random  io.Reader
	metrics *metrics.Metrics
}

func NewSigningKeyService(repo signingKeyRepository, m *metrics.Metrics) *SigningKeyService {
	return &SigningKeyService{repo: repo, random: rand.Reader, metrics: m}
}

// Current returns the newest non-revoked key, creating one when every key
// is revoked or none exist yet.
func (s *SigningKeyService) Current(ctx context.Context) (model.SigningKey, error) {
	key, err := s.repo.LatestActive(ctx)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, model.ErrKeyNotFound) {
		return model.SigningKey{}, err
	}

	return s.ensureActive(ctx)
}

// Bootstrap makes sure an active key exists. It is safe to call from every
// instance at startup.
func (s *SigningKeyService) Bootstrap(ctx context.Context) error {
	_, err := s.ensureActive(ctx)
	return err
}

// Rotate inserts a fresh key, which becomes the current one.
func (s *SigningKeyService) Rotate(ctx context.Context) (model.SigningKey, error) {
	value, err := s.generate()
	if err != nil {
		return model.SigningKey{}, err
	}

	key, err := s.repo.Create(ctx, value)
	if err != nil {
		return model.SigningKey{}, err
	}

	s.metrics.ObserveKeyOperation(metrics.KeyOperationRotate)
	slog.Info("signing key rotated", "key_id", key.ID)
	return key, nil
}

func (s *SigningKeyService) Revoke(ctx context.Context, id int64) error {
	if err := s.repo.UpdateRevoked(ctx, id, true); err != nil {
		return err
	}

	s.metrics.ObserveKeyOperation(metrics.KeyOperationRevoke)
	slog.Info("signing key revoked", "key_id", id)
	return nil
}

func (s *SigningKeyService) Insert(ctx context.Context, value string) (int64, error) {
	return s.repo.Insert(ctx, value)
}

func (s *SigningKeyService) FetchByID(ctx context.Context, id int64) (model.SigningKey, error) {
	return s.repo.FetchByID(ctx, id)
}

func (s *SigningKeyService) FetchAll(ctx context.Context) ([]model.SigningKey, error) {
	return s.repo.FetchAll(ctx)
}

func (s *SigningKeyService) UpdateRevoked(ctx context.Context, id int64, revoked bool) error {
	return s.repo.UpdateRevoked(ctx, id, revoked)
}

func (s *SigningKeyService) ensureActive(ctx context.Context) (model.SigningKey, error) {
	key, created, err := s.repo.EnsureActive(ctx, s.generate)
	if err != nil {
		return model.SigningKey{}, err
	}

	if created {
		s.metrics.ObserveKeyOperation(metrics.KeyOperationCreate)
		slog.Info("signing key created", "key_id", key.ID)
	}
	return key, nil
}

func (s *SigningKeyService) generate() (string, error) {
	buf := make([]byte, signingKeySize)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrEntropySource, err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
