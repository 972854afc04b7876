package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"go-gamification/internal/model"
)

type mockUsers struct{ mock.Mock }

func (m *mockUsers) FindByHandle(ctx context.Context, handle string) (model.User, error) {
	args := m.Called(ctx, handle)
	return args.Get(0).(model.User), args.Error(1)
}

type mockRoles struct{ mock.Mock }

func (m *mockRoles) RolesForUser(ctx context.Context, userID int64) ([]model.RoleRef, error) {
	args := m.Called(ctx, userID)
	roles, _ := args.Get(0).([]model.RoleRef)
	return roles, args.Error(1)
}

type mockCredentials struct{ mock.Mock }

func (m *mockCredentials) FindByUserID(ctx context.Context, userID int64) (model.Credential, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.Credential), args.Error(1)
}

func (m *mockCredentials) Replace(ctx context.Context, userID int64, credential model.Credential) error {
	args := m.Called(ctx, userID, credential)
	return args.Error(0)
}

type mockKeyRepo struct{ mock.Mock }

func (m *mockKeyRepo) Insert(ctx context.Context, value string) (int64, error) {
	args := m.Called(ctx, value)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockKeyRepo) Create(ctx context.Context, value string) (model.SigningKey, error) {
	args := m.Called(ctx, value)
	return args.Get(0).(model.SigningKey), args.Error(1)
}

func (m *mockKeyRepo) FetchByID(ctx context.Context, id int64) (model.SigningKey, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.SigningKey), args.Error(1)
}

func (m *mockKeyRepo) FetchAll(ctx context.Context) ([]model.SigningKey, error) {
	args := m.Called(ctx)
	keys, _ := args.Get(0).([]model.SigningKey)
	return keys, args.Error(1)
}

func (m *mockKeyRepo) LatestActive(ctx context.Context) (model.SigningKey, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.SigningKey), args.Error(1)
}

func (m *mockKeyRepo) UpdateRevoked(ctx context.Context, id int64, revoked bool) error {
	args := m.Called(ctx, id, revoked)
	return args.Error(0)
}

func (m *mockKeyRepo) EnsureActive(ctx context.Context, generate func() (string, error)) (model.SigningKey, bool, error) {
	args := m.Called(ctx)
	if fn, ok := args.Get(0).(func(func() (string, error)) (model.SigningKey, bool, error)); ok {
		return fn(generate)
	}
	return args.Get(0).(model.SigningKey), args.Bool(1), args.Error(2)
}

type mockAccounts struct{ mock.Mock }

func (m *mockAccounts) CountUsers(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockAccounts) CreateAccount(ctx context.Context, user model.User, roleNames []string, credential model.Credential) (model.User, error) {
	args := m.Called(ctx, user, roleNames, credential)
	return args.Get(0).(model.User), args.Error(1)
}

type mockAuditStore struct{ mock.Mock }

func (m *mockAuditStore) Log(ctx context.Context, entry model.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockAuditStore) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	args := m.Called(ctx, query)
	entries, _ := args.Get(0).([]model.AuditEntry)
	return entries, args.Get(1).(model.Meta), args.Error(2)
}
