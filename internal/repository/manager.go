package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go-gamification/internal/model"
)

// Manager hands out repositories bound to the same connection pool and runs
// multi-table writes in one transaction.
type Manager struct {
	db *sql.DB
}

func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

func (m *Manager) Users() *UserRepository {
	return NewUserRepository(m.db)
}

func (m *Manager) Roles() *RoleRepository {
	return NewRoleRepository(m.db)
}

func (m *Manager) Credentials() *CredentialRepository {
	return NewCredentialRepository(m.db)
}

func (m *Manager) SigningKeys() *SigningKeyRepository {
	return NewSigningKeyRepository(m.db)
}

func (m *Manager) Audit() *AuditRepository {
	return NewAuditRepository(m.db)
}

func (m *Manager) CountUsers(ctx context.Context) (int, error) {
	return m.Users().Count(ctx)
}

// CreateAccount inserts a user together with its roles and credential.
func (m *Manager) CreateAccount(ctx context.Context, user model.User, roleNames []string, credential model.Credential) (model.User, error) {
	var created model.User
	err := WithTx(ctx, m.db, nil, func(ctx context.Context, tx DBTX) error {
		var err error
		created, err = NewUserRepository(tx).Create(ctx, user)
		if err != nil {
			return err
		}

		roles := NewRoleRepository(tx)
		for _, name := range roleNames {
			role, err := roles.Ensure(ctx, name)
			if err != nil {
				return err
			}
			if err := roles.Assign(ctx, created.ID, role.ID); err != nil {
				return err
			}
		}

		return NewCredentialRepository(tx).Replace(ctx, created.ID, credential)
	})
	if err != nil {
		return model.User{}, fmt.Errorf("create account: %w", err)
	}
	return created, nil
}
