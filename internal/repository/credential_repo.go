package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go-gamification/internal/model"
)

type CredentialRepository struct {
	db DBTX
}

func NewCredentialRepository(db DBTX) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) FindByUserID(ctx context.Context, userID int64) (model.Credential, error) {
	var c model.Credential
	err := r.db.QueryRowContext(ctx,
		`SELECT salt, hash FROM credentials WHERE user_id = $1`, userID).Scan(&c.Salt, &c.Hash)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Credential{}, model.ErrCredentialNotFound
	}
	if err != nil {
		return model.Credential{}, fmt.Errorf("find credential: %w", err)
	}
	return c, nil
}

// Replace stores c as the user's only credential. Existing rows are
// overwritten as a whole, never patched.
func (r *CredentialRepository) Replace(ctx context.Context, userID int64, c model.Credential) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credentials (user_id, salt, hash, created_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (user_id) DO UPDATE
		 SET salt = EXCLUDED.salt, hash = EXCLUDED.hash, created_at = EXCLUDED.created_at`,
		userID, c.Salt, c.Hash)
	if err != nil {
		return fmt.Errorf("replace credential: %w", err)
	}
	return nil
}
