package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"go-gamification/internal/model"
	"go-gamification/pkg/apierror"
)

// signingKeyLockID is the advisory lock taken while checking for and
// creating the active signing key.
const signingKeyLockID int64 = 0x6b657973

const signingKeyColumns = `id, value, revoked, created_at, updated_at`

type SigningKeyRepository struct {
	db *sql.DB
}

func NewSigningKeyRepository(db *sql.DB) *SigningKeyRepository {
	return &SigningKeyRepository{db: db}
}

func (r *SigningKeyRepository) Insert(ctx context.Context, value string) (int64, error) {
	key, err := insertSigningKey(ctx, r.db, value)
	if err != nil {
		return 0, err
	}
	return key.ID, nil
}

// Create inserts value and returns the full row.
func (r *SigningKeyRepository) Create(ctx context.Context, value string) (model.SigningKey, error) {
	return insertSigningKey(ctx, r.db, value)
}

func (r *SigningKeyRepository) FetchByID(ctx context.Context, id int64) (model.SigningKey, error) {
	key, err := scanSigningKey(r.db.QueryRowContext(ctx,
		`SELECT `+signingKeyColumns+` FROM signing_keys WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.SigningKey{}, apierror.NotFound(model.ErrKeyNotFound, "signing key not found", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return model.SigningKey{}, fmt.Errorf("fetch signing key: %w", err)
	}
	return key, nil
}

func (r *SigningKeyRepository) FetchAll(ctx context.Context) ([]model.SigningKey, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+signingKeyColumns+` FROM signing_keys ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list signing keys: %w", err)
	}
	defer rows.Close()

	keys := make([]model.SigningKey, 0)
	for rows.Next() {
		key, err := scanSigningKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signing key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// LatestActive returns the most recently created non-revoked key, or
// model.ErrKeyNotFound when every key is revoked.
func (r *SigningKeyRepository) LatestActive(ctx context.Context) (model.SigningKey, error) {
	return latestActiveSigningKey(ctx, r.db)
}

func (r *SigningKeyRepository) UpdateRevoked(ctx context.Context, id int64, revoked bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE signing_keys SET revoked = $2, updated_at = now() WHERE id = $1`, id, revoked)
	if err != nil {
		return fmt.Errorf("update signing key: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update signing key: %w", err)
	}
	if affected == 0 {
		return apierror.NotFound(model.ErrKeyNotFound, "signing key not found", strconv.FormatInt(id, 10))
	}
	return nil
}

// EnsureActive returns the latest active key, creating one from generate when
// none exists. The check and insert run under an advisory lock so concurrent
// callers on an empty table observe a single new key.
func (r *SigningKeyRepository) EnsureActive(ctx context.Context, generate func() (string, error)) (key model.SigningKey, created bool, err error) {
	err = WithTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, signingKeyLockID); err != nil {
			return fmt.Errorf("lock signing keys: %w", err)
		}

		existing, err := latestActiveSigningKey(ctx, tx)
		if err == nil {
			key = existing
			return nil
		}
		if !errors.Is(err, model.ErrKeyNotFound) {
			return err
		}

		value, err := generate()
		if err != nil {
			return err
		}

		key, err = insertSigningKey(ctx, tx, value)
		if err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return model.SigningKey{}, false, err
	}
	return key, created, nil
}

func latestActiveSigningKey(ctx context.Context, q DBTX) (model.SigningKey, error) {
	key, err := scanSigningKey(q.QueryRowContext(ctx,
		`SELECT `+signingKeyColumns+` FROM signing_keys
		 WHERE NOT revoked
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return model.SigningKey{}, model.ErrKeyNotFound
	}
	if err != nil {
		return model.SigningKey{}, fmt.Errorf("find active signing key: %w", err)
	}
	return key, nil
}

func insertSigningKey(ctx context.Context, q DBTX, value string) (model.SigningKey, error) {
	key, err := scanSigningKey(q.QueryRowContext(ctx,
		`INSERT INTO signing_keys (value) VALUES ($1) RETURNING `+signingKeyColumns, value))
	if err != nil {
		return model.SigningKey{}, fmt.Errorf("insert signing key: %w", err)
	}
	return key, nil
}

func scanSigningKey(row rowScanner) (model.SigningKey, error) {
	var k model.SigningKey
	err := row.Scan(&k.ID, &k.Value, &k.Revoked, &k.CreatedAt, &k.UpdatedAt)
	return k, err
}
