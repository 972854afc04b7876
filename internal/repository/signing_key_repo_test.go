package repository

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"go-gamification/internal/model"
	"go-gamification/pkg/apierror"
)

var signingKeyRowColumns = []string{"id", "value", "revoked", "created_at", "updated_at"}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestSigningKeyRepository_FetchByID(t *testing.T) {
	t.Parallel()

	t.Run("returns the stored key", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSigningKeyRepository(db)
		now := time.Now().UTC()

		mock.ExpectQuery(regexp.QuoteMeta(`FROM signing_keys WHERE id = $1`)).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows(signingKeyRowColumns).AddRow(int64(3), "c2VjcmV0", true, now, now))

		key, err := repo.FetchByID(context.Background(), 3)
		require.NoError(t, err)
		require.Equal(t, int64(3), key.ID)
		require.Equal(t, "c2VjcmV0", key.Value)
		require.True(t, key.Revoked)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps missing rows to not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSigningKeyRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta(`FROM signing_keys WHERE id = $1`)).
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows(signingKeyRowColumns))

		_, err := repo.FetchByID(context.Background(), 99)
		require.ErrorIs(t, err, model.ErrKeyNotFound)

		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusNotFound, apiErr.HTTPStatus)
	})
}

func TestSigningKeyRepository_FetchAll(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := NewSigningKeyRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM signing_keys ORDER BY created_at DESC, id DESC`)).
		WillReturnRows(sqlmock.NewRows(signingKeyRowColumns).
			AddRow(int64(2), "b", false, now, now).
			AddRow(int64(1), "a", true, now.Add(-time.Hour), now))

	keys, err := repo.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.Equal(t, int64(2), keys[0].ID)
	require.True(t, keys[1].Revoked)
}

func TestSigningKeyRepository_LatestActiveEmpty(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := NewSigningKeyRepository(db)

	mock.ExpectQuery(`WHERE NOT revoked`).WillReturnRows(sqlmock.NewRows(signingKeyRowColumns))

	_, err := repo.LatestActive(context.Background())
	require.ErrorIs(t, err, model.ErrKeyNotFound)
}

func TestSigningKeyRepository_UpdateRevoked(t *testing.T) {
	t.Parallel()

	t.Run("marks the key", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSigningKeyRepository(db)

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE signing_keys SET revoked = $2`)).
			WithArgs(int64(4), true).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.UpdateRevoked(context.Background(), 4, true))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSigningKeyRepository(db)

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE signing_keys SET revoked = $2`)).
			WithArgs(int64(5), true).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateRevoked(context.Background(), 5, true)
		require.ErrorIs(t, err, model.ErrKeyNotFound)
	})
}

func TestSigningKeyRepository_EnsureActive(t *testing.T) {
	t.Parallel()

	t.Run("returns the existing key without inserting", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSigningKeyRepository(db)
		now := time.Now().UTC()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
			WithArgs(sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`WHERE NOT revoked`).
			WillReturnRows(sqlmock.NewRows(signingKeyRowColumns).AddRow(int64(8), "existing", false, now, now))
		mock.ExpectCommit()

		generated := false
		key, created, err := repo.EnsureActive(context.Background(), func() (string, error) {
			generated = true
			return "fresh", nil
		})
		require.NoError(t, err)
		require.False(t, created)
		require.False(t, generated)
		require.Equal(t, int64(8), key.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("creates a key when none is active", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSigningKeyRepository(db)
		now := time.Now().UTC()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
			WithArgs(sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`WHERE NOT revoked`).WillReturnRows(sqlmock.NewRows(signingKeyRowColumns))
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO signing_keys (value) VALUES ($1)`)).
			WithArgs("fresh").
			WillReturnRows(sqlmock.NewRows(signingKeyRowColumns).AddRow(int64(1), "fresh", false, now, now))
		mock.ExpectCommit()

		key, created, err := repo.EnsureActive(context.Background(), func() (string, error) {
			return "fresh", nil
		})
		require.NoError(t, err)
		require.True(t, created)
		require.Equal(t, "fresh", key.Value)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when generation fails", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSigningKeyRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
			WithArgs(sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`WHERE NOT revoked`).WillReturnRows(sqlmock.NewRows(signingKeyRowColumns))
		mock.ExpectRollback()

		boom := errors.New("entropy exhausted")
		_, _, err := repo.EnsureActive(context.Background(), func() (string, error) {
			return "", boom
		})
		require.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
