package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go-gamification/internal/model"
	"go-gamification/pkg/apierror"
)

func TestAuditService_Log(t *testing.T) {
	t.Parallel()

	t.Run("writes the entry", func(t *testing.T) {
		store := new(mockAuditStore)
		svc := NewAuditService(store)
		actor := model.AuditActor{UserID: 1, Username: "admin", IP: "127.0.0.1"}

		store.On("Log", mock.Anything, mock.MatchedBy(func(entry model.AuditEntry) bool {
			_, err := time.Parse(time.RFC3339Nano, entry.OccurredAt)
			return err == nil &&
				entry.Action == model.AuditActionKeyRotate &&
				entry.Actor == actor &&
				entry.Status == model.AuditStatusSuccess &&
				entry.Resource == "signing_key:4"
		})).Return(nil)

		svc.Log(context.Background(), model.AuditActionKeyRotate, actor, model.AuditStatusSuccess, "signing_key:4", "")
		store.AssertExpectations(t)
	})

	t.Run("store errors are swallowed", func(t *testing.T) {
		store := new(mockAuditStore)
		svc := NewAuditService(store)

		store.On("Log", mock.Anything, mock.Anything).Return(errors.New("disk full"))

		assert.NotPanics(t, func() {
			svc.Log(context.Background(), model.AuditActionLogin, model.AuditActor{}, model.AuditStatusFailure, "", "bad")
		})
	})

	t.Run("nil service is a no-op", func(t *testing.T) {
		var svc *AuditService
		assert.NotPanics(t, func() {
			svc.Log(context.Background(), model.AuditActionLogin, model.AuditActor{}, model.AuditStatusSuccess, "", "")
		})
	})
}

func TestAuditService_Query(t *testing.T) {
	t.Parallel()

	t.Run("normalizes time filters", func(t *testing.T) {
		store := new(mockAuditStore)
		svc := NewAuditService(store)

		store.On("Query", mock.Anything, model.AuditQuery{
			Action: model.AuditActionLogin,
			From:   "2026-01-01T10:00:00Z",
			Page:   1,
			Limit:  10,
		}).Return([]model.AuditEntry{{Action: model.AuditActionLogin}}, model.Meta{Page: 1, Limit: 10, Total: 1, TotalPages: 1}, nil)

		items, meta, err := svc.Query(context.Background(), model.AuditQuery{
			Action: model.AuditActionLogin,
			From:   "2026-01-01T12:00:00+02:00",
			Page:   1,
			Limit:  10,
		})
		require.NoError(t, err)
		assert.Len(t, items, 1)
		assert.Equal(t, 1, meta.Total)
	})

	t.Run("rejects malformed times", func(t *testing.T) {
		svc := NewAuditService(new(mockAuditStore))

		_, _, err := svc.Query(context.Background(), model.AuditQuery{To: "yesterday"})

		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus)
		assert.Equal(t, "yesterday", apiErr.Details)
	})
}
