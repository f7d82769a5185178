package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/delivery-orders/internal/database/dbtest"
	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/internal/repository"
	"github.com/vaidashi/delivery-orders/pkg/logger"
)

func TestOutboxReclaimStaleReturnsOldClaimsToPending(t *testing.T) {
	db := dbtest.SetupTestPostgres(t)
	repo := repository.NewOutboxRepository(db, logger.NewNop())
	ctx := context.Background()

	msg := &models.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "42",
		EventType:     models.EventOrderCreated,
		Payload:       []byte(`{}`),
		CreatedAt:     models.GetCurrentTime(),
		Status:        models.OutboxStatusPending,
	}
	require.NoError(t, repo.CreateInTx(ctx, db.DB, msg))

	claimed, err := repo.MarkAsProcessing(ctx, msg.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	pending, err := repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// a fresh claim is left alone
	n, err := repo.ReclaimStale(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = repo.ReclaimStale(ctx, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	pending, err = repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, msg.ID, pending[0].ID)
	assert.Equal(t, 1, pending[0].ProcessingAttempts)
	assert.Nil(t, pending[0].ProcessingStartedAt)
}
