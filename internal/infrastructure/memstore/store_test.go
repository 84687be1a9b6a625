package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

func newJob(t *testing.T) *entity.Job {
	t.Helper()
	budget, _ := valueobject.NewBudget(100, "ETB")
	job, err := entity.NewJob(uuid.New(), "t", "d", "", budget)
	require.NoError(t, err)
	return job
}

func TestStore_RollbackOnError(t *testing.T) {
	store := New()
	ctx := context.Background()
	job := newJob(t)
	hookCalled := false

	err := store.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		require.NoError(t, tx.Jobs().Create(ctx, job))
		tx.AfterCommit(func() { hookCalled = true })
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.False(t, hookCalled)

	err = store.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.Jobs().FindByID(ctx, job.ID)
		return err
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestStore_AfterCommitRunsOnSuccess(t *testing.T) {
	store := New()
	hookCalled := false

	err := store.Do(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		tx.AfterCommit(func() { hookCalled = true })
		return tx.Jobs().Create(ctx, newJob(t))
	})
	require.NoError(t, err)
	assert.True(t, hookCalled)
}

func TestStore_UpdateIsCompareAndSwap(t *testing.T) {
	store := New()
	ctx := context.Background()
	job := newJob(t)

	require.NoError(t, store.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.Jobs().Create(ctx, job)
	}))

	err := store.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		stale := *job
		stale.Status = valueobject.JobStatusContracted
		return tx.Jobs().Update(ctx, &stale, valueobject.JobStatusOpen)
	})
	assert.True(t, apperror.IsConflict(err))
}

func TestStore_WalletReferenceIsUnique(t *testing.T) {
	store := New()
	ctx := context.Background()
	userID := uuid.New()

	err := store.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		w, err := tx.Wallets().GetOrCreateForUpdate(ctx, userID, "ETB")
		require.NoError(t, err)

		first, err := w.Post(valueobject.TransactionEscrowRelease, 10, "ETB", "ref-1", "")
		require.NoError(t, err)
		inserted, err := tx.Wallets().InsertTransaction(ctx, first)
		require.NoError(t, err)
		assert.True(t, inserted)

		dup := *first
		dup.ID = uuid.New()
		inserted, err = tx.Wallets().InsertTransaction(ctx, &dup)
		require.NoError(t, err)
		assert.False(t, inserted)
		return nil
	})
	require.NoError(t, err)
}
