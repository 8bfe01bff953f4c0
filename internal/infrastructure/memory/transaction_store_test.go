package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/Zhima-Mochi/payfacade/app/internal/domain/payment"
	"github.com/Zhima-Mochi/payfacade/app/internal/infrastructure/memory"
)

func TestTransactionStoreInsertGet(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTransactionStore()

	tx := domain.NewCharge("tx-1", "alice", 500, domain.StatusCompleted)
	require.NoError(t, store.Insert(ctx, tx))
	require.ErrorIs(t, store.Insert(ctx, tx), domain.ErrTransactionConflict)

	got, err := store.Get(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)

	got.Amount = 1
	again, err := store.Get(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), again.Amount)

	_, err = store.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestTransactionStoreRejectsEmptyID(t *testing.T) {
	store := memory.NewTransactionStore()
	require.Error(t, store.Insert(context.Background(), &domain.Transaction{}))
	require.Error(t, store.Update(context.Background(), nil))
}

func TestTransactionStoreUpdate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTransactionStore()

	require.ErrorIs(t, store.Update(ctx, domain.NewCharge("tx-1", "alice", 1, domain.StatusPending)), domain.ErrTransactionNotFound)

	tx := domain.NewCharge("tx-1", "alice", 1, domain.StatusPending)
	require.NoError(t, store.Insert(ctx, tx))
	require.NoError(t, tx.Settle())
	require.NoError(t, store.Update(ctx, tx))

	got, err := store.Get(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
}

func TestTransactionStoreMutateIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTransactionStore()
	require.NoError(t, store.Insert(ctx, domain.NewCharge("tx-1", "alice", 1, domain.StatusCompleted)))

	_, err := store.Mutate(ctx, "tx-1", func(tx *domain.Transaction) error {
		tx.Amount = 99
		return errors.New("abort")
	})
	require.Error(t, err)

	got, err := store.Get(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Amount)

	updated, err := store.Mutate(ctx, "tx-1", func(tx *domain.Transaction) error {
		return tx.MarkRefunded("rf-1")
	})
	require.NoError(t, err)
	assert.True(t, updated.Refunded())
	assert.Equal(t, 1, store.Len())

	_, err = store.Mutate(ctx, "missing", func(*domain.Transaction) error { return nil })
	require.ErrorIs(t, err, domain.ErrTransactionNotFound)
}
