package sandbox_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/Zhima-Mochi/payfacade/app/internal/domain/payment"
	"github.com/Zhima-Mochi/payfacade/app/internal/infrastructure/gateway/sandbox"
	"github.com/Zhima-Mochi/payfacade/app/internal/infrastructure/memory"
)

func newGateway(cfg sandbox.Config) *sandbox.Gateway {
	return sandbox.New(cfg, memory.NewTransactionStore(), nil)
}

func requireFailure(t *testing.T, err error, kind error, message string) {
	t.Helper()
	require.ErrorIs(t, err, kind)
	msg, ok := domain.FailureMessage(err)
	require.True(t, ok)
	assert.Equal(t, message, msg)
}

func TestChargeAccepted(t *testing.T) {
	g := newGateway(sandbox.Config{})

	res, err := g.Charge(context.Background(), "alice", 100)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Charged successfully.", res.Message)
	assert.Equal(t, domain.StatusCompleted, res.Status)
	assert.NotEmpty(t, res.TransactionID)
	require.NoError(t, res.Validate())

	status, err := g.GetStatus(context.Background(), res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, status)
}

func TestChargeRejections(t *testing.T) {
	g := newGateway(sandbox.Config{KnownUsers: []string{"alice"}})
	ctx := context.Background()

	_, err := g.Charge(ctx, "alice", -1)
	requireFailure(t, err, domain.ErrPaymentRejected, "Negative payment.")

	_, err = g.Charge(ctx, "alice", 20001)
	requireFailure(t, err, domain.ErrPaymentRejected, "No cash.")

	_, err = g.Charge(ctx, "ghost", 10)
	requireFailure(t, err, domain.ErrNetworkFailure, "Network payment failed.")

	res, err := g.Charge(ctx, "alice", 20000)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestChargeDeclinedUserGetsFailedResult(t *testing.T) {
	g := newGateway(sandbox.Config{DeclinedUsers: []string{"mallory"}})

	res, err := g.Charge(context.Background(), "mallory", 10)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Equal(t, "Card declined.", res.Message)
}

func TestPendingThresholdAndSettle(t *testing.T) {
	g := newGateway(sandbox.Config{PendingThreshold: 1000})
	ctx := context.Background()

	res, err := g.Charge(ctx, "alice", 1500)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domain.StatusPending, res.Status)

	status, err := g.GetStatus(ctx, res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, status)

	require.NoError(t, g.Settle(ctx, res.TransactionID))
	status, err = g.GetStatus(ctx, res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, status)

	require.ErrorIs(t, g.Settle(ctx, res.TransactionID), domain.ErrNotSettleable)
}

func TestRefundLifecycle(t *testing.T) {
	g := newGateway(sandbox.Config{})
	ctx := context.Background()

	charge, err := g.Charge(ctx, "alice", 100)
	require.NoError(t, err)

	refund, err := g.Refund(ctx, charge.TransactionID)
	require.NoError(t, err)
	assert.True(t, refund.Success)
	assert.Equal(t, "Refunded successfully.", refund.Message)
	assert.Equal(t, domain.StatusCompleted, refund.Status)
	assert.NotEqual(t, charge.TransactionID, refund.TransactionID)

	_, err = g.Refund(ctx, charge.TransactionID)
	requireFailure(t, err, domain.ErrRefundRejected, "Transaction already refunded.")

	_, err = g.Refund(ctx, refund.TransactionID)
	requireFailure(t, err, domain.ErrRefundRejected, "Transaction is not refundable.")

	_, err = g.Refund(ctx, "unknown")
	requireFailure(t, err, domain.ErrRefundRejected, "Transaction not found.")

	_, err = g.Refund(ctx, "")
	requireFailure(t, err, domain.ErrRefundRejected, "Transaction not found.")
}

func TestRefundRollsBackWhenRecordCannotBeStored(t *testing.T) {
	store := memory.NewTransactionStore()
	g := sandbox.New(sandbox.Config{}, store, nil)
	ctx := context.Background()

	charge, err := g.Charge(ctx, "alice", 100)
	require.NoError(t, err)

	taken := domain.NewCharge("rf_taken", "bob", 1, domain.StatusCompleted)
	require.NoError(t, store.Insert(ctx, taken))
	g.SetIDSource(func(prefix string) string { return prefix + "taken" })

	_, err = g.Refund(ctx, charge.TransactionID)
	require.ErrorIs(t, err, domain.ErrTransactionConflict)
	_, classified := domain.FailureMessage(err)
	assert.False(t, classified)

	stored, err := store.Get(ctx, charge.TransactionID)
	require.NoError(t, err)
	assert.False(t, stored.Refunded())

	g.SetIDSource(func(prefix string) string { return prefix + "fresh" })
	refund, err := g.Refund(ctx, charge.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, "rf_fresh", refund.TransactionID)
}

func TestUnknownStatusIsFailed(t *testing.T) {
	g := newGateway(sandbox.Config{})

	status, err := g.GetStatus(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, status)
}

func TestOfflineFailsEverything(t *testing.T) {
	g := newGateway(sandbox.Config{})
	ctx := context.Background()
	charge, err := g.Charge(ctx, "alice", 10)
	require.NoError(t, err)

	g.SetOffline(true)

	_, err = g.Charge(ctx, "alice", 10)
	requireFailure(t, err, domain.ErrNetworkFailure, "Network payment failed.")
	_, err = g.Refund(ctx, charge.TransactionID)
	requireFailure(t, err, domain.ErrNetworkFailure, "Network refund failed.")
	_, err = g.GetStatus(ctx, charge.TransactionID)
	requireFailure(t, err, domain.ErrNetworkFailure, "Network status failed.")

	g.SetOffline(false)
	_, err = g.Refund(ctx, charge.TransactionID)
	require.NoError(t, err)
}

func TestCancelledContextIsNotClassified(t *testing.T) {
	g := newGateway(sandbox.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Charge(ctx, "alice", 10)
	require.ErrorIs(t, err, context.Canceled)
	_, ok := domain.FailureMessage(err)
	assert.False(t, ok)
}
