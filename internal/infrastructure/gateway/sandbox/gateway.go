// Package sandbox is a deterministic in-process payment gateway. It stands in for a
// real payment network in local runs and tests.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	domain "github.com/Zhima-Mochi/payfacade/app/internal/domain/payment"
	"github.com/Zhima-Mochi/payfacade/app/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/payfacade/app/internal/observability"
	"github.com/Zhima-Mochi/payfacade/app/internal/observability/logctx"
)

const (
	DefaultCeiling = 20000

	msgCharged  = "Charged successfully."
	msgRefunded = "Refunded successfully."

	msgNegative        = "Negative payment."
	msgNoCash          = "No cash."
	msgDeclined        = "Card declined."
	msgNotFound        = "Transaction not found."
	msgAlreadyRefunded = "Transaction already refunded."
	msgNotRefundable   = "Transaction is not refundable."

	msgNetworkCharge = "Network payment failed."
	msgNetworkRefund = "Network refund failed."
	msgNetworkStatus = "Network status failed."
)

var errNotRefundable = errors.New("sandbox: transaction is not a charge")

// Config shapes the sandbox's decisions.
type Config struct {
	// Ceiling is the largest chargeable amount. Zero means DefaultCeiling.
	Ceiling int64
	// KnownUsers restricts which identities the network can validate. Empty accepts any non-blank id.
	KnownUsers []string
	// DeclinedUsers are validated but always declined with a failed result.
	DeclinedUsers []string
	// PendingThreshold marks charges at or above it as PENDING until settled. Zero disables.
	PendingThreshold int64
}

type Gateway struct {
	store    *memory.TransactionStore
	ceiling  int64
	known    map[string]struct{}
	declined map[string]struct{}
	pending  int64
	offline  atomic.Bool
	newID    func(prefix string) string
	log      observability.Logger
}

var _ domain.Gateway = (*Gateway)(nil)

func New(cfg Config, store *memory.TransactionStore, logger observability.Logger) *Gateway {
	if store == nil {
		store = memory.NewTransactionStore()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	ceiling := cfg.Ceiling
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Gateway{
		store:    store,
		ceiling:  ceiling,
		known:    toSet(cfg.KnownUsers),
		declined: toSet(cfg.DeclinedUsers),
		pending:  cfg.PendingThreshold,
		newID:    func(prefix string) string { return prefix + uuid.NewString() },
		log:      logger.With(observability.F("component", "sandbox_gateway")),
	}
}

// SetOffline simulates a network outage: every call fails with a network failure.
func (g *Gateway) SetOffline(offline bool) { g.offline.Store(offline) }

func (g *Gateway) Charge(ctx context.Context, userID string, amount int64) (domain.TransactionResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.TransactionResult{}, err
	}
	if g.offline.Load() {
		return domain.TransactionResult{}, domain.NetworkFailure(msgNetworkCharge)
	}
	if amount < 0 {
		return domain.TransactionResult{}, domain.PaymentRejected(msgNegative)
	}
	if amount > g.ceiling {
		return domain.TransactionResult{}, domain.PaymentRejected(msgNoCash)
	}
	if !g.validates(userID) {
		return domain.TransactionResult{}, domain.NetworkFailure(msgNetworkCharge)
	}
	if _, ok := g.declined[userID]; ok {
		return domain.Failed(msgDeclined), nil
	}

	status := domain.StatusCompleted
	if g.pending > 0 && amount >= g.pending {
		status = domain.StatusPending
	}
	tx := domain.NewCharge(g.newID("ch_"), userID, amount, status)
	if err := g.store.Insert(ctx, tx); err != nil {
		return domain.TransactionResult{}, err
	}

	logctx.FromOr(ctx, g.log).Debug("sandbox_charge_accepted",
		observability.F("transaction_id", tx.ID),
		observability.F("status", string(status)),
	)
	return domain.Succeeded(tx.ID, msgCharged, status), nil
}

func (g *Gateway) Refund(ctx context.Context, transactionID string) (domain.TransactionResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.TransactionResult{}, err
	}
	if g.offline.Load() {
		return domain.TransactionResult{}, domain.NetworkFailure(msgNetworkRefund)
	}
	if strings.TrimSpace(transactionID) == "" {
		return domain.TransactionResult{}, domain.RefundRejected(msgNotFound)
	}

	refundID := g.newID("rf_")
	charge, err := g.store.Mutate(ctx, transactionID, func(tx *domain.Transaction) error {
		if tx.Kind != domain.KindCharge {
			return errNotRefundable
		}
		return tx.MarkRefunded(refundID)
	})
	switch {
	case errors.Is(err, domain.ErrTransactionNotFound):
		return domain.TransactionResult{}, domain.RefundRejected(msgNotFound)
	case errors.Is(err, domain.ErrAlreadyRefunded):
		return domain.TransactionResult{}, domain.RefundRejected(msgAlreadyRefunded)
	case errors.Is(err, errNotRefundable):
		return domain.TransactionResult{}, domain.RefundRejected(msgNotRefundable)
	case err != nil:
		return domain.TransactionResult{}, err
	}

	refund := domain.NewRefund(refundID, charge)
	if err := g.store.Insert(ctx, refund); err != nil {
		if _, rerr := g.store.Mutate(ctx, charge.ID, func(tx *domain.Transaction) error {
			tx.UnmarkRefunded(refundID)
			return nil
		}); rerr != nil {
			logctx.FromOr(ctx, g.log).Error("sandbox_refund_rollback_failed",
				observability.F("transaction_id", charge.ID),
				observability.F("error", rerr),
			)
		}
		return domain.TransactionResult{}, fmt.Errorf("sandbox: record refund: %w", err)
	}

	logctx.FromOr(ctx, g.log).Debug("sandbox_refund_accepted",
		observability.F("transaction_id", refund.ID),
		observability.F("refund_of", charge.ID),
	)
	return domain.Succeeded(refund.ID, msgRefunded, refund.Status), nil
}

func (g *Gateway) GetStatus(ctx context.Context, transactionID string) (domain.TransactionStatus, error) {
	if err := ctx.Err(); err != nil {
		return domain.StatusFailed, err
	}
	if g.offline.Load() {
		return domain.StatusFailed, domain.NetworkFailure(msgNetworkStatus)
	}

	tx, err := g.store.Get(ctx, transactionID)
	if errors.Is(err, domain.ErrTransactionNotFound) {
		return domain.StatusFailed, nil
	}
	if err != nil {
		return domain.StatusFailed, err
	}
	return tx.Status, nil
}

// Settle completes a pending charge, as the network eventually would.
func (g *Gateway) Settle(ctx context.Context, transactionID string) error {
	_, err := g.store.Mutate(ctx, transactionID, func(tx *domain.Transaction) error {
		return tx.Settle()
	})
	return err
}

func (g *Gateway) validates(userID string) bool {
	if strings.TrimSpace(userID) == "" {
		return false
	}
	if len(g.known) == 0 {
		return true
	}
	_, ok := g.known[userID]
	return ok
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}
