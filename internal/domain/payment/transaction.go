package payment

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTransactionNotFound = errors.New("payment: transaction not found")
	ErrTransactionConflict = errors.New("payment: transaction already exists")
	ErrAlreadyRefunded     = errors.New("payment: transaction already refunded")
	ErrNotSettleable       = errors.New("payment: transaction is not pending")
)

type TransactionKind string

const (
	KindCharge TransactionKind = "charge"
	KindRefund TransactionKind = "refund"
)

// Transaction is the record a gateway keeps for each accepted charge or refund.
// The facade itself never stores these.
type Transaction struct {
	ID         string
	Kind       TransactionKind
	UserID     string
	Amount     int64
	Status     TransactionStatus
	RefundOf   string
	RefundedBy string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewCharge(id, userID string, amount int64, status TransactionStatus) *Transaction {
	now := time.Now().UTC()
	return &Transaction{
		ID:        id,
		Kind:      KindCharge,
		UserID:    userID,
		Amount:    amount,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func NewRefund(id string, charge *Transaction) *Transaction {
	now := time.Now().UTC()
	return &Transaction{
		ID:        id,
		Kind:      KindRefund,
		UserID:    charge.UserID,
		Amount:    charge.Amount,
		Status:    StatusCompleted,
		RefundOf:  charge.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (t *Transaction) Refunded() bool { return t.RefundedBy != "" }

// MarkRefunded links the charge to the refund that reversed it.
func (t *Transaction) MarkRefunded(refundID string) error {
	if t.Refunded() {
		return ErrAlreadyRefunded
	}
	t.RefundedBy = refundID
	t.touch()
	return nil
}

// UnmarkRefunded drops the link to refundID, leaving any other refund link untouched.
func (t *Transaction) UnmarkRefunded(refundID string) {
	if t.RefundedBy != refundID {
		return
	}
	t.RefundedBy = ""
	t.touch()
}

// Settle moves a pending transaction to completed.
func (t *Transaction) Settle() error {
	if t.Status != StatusPending {
		return ErrNotSettleable
	}
	t.Status = StatusCompleted
	t.touch()
	return nil
}

func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func (t *Transaction) touch() {
	t.UpdatedAt = time.Now().UTC()
}

type TransactionRepository interface {
	Insert(ctx context.Context, tx *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)
	Update(ctx context.Context, tx *Transaction) error
}
