package payment

import "context"

// Gateway is the payment network the facade talks to.
//
// Charge and Refund either return a result (accepted or declined) or fail with a
// *Failure. GetStatus reports unknown transactions as StatusFailed.
type Gateway interface {
	Charge(ctx context.Context, userID string, amount int64) (TransactionResult, error)
	Refund(ctx context.Context, transactionID string) (TransactionResult, error)
	GetStatus(ctx context.Context, transactionID string) (TransactionStatus, error)
}
