package payment

import "fmt"

// TransactionResult is the normalized outcome of a charge or refund.
// Success is true exactly when Status is not FAILED.
type TransactionResult struct {
	Success       bool              `json:"success"`
	TransactionID string            `json:"transaction_id"`
	Message       string            `json:"message"`
	Status        TransactionStatus `json:"status"`
}

// Succeeded builds an accepted result. Status must be COMPLETED or PENDING.
func Succeeded(transactionID, message string, status TransactionStatus) TransactionResult {
	return TransactionResult{
		Success:       true,
		TransactionID: transactionID,
		Message:       message,
		Status:        status,
	}
}

// Failed builds a result for an attempt that did not go through. It carries no transaction id.
func Failed(message string) TransactionResult {
	return TransactionResult{
		Success: false,
		Message: message,
		Status:  StatusFailed,
	}
}

// Validate reports whether the success flag agrees with the status.
func (r TransactionResult) Validate() error {
	if !r.Status.Valid() {
		return fmt.Errorf("%w: status %q", ErrMalformedResult, r.Status)
	}
	if r.Success && r.Status == StatusFailed {
		return fmt.Errorf("%w: success with status %s", ErrMalformedResult, r.Status)
	}
	if !r.Success && r.Status != StatusFailed {
		return fmt.Errorf("%w: failure with status %s", ErrMalformedResult, r.Status)
	}
	return nil
}
