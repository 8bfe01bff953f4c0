package payment

import (
	"fmt"
	"strings"
)

// TransactionStatus is the lifecycle state of a transaction as reported by a gateway.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

func (s TransactionStatus) String() string { return string(s) }

// ParseTransactionStatus accepts the canonical names case-insensitively.
func ParseTransactionStatus(raw string) (TransactionStatus, error) {
	s := TransactionStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return StatusFailed, fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return s, nil
}
