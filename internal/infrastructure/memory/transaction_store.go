package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/Zhima-Mochi/payfacade/app/internal/domain/payment"
)

// TransactionStore keeps gateway-side transaction records. Reads and writes copy records.
type TransactionStore struct {
	mu  sync.RWMutex
	txs map[string]*domain.Transaction
}

var _ domain.TransactionRepository = (*TransactionStore)(nil)

func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		txs: make(map[string]*domain.Transaction),
	}
}

func (s *TransactionStore) Insert(ctx context.Context, tx *domain.Transaction) error {
	_ = ctx
	if tx == nil || tx.ID == "" {
		return fmt.Errorf("transaction store: id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.txs[tx.ID]; exists {
		return domain.ErrTransactionConflict
	}
	s.txs[tx.ID] = tx.Clone()
	return nil
}

func (s *TransactionStore) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.txs[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return tx.Clone(), nil
}

func (s *TransactionStore) Update(ctx context.Context, tx *domain.Transaction) error {
	_ = ctx
	if tx == nil || tx.ID == "" {
		return fmt.Errorf("transaction store: id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.txs[tx.ID]; !exists {
		return domain.ErrTransactionNotFound
	}
	s.txs[tx.ID] = tx.Clone()
	return nil
}

// Mutate applies fn to the stored record under the write lock and persists the result
// only when fn succeeds.
func (s *TransactionStore) Mutate(ctx context.Context, id string, fn func(tx *domain.Transaction) error) (*domain.Transaction, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.txs[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	working := stored.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	s.txs[id] = working
	return working.Clone(), nil
}

func (s *TransactionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txs)
}
