// Package memory keeps every aggregate in process memory. It backs tests and
// local runs with the same semantics as the postgres store.
package memory

import (
	"context"
	"sync"
	"time"

	"fintrack/internal/domain/account"
	"fintrack/internal/domain/category"
	"fintrack/internal/domain/recurrence"
	"fintrack/internal/domain/transaction"
)

// Store holds the data of all repositories. Transaction units of work run
// one at a time and stage their writes until commit.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]*account.Account
	categories   map[string]*category.Category
	transactions map[string]*transaction.Transaction
	rules        map[string]*recurrence.Rule

	// txSlot admits a single unit of work at a time.
	txSlot chan struct{}
	now    func() time.Time
}

func New() *Store {
	s := &Store{
		accounts:     make(map[string]*account.Account),
		categories:   make(map[string]*category.Category),
		transactions: make(map[string]*transaction.Transaction),
		rules:        make(map[string]*recurrence.Rule),
		txSlot:       make(chan struct{}, 1),
		now:          time.Now,
	}
	for _, c := range category.SystemCategories {
		s.categories[c.ID] = &c
	}
	return s
}

func (s *Store) Accounts() *AccountRepository {
	return &AccountRepository{store: s}
}

func (s *Store) Categories() *CategoryRepository {
	return &CategoryRepository{store: s}
}

// Transactions returns a repository whose writes each commit on their own.
func (s *Store) Transactions() *TransactionRepository {
	return &TransactionRepository{store: s}
}

func (s *Store) Recurrences() *RecurrenceRepository {
	return &RecurrenceRepository{store: s}
}

// RunInTx runs fn against a staged view of the transactions and balances.
// Staged writes become visible only when fn returns nil.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx transaction.Tx) error) error {
	select {
	case s.txSlot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.txSlot }()

	u := newUnit(s)
	if err := fn(ctx, u); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	u.commit()
	return nil
}
