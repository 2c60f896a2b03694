package memory

import (
	"context"

	"github.com/shopspring/decimal"

	"fintrack/internal/domain/account"
	"fintrack/internal/domain/transaction"
)

// unit is one staged unit of work. A nil entry in staged marks a delete.
type unit struct {
	store  *Store
	staged map[string]*transaction.Transaction
	deltas map[string]decimal.Decimal
}

func newUnit(s *Store) *unit {
	return &unit{
		store:  s,
		staged: make(map[string]*transaction.Transaction),
		deltas: make(map[string]decimal.Decimal),
	}
}

func (u *unit) Transactions() transaction.Repository {
	return &TransactionRepository{store: u.store, unit: u}
}

func (u *unit) Balances() transaction.BalanceWriter {
	return u
}

func (u *unit) AdjustBalance(ctx context.Context, accountID string, delta decimal.Decimal) error {
	u.store.mu.RLock()
	_, ok := u.store.accounts[accountID]
	u.store.mu.RUnlock()
	if !ok {
		return account.ErrAccountNotFound
	}
	u.deltas[accountID] = u.deltas[accountID].Add(delta)
	return nil
}

func (u *unit) lookup(id string) (*transaction.Transaction, bool) {
	if t, ok := u.staged[id]; ok {
		return t, t != nil
	}
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	t, ok := u.store.transactions[id]
	return t, ok
}

// rows returns the stored rows as seen by this unit. Callers must not
// modify them.
func (u *unit) rows() []*transaction.Transaction {
	u.store.mu.RLock()
	rows := make([]*transaction.Transaction, 0, len(u.store.transactions)+len(u.staged))
	for id, t := range u.store.transactions {
		if _, shadowed := u.staged[id]; !shadowed {
			rows = append(rows, t)
		}
	}
	u.store.mu.RUnlock()

	for _, t := range u.staged {
		if t != nil {
			rows = append(rows, t)
		}
	}
	return rows
}

// checkUnique mirrors the unique indexes of the postgres schema.
func (u *unit) checkUnique(t *transaction.Transaction) error {
	for _, other := range u.rows() {
		if other.ID == t.ID {
			continue
		}
		if t.RecurrenceID != nil && other.RecurrenceID != nil &&
			*t.RecurrenceID == *other.RecurrenceID && t.Date == other.Date {
			return transaction.ErrDuplicateOccurrence
		}
		if t.ReconciliationKey != nil && other.ReconciliationKey != nil &&
			t.OwnerID == other.OwnerID && *t.ReconciliationKey == *other.ReconciliationKey {
			return transaction.ErrDuplicateReconciliation
		}
	}
	return nil
}

func (u *unit) commit() {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range u.staged {
		if t == nil {
			delete(s.transactions, id)
			continue
		}
		s.transactions[id] = t
	}

	now := s.now().UTC()
	for id, delta := range u.deltas {
		if a, ok := s.accounts[id]; ok {
			a.Balance = a.Balance.Add(delta)
			a.UpdatedAt = now
		}
	}
}
