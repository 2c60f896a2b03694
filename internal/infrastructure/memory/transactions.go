package memory

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/civil"

	"fintrack/internal/domain/transaction"
	"fintrack/internal/shared/apperr"
)

// TransactionRepository implements transaction.Repository. Bound to a unit
// it reads and stages through it; otherwise every write commits alone.
type TransactionRepository struct {
	store *Store
	unit  *unit
}

func (r *TransactionRepository) view() *unit {
	if r.unit != nil {
		return r.unit
	}
	return newUnit(r.store)
}

func (r *TransactionRepository) write(ctx context.Context, fn func(u *unit) error) error {
	if r.unit != nil {
		return fn(r.unit)
	}
	return r.store.RunInTx(ctx, func(ctx context.Context, tx transaction.Tx) error {
		return fn(tx.(*unit))
	})
}

func (r *TransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	return r.write(ctx, func(u *unit) error {
		if _, exists := u.lookup(t.ID); exists {
			return fmt.Errorf("transaction %s already exists: %w", t.ID, apperr.ErrConflict)
		}
		if err := u.checkUnique(t); err != nil {
			return err
		}
		u.staged[t.ID] = t.Clone()
		return nil
	})
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	t, ok := r.view().lookup(id)
	if !ok {
		return nil, transaction.ErrTransactionNotFound
	}
	return t.Clone(), nil
}

func (r *TransactionRepository) Update(ctx context.Context, t *transaction.Transaction) error {
	return r.write(ctx, func(u *unit) error {
		if _, exists := u.lookup(t.ID); !exists {
			return transaction.ErrTransactionNotFound
		}
		if err := u.checkUnique(t); err != nil {
			return err
		}
		u.staged[t.ID] = t.Clone()
		return nil
	})
}

func (r *TransactionRepository) Delete(ctx context.Context, id string) error {
	return r.write(ctx, func(u *unit) error {
		if _, exists := u.lookup(id); !exists {
			return transaction.ErrTransactionNotFound
		}
		u.staged[id] = nil
		return nil
	})
}

func (r *TransactionRepository) List(ctx context.Context, ownerID string, filter transaction.Filter) ([]*transaction.Transaction, error) {
	result := r.selectRows(func(t *transaction.Transaction) bool {
		return t.OwnerID == ownerID && filter.Matches(t)
	})
	transaction.SortNewestFirst(result)
	return filter.Page(result), nil
}

func (r *TransactionRepository) ListByInstallmentGroup(ctx context.Context, ownerID, groupID string) ([]*transaction.Transaction, error) {
	result := r.selectRows(func(t *transaction.Transaction) bool {
		return t.OwnerID == ownerID && t.InstallmentGroupID != nil && *t.InstallmentGroupID == groupID
	})
	sort.Slice(result, func(i, j int) bool {
		return result[i].InstallmentNumber < result[j].InstallmentNumber
	})
	return result, nil
}

func (r *TransactionRepository) ListDueAutoPay(ctx context.Context, query transaction.DueAutoPayQuery) ([]*transaction.Transaction, error) {
	result := r.selectRows(query.Matches)
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if query.Limit > 0 && len(result) > query.Limit {
		result = result[:query.Limit]
	}
	return result, nil
}

func (r *TransactionRepository) ListOwnersWithDueAutoPay(ctx context.Context, onOrBefore civil.Date) ([]string, error) {
	query := transaction.DueAutoPayQuery{OnOrBefore: onOrBefore}
	seen := make(map[string]struct{})
	owners := make([]string, 0)
	for _, t := range r.selectRows(query.Matches) {
		if _, ok := seen[t.OwnerID]; ok {
			continue
		}
		seen[t.OwnerID] = struct{}{}
		owners = append(owners, t.OwnerID)
	}
	sort.Strings(owners)
	return owners, nil
}

func (r *TransactionRepository) FindByOccurrence(ctx context.Context, recurrenceID string, date civil.Date) (*transaction.Transaction, error) {
	found := r.selectRows(func(t *transaction.Transaction) bool {
		return t.RecurrenceID != nil && *t.RecurrenceID == recurrenceID && t.Date == date
	})
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (r *TransactionRepository) FindByReconciliationKey(ctx context.Context, ownerID, key string) (*transaction.Transaction, error) {
	found := r.selectRows(func(t *transaction.Transaction) bool {
		return t.OwnerID == ownerID && t.ReconciliationKey != nil && *t.ReconciliationKey == key
	})
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

// selectRows returns copies of the visible rows accepted by keep.
func (r *TransactionRepository) selectRows(keep func(*transaction.Transaction) bool) []*transaction.Transaction {
	result := make([]*transaction.Transaction, 0)
	for _, t := range r.view().rows() {
		if keep(t) {
			result = append(result, t.Clone())
		}
	}
	return result
}
