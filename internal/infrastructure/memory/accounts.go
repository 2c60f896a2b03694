package memory

import (
	"context"
	"sort"

	"fintrack/internal/domain/account"
)

// AccountRepository implements account.Repository.
type AccountRepository struct {
	store *Store
}

func cloneAccount(a *account.Account) *account.Account {
	c := *a
	c.CreditCards = append([]account.CreditCard(nil), a.CreditCards...)
	return &c
}

func (r *AccountRepository) Create(ctx context.Context, a *account.Account) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*account.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	a, ok := r.store.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (r *AccountRepository) ListByOwnerID(ctx context.Context, ownerID string) ([]*account.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]*account.Account, 0)
	for _, a := range r.store.accounts {
		if a.OwnerID == ownerID {
			result = append(result, cloneAccount(a))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *AccountRepository) AddCreditCard(ctx context.Context, card *account.CreditCard) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	a, ok := r.store.accounts[card.AccountID]
	if !ok {
		return account.ErrAccountNotFound
	}
	a.CreditCards = append(a.CreditCards, *card)
	return nil
}
