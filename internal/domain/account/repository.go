package account

import "context"

// Repository defines the interface for account data access
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	// Create persists a new account with its balance set to the initial balance
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account and its credit cards, or ErrAccountNotFound
	GetByID(ctx context.Context, id string) (*Account, error)

	// ListByOwnerID retrieves all accounts for a specific owner
	ListByOwnerID(ctx context.Context, ownerID string) ([]*Account, error)

	// AddCreditCard attaches a card to an existing account
	AddCreditCard(ctx context.Context, card *CreditCard) error
}
