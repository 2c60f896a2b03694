package transaction

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Repository defines the interface for transaction data access.
// Implementations bound to a unit of work lock the rows they read.
type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	// GetByID returns the transaction or ErrTransactionNotFound
	GetByID(ctx context.Context, id string) (*Transaction, error)
	Update(ctx context.Context, t *Transaction) error
	Delete(ctx context.Context, id string) error
	// List returns the owner's transactions ordered newest first
	List(ctx context.Context, ownerID string, filter Filter) ([]*Transaction, error)
	ListByInstallmentGroup(ctx context.Context, ownerID, groupID string) ([]*Transaction, error)
	ListDueAutoPay(ctx context.Context, query DueAutoPayQuery) ([]*Transaction, error)
	// ListOwnersWithDueAutoPay returns the distinct owners with rows to settle
	ListOwnersWithDueAutoPay(ctx context.Context, onOrBefore civil.Date) ([]string, error)
	// FindByOccurrence returns the row materialized for a rule on date, or nil
	FindByOccurrence(ctx context.Context, recurrenceID string, date civil.Date) (*Transaction, error)
	// FindByReconciliationKey returns the owner's row carrying key, or nil
	FindByReconciliationKey(ctx context.Context, ownerID, key string) (*Transaction, error)
}

// BalanceWriter adds a signed delta to an account's stored balance.
type BalanceWriter interface {
	AdjustBalance(ctx context.Context, accountID string, delta decimal.Decimal) error
}

// Tx is an open unit of work. Everything done through it commits or rolls
// back together.
type Tx interface {
	Transactions() Repository
	Balances() BalanceWriter
}

// TxRunner runs fn inside a unit of work, committing when fn returns nil.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Locker grants mutual exclusion over a set of keys. Implementations sort
// and de-duplicate keys before acquiring them.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (release func(), err error)
}
