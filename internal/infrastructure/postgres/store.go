package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"fintrack/internal/domain/account"
	"fintrack/internal/domain/transaction"
)

// Store groups the PostgreSQL repositories over one connection pool and
// runs ledger units of work as database transactions.
type Store struct {
	db *DB
}

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

func (s *Store) Accounts() *AccountRepository {
	return NewAccountRepository(s.db)
}

func (s *Store) Categories() *CategoryRepository {
	return NewCategoryRepository(s.db)
}

func (s *Store) Transactions() *TransactionRepository {
	return NewTransactionRepository(s.db)
}

func (s *Store) Recurrences() *RecurrenceRepository {
	return NewRecurrenceRepository(s.db)
}

// RunInTx implements transaction.TxRunner.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx transaction.Tx) error) error {
	return s.db.withTx(ctx, func(q Querier) error {
		return fn(ctx, &unit{q: q})
	})
}

type unit struct {
	q Querier
}

func (u *unit) Transactions() transaction.Repository {
	return &TransactionRepository{db: u.q, inTx: true}
}

func (u *unit) Balances() transaction.BalanceWriter {
	return &BalanceWriter{db: u.q}
}

// BalanceWriter applies signed deltas to stored account balances.
type BalanceWriter struct {
	db Querier
}

func (w *BalanceWriter) AdjustBalance(ctx context.Context, accountID string, delta decimal.Decimal) error {
	query := `UPDATE accounts SET balance = balance + $1, updated_at = now() WHERE id = $2`

	result, err := w.db.ExecContext(ctx, query, delta, accountID)
	if err != nil {
		return fmt.Errorf("failed to adjust balance of account %s: %w", accountID, err)
	}
	return requireAffected(result, account.ErrAccountNotFound)
}
