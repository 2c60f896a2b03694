package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fintrack/internal/domain/account"
	"fintrack/internal/domain/category"
	"fintrack/internal/shared/apperr"
)

// DefaultMaxRetries bounds how often a mutation is retried when the accounts
// a row touches change between planning and the locked read.
const DefaultMaxRetries = 3

// AccountLookup resolves owned accounts and cards for validation.
type AccountLookup interface {
	GetAccount(ctx context.Context, accountID, ownerID string) (*account.Account, error)
	FindCreditCard(ctx context.Context, ownerID, cardID string) (*account.Account, *account.CreditCard, error)
}

// CategoryLookup resolves categories visible to an owner.
type CategoryLookup interface {
	GetCategory(ctx context.Context, id, ownerID string) (*category.Category, error)
}

// Ledger is the only component allowed to change account balances. Every
// mutation reverts the stored state's effect and applies the new one inside
// a single unit of work while holding the touched accounts' locks.
type Ledger struct {
	repo       Repository
	runner     TxRunner
	accounts   AccountLookup
	categories CategoryLookup
	locker     Locker
	logger     *zap.Logger
	maxRetries int
	newID      func() string
	now        func() time.Time
}

type LedgerOption func(*Ledger)

func WithMaxRetries(n int) LedgerOption {
	return func(l *Ledger) {
		if n >= 0 {
			l.maxRetries = n
		}
	}
}

func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

func WithIDGenerator(newID func() string) LedgerOption {
	return func(l *Ledger) { l.newID = newID }
}

func NewLedger(repo Repository, runner TxRunner, accounts AccountLookup, categories CategoryLookup, locker Locker, logger *zap.Logger, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		repo:       repo,
		runner:     runner,
		accounts:   accounts,
		categories: categories,
		locker:     locker,
		logger:     logger,
		maxRetries: DefaultMaxRetries,
		newID:      uuid.NewString,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Create validates and persists a transaction, applying its effect when it
// is paid and settles directly.
func (l *Ledger) Create(ctx context.Context, ownerID string, params CreateParams) (*Transaction, error) {
	created, err := l.CreateMany(ctx, ownerID, []CreateParams{params})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

// CreateMany persists several transactions in one unit of work. Either all
// of them are created or none.
func (l *Ledger) CreateMany(ctx context.Context, ownerID string, params []CreateParams) ([]*Transaction, error) {
	if len(params) == 0 {
		return nil, apperr.Invalid("transactions", "at least one transaction is required")
	}

	now := l.now().UTC()
	txs := make([]*Transaction, 0, len(params))
	for _, p := range params {
		t := p.build(l.newID(), ownerID, now)
		if err := l.validate(ctx, t); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}

	err := l.withLocks(ctx, lockSet(txs...), func() error {
		return l.runner.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			for _, t := range txs {
				if err := tx.Transactions().Create(ctx, t); err != nil {
					return err
				}
				if err := applyEffects(ctx, tx.Balances(), "create", t); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	for _, t := range txs {
		l.logger.Debug("transaction created",
			zap.String("transaction_id", t.ID),
			zap.String("owner_id", ownerID),
			zap.Bool("settled", t.Settles()),
		)
	}
	return txs, nil
}

// Get returns an owned transaction. Rows of other owners are reported as
// not found.
func (l *Ledger) Get(ctx context.Context, ownerID, id string) (*Transaction, error) {
	t, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != ownerID {
		return nil, ErrTransactionNotFound
	}
	return t, nil
}

// List returns the owner's transactions ordered by date desc, then
// created_at desc.
func (l *Ledger) List(ctx context.Context, ownerID string, filter Filter) ([]*Transaction, error) {
	if ownerID == "" {
		return nil, apperr.Invalid("ownerId", "owner is required")
	}
	return l.repo.List(ctx, ownerID, filter)
}

// Update replaces the transaction's state. The stored state is reverted in
// full and the new state applied in full.
func (l *Ledger) Update(ctx context.Context, ownerID, id string, params UpdateParams) (*Transaction, error) {
	var updated *Transaction
	err := l.retry(ctx, "update", id, func() error {
		var err error
		updated, err = l.update(ctx, ownerID, id, params)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update transaction %s: %w", id, err)
	}
	return updated, nil
}

func (l *Ledger) update(ctx context.Context, ownerID, id string, params UpdateParams) (*Transaction, error) {
	existing, err := l.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := params.precondition(existing); err != nil {
		return nil, err
	}

	now := l.now().UTC()
	planned := params.apply(existing, now)
	if err := l.validate(ctx, planned); err != nil {
		return nil, err
	}

	held := lockSet(existing, planned)
	var updated *Transaction
	err = l.withLocks(ctx, held, func() error {
		return l.runner.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			current, err := tx.Transactions().GetByID(ctx, id)
			if err != nil {
				return err
			}
			if current.OwnerID != ownerID {
				return ErrTransactionNotFound
			}
			if err := params.precondition(current); err != nil {
				return err
			}

			next := params.apply(current, now)
			if !covers(held, lockSet(current, next)) {
				return errAccountsChanged
			}

			if err := revertEffects(ctx, tx.Balances(), "update", current); err != nil {
				return err
			}
			if err := tx.Transactions().Update(ctx, next); err != nil {
				return err
			}
			if err := applyEffects(ctx, tx.Balances(), "update", next); err != nil {
				return err
			}
			updated = next
			return nil
		})
	})
	return updated, err
}

// Delete reverts and removes a transaction. Members of an installment group
// are all reverted and removed together. It returns the number of rows
// removed.
func (l *Ledger) Delete(ctx context.Context, ownerID, id string) (int, error) {
	var removed int
	err := l.retry(ctx, "delete", id, func() error {
		var err error
		removed, err = l.delete(ctx, ownerID, id)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return removed, nil
}

func (l *Ledger) delete(ctx context.Context, ownerID, id string) (int, error) {
	existing, err := l.Get(ctx, ownerID, id)
	if err != nil {
		return 0, err
	}

	planned := []*Transaction{existing}
	if existing.InstallmentGroupID != nil {
		planned, err = l.repo.ListByInstallmentGroup(ctx, ownerID, *existing.InstallmentGroupID)
		if err != nil {
			return 0, err
		}
	}

	held := lockSet(planned...)
	var removed int
	err = l.withLocks(ctx, held, func() error {
		return l.runner.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			members, err := l.lockedMembers(ctx, tx, ownerID, existing)
			if err != nil {
				return err
			}
			if !covers(held, lockSet(members...)) {
				return errAccountsChanged
			}

			for _, t := range members {
				if err := revertEffects(ctx, tx.Balances(), "delete", t); err != nil {
					return err
				}
				if err := tx.Transactions().Delete(ctx, t.ID); err != nil {
					return err
				}
			}
			removed = len(members)
			return nil
		})
	})
	if err == nil {
		l.logger.Debug("transaction deleted",
			zap.String("transaction_id", id),
			zap.String("owner_id", ownerID),
			zap.Int("removed", removed),
		)
	}
	return removed, err
}

func (l *Ledger) lockedMembers(ctx context.Context, tx Tx, ownerID string, existing *Transaction) ([]*Transaction, error) {
	if existing.InstallmentGroupID != nil {
		members, err := tx.Transactions().ListByInstallmentGroup(ctx, ownerID, *existing.InstallmentGroupID)
		if err != nil {
			return nil, err
		}
		if len(members) == 0 {
			return nil, ErrTransactionNotFound
		}
		return members, nil
	}

	current, err := tx.Transactions().GetByID(ctx, existing.ID)
	if err != nil {
		return nil, err
	}
	if current.OwnerID != ownerID {
		return nil, ErrTransactionNotFound
	}
	if current.InstallmentGroupID != nil {
		return nil, errAccountsChanged
	}
	return []*Transaction{current}, nil
}

func (l *Ledger) retry(ctx context.Context, op, id string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if !errors.Is(err, errAccountsChanged) {
			return err
		}
		if attempt >= l.maxRetries {
			return fmt.Errorf("%w: %w", apperr.ErrConflict, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		l.logger.Debug("retrying ledger mutation",
			zap.String("op", op),
			zap.String("transaction_id", id),
			zap.Int("attempt", attempt+1),
		)
	}
}

func (l *Ledger) withLocks(ctx context.Context, keys []string, fn func() error) error {
	if len(keys) == 0 {
		return fn()
	}
	release, err := l.locker.Acquire(ctx, keys...)
	if err != nil {
		return fmt.Errorf("acquire account locks: %w", err)
	}
	defer release()
	return fn()
}

func (l *Ledger) validate(ctx context.Context, t *Transaction) error {
	if t.OwnerID == "" {
		return apperr.Invalid("ownerId", "owner is required")
	}
	if !t.Amount.IsPositive() {
		return apperr.Invalid("amount", "amount must be greater than zero")
	}
	if !WholeCents(t.Amount) {
		return apperr.Invalid("amount", "amount must have at most 2 decimal places")
	}
	if !t.Type.Valid() {
		return apperr.Invalid("type", fmt.Sprintf("unknown transaction type %q", t.Type))
	}
	if !t.Status.Valid() {
		return apperr.Invalid("status", fmt.Sprintf("unknown transaction status %q", t.Status))
	}
	if !t.Date.IsValid() {
		return apperr.Invalid("date", "a valid date is required")
	}
	if t.PaymentDate != nil && !t.PaymentDate.IsValid() {
		return apperr.Invalid("paymentDate", "payment date is not a valid date")
	}
	if t.AccountID == "" {
		return apperr.Invalid("accountId", "account is required")
	}
	if t.CategoryID == "" {
		return apperr.Invalid("categoryId", "category is required")
	}
	if t.InstallmentGroupID != nil {
		if t.TotalInstallments < 1 || t.InstallmentNumber < 1 || t.InstallmentNumber > t.TotalInstallments {
			return apperr.Invalid("installmentNumber", "installment number must be within total installments")
		}
	}

	if _, err := l.accounts.GetAccount(ctx, t.AccountID, t.OwnerID); err != nil {
		return referenceError("accountId", err)
	}

	if dest := stringValue(t.DestinationAccountID); dest != "" {
		if t.Type != TypeTransfer {
			return apperr.Invalid("destinationAccountId", "only transfers have a destination account")
		}
		if dest == t.AccountID {
			return apperr.Invalid("destinationAccountId", "destination must differ from the source account")
		}
		if _, err := l.accounts.GetAccount(ctx, dest, t.OwnerID); err != nil {
			return referenceError("destinationAccountId", err)
		}
	}

	if _, err := l.categories.GetCategory(ctx, t.CategoryID, t.OwnerID); err != nil {
		return referenceError("categoryId", err)
	}

	if card := stringValue(t.CreditCardID); card != "" {
		if _, _, err := l.accounts.FindCreditCard(ctx, t.OwnerID, card); err != nil {
			return referenceError("creditCardId", err)
		}
	}
	return nil
}

// referenceError turns a missing reference into a validation error and
// passes infrastructure failures through.
func referenceError(field string, err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("%w: %w", &apperr.ValidationError{Field: field, Reason: "does not exist"}, err)
	}
	return err
}
