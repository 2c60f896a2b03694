package transaction

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"fintrack/internal/shared/apperr"
)

// SettlementMode decides whether a paid transaction moves money now or
// when its card invoice is paid.
type SettlementMode int

const (
	SettlementDirect SettlementMode = iota
	SettlementDeferredToInvoice
)

func (m SettlementMode) String() string {
	if m == SettlementDeferredToInvoice {
		return "deferred_to_invoice"
	}
	return "direct"
}

// SettlementMode is resolved from the credit-card reference alone.
func (t *Transaction) SettlementMode() SettlementMode {
	if t.CreditCardID != nil && *t.CreditCardID != "" {
		return SettlementDeferredToInvoice
	}
	return SettlementDirect
}

// Settles reports whether t currently contributes to account balances.
func (t *Transaction) Settles() bool {
	return t.Status == StatusPaid && t.SettlementMode() == SettlementDirect
}

// Effect is a signed balance change on one account.
type Effect struct {
	AccountID string
	Delta     decimal.Decimal
}

// Effects returns the balance changes t contributes. It is empty for rows
// that do not settle.
func (t *Transaction) Effects() []Effect {
	if !t.Settles() {
		return nil
	}

	switch t.Type {
	case TypeExpense:
		return []Effect{{AccountID: t.AccountID, Delta: t.Amount.Neg()}}
	case TypeIncome:
		return []Effect{{AccountID: t.AccountID, Delta: t.Amount}}
	case TypeTransfer:
		effects := []Effect{{AccountID: t.AccountID, Delta: t.Amount.Neg()}}
		if dest := stringValue(t.DestinationAccountID); dest != "" {
			effects = append(effects, Effect{AccountID: dest, Delta: t.Amount})
		}
		return effects
	}
	return nil
}

// AccountLockKey is the Locker key serializing balance changes of one account.
func AccountLockKey(accountID string) string {
	return "account:" + accountID
}

// lockSet returns the sorted, de-duplicated lock keys for the accounts the
// given transactions settle against.
func lockSet(txs ...*Transaction) []string {
	var keys []string
	for _, t := range txs {
		if t == nil {
			continue
		}
		for _, e := range t.Effects() {
			keys = append(keys, AccountLockKey(e.AccountID))
		}
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

// covers reports whether every key in need is in held. Both are sorted.
func covers(held, need []string) bool {
	for _, k := range need {
		if _, found := slices.BinarySearch(held, k); !found {
			return false
		}
	}
	return true
}

func applyEffects(ctx context.Context, balances BalanceWriter, op string, t *Transaction) error {
	return adjust(ctx, balances, op, t.Effects(), false)
}

func revertEffects(ctx context.Context, balances BalanceWriter, op string, t *Transaction) error {
	return adjust(ctx, balances, op, t.Effects(), true)
}

func adjust(ctx context.Context, balances BalanceWriter, op string, effects []Effect, negate bool) error {
	for _, e := range effects {
		delta := e.Delta
		if negate {
			delta = delta.Neg()
		}
		if err := balances.AdjustBalance(ctx, e.AccountID, delta); err != nil {
			return &apperr.BalanceMutationError{Op: op, AccountID: e.AccountID, Err: err}
		}
	}
	return nil
}
