package recurrence_test

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fintrack/internal/domain/account"
	"fintrack/internal/domain/category"
	"fintrack/internal/domain/recurrence"
	"fintrack/internal/domain/transaction"
	"fintrack/internal/infrastructure/lock"
	"fintrack/internal/infrastructure/memory"
)

const (
	owner            = "owner-1"
	otherOwner       = "owner-2"
	expenseCategory  = "00000000-0000-0000-0000-000000000004"
	transferCategory = "00000000-0000-0000-0000-000000000008"
)

type fixture struct {
	store    *memory.Store
	accounts *account.Service
	ledger   *transaction.Ledger
	rules    *recurrence.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	accounts := account.NewService(store.Accounts())
	categories := category.NewService(store.Categories())
	return &fixture{
		store:    store,
		accounts: accounts,
		ledger:   transaction.NewLedger(store.Transactions(), store, accounts, categories, lock.NewLocal(), zap.NewNop()),
		rules:    recurrence.NewService(store.Recurrences(), accounts, categories, time.UTC, zap.NewNop()),
	}
}

func (f *fixture) generator(maxCatchUp, pageSize int) *recurrence.Generator {
	return recurrence.NewGenerator(f.store.Recurrences(), f.ledger, f.store.Transactions(), maxCatchUp, pageSize, zap.NewNop())
}

func (f *fixture) account(t *testing.T, ownerID, initial string) *account.Account {
	t.Helper()
	acc, err := f.accounts.CreateAccount(context.Background(), account.CreateParams{
		OwnerID:        ownerID,
		Name:           "Conta",
		InitialBalance: decimal.RequireFromString(initial),
	})
	require.NoError(t, err)
	return acc
}

func (f *fixture) requireBalance(t *testing.T, acc *account.Account, want string) {
	t.Helper()
	got, err := f.accounts.GetAccount(context.Background(), acc.ID, acc.OwnerID)
	require.NoError(t, err)
	require.Truef(t, got.Balance.Equal(decimal.RequireFromString(want)), "balance = %s, want %s", got.Balance, want)
}

// rule creates a rule and optionally places its schedule pointer.
func (f *fixture) rule(t *testing.T, params recurrence.CreateParams, pointer *civil.Date) *recurrence.Rule {
	t.Helper()
	ctx := context.Background()
	rule, err := f.rules.Create(ctx, owner, params)
	require.NoError(t, err)
	if pointer != nil {
		require.NoError(t, f.rules.MarkProcessed(ctx, owner, rule.ID, *pointer))
	}
	rule, err = f.rules.Get(ctx, owner, rule.ID)
	require.NoError(t, err)
	return rule
}

func (f *fixture) occurrences(t *testing.T, ruleID string) []*transaction.Transaction {
	t.Helper()
	txs, err := f.ledger.List(context.Background(), owner, transaction.Filter{RecurrenceID: ruleID})
	require.NoError(t, err)
	return txs
}

func streaming(acc *account.Account) recurrence.CreateParams {
	return recurrence.CreateParams{
		Name:        "Streaming",
		Amount:      decimal.RequireFromString("55.90"),
		Type:        transaction.TypeExpense,
		CategoryID:  expenseCategory,
		AccountID:   acc.ID,
		Periodicity: recurrence.Monthly,
		DueDay:      10,
		AutoPay:     true,
	}
}

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func ptr[T any](v T) *T {
	return &v
}
