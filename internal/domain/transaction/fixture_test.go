package transaction_test

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
	incomeCategory   = "00000000-0000-0000-0000-000000000001"
	expenseCategory  = "00000000-0000-0000-0000-000000000004"
	transferCategory = "00000000-0000-0000-0000-000000000008"
)

type fixture struct {
	store      *memory.Store
	accounts   *account.Service
	categories *category.Service
	ledger     *transaction.Ledger
	rules      *recurrence.Service
	planner    *transaction.Planner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	accounts := account.NewService(store.Accounts())
	categories := category.NewService(store.Categories())
	ledger := transaction.NewLedger(store.Transactions(), store, accounts, categories, lock.NewLocal(), zap.NewNop())
	rules := recurrence.NewService(store.Recurrences(), accounts, categories, time.UTC, zap.NewNop())
	return &fixture{
		store:      store,
		accounts:   accounts,
		categories: categories,
		ledger:     ledger,
		rules:      rules,
		planner:    transaction.NewPlanner(ledger, rules, time.UTC, zap.NewNop()),
	}
}

func (f *fixture) account(t *testing.T, ownerID, name, initial string) *account.Account {
	t.Helper()
	acc, err := f.accounts.CreateAccount(context.Background(), account.CreateParams{
		OwnerID:        ownerID,
		Name:           name,
		InitialBalance: decimal.RequireFromString(initial),
	})
	require.NoError(t, err)
	return acc
}

func (f *fixture) card(t *testing.T, acc *account.Account, closingDay, dueDay int) *account.CreditCard {
	t.Helper()
	card, err := f.accounts.AddCreditCard(context.Background(), acc.OwnerID, acc.ID, account.CreditCardParams{
		Name:       "Visa",
		Limit:      decimal.NewFromInt(5000),
		ClosingDay: closingDay,
		DueDay:     dueDay,
	})
	require.NoError(t, err)
	return card
}

func (f *fixture) requireBalance(t *testing.T, acc *account.Account, want string) {
	t.Helper()
	got, err := f.accounts.GetAccount(context.Background(), acc.ID, acc.OwnerID)
	require.NoError(t, err)
	require.Truef(t, got.Balance.Equal(decimal.RequireFromString(want)),
		"balance of %s = %s, want %s", acc.Name, got.Balance, want)
}

func (f *fixture) requireConsistent(t *testing.T, accs ...*account.Account) {
	t.Helper()
	auditor := transaction.NewAuditor(f.store.Transactions(), f.accounts)
	for _, acc := range accs {
		report, err := auditor.Verify(context.Background(), acc.OwnerID, acc.ID)
		require.NoError(t, err)
		require.Truef(t, report.Consistent(), "account %s drifted by %s", acc.Name, report.Drift)
	}
}

func expense(acc *account.Account, amount string, status transaction.Status) transaction.CreateParams {
	return transaction.CreateParams{
		Title:      "Mercado",
		Amount:     decimal.RequireFromString(amount),
		Type:       transaction.TypeExpense,
		Status:     status,
		Date:       civil.Date{Year: 2024, Month: time.February, Day: 10},
		AccountID:  acc.ID,
		CategoryID: expenseCategory,
	}
}

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func ptr[T any](v T) *T {
	return &v
}
