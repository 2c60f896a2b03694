package transaction_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/domain/recurrence"
	"fintrack/internal/domain/transaction"
	"fintrack/internal/shared/apperr"
)

func TestPlanner_InstallmentsCascadeOnDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "Conta", "1000.00")

	params := expense(acc, "100.00", transaction.StatusPaid)
	params.Title = "Notebook"
	params.Date = date(2024, time.January, 31)

	result, err := f.planner.Create(ctx, owner, transaction.PlanParams{CreateParams: params, Installments: 3})
	require.NoError(t, err)
	require.Len(t, result.Transactions, 3)

	first, second, third := result.Transactions[0], result.Transactions[1], result.Transactions[2]
	assert.Equal(t, "Notebook (1/3)", first.Title)
	assert.Equal(t, "Notebook (3/3)", third.Title)
	assert.Equal(t, transaction.StatusPaid, first.Status)
	assert.Equal(t, transaction.StatusPending, second.Status)
	assert.Equal(t, transaction.StatusPending, third.Status)
	assert.Equal(t, date(2024, time.February, 29), second.Date, "day is clamped to the month length")
	assert.Equal(t, date(2024, time.March, 31), third.Date)
	assert.Equal(t, *first.InstallmentGroupID, *third.InstallmentGroupID)
	assert.Equal(t, 3, third.TotalInstallments)
	f.requireBalance(t, acc, "900.00")

	_, err = f.ledger.Update(ctx, owner, second.ID, transaction.UpdateParams{Status: ptr(transaction.StatusPaid)})
	require.NoError(t, err)
	f.requireBalance(t, acc, "800.00")

	removed, err := f.ledger.Delete(ctx, owner, third.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	f.requireBalance(t, acc, "1000.00")

	txs, err := f.ledger.List(ctx, owner, transaction.Filter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestPlanner_RecurringWithFirstOccurrence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "Conta", "1000.00")

	params := expense(acc, "55.90", transaction.StatusPaid)
	params.Title = "Streaming"
	params.Date = date(2024, time.February, 10)
	params.IsAutoPay = true

	result, err := f.planner.Create(ctx, owner, transaction.PlanParams{
		CreateParams: params,
		Periodicity:  "monthly",
		CreateFirst:  true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.RecurrenceID)
	require.Len(t, result.Transactions, 1)

	first := result.Transactions[0]
	assert.Equal(t, result.RecurrenceID, *first.RecurrenceID)
	f.requireBalance(t, acc, "944.10")

	rule, err := f.rules.Get(ctx, owner, result.RecurrenceID)
	require.NoError(t, err)
	assert.Equal(t, recurrence.Monthly, rule.Periodicity)
	assert.Equal(t, 10, rule.DueDay)
	assert.True(t, rule.AutoPay)
	require.NotNil(t, rule.LastProcessedAt)
	assert.Equal(t, params.Date, *rule.LastProcessedAt)
}

func TestPlanner_FutureFirstOccurrenceIsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "Conta", "1000.00")

	params := expense(acc, "1200.00", transaction.StatusPaid)
	params.Title = "Seguro"
	params.Date = date(2099, time.March, 15)

	result, err := f.planner.Create(ctx, owner, transaction.PlanParams{
		CreateParams: params,
		Periodicity:  "yearly",
		CreateFirst:  true,
	})
	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, transaction.StatusPending, result.Transactions[0].Status)
	f.requireBalance(t, acc, "1000.00")

	rule, err := f.rules.Get(ctx, owner, result.RecurrenceID)
	require.NoError(t, err)
	require.NotNil(t, rule.DueMonth)
	assert.Equal(t, 3, *rule.DueMonth)
}

func TestPlanner_RecurringWithoutFirstOccurrence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "Conta", "1000.00")

	result, err := f.planner.Create(ctx, owner, transaction.PlanParams{
		CreateParams: expense(acc, "30.00", ""),
		Periodicity:  "weekly",
	})
	require.NoError(t, err)
	assert.Empty(t, result.Transactions)

	rule, err := f.rules.Get(ctx, owner, result.RecurrenceID)
	require.NoError(t, err)
	assert.Nil(t, rule.LastProcessedAt)
}

func TestPlanner_InvalidRequestCreatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "Conta", "1000.00")

	bad := expense(acc, "30.00", transaction.StatusPaid)
	bad.CategoryID = "missing"

	_, err := f.planner.Create(ctx, owner, transaction.PlanParams{
		CreateParams: bad,
		Periodicity:  "monthly",
		CreateFirst:  true,
	})
	require.ErrorIs(t, err, apperr.ErrValidation)

	rules, err := f.rules.List(ctx, owner, false)
	require.NoError(t, err)
	assert.Empty(t, rules)

	_, err = f.planner.Create(ctx, owner, transaction.PlanParams{
		CreateParams: expense(acc, "30.00", ""),
		Installments: 2,
		Periodicity:  "monthly",
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPlanner_SingleTransaction(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, owner, "Conta", "1000.00")

	result, err := f.planner.Create(context.Background(), owner, transaction.PlanParams{
		CreateParams: expense(acc, "12.34", transaction.StatusPaid),
	})
	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)
	assert.Empty(t, result.RecurrenceID)
	assert.True(t, result.Transactions[0].Amount.Equal(decimal.RequireFromString("12.34")))
	f.requireBalance(t, acc, "987.66")
}
