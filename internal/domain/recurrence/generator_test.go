package recurrence_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fintrack/internal/domain/account"
	"fintrack/internal/domain/recurrence"
	"fintrack/internal/domain/transaction"
	"fintrack/internal/shared/apperr"
)

func TestGenerator_FirstOccurrenceThenAutoPay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "1000.00")
	rule := f.rule(t, streaming(acc), nil)
	today := date(2024, time.February, 10)

	result, err := f.generator(0, 0).Advance(ctx, rule, today)
	require.NoError(t, err)
	require.Len(t, result.Generated, 1)

	tx := result.Generated[0]
	assert.Equal(t, today, tx.Date)
	assert.Equal(t, transaction.StatusPending, tx.Status)
	assert.True(t, tx.IsAutoPay)
	assert.Equal(t, "Streaming (02/2024)", tx.Title)
	assert.Equal(t, rule.ID, *tx.RecurrenceID)
	f.requireBalance(t, acc, "1000.00")

	stored, err := f.rules.Get(ctx, owner, rule.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastProcessedAt)
	assert.Equal(t, today, *stored.LastProcessedAt)

	settled, err := transaction.NewAutoPaySettler(f.store.Transactions(), f.ledger, 0, zap.NewNop()).Settle(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, 1, settled.Settled)
	f.requireBalance(t, acc, "944.10")
}

func TestGenerator_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "1000.00")
	rule := f.rule(t, streaming(acc), nil)
	today := date(2024, time.February, 10)
	gen := f.generator(0, 0)

	first, err := gen.Sweep(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Generated)

	second, err := gen.Sweep(ctx, today)
	require.NoError(t, err)
	assert.Zero(t, second.Generated)
	assert.Len(t, f.occurrences(t, rule.ID), 1)
}

func TestGenerator_NothingBeforeDueDay(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, owner, "1000.00")
	params := streaming(acc)
	params.DueDay = 15
	rule := f.rule(t, params, nil)

	result, err := f.generator(0, 0).Advance(context.Background(), rule, date(2024, time.February, 10))
	require.NoError(t, err)
	assert.Empty(t, result.Generated)
	assert.Nil(t, rule.LastProcessedAt, "pointer stays unset until the first occurrence is due")
}

func TestGenerator_DueDay31InThirtyDayMonth(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, owner, "1000.00")
	params := streaming(acc)
	params.DueDay = 31
	rule := f.rule(t, params, ptr(date(2024, time.March, 31)))

	result, err := f.generator(0, 0).Advance(context.Background(), rule, date(2024, time.April, 30))
	require.NoError(t, err)
	require.Len(t, result.Generated, 1)
	assert.Equal(t, date(2024, time.April, 30), result.Generated[0].Date)
}

func TestGenerator_SkipAdvancesPointer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "1000.00")
	rule := f.rule(t, streaming(acc), ptr(date(2024, time.February, 10)))

	_, err := f.rules.Skip(ctx, owner, rule.ID, date(2024, time.March, 10))
	require.NoError(t, err)
	rule, err = f.rules.Get(ctx, owner, rule.ID)
	require.NoError(t, err)

	result, err := f.generator(0, 0).Advance(ctx, rule, date(2024, time.March, 10))
	require.NoError(t, err)
	assert.Empty(t, result.Generated)
	assert.Equal(t, 1, result.Skipped)

	stored, err := f.rules.Get(ctx, owner, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.March, 10), *stored.LastProcessedAt)
	assert.Empty(t, f.occurrences(t, rule.ID))
}

func TestGenerator_CatchUpIsCapped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "1000.00")
	rule := f.rule(t, streaming(acc), ptr(date(2023, time.January, 10)))
	gen := f.generator(3, 0)
	today := date(2023, time.July, 10)

	first, err := gen.Advance(ctx, rule, today)
	require.NoError(t, err)
	require.Len(t, first.Generated, 3)
	assert.Equal(t, date(2023, time.April, 10), *rule.LastProcessedAt)

	second, err := gen.Advance(ctx, rule, today)
	require.NoError(t, err)
	require.Len(t, second.Generated, 3)

	third, err := gen.Advance(ctx, rule, today)
	require.NoError(t, err)
	assert.Empty(t, third.Generated)
	assert.Len(t, f.occurrences(t, rule.ID), 6, "February through July")
}

func TestGenerator_RecoversMaterializedOccurrence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "1000.00")
	rule := f.rule(t, streaming(acc), ptr(date(2024, time.January, 10)))

	// A crash between create and the pointer write leaves the row behind.
	_, err := f.ledger.Create(ctx, owner, transaction.CreateParams{
		Title:        "Streaming (02/2024)",
		Amount:       rule.Amount,
		Type:         rule.Type,
		Date:         date(2024, time.February, 10),
		AccountID:    acc.ID,
		CategoryID:   rule.CategoryID,
		RecurrenceID: &rule.ID,
	})
	require.NoError(t, err)

	result, err := f.generator(0, 0).Advance(ctx, rule, date(2024, time.February, 10))
	require.NoError(t, err)
	assert.Empty(t, result.Generated)
	assert.Equal(t, 1, result.Recovered)
	assert.Equal(t, date(2024, time.February, 10), *rule.LastProcessedAt)
	assert.Len(t, f.occurrences(t, rule.ID), 1)
}

func TestGenerator_CancelledRuleGeneratesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "1000.00")
	rule := f.rule(t, streaming(acc), ptr(date(2024, time.January, 10)))

	rule.Lineage = recurrence.Cancelled{Date: date(2024, time.March, 15)}
	require.NoError(t, f.store.Recurrences().Update(ctx, rule))

	result, err := f.generator(0, 0).Sweep(ctx, date(2024, time.June, 10))
	require.NoError(t, err)
	assert.Zero(t, result.Rules)
	assert.Zero(t, result.Generated)
	assert.Empty(t, f.occurrences(t, rule.ID))
	f.requireBalance(t, acc, "1000.00")

	owners, err := f.store.Recurrences().ListOwnersWithActiveRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, owners)
}

func TestGenerator_CancelOnDueDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "1000.00")
	rule := f.rule(t, streaming(acc), nil)

	cancelled, err := f.rules.Cancel(ctx, owner, rule.ID)
	require.NoError(t, err)

	result, err := f.generator(0, 0).Advance(ctx, cancelled, date(2024, time.February, 10))
	require.NoError(t, err)
	assert.Empty(t, result.Generated)
	assert.Empty(t, f.occurrences(t, rule.ID))
}

func TestGenerator_PausedRuleGeneratesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "1000.00")
	rule := f.rule(t, streaming(acc), nil)

	_, err := f.rules.Pause(ctx, owner, rule.ID)
	require.NoError(t, err)

	result, err := f.generator(0, 0).Sweep(ctx, date(2024, time.February, 10))
	require.NoError(t, err)
	assert.Zero(t, result.Rules)
	assert.Empty(t, f.occurrences(t, rule.ID))
}

func TestGenerator_MalformedRuleDoesNotStopSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "1000.00")
	good := f.rule(t, streaming(acc), nil)

	broken := &recurrence.Rule{
		ID:          "00000000-bad0-0000-0000-000000000000",
		OwnerID:     owner,
		Name:        "Broken",
		Amount:      decimal.NewFromInt(10),
		Type:        transaction.TypeExpense,
		CategoryID:  expenseCategory,
		AccountID:   acc.ID,
		Periodicity: recurrence.Monthly,
		DueDay:      40,
		Lineage:     recurrence.Active{},
	}
	require.NoError(t, f.store.Recurrences().Create(ctx, broken))

	result, err := f.generator(0, 0).Sweep(ctx, date(2024, time.February, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rules)
	assert.Equal(t, 1, result.Generated)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], broken.ID)
	assert.Len(t, f.occurrences(t, good.ID), 1)

	_, err = f.generator(0, 0).Advance(ctx, broken, date(2024, time.February, 10))
	assert.ErrorIs(t, err, apperr.ErrMalformedRule)
}

func invoiceAutoPay(t *testing.T, f *fixture, acc *account.Account) (*recurrence.Rule, string) {
	t.Helper()
	card, err := f.accounts.AddCreditCard(context.Background(), owner, acc.ID, account.CreditCardParams{
		Name: "Visa", Limit: decimal.NewFromInt(5000), ClosingDay: 25, DueDay: 5,
	})
	require.NoError(t, err)

	rule := f.rule(t, recurrence.CreateParams{
		Name:         "Fatura Visa",
		Amount:       decimal.RequireFromString("430.00"),
		Type:         transaction.TypeTransfer,
		CategoryID:   transferCategory,
		AccountID:    acc.ID,
		CreditCardID: &card.ID,
		Periodicity:  recurrence.Monthly,
		DueDay:       5,
		AutoPay:      true,
		Description:  "Pagamento automático",
	}, ptr(date(2024, time.February, 5)))
	return rule, card.ID
}

func TestGenerator_InvoiceAutoPayCarriesReconciliationKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "1000.00")
	rule, cardID := invoiceAutoPay(t, f, acc)

	result, err := f.generator(0, 0).Advance(ctx, rule, date(2024, time.March, 5))
	require.NoError(t, err)
	require.Len(t, result.Generated, 1)

	tx := result.Generated[0]
	key := "REF:" + cardID + ":3:2024"
	require.NotNil(t, tx.ReconciliationKey)
	assert.Equal(t, key, *tx.ReconciliationKey)
	assert.Equal(t, "Pagamento automático | "+key, tx.Description)
	assert.Nil(t, tx.CreditCardID, "the payment settles against the source account")
	assert.Equal(t, transaction.SettlementDirect, tx.SettlementMode())
}

func TestGenerator_InvoicePaidByHandIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "1000.00")
	rule, cardID := invoiceAutoPay(t, f, acc)

	key := "REF:" + cardID + ":3:2024"
	_, err := f.ledger.Create(ctx, owner, transaction.CreateParams{
		Title:             "Pagamento Fatura",
		Amount:            decimal.RequireFromString("430.00"),
		Type:              transaction.TypeTransfer,
		Status:            transaction.StatusPaid,
		Date:              date(2024, time.March, 1),
		AccountID:         acc.ID,
		CategoryID:        transferCategory,
		Description:       "Pagamento Fatura | " + key,
		ReconciliationKey: &key,
	})
	require.NoError(t, err)

	result, err := f.generator(0, 0).Advance(ctx, rule, date(2024, time.March, 5))
	require.NoError(t, err)
	assert.Empty(t, result.Generated)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, date(2024, time.March, 5), *rule.LastProcessedAt)
	f.requireBalance(t, acc, "570.00")
}

func TestGenerator_SweepPagesAndOwners(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "1000.00")
	for i := 0; i < 3; i++ {
		f.rule(t, streaming(acc), nil)
	}

	foreignAcc := f.account(t, otherOwner, "1000.00")
	foreign := streaming(foreignAcc)
	_, err := f.rules.Create(ctx, otherOwner, foreign)
	require.NoError(t, err)

	today := date(2024, time.February, 10)
	gen := f.generator(0, 1)

	mine, err := gen.SweepOwner(ctx, owner, today)
	require.NoError(t, err)
	assert.Equal(t, 3, mine.Rules)
	assert.Equal(t, 3, mine.Generated)

	all, err := gen.Sweep(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, 4, all.Rules)
	assert.Equal(t, 1, all.Generated)

	owners, err := f.store.Recurrences().ListOwnersWithActiveRules(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{owner, otherOwner}, owners)
}
