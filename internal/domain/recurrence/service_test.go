package recurrence_test

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

func TestService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, owner, "1000.00")
	foreign := f.account(t, otherOwner, "0.00")

	tests := []struct {
		name   string
		mutate func(p *recurrence.CreateParams)
		field  string
	}{
		{"empty name", func(p *recurrence.CreateParams) { p.Name = "" }, "name"},
		{"zero amount", func(p *recurrence.CreateParams) { p.Amount = decimal.Zero }, "amount"},
		{"fractional cents", func(p *recurrence.CreateParams) { p.Amount = decimal.RequireFromString("55.905") }, "amount"},
		{"due day 0", func(p *recurrence.CreateParams) { p.DueDay = 0 }, "dueDay"},
		{"due day 32", func(p *recurrence.CreateParams) { p.DueDay = 32 }, "dueDay"},
		{"unknown periodicity", func(p *recurrence.CreateParams) { p.Periodicity = "hourly" }, "periodicity"},
		{"yearly without due month", func(p *recurrence.CreateParams) { p.Periodicity = recurrence.Yearly }, "dueMonth"},
		{"due month 13", func(p *recurrence.CreateParams) {
			p.Periodicity = recurrence.Yearly
			p.DueMonth = ptr(13)
		}, "dueMonth"},
		{"unknown type", func(p *recurrence.CreateParams) { p.Type = "refund" }, "type"},
		{"foreign account", func(p *recurrence.CreateParams) { p.AccountID = foreign.ID }, "accountId"},
		{"unknown category", func(p *recurrence.CreateParams) { p.CategoryID = "missing" }, "categoryId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := streaming(acc)
			tt.mutate(&params)

			_, err := f.rules.Create(context.Background(), owner, params)
			require.ErrorIs(t, err, apperr.ErrValidation)

			var verr *apperr.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestService_OtherOwnerSeesNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "1000.00")
	rule := f.rule(t, streaming(acc), nil)

	_, err := f.rules.Get(ctx, otherOwner, rule.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.rules.Cancel(ctx, otherOwner, rule.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_UpdateAllScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "1000.00")
	rule := f.rule(t, streaming(acc), nil)

	updated, err := f.rules.Update(ctx, owner, rule.ID, recurrence.ScopeAll, recurrence.UpdateParams{
		Amount: ptr(decimal.RequireFromString("59.90")),
	})
	require.NoError(t, err)
	assert.Equal(t, rule.ID, updated.ID)
	assert.True(t, updated.Amount.Equal(decimal.RequireFromString("59.90")))
	assert.True(t, updated.IsActive())

	_, err = f.rules.Update(ctx, owner, rule.ID, recurrence.ScopeAll, recurrence.UpdateParams{DueDay: ptr(0)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.rules.Update(ctx, owner, rule.ID, "sometimes", recurrence.UpdateParams{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestService_FutureScopeSupersedes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "1000.00")
	rule := f.rule(t, streaming(acc), ptr(date(2024, time.February, 10)))

	successor, err := f.rules.Update(ctx, owner, rule.ID, recurrence.ScopeFuture, recurrence.UpdateParams{
		Amount: ptr(decimal.RequireFromString("65.00")),
	})
	require.NoError(t, err)
	assert.NotEqual(t, rule.ID, successor.ID)
	assert.True(t, successor.IsActive())
	require.NotNil(t, successor.LastProcessedAt, "successor inherits the schedule pointer")
	assert.Equal(t, date(2024, time.February, 10), *successor.LastProcessedAt)

	old, err := f.rules.Get(ctx, owner, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, recurrence.StateSuperseded, old.State())
	sup, ok := old.Lineage.(recurrence.Superseded)
	require.True(t, ok)
	assert.Equal(t, successor.ID, sup.SuccessorID)
	assert.NotNil(t, old.CancellationDate())
	assert.True(t, old.Amount.Equal(decimal.RequireFromString("55.90")), "old terms are kept")

	chain, err := f.rules.Lineage(ctx, owner, rule.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, rule.ID, chain[0].ID)
	assert.Equal(t, successor.ID, chain[1].ID)

	active, err := f.rules.List(ctx, owner, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, successor.ID, active[0].ID)

	result, err := f.generator(0, 0).Sweep(ctx, date(2024, time.March, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Generated)
	assert.Empty(t, f.occurrences(t, rule.ID))

	txs := f.occurrences(t, successor.ID)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Amount.Equal(decimal.RequireFromString("65.00")))

	_, err = f.rules.Update(ctx, owner, rule.ID, recurrence.ScopeFuture, recurrence.UpdateParams{})
	assert.ErrorIs(t, err, recurrence.ErrRuleInactive)
}

func TestService_PausedSuccessorStaysPaused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "1000.00")
	rule := f.rule(t, streaming(acc), nil)

	_, err := f.rules.Pause(ctx, owner, rule.ID)
	require.NoError(t, err)

	successor, err := f.rules.Update(ctx, owner, rule.ID, recurrence.ScopeFuture, recurrence.UpdateParams{Name: ptr("Música")})
	require.NoError(t, err)
	assert.Equal(t, recurrence.StatePaused, successor.State())
}

func TestService_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "1000.00")
	rule := f.rule(t, streaming(acc), nil)

	paused, err := f.rules.Pause(ctx, owner, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, recurrence.StatePaused, paused.State())

	_, err = f.rules.Pause(ctx, owner, rule.ID)
	assert.ErrorIs(t, err, recurrence.ErrRuleInactive)

	resumed, err := f.rules.Resume(ctx, owner, rule.ID)
	require.NoError(t, err)
	assert.True(t, resumed.IsActive())

	cancelled, err := f.rules.Cancel(ctx, owner, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, recurrence.StateCancelled, cancelled.State())
	assert.NotNil(t, cancelled.CancellationDate())

	_, err = f.rules.Cancel(ctx, owner, rule.ID)
	assert.ErrorIs(t, err, recurrence.ErrRuleInactive)

	_, err = f.rules.Resume(ctx, owner, rule.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	all, err := f.rules.List(ctx, owner, false)
	require.NoError(t, err)
	assert.Len(t, all, 1, "cancelled rules are kept")
}

func TestService_SkipIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, owner, "1000.00")
	rule := f.rule(t, streaming(acc), nil)

	for i := 0; i < 2; i++ {
		skipped, err := f.rules.Skip(ctx, owner, rule.ID, date(2024, time.March, 10))
		require.NoError(t, err)
		assert.Len(t, skipped.SkippedDates, 1)
	}
	assert.True(t, mustGet(t, f, rule.ID).IsSkipped(date(2024, time.March, 10)))
}

func TestService_MarkProcessedChecksOwner(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, owner, "1000.00")
	rule := f.rule(t, streaming(acc), nil)

	err := f.rules.MarkProcessed(context.Background(), otherOwner, rule.ID, date(2024, time.March, 10))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_CreateFromSeed(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, owner, "1000.00")

	id, err := f.rules.CreateFromSeed(context.Background(), transaction.RuleSeed{
		OwnerID:     owner,
		Name:        "Aluguel",
		Amount:      decimal.NewFromInt(2000),
		Type:        transaction.TypeExpense,
		CategoryID:  expenseCategory,
		AccountID:   acc.ID,
		Periodicity: "monthly",
		DueDay:      5,
	})
	require.NoError(t, err)
	assert.Equal(t, recurrence.Monthly, mustGet(t, f, id).Periodicity)
}

func mustGet(t *testing.T, f *fixture, id string) *recurrence.Rule {
	t.Helper()
	rule, err := f.rules.Get(context.Background(), owner, id)
	require.NoError(t, err)
	return rule
}
