package scheduler

import (
	"context"
	"sync/atomic"

	"cloud.google.com/go/civil"

	"fintrack/internal/domain/recurrence"
	"fintrack/internal/domain/transaction"
)

// MockRecurrenceSweeper implements RecurrenceSweeper for testing
type MockRecurrenceSweeper struct {
	SweepOwnerFunc func(ctx context.Context, ownerID string, today civil.Date) (*recurrence.SweepResult, error)
}

func (m *MockRecurrenceSweeper) SweepOwner(ctx context.Context, ownerID string, today civil.Date) (*recurrence.SweepResult, error) {
	if m.SweepOwnerFunc != nil {
		return m.SweepOwnerFunc(ctx, ownerID, today)
	}
	return &recurrence.SweepResult{}, nil
}

// MockAutoPaySweeper implements AutoPaySweeper for testing
type MockAutoPaySweeper struct {
	SettleOwnerFunc func(ctx context.Context, ownerID string, today civil.Date) (*transaction.SettleResult, error)
}

func (m *MockAutoPaySweeper) SettleOwner(ctx context.Context, ownerID string, today civil.Date) (*transaction.SettleResult, error) {
	if m.SettleOwnerFunc != nil {
		return m.SettleOwnerFunc(ctx, ownerID, today)
	}
	return &transaction.SettleResult{}, nil
}

// MockOwners implements RuleOwners and AutoPayOwners for testing
type MockOwners struct {
	RuleOwnersFunc    func(ctx context.Context) ([]string, error)
	AutoPayOwnersFunc func(ctx context.Context, onOrBefore civil.Date) ([]string, error)
}

func (m *MockOwners) ListOwnersWithActiveRules(ctx context.Context) ([]string, error) {
	if m.RuleOwnersFunc != nil {
		return m.RuleOwnersFunc(ctx)
	}
	return nil, nil
}

func (m *MockOwners) ListOwnersWithDueAutoPay(ctx context.Context, onOrBefore civil.Date) ([]string, error) {
	if m.AutoPayOwnersFunc != nil {
		return m.AutoPayOwnersFunc(ctx, onOrBefore)
	}
	return nil, nil
}

type countingJob struct {
	owner string
	runs  *atomic.Int32
	done  chan string
	block chan struct{}
	err   error
}

func (j *countingJob) Execute(ctx context.Context) error {
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if j.runs != nil {
		j.runs.Add(1)
	}
	if j.done != nil {
		j.done <- j.owner
	}
	return j.err
}

func (j *countingJob) OwnerID() string     { return j.owner }
func (j *countingJob) Description() string { return "counting job" }
