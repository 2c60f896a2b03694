package scheduler

import (
	"context"
	"fmt"
	"slices"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"fintrack/internal/domain/recurrence"
	"fintrack/internal/domain/transaction"
)

// RecurrenceSweeper generates the due occurrences of one owner's rules.
type RecurrenceSweeper interface {
	SweepOwner(ctx context.Context, ownerID string, today civil.Date) (*recurrence.SweepResult, error)
}

// AutoPaySweeper settles one owner's due auto-pay rows.
type AutoPaySweeper interface {
	SettleOwner(ctx context.Context, ownerID string, today civil.Date) (*transaction.SettleResult, error)
}

// OwnerSweepJob runs generation then settlement for one owner, so an
// occurrence generated today is settled in the same run.
type OwnerSweepJob struct {
	ownerID     string
	today       civil.Date
	recurrences RecurrenceSweeper
	autoPay     AutoPaySweeper
	logger      *zap.Logger
}

func NewOwnerSweepJob(ownerID string, today civil.Date, recurrences RecurrenceSweeper, autoPay AutoPaySweeper, logger *zap.Logger) *OwnerSweepJob {
	return &OwnerSweepJob{
		ownerID:     ownerID,
		today:       today,
		recurrences: recurrences,
		autoPay:     autoPay,
		logger:      logger,
	}
}

// Execute returns an error when either pass reported failures. Settlement
// still runs after a failed generation pass.
func (j *OwnerSweepJob) Execute(ctx context.Context) error {
	generated, genErr := j.recurrences.SweepOwner(ctx, j.ownerID, j.today)
	if genErr != nil {
		genErr = fmt.Errorf("recurrence sweep failed: %w", genErr)
	} else if generated.Failed > 0 {
		genErr = fmt.Errorf("recurrence sweep completed with %d failures", generated.Failed)
	}

	settled, payErr := j.autoPay.SettleOwner(ctx, j.ownerID, j.today)
	if payErr != nil {
		payErr = fmt.Errorf("auto-pay settlement failed: %w", payErr)
	} else if settled.Failed > 0 {
		payErr = fmt.Errorf("auto-pay settlement completed with %d failures", settled.Failed)
	}

	if generated != nil && settled != nil {
		j.logger.Info("owner sweep finished",
			zap.String("owner_id", j.ownerID),
			zap.String("date", j.today.String()),
			zap.Int("generated", generated.Generated),
			zap.Int("settled", settled.Settled),
		)
	}

	if genErr != nil {
		return genErr
	}
	return payErr
}

func (j *OwnerSweepJob) OwnerID() string {
	return j.ownerID
}

func (j *OwnerSweepJob) Description() string {
	return fmt.Sprintf("Recurrence and auto-pay sweep for %s on %s", j.ownerID, j.today)
}

// RuleOwners lists owners with rules the generator may still process.
type RuleOwners interface {
	ListOwnersWithActiveRules(ctx context.Context) ([]string, error)
}

// AutoPayOwners lists owners with pending auto-pay rows due by a date.
type AutoPayOwners interface {
	ListOwnersWithDueAutoPay(ctx context.Context, onOrBefore civil.Date) ([]string, error)
}

// OwnerSweepJobs returns a provider emitting one OwnerSweepJob per owner
// that has work, so each owner's accounts are touched by a single worker.
func OwnerSweepJobs(rules RuleOwners, pending AutoPayOwners, recurrences RecurrenceSweeper, autoPay AutoPaySweeper, logger *zap.Logger) JobProvider {
	return func(ctx context.Context, today civil.Date) ([]Job, error) {
		ruleOwners, err := rules.ListOwnersWithActiveRules(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list recurrence owners: %w", err)
		}
		payOwners, err := pending.ListOwnersWithDueAutoPay(ctx, today)
		if err != nil {
			return nil, fmt.Errorf("failed to list auto-pay owners: %w", err)
		}

		owners := append(slices.Clone(ruleOwners), payOwners...)
		slices.Sort(owners)
		owners = slices.Compact(owners)

		jobs := make([]Job, 0, len(owners))
		for _, ownerID := range owners {
			jobs = append(jobs, NewOwnerSweepJob(ownerID, today, recurrences, autoPay, logger))
		}
		return jobs, nil
	}
}
