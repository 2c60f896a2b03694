package recurrence

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"fintrack/internal/domain/transaction"
	"fintrack/internal/shared/apperr"
)

const (
	// DefaultMaxCatchUp bounds the occurrences handled per rule per pass.
	DefaultMaxCatchUp = 12
	DefaultPageSize   = 200
)

var (
	generatorMeter      = otel.Meter("fintrack/recurrence")
	occurrencesTotal, _ = generatorMeter.Int64Counter("recurrence.occurrences.total",
		metric.WithDescription("Recurrence occurrences handled, by outcome"),
	)
	ruleFailures, _ = generatorMeter.Int64Counter("recurrence.failures.total",
		metric.WithDescription("Rules that could not be advanced, by reason"),
	)
)

// LedgerWriter creates transactions on behalf of the generator.
type LedgerWriter interface {
	Create(ctx context.Context, ownerID string, params transaction.CreateParams) (*transaction.Transaction, error)
}

// OccurrenceFinder looks up an already materialized occurrence.
type OccurrenceFinder interface {
	FindByOccurrence(ctx context.Context, recurrenceID string, date civil.Date) (*transaction.Transaction, error)
}

// AdvanceResult reports what one rule produced in a pass.
type AdvanceResult struct {
	RuleID    string
	Generated []*transaction.Transaction
	Skipped   int
	// Recovered counts occurrences found already materialized, for which
	// only the pointer moved.
	Recovered int
}

// SweepResult summarizes a pass over many rules.
type SweepResult struct {
	Rules     int      `json:"rules"`
	Generated int      `json:"generated"`
	Skipped   int      `json:"skipped"`
	Recovered int      `json:"recovered"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Generator materializes due occurrences of recurrence rules. Generated
// transactions are always pending; settlement belongs to the auto-pay pass.
type Generator struct {
	repo        Repository
	ledger      LedgerWriter
	occurrences OccurrenceFinder
	logger      *zap.Logger
	maxCatchUp  int
	pageSize    int
}

func NewGenerator(repo Repository, ledger LedgerWriter, occurrences OccurrenceFinder, maxCatchUp, pageSize int, logger *zap.Logger) *Generator {
	if maxCatchUp <= 0 {
		maxCatchUp = DefaultMaxCatchUp
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Generator{
		repo:        repo,
		ledger:      ledger,
		occurrences: occurrences,
		logger:      logger,
		maxCatchUp:  maxCatchUp,
		pageSize:    pageSize,
	}
}

// Advance handles every occurrence of rule due on or before today, up to
// the catch-up cap. The rule's pointer is updated in place.
func (g *Generator) Advance(ctx context.Context, rule *Rule, today civil.Date) (*AdvanceResult, error) {
	result := &AdvanceResult{RuleID: rule.ID}

	if err := rule.LoadError; err != nil {
		return result, fmt.Errorf("%w: rule %s: %w", apperr.ErrMalformedRule, rule.ID, err)
	}
	if err := rule.validateSchedule(); err != nil {
		return result, fmt.Errorf("%w: rule %s: %w", apperr.ErrMalformedRule, rule.ID, err)
	}

	if rule.State() != StateActive {
		return result, nil
	}

	for i := 0; i < g.maxCatchUp; i++ {
		due, ok := rule.NextDue(today)
		if !ok {
			break
		}

		outcome, t, err := g.materialize(ctx, rule, due)
		if err != nil {
			return result, err
		}
		if err := g.repo.SetLastProcessed(ctx, rule.ID, due); err != nil {
			return result, fmt.Errorf("advance pointer of rule %s: %w", rule.ID, err)
		}
		d := due
		rule.LastProcessedAt = &d

		switch outcome {
		case "generated":
			result.Generated = append(result.Generated, t)
		case "skipped":
			result.Skipped++
		case "recovered":
			result.Recovered++
		}
		occurrencesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
	return result, nil
}

func (g *Generator) materialize(ctx context.Context, rule *Rule, due civil.Date) (string, *transaction.Transaction, error) {
	if rule.IsSkipped(due) {
		return "skipped", nil, nil
	}

	existing, err := g.occurrences.FindByOccurrence(ctx, rule.ID, due)
	if err != nil {
		return "", nil, fmt.Errorf("look up occurrence of rule %s on %s: %w", rule.ID, due, err)
	}
	if existing != nil {
		return "recovered", existing, nil
	}

	t, err := g.ledger.Create(ctx, rule.OwnerID, occurrence(rule, due))
	switch {
	case err == nil:
		return "generated", t, nil
	case errors.Is(err, transaction.ErrDuplicateOccurrence):
		return "recovered", nil, nil
	case errors.Is(err, transaction.ErrDuplicateReconciliation):
		// The invoice was already paid by hand.
		g.logger.Info("invoice already settled, skipping auto-pay occurrence",
			zap.String("rule_id", rule.ID),
			zap.String("date", due.String()),
		)
		return "skipped", nil, nil
	}
	return "", nil, fmt.Errorf("materialize rule %s on %s: %w", rule.ID, due, err)
}

// occurrence builds the pending transaction for rule due on date. Invoice
// auto-pay transfers carry the cycle's reconciliation key and drop the card
// reference so the transfer settles against the source account.
func occurrence(rule *Rule, due civil.Date) transaction.CreateParams {
	ruleID := rule.ID
	params := transaction.CreateParams{
		Title:                fmt.Sprintf("%s (%02d/%d)", rule.Name, int(due.Month), due.Year),
		Amount:               rule.Amount,
		Type:                 rule.Type,
		Status:               transaction.StatusPending,
		Date:                 due,
		AccountID:            rule.AccountID,
		DestinationAccountID: rule.DestinationAccountID,
		CategoryID:           rule.CategoryID,
		CreditCardID:         rule.CreditCardID,
		RecurrenceID:         &ruleID,
		IsAutoPay:            rule.AutoPay,
		Description:          rule.Description,
	}

	if rule.Type == transaction.TypeTransfer && rule.CreditCardID != nil {
		key := transaction.ReconciliationKey(*rule.CreditCardID, due.Month, due.Year)
		params.ReconciliationKey = &key
		params.CreditCardID = nil
		if rule.Description == "" {
			params.Description = key
		} else {
			params.Description = rule.Description + " | " + key
		}
	}
	return params
}

// Sweep advances every active rule.
func (g *Generator) Sweep(ctx context.Context, today civil.Date) (*SweepResult, error) {
	return g.sweep(ctx, "", today)
}

// SweepOwner advances the active rules of one owner.
func (g *Generator) SweepOwner(ctx context.Context, ownerID string, today civil.Date) (*SweepResult, error) {
	return g.sweep(ctx, ownerID, today)
}

func (g *Generator) sweep(ctx context.Context, ownerID string, today civil.Date) (*SweepResult, error) {
	result := &SweepResult{Errors: []string{}}
	query := ActiveQuery{OwnerID: ownerID, Limit: g.pageSize}

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		rules, err := g.repo.ListActive(ctx, query)
		if err != nil {
			return result, fmt.Errorf("list active rules: %w", err)
		}
		if len(rules) == 0 {
			break
		}

		for _, rule := range rules {
			result.Rules++
			advanced, err := g.Advance(ctx, rule, today)
			result.Generated += len(advanced.Generated)
			result.Skipped += advanced.Skipped
			result.Recovered += advanced.Recovered
			if err != nil {
				g.recordFailure(ctx, result, rule, err)
			}
		}

		if len(rules) < query.Limit {
			break
		}
		query.AfterID = rules[len(rules)-1].ID
	}

	g.logger.Info("recurrence sweep finished",
		zap.String("owner_id", ownerID),
		zap.String("date", today.String()),
		zap.Int("rules", result.Rules),
		zap.Int("generated", result.Generated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (g *Generator) recordFailure(ctx context.Context, result *SweepResult, rule *Rule, err error) {
	result.Failed++
	result.Errors = append(result.Errors, rule.ID+": "+err.Error())

	reason := "ledger"
	if errors.Is(err, apperr.ErrMalformedRule) {
		reason = "malformed"
	}
	ruleFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))

	g.logger.Warn("failed to advance recurrence rule",
		zap.String("rule_id", rule.ID),
		zap.String("owner_id", rule.OwnerID),
		zap.String("reason", reason),
		zap.Error(err),
	)
}
