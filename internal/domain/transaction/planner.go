package transaction

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fintrack/internal/shared/apperr"
	"fintrack/internal/shared/calendar"
)

// RuleSeed describes the recurrence rule created for a periodic request.
type RuleSeed struct {
	OwnerID              string
	Name                 string
	Amount               decimal.Decimal
	Type                 Type
	CategoryID           string
	AccountID            string
	DestinationAccountID *string
	CreditCardID         *string
	Periodicity          string
	DueDay               int
	DueMonth             *int
	AutoPay              bool
	Description          string
}

// RuleCreator creates recurrence rules on behalf of the planner.
type RuleCreator interface {
	CreateFromSeed(ctx context.Context, seed RuleSeed) (ruleID string, err error)
	MarkProcessed(ctx context.Context, ownerID, ruleID string, date civil.Date) error
}

// PlanParams is a single user request that may fan out into an installment
// group or a recurrence rule.
type PlanParams struct {
	CreateParams

	// Installments > 1 splits the request into monthly installments of Amount.
	Installments int
	// Periodicity, when set, creates a recurrence rule.
	Periodicity string
	// CreateFirst also materializes the rule's first occurrence on Date.
	CreateFirst bool
}

type PlanResult struct {
	Transactions []*Transaction `json:"transactions"`
	RecurrenceID string         `json:"recurrenceId,omitempty"`
}

// Planner implements the unified create.
type Planner struct {
	ledger *Ledger
	rules  RuleCreator
	logger *zap.Logger
	loc    *time.Location
	now    func() time.Time
	newID  func() string
}

func NewPlanner(ledger *Ledger, rules RuleCreator, loc *time.Location, logger *zap.Logger) *Planner {
	return &Planner{
		ledger: ledger,
		rules:  rules,
		logger: logger,
		loc:    loc,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (p *Planner) Create(ctx context.Context, ownerID string, params PlanParams) (*PlanResult, error) {
	switch {
	case params.Installments > 1 && params.Periodicity != "":
		return nil, apperr.Invalid("periodicity", "installments and periodicity are mutually exclusive")
	case params.Installments > 1:
		return p.createInstallments(ctx, ownerID, params)
	case params.Periodicity != "":
		return p.createRecurring(ctx, ownerID, params)
	}

	t, err := p.ledger.Create(ctx, ownerID, params.CreateParams)
	if err != nil {
		return nil, err
	}
	return &PlanResult{Transactions: []*Transaction{t}}, nil
}

func (p *Planner) createInstallments(ctx context.Context, ownerID string, params PlanParams) (*PlanResult, error) {
	if params.InstallmentGroupID != nil || params.RecurrenceID != nil {
		return nil, apperr.Invalid("installments", "request already references a group or rule")
	}

	groupID := p.newID()
	total := params.Installments
	batch := make([]CreateParams, 0, total)
	for i := 1; i <= total; i++ {
		item := params.CreateParams
		item.Title = fmt.Sprintf("%s (%d/%d)", params.Title, i, total)
		item.Date = calendar.AddMonths(params.Date, i-1)
		item.InstallmentGroupID = &groupID
		item.InstallmentNumber = i
		item.TotalInstallments = total
		if i > 1 {
			item.Status = StatusPending
			item.PaymentDate = nil
		}
		batch = append(batch, item)
	}

	txs, err := p.ledger.CreateMany(ctx, ownerID, batch)
	if err != nil {
		return nil, err
	}

	p.logger.Info("installment group created",
		zap.String("owner_id", ownerID),
		zap.String("group_id", groupID),
		zap.Int("installments", total),
	)
	return &PlanResult{Transactions: txs}, nil
}

func (p *Planner) createRecurring(ctx context.Context, ownerID string, params PlanParams) (*PlanResult, error) {
	if !params.Date.IsValid() {
		return nil, apperr.Invalid("date", "a valid start date is required")
	}

	seed := RuleSeed{
		OwnerID:              ownerID,
		Name:                 params.Title,
		Amount:               params.Amount,
		Type:                 params.Type,
		CategoryID:           params.CategoryID,
		AccountID:            params.AccountID,
		DestinationAccountID: params.DestinationAccountID,
		CreditCardID:         params.CreditCardID,
		Periodicity:          params.Periodicity,
		DueDay:               params.Date.Day,
		AutoPay:              params.IsAutoPay,
		Description:          params.Description,
	}
	if params.Periodicity == "yearly" {
		month := int(params.Date.Month)
		seed.DueMonth = &month
	}

	if params.CreateFirst {
		probe := params.CreateParams.build("", ownerID, p.now().UTC())
		if err := p.ledger.validate(ctx, probe); err != nil {
			return nil, err
		}
	}

	ruleID, err := p.rules.CreateFromSeed(ctx, seed)
	if err != nil {
		return nil, err
	}

	result := &PlanResult{RecurrenceID: ruleID}
	if !params.CreateFirst {
		return result, nil
	}

	first := params.CreateParams
	first.RecurrenceID = &ruleID
	if params.Date.After(calendar.Today(p.now(), p.loc)) {
		first.Status = StatusPending
		first.PaymentDate = nil
	}

	t, err := p.ledger.Create(ctx, ownerID, first)
	if err != nil {
		return nil, err
	}
	result.Transactions = []*Transaction{t}

	// A failed pointer write is recovered by the scheduler, which finds the
	// occurrence and only advances the pointer.
	if err := p.rules.MarkProcessed(ctx, ownerID, ruleID, params.Date); err != nil {
		p.logger.Warn("failed to record first occurrence on rule",
			zap.String("rule_id", ruleID),
			zap.String("transaction_id", t.ID),
			zap.Error(err),
		)
	}
	return result, nil
}
