package recurrence

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fintrack/internal/domain/transaction"
	"fintrack/internal/shared/apperr"
	"fintrack/internal/shared/calendar"
)

// Service owns the rule lifecycle: creation, edits with scope, pausing,
// cancellation and skips.
type Service struct {
	repo       Repository
	accounts   transaction.AccountLookup
	categories transaction.CategoryLookup
	logger     *zap.Logger
	loc        *time.Location
	now        func() time.Time
	newID      func() string
}

func NewService(repo Repository, accounts transaction.AccountLookup, categories transaction.CategoryLookup, loc *time.Location, logger *zap.Logger) *Service {
	return &Service{
		repo:       repo,
		accounts:   accounts,
		categories: categories,
		logger:     logger,
		loc:        loc,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

func (s *Service) today() civil.Date {
	return calendar.Today(s.now(), s.loc)
}

func (s *Service) Create(ctx context.Context, ownerID string, params CreateParams) (*Rule, error) {
	now := s.now().UTC()
	rule := &Rule{
		ID:                   s.newID(),
		OwnerID:              ownerID,
		Name:                 params.Name,
		Amount:               params.Amount,
		Type:                 params.Type,
		CategoryID:           params.CategoryID,
		AccountID:            params.AccountID,
		DestinationAccountID: optionalPtr(params.DestinationAccountID),
		CreditCardID:         optionalPtr(params.CreditCardID),
		Periodicity:          params.Periodicity,
		DueDay:               params.DueDay,
		DueMonth:             params.DueMonth,
		AutoPay:              params.AutoPay,
		Description:          params.Description,
		Lineage:              Active{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.validate(ctx, rule); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info("recurrence rule created",
		zap.String("rule_id", rule.ID),
		zap.String("owner_id", ownerID),
		zap.String("periodicity", string(rule.Periodicity)),
	)
	return rule, nil
}

// Get returns an owned rule. Rules of other owners are reported as not found.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*Rule, error) {
	rule, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.OwnerID != ownerID {
		return nil, ErrRuleNotFound
	}
	return rule, nil
}

func (s *Service) List(ctx context.Context, ownerID string, activeOnly bool) ([]*Rule, error) {
	if ownerID == "" {
		return nil, apperr.Invalid("ownerId", "owner is required")
	}
	return s.repo.ListByOwner(ctx, ownerID, activeOnly)
}

// Update edits a rule. ScopeAll changes it in place; ScopeFuture supersedes
// it with a new rule that inherits the schedule pointer, and returns the
// successor.
func (s *Service) Update(ctx context.Context, ownerID, id string, scope Scope, params UpdateParams) (*Rule, error) {
	rule, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	switch scope {
	case ScopeAll, "":
		updated := rule.Clone()
		params.apply(updated)
		updated.UpdatedAt = s.now().UTC()
		if err := s.validate(ctx, updated); err != nil {
			return nil, err
		}
		if err := s.repo.Update(ctx, updated); err != nil {
			return nil, err
		}
		return updated, nil

	case ScopeFuture:
		return s.supersede(ctx, rule, params)
	}
	return nil, apperr.Invalid("scope", "scope must be all or future")
}

func (s *Service) supersede(ctx context.Context, rule *Rule, params UpdateParams) (*Rule, error) {
	state := rule.State()
	if state != StateActive && state != StatePaused {
		return nil, ErrRuleInactive
	}

	now := s.now().UTC()
	successor := rule.Clone()
	successor.ID = s.newID()
	params.apply(successor)
	successor.CreatedAt = now
	successor.UpdatedAt = now
	if state == StatePaused {
		successor.Lineage = Paused{}
	} else {
		successor.Lineage = Active{}
	}
	if err := s.validate(ctx, successor); err != nil {
		return nil, err
	}

	old := rule.Clone()
	old.Lineage = Superseded{SuccessorID: successor.ID, EffectiveDate: s.today()}
	old.UpdatedAt = now

	if err := s.repo.Supersede(ctx, old, successor); err != nil {
		return nil, err
	}

	s.logger.Info("recurrence rule superseded",
		zap.String("rule_id", old.ID),
		zap.String("successor_id", successor.ID),
		zap.String("owner_id", old.OwnerID),
	)
	return successor, nil
}

// Cancel soft-deletes the rule as of today. History is preserved.
func (s *Service) Cancel(ctx context.Context, ownerID, id string) (*Rule, error) {
	return s.transition(ctx, ownerID, id, func(r *Rule) (Lineage, error) {
		switch r.State() {
		case StateActive, StatePaused:
			return Cancelled{Date: s.today()}, nil
		}
		return nil, ErrRuleInactive
	})
}

func (s *Service) Pause(ctx context.Context, ownerID, id string) (*Rule, error) {
	return s.transition(ctx, ownerID, id, func(r *Rule) (Lineage, error) {
		if r.State() != StateActive {
			return nil, ErrRuleInactive
		}
		return Paused{}, nil
	})
}

func (s *Service) Resume(ctx context.Context, ownerID, id string) (*Rule, error) {
	return s.transition(ctx, ownerID, id, func(r *Rule) (Lineage, error) {
		if r.State() != StatePaused {
			return nil, apperr.Invalid("state", "only paused rules can be resumed")
		}
		return Active{}, nil
	})
}

func (s *Service) transition(ctx context.Context, ownerID, id string, next func(*Rule) (Lineage, error)) (*Rule, error) {
	rule, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	lineage, err := next(rule)
	if err != nil {
		return nil, err
	}

	updated := rule.Clone()
	updated.Lineage = lineage
	updated.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Skip suppresses the occurrence due on date. The schedule pointer still
// moves past it.
func (s *Service) Skip(ctx context.Context, ownerID, id string, date civil.Date) (*Rule, error) {
	if !date.IsValid() {
		return nil, apperr.Invalid("date", "a valid date is required")
	}
	rule, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if rule.IsSkipped(date) {
		return rule, nil
	}

	updated := rule.Clone()
	updated.SkippedDates = append(updated.SkippedDates, date)
	updated.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Lineage returns the rule followed by its successors, oldest first.
func (s *Service) Lineage(ctx context.Context, ownerID, id string) ([]*Rule, error) {
	rule, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	chain := []*Rule{rule}
	seen := map[string]bool{rule.ID: true}
	for {
		sup, ok := chain[len(chain)-1].Lineage.(Superseded)
		if !ok || seen[sup.SuccessorID] {
			return chain, nil
		}
		next, err := s.Get(ctx, ownerID, sup.SuccessorID)
		if errors.Is(err, ErrRuleNotFound) {
			return chain, nil
		}
		if err != nil {
			return nil, err
		}
		seen[next.ID] = true
		chain = append(chain, next)
	}
}

// CreateFromSeed creates the rule behind a periodic unified create.
func (s *Service) CreateFromSeed(ctx context.Context, seed transaction.RuleSeed) (string, error) {
	rule, err := s.Create(ctx, seed.OwnerID, CreateParams{
		Name:                 seed.Name,
		Amount:               seed.Amount,
		Type:                 seed.Type,
		CategoryID:           seed.CategoryID,
		AccountID:            seed.AccountID,
		DestinationAccountID: seed.DestinationAccountID,
		CreditCardID:         seed.CreditCardID,
		Periodicity:          Periodicity(seed.Periodicity),
		DueDay:               seed.DueDay,
		DueMonth:             seed.DueMonth,
		AutoPay:              seed.AutoPay,
		Description:          seed.Description,
	})
	if err != nil {
		return "", err
	}
	return rule.ID, nil
}

// MarkProcessed records date as the last handled occurrence of the rule.
func (s *Service) MarkProcessed(ctx context.Context, ownerID, ruleID string, date civil.Date) error {
	if _, err := s.Get(ctx, ownerID, ruleID); err != nil {
		return err
	}
	return s.repo.SetLastProcessed(ctx, ruleID, date)
}

func (s *Service) validate(ctx context.Context, r *Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.Periodicity == Yearly && r.DueMonth == nil {
		return apperr.Invalid("dueMonth", "yearly rules need a due month")
	}

	if _, err := s.accounts.GetAccount(ctx, r.AccountID, r.OwnerID); err != nil {
		return referenceError("accountId", err)
	}
	if dest := r.DestinationAccountID; dest != nil {
		if r.Type != transaction.TypeTransfer {
			return apperr.Invalid("destinationAccountId", "only transfers have a destination account")
		}
		if *dest == r.AccountID {
			return apperr.Invalid("destinationAccountId", "destination must differ from the source account")
		}
		if _, err := s.accounts.GetAccount(ctx, *dest, r.OwnerID); err != nil {
			return referenceError("destinationAccountId", err)
		}
	}
	if _, err := s.categories.GetCategory(ctx, r.CategoryID, r.OwnerID); err != nil {
		return referenceError("categoryId", err)
	}
	if card := r.CreditCardID; card != nil {
		if _, _, err := s.accounts.FindCreditCard(ctx, r.OwnerID, *card); err != nil {
			return referenceError("creditCardId", err)
		}
	}
	return nil
}

func referenceError(field string, err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return &apperr.ValidationError{Field: field, Reason: "does not exist"}
	}
	return err
}

func optionalPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return optional(*s)
}
