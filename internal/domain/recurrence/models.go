package recurrence

import (
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"fintrack/internal/domain/transaction"
	"fintrack/internal/shared/apperr"
)

// Periodicity is the cadence of a rule.
type Periodicity string

const (
	Monthly Periodicity = "monthly"
	Weekly  Periodicity = "weekly"
	Yearly  Periodicity = "yearly"
	Daily   Periodicity = "daily"
)

func (p Periodicity) Valid() bool {
	switch p {
	case Monthly, Weekly, Yearly, Daily:
		return true
	}
	return false
}

// Scope selects how an update applies to a rule's history.
type Scope string

const (
	// ScopeAll edits the rule in place.
	ScopeAll Scope = "all"
	// ScopeFuture supersedes the rule with a new one from today on.
	ScopeFuture Scope = "future"
)

// Domain errors
var (
	ErrRuleNotFound = fmt.Errorf("recurrence rule %w", apperr.ErrNotFound)
	ErrRuleInactive = fmt.Errorf("recurrence rule is not active: %w", apperr.ErrValidation)
)

// Rule describes a transaction that repeats on a schedule.
type Rule struct {
	ID                   string           `json:"id"`
	OwnerID              string           `json:"ownerId"`
	Name                 string           `json:"name"`
	Amount               decimal.Decimal  `json:"amount"`
	Type                 transaction.Type `json:"type"`
	CategoryID           string           `json:"categoryId"`
	AccountID            string           `json:"accountId"`
	DestinationAccountID *string          `json:"destinationAccountId,omitempty"`
	CreditCardID         *string          `json:"creditCardId,omitempty"`
	Periodicity          Periodicity      `json:"periodicity"`
	DueDay               int              `json:"dueDay"`
	DueMonth             *int             `json:"dueMonth,omitempty"`
	AutoPay              bool             `json:"autoPay"`
	Description          string           `json:"description"`
	Lineage              Lineage          `json:"-"`
	SkippedDates         []civil.Date     `json:"skippedDates"`

	// LastProcessedAt is the last due date handled, generated or skipped.
	LastProcessedAt *civil.Date `json:"lastProcessedAt,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`

	// LoadError is set by repositories when stored fields could not be
	// decoded. Such rules are never scheduled.
	LoadError error `json:"-"`
}

// Clone returns a deep copy of r.
func (r *Rule) Clone() *Rule {
	c := *r
	if r.DestinationAccountID != nil {
		v := *r.DestinationAccountID
		c.DestinationAccountID = &v
	}
	if r.CreditCardID != nil {
		v := *r.CreditCardID
		c.CreditCardID = &v
	}
	if r.DueMonth != nil {
		v := *r.DueMonth
		c.DueMonth = &v
	}
	if r.LastProcessedAt != nil {
		v := *r.LastProcessedAt
		c.LastProcessedAt = &v
	}
	c.SkippedDates = slices.Clone(r.SkippedDates)
	return &c
}

// State returns the lineage state, treating a missing lineage as active.
func (r *Rule) State() State {
	if r.Lineage == nil {
		return StateActive
	}
	return r.Lineage.State()
}

// IsActive reports whether the rule generates occurrences.
func (r *Rule) IsActive() bool {
	return r.State() == StateActive
}

// CancellationDate is the date the rule stopped generating, if any.
func (r *Rule) CancellationDate() *civil.Date {
	switch l := r.Lineage.(type) {
	case Cancelled:
		d := l.Date
		return &d
	case Superseded:
		d := l.EffectiveDate
		return &d
	}
	return nil
}

// IsSkipped reports an exact date-only match in the skip set.
func (r *Rule) IsSkipped(d civil.Date) bool {
	return slices.Contains(r.SkippedDates, d)
}

// Validate checks the rule's terms.
func (r *Rule) Validate() error {
	if r.LoadError != nil {
		return fmt.Errorf("%w: %w", apperr.ErrMalformedRule, r.LoadError)
	}
	if r.OwnerID == "" {
		return apperr.Invalid("ownerId", "owner is required")
	}
	if r.Name == "" {
		return apperr.Invalid("name", "name is required")
	}
	if !r.Amount.IsPositive() {
		return apperr.Invalid("amount", "amount must be greater than zero")
	}
	if !transaction.WholeCents(r.Amount) {
		return apperr.Invalid("amount", "amount must have at most 2 decimal places")
	}
	if !r.Type.Valid() {
		return apperr.Invalid("type", fmt.Sprintf("unknown transaction type %q", r.Type))
	}
	if r.AccountID == "" {
		return apperr.Invalid("accountId", "account is required")
	}
	if r.CategoryID == "" {
		return apperr.Invalid("categoryId", "category is required")
	}
	return r.validateSchedule()
}

func (r *Rule) validateSchedule() error {
	if !r.Periodicity.Valid() {
		return apperr.Invalid("periodicity", fmt.Sprintf("unknown periodicity %q", r.Periodicity))
	}
	if r.DueDay < 1 || r.DueDay > 31 {
		return apperr.Invalid("dueDay", "due day must be between 1 and 31")
	}
	if r.DueMonth != nil && (*r.DueMonth < 1 || *r.DueMonth > 12) {
		return apperr.Invalid("dueMonth", "due month must be between 1 and 12")
	}
	return nil
}

// CreateParams contains parameters for creating a rule
type CreateParams struct {
	Name                 string
	Amount               decimal.Decimal
	Type                 transaction.Type
	CategoryID           string
	AccountID            string
	DestinationAccountID *string
	CreditCardID         *string
	Periodicity          Periodicity
	DueDay               int
	DueMonth             *int
	AutoPay              bool
	Description          string
}

// UpdateParams replaces the terms that are set.
type UpdateParams struct {
	Name                 *string
	Amount               *decimal.Decimal
	Type                 *transaction.Type
	CategoryID           *string
	AccountID            *string
	DestinationAccountID *string
	CreditCardID         *string
	Periodicity          *Periodicity
	DueDay               *int
	DueMonth             *int
	AutoPay              *bool
	Description          *string
}

func (p UpdateParams) apply(r *Rule) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Amount != nil {
		r.Amount = *p.Amount
	}
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.CategoryID != nil {
		r.CategoryID = *p.CategoryID
	}
	if p.AccountID != nil {
		r.AccountID = *p.AccountID
	}
	if p.DestinationAccountID != nil {
		r.DestinationAccountID = optional(*p.DestinationAccountID)
	}
	if p.CreditCardID != nil {
		r.CreditCardID = optional(*p.CreditCardID)
	}
	if p.Periodicity != nil {
		r.Periodicity = *p.Periodicity
	}
	if p.DueDay != nil {
		r.DueDay = *p.DueDay
	}
	if p.DueMonth != nil {
		if *p.DueMonth == 0 {
			r.DueMonth = nil
		} else {
			m := *p.DueMonth
			r.DueMonth = &m
		}
	}
	if p.AutoPay != nil {
		r.AutoPay = *p.AutoPay
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
}

// ActiveQuery pages active rules ordered by id, starting after AfterID.
type ActiveQuery struct {
	OwnerID string
	AfterID string
	Limit   int
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
