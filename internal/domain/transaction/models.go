package transaction

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"fintrack/internal/shared/apperr"
)

// Type is the direction of a transaction's monetary effect.
type Type string

const (
	TypeExpense  Type = "expense"
	TypeIncome   Type = "income"
	TypeTransfer Type = "transfer"
)

func (t Type) Valid() bool {
	switch t {
	case TypeExpense, TypeIncome, TypeTransfer:
		return true
	}
	return false
}

// Status of a transaction. Only paid transactions settle.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusPaid
}

// Domain errors
var (
	ErrTransactionNotFound = fmt.Errorf("transaction %w", apperr.ErrNotFound)
	// ErrDuplicateOccurrence is returned when a recurrence occurrence already
	// has a transaction for the same date.
	ErrDuplicateOccurrence = fmt.Errorf("recurrence occurrence already materialized: %w", apperr.ErrConflict)
	// ErrDuplicateReconciliation is returned when a payment with the same
	// reconciliation key already exists.
	ErrDuplicateReconciliation = fmt.Errorf("reconciliation key already used: %w", apperr.ErrDuplicatePayment)
	// ErrStatusChanged is returned by a conditional update whose expected
	// status no longer holds.
	ErrStatusChanged = fmt.Errorf("transaction status changed: %w", apperr.ErrConflict)

	errAccountsChanged = errors.New("touched accounts changed during mutation")
)

// Transaction is one ledger entry. Amount is always a positive magnitude;
// the sign of its effect comes from Type.
type Transaction struct {
	ID                   string          `json:"id"`
	OwnerID              string          `json:"ownerId"`
	Title                string          `json:"title"`
	Amount               decimal.Decimal `json:"amount"`
	Type                 Type            `json:"type"`
	Status               Status          `json:"status"`
	Date                 civil.Date      `json:"date"`
	PaymentDate          *civil.Date     `json:"paymentDate,omitempty"`
	AccountID            string          `json:"accountId"`
	DestinationAccountID *string         `json:"destinationAccountId,omitempty"`
	CategoryID           string          `json:"categoryId"`
	CreditCardID         *string         `json:"creditCardId,omitempty"`
	RecurrenceID         *string         `json:"recurrenceId,omitempty"`
	InstallmentGroupID   *string         `json:"installmentGroupId,omitempty"`
	InstallmentNumber    int             `json:"installmentNumber,omitempty"`
	TotalInstallments    int             `json:"totalInstallments,omitempty"`
	IsAutoPay            bool            `json:"isAutoPay"`
	Description          string          `json:"description"`
	ReconciliationKey    *string         `json:"reconciliationKey,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy of t.
func (t *Transaction) Clone() *Transaction {
	c := *t
	c.PaymentDate = cloneDate(t.PaymentDate)
	c.DestinationAccountID = cloneString(t.DestinationAccountID)
	c.CreditCardID = cloneString(t.CreditCardID)
	c.RecurrenceID = cloneString(t.RecurrenceID)
	c.InstallmentGroupID = cloneString(t.InstallmentGroupID)
	c.ReconciliationKey = cloneString(t.ReconciliationKey)
	return &c
}

type CreateParams struct {
	Title                string
	Amount               decimal.Decimal
	Type                 Type
	Status               Status
	Date                 civil.Date
	PaymentDate          *civil.Date
	AccountID            string
	DestinationAccountID *string
	CategoryID           string
	CreditCardID         *string
	RecurrenceID         *string
	InstallmentGroupID   *string
	InstallmentNumber    int
	TotalInstallments    int
	IsAutoPay            bool
	Description          string
	ReconciliationKey    *string
}

func (p CreateParams) build(id, ownerID string, now time.Time) *Transaction {
	t := &Transaction{
		ID:                   id,
		OwnerID:              ownerID,
		Title:                p.Title,
		Amount:               p.Amount,
		Type:                 p.Type,
		Status:               p.Status,
		Date:                 p.Date,
		PaymentDate:          cloneDate(p.PaymentDate),
		AccountID:            p.AccountID,
		DestinationAccountID: nonEmpty(p.DestinationAccountID),
		CategoryID:           p.CategoryID,
		CreditCardID:         nonEmpty(p.CreditCardID),
		RecurrenceID:         nonEmpty(p.RecurrenceID),
		InstallmentGroupID:   nonEmpty(p.InstallmentGroupID),
		InstallmentNumber:    p.InstallmentNumber,
		TotalInstallments:    p.TotalInstallments,
		IsAutoPay:            p.IsAutoPay,
		Description:          p.Description,
		ReconciliationKey:    nonEmpty(p.ReconciliationKey),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	t.normalizePaymentDate()
	return t
}

// UpdateParams replaces the fields that are set. For DestinationAccountID
// and CreditCardID a pointer to the empty string clears the reference.
type UpdateParams struct {
	Title                *string
	Amount               *decimal.Decimal
	Type                 *Type
	Status               *Status
	Date                 *civil.Date
	PaymentDate          *civil.Date
	AccountID            *string
	DestinationAccountID *string
	CategoryID           *string
	CreditCardID         *string
	IsAutoPay            *bool
	Description          *string

	// IfStatus makes the update conditional on the stored status.
	IfStatus *Status
}

// apply returns the state of t after the update, leaving t untouched.
func (p UpdateParams) apply(t *Transaction, now time.Time) *Transaction {
	next := t.Clone()
	if p.Title != nil {
		next.Title = *p.Title
	}
	if p.Amount != nil {
		next.Amount = *p.Amount
	}
	if p.Type != nil {
		next.Type = *p.Type
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.Date != nil {
		next.Date = *p.Date
	}
	if p.PaymentDate != nil {
		next.PaymentDate = cloneDate(p.PaymentDate)
	}
	if p.AccountID != nil {
		next.AccountID = *p.AccountID
	}
	if p.DestinationAccountID != nil {
		next.DestinationAccountID = nonEmpty(p.DestinationAccountID)
	}
	if p.CategoryID != nil {
		next.CategoryID = *p.CategoryID
	}
	if p.CreditCardID != nil {
		next.CreditCardID = nonEmpty(p.CreditCardID)
	}
	if p.IsAutoPay != nil {
		next.IsAutoPay = *p.IsAutoPay
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	next.UpdatedAt = now
	next.normalizePaymentDate()
	return next
}

func (p UpdateParams) precondition(t *Transaction) error {
	if p.IfStatus != nil && t.Status != *p.IfStatus {
		return ErrStatusChanged
	}
	return nil
}

// normalizePaymentDate keeps the payment date consistent with the status.
// Paid rows without one are considered paid on their value date.
func (t *Transaction) normalizePaymentDate() {
	switch t.Status {
	case StatusPending:
		t.PaymentDate = nil
	case StatusPaid:
		if t.PaymentDate == nil {
			d := t.Date
			t.PaymentDate = &d
		}
	}
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	// AccountID matches the source or destination account.
	AccountID    string
	CategoryID   string
	Type         Type
	Status       Status
	CreditCardID string
	// CardOnly keeps only rows carrying a credit-card reference.
	CardOnly     bool
	RecurrenceID string
	From         *civil.Date
	To           *civil.Date
	Limit        int
	Offset       int
}

// Matches reports whether t satisfies every criterion except paging.
func (f Filter) Matches(t *Transaction) bool {
	if f.AccountID != "" && t.AccountID != f.AccountID && stringValue(t.DestinationAccountID) != f.AccountID {
		return false
	}
	if f.CategoryID != "" && t.CategoryID != f.CategoryID {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.CreditCardID != "" && stringValue(t.CreditCardID) != f.CreditCardID {
		return false
	}
	if f.CardOnly && t.CreditCardID == nil {
		return false
	}
	if f.RecurrenceID != "" && stringValue(t.RecurrenceID) != f.RecurrenceID {
		return false
	}
	if f.From != nil && t.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && t.Date.After(*f.To) {
		return false
	}
	return true
}

// Page applies Offset and Limit to an already ordered slice.
func (f Filter) Page(txs []*Transaction) []*Transaction {
	if f.Offset > 0 {
		if f.Offset >= len(txs) {
			return nil
		}
		txs = txs[f.Offset:]
	}
	if f.Limit > 0 && len(txs) > f.Limit {
		txs = txs[:f.Limit]
	}
	return txs
}

// SortNewestFirst orders by date desc, then created_at desc, then id.
func SortNewestFirst(txs []*Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if a.Date != b.Date {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// DueAutoPayQuery pages pending auto-pay rows dated on or before OnOrBefore.
// Results are ordered by id and start after AfterID.
type DueAutoPayQuery struct {
	OwnerID    string
	OnOrBefore civil.Date
	AfterID    string
	Limit      int
}

// Matches reports whether t is selected by the query, ignoring paging.
func (q DueAutoPayQuery) Matches(t *Transaction) bool {
	if q.OwnerID != "" && t.OwnerID != q.OwnerID {
		return false
	}
	return t.IsAutoPay && t.Status == StatusPending && !t.Date.After(q.OnOrBefore) && t.ID > q.AfterID
}

// AmountScale is the number of decimal places stored for amounts and balances.
const AmountScale = 2

// WholeCents reports whether d fits the stored amount scale.
func WholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(AmountScale))
}

// ReconciliationKey identifies the payment of one card billing cycle.
func ReconciliationKey(cardID string, month time.Month, year int) string {
	return fmt.Sprintf("REF:%s:%d:%d", cardID, int(month), year)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneDate(d *civil.Date) *civil.Date {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
