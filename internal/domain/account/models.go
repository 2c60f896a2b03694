package account

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/shared/apperr"
)

var (
	// Allowed account types for validation
	accountTypes = map[string]struct{}{
		"CHECKING":   {},
		"SAVINGS":    {},
		"CASH":       {},
		"INVESTMENT": {},
		"CREDIT":     {},
	}
	// Common ISO 4217 currency codes
	validCurrencies = map[string]struct{}{
		"BRL": {}, "USD": {}, "EUR": {}, "GBP": {}, "JPY": {},
		"CHF": {}, "CAD": {}, "AUD": {}, "NZD": {}, "CNY": {},
		"INR": {}, "MXN": {}, "ZAR": {}, "SEK": {}, "NOK": {},
		"DKK": {}, "PLN": {}, "TRY": {}, "KRW": {}, "ARS": {},
		"SGD": {}, "HKD": {}, "CLP": {}, "COP": {},
	}
)

// Domain errors
var (
	ErrAccountNotFound    = fmt.Errorf("account %w", apperr.ErrNotFound)
	ErrCreditCardNotFound = fmt.Errorf("credit card %w", apperr.ErrNotFound)
)

// Account is a money container owned by one user. Balance is maintained
// exclusively by the transaction ledger.
type Account struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"ownerId"`
	Name           string          `json:"name"`
	AccountType    string          `json:"accountType"`
	Currency       string          `json:"currency"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
	Balance        decimal.Decimal `json:"balance"`
	CreditCards    []CreditCard    `json:"creditCards"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// CreditCard is nested inside an account. Purchases on the card defer their
// balance effect to the invoice payment.
type CreditCard struct {
	ID         string          `json:"id"`
	AccountID  string          `json:"accountId"`
	Name       string          `json:"name"`
	Limit      decimal.Decimal `json:"limit"`
	ClosingDay int             `json:"closingDay"`
	DueDay     int             `json:"dueDay"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Card returns the nested card with id, or nil.
func (a *Account) Card(id string) *CreditCard {
	for i := range a.CreditCards {
		if a.CreditCards[i].ID == id {
			return &a.CreditCards[i]
		}
	}
	return nil
}

// CreateParams contains parameters for creating a new account
type CreateParams struct {
	OwnerID        string
	Name           string
	AccountType    string
	Currency       string
	InitialBalance decimal.Decimal
}

// Validate validates the create parameters
func (p CreateParams) Validate() error {
	if p.OwnerID == "" {
		return apperr.Invalid("ownerId", "owner is required")
	}
	if p.Name == "" {
		return apperr.Invalid("name", "account name is required")
	}
	if !IsValidAccountType(p.AccountType) {
		return apperr.Invalid("accountType", fmt.Sprintf("invalid account type %q", p.AccountType))
	}
	if !IsValidCurrency(p.Currency) {
		return apperr.Invalid("currency", "valid ISO 4217 currency is required")
	}
	return nil
}

// CreditCardParams contains parameters for attaching a card to an account
type CreditCardParams struct {
	Name       string
	Limit      decimal.Decimal
	ClosingDay int
	DueDay     int
}

// Validate validates the card parameters
func (p CreditCardParams) Validate() error {
	if p.Name == "" {
		return apperr.Invalid("name", "card name is required")
	}
	if p.Limit.IsNegative() {
		return apperr.Invalid("limit", "limit must not be negative")
	}
	if p.ClosingDay < 1 || p.ClosingDay > 31 {
		return apperr.Invalid("closingDay", "closing day must be between 1 and 31")
	}
	if p.DueDay < 1 || p.DueDay > 31 {
		return apperr.Invalid("dueDay", "due day must be between 1 and 31")
	}
	return nil
}

// IsValidAccountType checks if the provided account type is valid.
func IsValidAccountType(t string) bool {
	_, ok := accountTypes[t]
	return ok
}

// IsValidCurrency checks if the provided currency is a valid ISO 4217 code.
func IsValidCurrency(c string) bool {
	if len(c) != 3 {
		return false
	}
	_, ok := validCurrencies[c]
	return ok
}
