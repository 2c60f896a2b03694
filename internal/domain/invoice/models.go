package invoice

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"fintrack/internal/domain/account"
	"fintrack/internal/shared/calendar"
)

// Status of a derived invoice.
type Status string

const (
	StatusOpen    Status = "OPEN"
	StatusClosed  Status = "CLOSED"
	StatusOverdue Status = "OVERDUE"
	StatusPaid    Status = "PAID"
)

// DefaultPaymentTitle is used when a payment has no description.
const DefaultPaymentTitle = "Pagamento Fatura"

// Cycle is the month bucket of a card's billing.
type Cycle struct {
	Month time.Month
	Year  int
}

// CycleOf assigns a purchase dated d to its billing cycle: the current
// month while d is before the closing day, the next month otherwise.
func CycleOf(d civil.Date, closingDay int) Cycle {
	c := Cycle{Month: d.Month, Year: d.Year}
	if d.Day >= closingDay {
		return c.Next()
	}
	return c
}

func (c Cycle) Next() Cycle {
	if c.Month == time.December {
		return Cycle{Month: time.January, Year: c.Year + 1}
	}
	return Cycle{Month: c.Month + 1, Year: c.Year}
}

// Before orders cycles chronologically.
func (c Cycle) Before(o Cycle) bool {
	if c.Year != o.Year {
		return c.Year < o.Year
	}
	return c.Month < o.Month
}

// DueDate is the card's due day in the cycle month, clamped.
func DueDate(card *account.CreditCard, c Cycle) civil.Date {
	return calendar.Clamped(c.Year, c.Month, card.DueDay)
}

// ClosingDate falls in the month before the due month when the closing day
// is after the due day, otherwise in the due month. Clamped.
func ClosingDate(card *account.CreditCard, c Cycle) civil.Date {
	month := c.Month
	if card.ClosingDay > card.DueDay {
		month--
	}
	return calendar.Clamped(c.Year, month, card.ClosingDay)
}

// Invoice is one card's bill for one cycle, computed on demand.
type Invoice struct {
	AccountID         string          `json:"accountId"`
	CreditCardID      string          `json:"creditCardId"`
	CardName          string          `json:"cardName"`
	CardLimit         decimal.Decimal `json:"cardLimit"`
	Month             int             `json:"month"`
	Year              int             `json:"year"`
	Amount            decimal.Decimal `json:"amount"`
	Status            Status          `json:"status"`
	DueDate           civil.Date      `json:"dueDate"`
	ClosingDate       civil.Date      `json:"closingDate"`
	ReconciliationKey string          `json:"reconciliationKey"`
}

// PayParams records the payment of one cycle.
type PayParams struct {
	CreditCardID    string
	SourceAccountID string
	Month           int
	Year            int
	// Amount defaults to the cycle's computed amount when zero.
	Amount      decimal.Decimal
	PaymentDate *civil.Date
	Description string
}
