package category

import (
	"fmt"
	"time"

	"fintrack/internal/shared/apperr"
)

// InvoicePaymentName is the hidden category assigned to credit-card invoice
// payments.
const InvoicePaymentName = "Fatura Cartão"

// Category types
const (
	TypeExpense  = "expense"
	TypeIncome   = "income"
	TypeTransfer = "transfer"
)

var ErrCategoryNotFound = fmt.Errorf("category %w", apperr.ErrNotFound)

// Category groups transactions. Categories without an owner are system
// categories visible to everyone.
type Category struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId,omitempty"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Hidden    bool      `json:"hidden"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsSystem reports whether the category belongs to no owner.
func (c *Category) IsSystem() bool {
	return c.OwnerID == ""
}

// VisibleTo reports whether ownerID may reference the category.
func (c *Category) VisibleTo(ownerID string) bool {
	return c.IsSystem() || c.OwnerID == ownerID
}

// SystemCategories are seeded by the initial migration and the memory store.
var SystemCategories = []Category{
	{ID: "00000000-0000-0000-0000-000000000001", Name: "Salário", Type: TypeIncome},
	{ID: "00000000-0000-0000-0000-000000000002", Name: "Renda Extra", Type: TypeIncome},
	{ID: "00000000-0000-0000-0000-000000000003", Name: "Moradia", Type: TypeExpense},
	{ID: "00000000-0000-0000-0000-000000000004", Name: "Alimentação", Type: TypeExpense},
	{ID: "00000000-0000-0000-0000-000000000005", Name: "Transporte", Type: TypeExpense},
	{ID: "00000000-0000-0000-0000-000000000006", Name: "Saúde", Type: TypeExpense},
	{ID: "00000000-0000-0000-0000-000000000007", Name: "Assinaturas", Type: TypeExpense},
	{ID: "00000000-0000-0000-0000-000000000008", Name: "Transferências", Type: TypeTransfer},
}

func validType(t string) bool {
	switch t {
	case TypeExpense, TypeIncome, TypeTransfer:
		return true
	}
	return false
}
