package recurrence

import (
	"context"

	"cloud.google.com/go/civil"
)

// Repository defines the interface for recurrence rule data access
type Repository interface {
	Create(ctx context.Context, rule *Rule) error
	// GetByID returns the rule or ErrRuleNotFound
	GetByID(ctx context.Context, id string) (*Rule, error)
	ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]*Rule, error)
	// ListActive pages active rules by id
	ListActive(ctx context.Context, query ActiveQuery) ([]*Rule, error)
	ListOwnersWithActiveRules(ctx context.Context) ([]string, error)
	Update(ctx context.Context, rule *Rule) error
	// SetLastProcessed moves the schedule pointer of one rule
	SetLastProcessed(ctx context.Context, id string, date civil.Date) error
	// Supersede stores old and creates successor atomically
	Supersede(ctx context.Context, old, successor *Rule) error
}
