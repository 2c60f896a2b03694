package category

import "context"

// Repository defines the interface for category data access
type Repository interface {
	Create(ctx context.Context, category *Category) error

	// GetByID returns the category or ErrCategoryNotFound
	GetByID(ctx context.Context, id string) (*Category, error)

	// FindByName returns the owner's category with name, or nil when absent
	FindByName(ctx context.Context, ownerID, name string) (*Category, error)

	// ListVisible returns system categories plus the owner's own
	ListVisible(ctx context.Context, ownerID string) ([]*Category, error)
}
