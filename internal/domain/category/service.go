package category

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/shared/apperr"
)

// Service resolves categories for ownership-checked lookups.
type Service struct {
	repo  Repository
	newID func() string
	now   func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, newID: uuid.NewString, now: time.Now}
}

// GetCategory returns a category the owner may reference. Categories of
// other owners are reported as not found.
func (s *Service) GetCategory(ctx context.Context, id, ownerID string) (*Category, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.VisibleTo(ownerID) {
		return nil, ErrCategoryNotFound
	}
	return c, nil
}

// ListCategories returns the categories visible to ownerID.
func (s *Service) ListCategories(ctx context.Context, ownerID string) ([]*Category, error) {
	return s.repo.ListVisible(ctx, ownerID)
}

// CreateCategory creates an owner category.
func (s *Service) CreateCategory(ctx context.Context, ownerID, name, categoryType string, hidden bool) (*Category, error) {
	if ownerID == "" {
		return nil, apperr.Invalid("ownerId", "owner is required")
	}
	if name == "" {
		return nil, apperr.Invalid("name", "category name is required")
	}
	if !validType(categoryType) {
		return nil, apperr.Invalid("type", "type must be expense, income or transfer")
	}

	c := &Category{
		ID:        s.newID(),
		OwnerID:   ownerID,
		Name:      name,
		Type:      categoryType,
		Hidden:    hidden,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// EnsureHidden finds the owner's category called name or creates it hidden.
func (s *Service) EnsureHidden(ctx context.Context, ownerID, name, categoryType string) (*Category, error) {
	existing, err := s.repo.FindByName(ctx, ownerID, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return s.CreateCategory(ctx, ownerID, name, categoryType, true)
}
