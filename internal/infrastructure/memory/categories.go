package memory

import (
	"context"
	"sort"

	"fintrack/internal/domain/category"
)

// CategoryRepository implements category.Repository.
type CategoryRepository struct {
	store *Store
}

func (r *CategoryRepository) Create(ctx context.Context, c *category.Category) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	cp := *c
	r.store.categories[c.ID] = &cp
	return nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*category.Category, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	c, ok := r.store.categories[id]
	if !ok {
		return nil, category.ErrCategoryNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *CategoryRepository) FindByName(ctx context.Context, ownerID, name string) (*category.Category, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, c := range r.store.categories {
		if c.OwnerID == ownerID && c.Name == name {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *CategoryRepository) ListVisible(ctx context.Context, ownerID string) ([]*category.Category, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]*category.Category, 0)
	for _, c := range r.store.categories {
		if c.VisibleTo(ownerID) {
			cp := *c
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}
