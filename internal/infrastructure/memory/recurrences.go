package memory

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/civil"

	"fintrack/internal/domain/recurrence"
	"fintrack/internal/shared/apperr"
)

// RecurrenceRepository implements recurrence.Repository.
type RecurrenceRepository struct {
	store *Store
}

// schedulable reports whether a sweep has to look at r. Only active rules
// generate.
func schedulable(r *recurrence.Rule) bool {
	switch r.Lineage.(type) {
	case nil, recurrence.Active:
		return true
	}
	return false
}

func (r *RecurrenceRepository) Create(ctx context.Context, rule *recurrence.Rule) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.rules[rule.ID]; exists {
		return fmt.Errorf("recurrence rule %s already exists: %w", rule.ID, apperr.ErrConflict)
	}
	r.store.rules[rule.ID] = rule.Clone()
	return nil
}

func (r *RecurrenceRepository) GetByID(ctx context.Context, id string) (*recurrence.Rule, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rule, ok := r.store.rules[id]
	if !ok {
		return nil, recurrence.ErrRuleNotFound
	}
	return rule.Clone(), nil
}

func (r *RecurrenceRepository) ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]*recurrence.Rule, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]*recurrence.Rule, 0)
	for _, rule := range r.store.rules {
		if rule.OwnerID != ownerID || (activeOnly && !rule.IsActive()) {
			continue
		}
		result = append(result, rule.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *RecurrenceRepository) ListActive(ctx context.Context, query recurrence.ActiveQuery) ([]*recurrence.Rule, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]*recurrence.Rule, 0)
	for _, rule := range r.store.rules {
		if query.OwnerID != "" && rule.OwnerID != query.OwnerID {
			continue
		}
		if rule.ID <= query.AfterID || !schedulable(rule) {
			continue
		}
		result = append(result, rule.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if query.Limit > 0 && len(result) > query.Limit {
		result = result[:query.Limit]
	}
	return result, nil
}

func (r *RecurrenceRepository) ListOwnersWithActiveRules(ctx context.Context) ([]string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	seen := make(map[string]struct{})
	owners := make([]string, 0)
	for _, rule := range r.store.rules {
		if !schedulable(rule) {
			continue
		}
		if _, ok := seen[rule.OwnerID]; ok {
			continue
		}
		seen[rule.OwnerID] = struct{}{}
		owners = append(owners, rule.OwnerID)
	}
	sort.Strings(owners)
	return owners, nil
}

func (r *RecurrenceRepository) Update(ctx context.Context, rule *recurrence.Rule) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.rules[rule.ID]; !ok {
		return recurrence.ErrRuleNotFound
	}
	r.store.rules[rule.ID] = rule.Clone()
	return nil
}

func (r *RecurrenceRepository) SetLastProcessed(ctx context.Context, id string, date civil.Date) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rule, ok := r.store.rules[id]
	if !ok {
		return recurrence.ErrRuleNotFound
	}
	d := date
	rule.LastProcessedAt = &d
	rule.UpdatedAt = r.store.now().UTC()
	return nil
}

func (r *RecurrenceRepository) Supersede(ctx context.Context, old, successor *recurrence.Rule) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.rules[old.ID]; !ok {
		return recurrence.ErrRuleNotFound
	}
	if _, exists := r.store.rules[successor.ID]; exists {
		return fmt.Errorf("recurrence rule %s already exists: %w", successor.ID, apperr.ErrConflict)
	}
	r.store.rules[old.ID] = old.Clone()
	r.store.rules[successor.ID] = successor.Clone()
	return nil
}
