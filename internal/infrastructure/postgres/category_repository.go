package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"fintrack/internal/domain/category"
	"fintrack/internal/shared/apperr"
)

// CategoryRepository implements the category.Repository interface for PostgreSQL
type CategoryRepository struct {
	db Querier
}

func NewCategoryRepository(db Querier) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) Create(ctx context.Context, c *category.Category) error {
	query := `
		INSERT INTO categories (id, owner_id, name, type, hidden, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query, c.ID, nullString(&c.OwnerID), c.Name, c.Type, c.Hidden, c.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("category %q already exists: %w", c.Name, apperr.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*category.Category, error) {
	query := `SELECT id, owner_id, name, type, hidden, created_at FROM categories WHERE id = $1`

	c, err := scanCategory(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, category.ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

// FindByName matches the owner's own categories only
func (r *CategoryRepository) FindByName(ctx context.Context, ownerID, name string) (*category.Category, error) {
	query := `
		SELECT id, owner_id, name, type, hidden, created_at
		FROM categories
		WHERE owner_id = $1 AND name = $2
	`

	c, err := scanCategory(r.db.QueryRowContext(ctx, query, ownerID, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	return c, nil
}

func (r *CategoryRepository) ListVisible(ctx context.Context, ownerID string) ([]*category.Category, error) {
	query := `
		SELECT id, owner_id, name, type, hidden, created_at
		FROM categories
		WHERE owner_id IS NULL OR owner_id = $1
		ORDER BY name, id
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]*category.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return categories, nil
}

func scanCategory(row Row) (*category.Category, error) {
	var c category.Category
	var ownerID sql.NullString
	if err := row.Scan(&c.ID, &ownerID, &c.Name, &c.Type, &c.Hidden, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.OwnerID = ownerID.String
	return &c, nil
}
