package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CategoryRepository looks up resolution categories.
type CategoryRepository interface {
	GetByID(ctx context.Context, id int) (*domain.ResolutionCategory, error)
	ListActive(ctx context.Context) ([]domain.ResolutionCategory, error)
}

type categoryRepository struct {
	db DB
}

// NewCategoryRepository instantiates repository.
func NewCategoryRepository(db DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) GetByID(ctx context.Context, id int) (*domain.ResolutionCategory, error) {
	const query = `SELECT id, name, active, created_at FROM resolution_categories WHERE id=$1`
	var category domain.ResolutionCategory
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&category.ID,
		&category.Name,
		&category.Active,
		&category.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) ListActive(ctx context.Context) ([]domain.ResolutionCategory, error) {
	const query = `SELECT id, name, active, created_at FROM resolution_categories WHERE active ORDER BY name ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ResolutionCategory
	for rows.Next() {
		var category domain.ResolutionCategory
		if err := rows.Scan(&category.ID, &category.Name, &category.Active, &category.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, category)
	}
	return result, rows.Err()
}
