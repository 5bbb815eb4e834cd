package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/timiFoxtrot/main-product-store/internal/domain"
	"github.com/timiFoxtrot/main-product-store/internal/repository"
	"github.com/timiFoxtrot/main-product-store/pkg/database"
	apperrors "github.com/timiFoxtrot/main-product-store/pkg/errors"
)

const categoryColumns = `id, name, description, created_at, updated_at`

// CategoryRepository implements repository.CategoryRepository using PostgreSQL.
type CategoryRepository struct {
	db database.DBTX
}

// NewCategoryRepository creates a new PostgreSQL-backed category repository.
func NewCategoryRepository(db database.DBTX) *CategoryRepository {
	return &CategoryRepository{db: db}
}

var _ repository.CategoryRepository = (*CategoryRepository)(nil)

// Create inserts a category. A duplicate name is a conflict.
func (r *CategoryRepository) Create(ctx context.Context, c *domain.Category) (err error) {
	query := `INSERT INTO categories (` + categoryColumns + `) VALUES ($1, $2, $3, $4, $5)`
	ctx, end := traceQuery(ctx, "categories.create", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query, c.ID, c.Name, c.Description, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("category", "name", c.Name)
		}
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

// GetByID retrieves a category by id.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (_ *domain.Category, err error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`
	ctx, end := traceQuery(ctx, "categories.get", query)
	defer func() { end(err) }()

	var c domain.Category
	err = r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("category", id)
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &c, nil
}

// GetByIDs returns every category whose id is in ids.
func (r *CategoryRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Category, error) {
	if len(ids) == 0 {
		return []domain.Category{}, nil
	}
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = ANY($1)`
	return r.queryMany(ctx, "categories.get_many", query, ids)
}

// List returns all categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories ORDER BY name ASC`
	return r.queryMany(ctx, "categories.list", query)
}

// Update writes name and description.
func (r *CategoryRepository) Update(ctx context.Context, c *domain.Category) (err error) {
	query := `UPDATE categories SET name = $2, description = $3, updated_at = $4 WHERE id = $1`
	ctx, end := traceQuery(ctx, "categories.update", query)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, query, c.ID, c.Name, c.Description, c.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("category", "name", c.Name)
		}
		return fmt.Errorf("update category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("category", c.ID)
	}
	return nil
}

// Delete removes a category. Products that reference it keep the id.
func (r *CategoryRepository) Delete(ctx context.Context, id string) (err error) {
	query := `DELETE FROM categories WHERE id = $1`
	ctx, end := traceQuery(ctx, "categories.delete", query)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("category", id)
	}
	return nil
}

func (r *CategoryRepository) queryMany(ctx context.Context, operation, query string, args ...any) (_ []domain.Category, err error) {
	ctx, end := traceQuery(ctx, operation, query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err = rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category rows: %w", err)
	}
	return categories, nil
}
