package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/timiFoxtrot/main-product-store/internal/domain"
	"github.com/timiFoxtrot/main-product-store/internal/repository"
	"github.com/timiFoxtrot/main-product-store/pkg/database"
	apperrors "github.com/timiFoxtrot/main-product-store/pkg/errors"
	"github.com/timiFoxtrot/main-product-store/pkg/pagination"
)

const productColumns = `id, name, description, price, category_id, owner_id, images, reviews, created_at, updated_at`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
// Images and reviews are JSONB arrays so appends are single statements.
type ProductRepository struct {
	db database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

var _ repository.ProductRepository = (*ProductRepository)(nil)

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	p.Normalize()
	images, err := json.Marshal(p.Images)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}
	reviews, err := json.Marshal(p.Reviews)
	if err != nil {
		return fmt.Errorf("marshal reviews: %w", err)
	}

	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	ctx, end := traceQuery(ctx, "products.create", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		p.Price,
		p.CategoryID,
		p.OwnerID,
		images,
		reviews,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "id", p.ID)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// buildProductWhere turns a filter into a WHERE clause and its arguments.
// Placeholders start at $1.
func buildProductWhere(filter repository.ProductFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != nil && *filter.Search != "" {
		p := next(containsPattern(*filter.Search))
		conditions = append(conditions, fmt.Sprintf("(name ILIKE %s OR description ILIKE %s)", p, p))
	}
	if filter.CategoryID != nil {
		conditions = append(conditions, "category_id = "+next(*filter.CategoryID))
	}
	if filter.OwnerID != nil {
		conditions = append(conditions, "owner_id = "+next(*filter.OwnerID))
	}
	if filter.MinPrice != nil {
		conditions = append(conditions, "price >= "+next(*filter.MinPrice))
	}
	if filter.MaxPrice != nil {
		conditions = append(conditions, "price <= "+next(*filter.MaxPrice))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// List returns one page of matching products and the filtered total.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) (_ []domain.Product, _ int, err error) {
	where, args := buildProductWhere(filter)

	countQuery := "SELECT COUNT(*) FROM products " + where
	ctx, end := traceQuery(ctx, "products.list", countQuery)
	defer func() { end(err) }()

	var total int
	if err = r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	window := pagination.New(filter.Page, filter.Limit)
	limit, offset := window.Limit, window.Offset()

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		%s
		ORDER BY created_at ASC, id ASC
		LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, total, nil
}

// GetByID retrieves a product by id regardless of owner.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return r.queryOne(ctx, "products.get", query, id, id)
}

// GetOwned retrieves a product by id when it belongs to ownerID.
func (r *ProductRepository) GetOwned(ctx context.Context, id, ownerID string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND owner_id = $2`
	return r.queryOne(ctx, "products.get_owned", query, id, id, ownerID)
}

// UpdateOwned writes the non-nil fields of patch. An empty patch reads the
// owned record back unchanged.
func (r *ProductRepository) UpdateOwned(ctx context.Context, id, ownerID string, patch repository.ProductPatch) (*domain.Product, error) {
	if patch.IsEmpty() {
		return r.GetOwned(ctx, id, ownerID)
	}

	sets := []string{"updated_at = NOW()"}
	args := []any{id, ownerID}
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Price != nil {
		set("price", *patch.Price)
	}
	if patch.CategoryID != nil {
		set("category_id", *patch.CategoryID)
	}
	if patch.Images != nil {
		images, err := json.Marshal(patch.Images)
		if err != nil {
			return nil, fmt.Errorf("marshal images: %w", err)
		}
		set("images", images)
	}

	query := fmt.Sprintf(`
		UPDATE products SET %s
		WHERE id = $1 AND owner_id = $2
		RETURNING %s`,
		strings.Join(sets, ", "), productColumns,
	)
	return r.queryOne(ctx, "products.update_owned", query, id, args...)
}

// DeleteOwned removes the owned product and returns the deleted row.
func (r *ProductRepository) DeleteOwned(ctx context.Context, id, ownerID string) (*domain.Product, error) {
	query := `DELETE FROM products WHERE id = $1 AND owner_id = $2 RETURNING ` + productColumns
	return r.queryOne(ctx, "products.delete_owned", query, id, id, ownerID)
}

// AppendImages concatenates urls onto the owned product's images.
func (r *ProductRepository) AppendImages(ctx context.Context, id, ownerID string, urls []string) (*domain.Product, error) {
	if urls == nil {
		urls = []string{}
	}
	raw, err := json.Marshal(urls)
	if err != nil {
		return nil, fmt.Errorf("marshal images: %w", err)
	}
	query := `
		UPDATE products SET images = images || $3::jsonb, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + productColumns
	return r.queryOne(ctx, "products.append_images", query, id, id, ownerID, raw)
}

// AppendReview concatenates review onto the product's reviews.
func (r *ProductRepository) AppendReview(ctx context.Context, id string, review domain.Review) (*domain.Product, error) {
	raw, err := json.Marshal([]domain.Review{review})
	if err != nil {
		return nil, fmt.Errorf("marshal review: %w", err)
	}
	query := `
		UPDATE products SET reviews = reviews || $2::jsonb, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productColumns
	return r.queryOne(ctx, "products.append_review", query, id, id, raw)
}

func (r *ProductRepository) queryOne(ctx context.Context, operation, query, id string, args ...any) (_ *domain.Product, err error) {
	ctx, end := traceQuery(ctx, operation, query)
	defer func() { end(err) }()

	p, err := scanProduct(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	return p, nil
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		p       domain.Product
		images  []byte
		reviews []byte
	)
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.CategoryID,
		&p.OwnerID,
		&images,
		&reviews,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.Images); err != nil {
			return nil, fmt.Errorf("unmarshal images: %w", err)
		}
	}
	if len(reviews) > 0 {
		if err := json.Unmarshal(reviews, &p.Reviews); err != nil {
			return nil, fmt.Errorf("unmarshal reviews: %w", err)
		}
	}
	p.Normalize()
	return &p, nil
}
