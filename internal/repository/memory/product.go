package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/timiFoxtrot/main-product-store/internal/domain"
	"github.com/timiFoxtrot/main-product-store/internal/repository"
	apperrors "github.com/timiFoxtrot/main-product-store/pkg/errors"
	"github.com/timiFoxtrot/main-product-store/pkg/pagination"
)

// ProductRepository is an in-memory repository.ProductRepository for local
// runs and tests. Returned products are copies.
type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	now      func() time.Time
}

// NewProductRepository creates an empty repository.
func NewProductRepository() *ProductRepository {
	return &ProductRepository{
		products: make(map[string]domain.Product),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ repository.ProductRepository = (*ProductRepository)(nil)

func clone(p domain.Product) *domain.Product {
	p.Images = slices.Clone(p.Images)
	p.Reviews = slices.Clone(p.Reviews)
	p.Normalize()
	return &p
}

// Create stores a copy of p.
func (r *ProductRepository) Create(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[p.ID]; ok {
		return apperrors.AlreadyExists("product", "id", p.ID)
	}
	r.products[p.ID] = *clone(*p)
	return nil
}

// List returns one page of matching products and the filtered total.
func (r *ProductRepository) List(_ context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	r.mu.RLock()
	matched := make([]domain.Product, 0)
	for _, p := range r.products {
		if filter.Matches(&p) {
			matched = append(matched, *clone(p))
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(matched, func(a, b domain.Product) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	total := len(matched)
	window := pagination.New(filter.Page, filter.Limit)
	start := min(window.Offset(), total)
	end := min(start+window.Limit, total)
	return matched[start:end], total, nil
}

// GetByID retrieves a product regardless of owner.
func (r *ProductRepository) GetByID(_ context.Context, id string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	return clone(p), nil
}

// GetOwned retrieves a product when it belongs to ownerID.
func (r *ProductRepository) GetOwned(_ context.Context, id, ownerID string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.owned(id, ownerID)
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	return clone(p), nil
}

// UpdateOwned applies patch and returns the stored product.
func (r *ProductRepository) UpdateOwned(_ context.Context, id, ownerID string, patch repository.ProductPatch) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.owned(id, ownerID)
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	if patch.IsEmpty() {
		return clone(p), nil
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.CategoryID != nil {
		p.CategoryID = *patch.CategoryID
	}
	if patch.Images != nil {
		p.Images = slices.Clone(patch.Images)
	}
	p.UpdatedAt = r.now()
	r.products[id] = p
	return clone(p), nil
}

// DeleteOwned removes the owned product and returns it.
func (r *ProductRepository) DeleteOwned(_ context.Context, id, ownerID string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.owned(id, ownerID)
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	delete(r.products, id)
	return clone(p), nil
}

// AppendImages appends urls to the owned product's images.
func (r *ProductRepository) AppendImages(_ context.Context, id, ownerID string, urls []string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.owned(id, ownerID)
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	p.Images = append(slices.Clone(p.Images), urls...)
	p.UpdatedAt = r.now()
	r.products[id] = p
	return clone(p), nil
}

// AppendReview appends review to the product's reviews.
func (r *ProductRepository) AppendReview(_ context.Context, id string, review domain.Review) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	p.Reviews = append(slices.Clone(p.Reviews), review)
	p.UpdatedAt = r.now()
	r.products[id] = p
	return clone(p), nil
}

// Callers must hold mu.
func (r *ProductRepository) owned(id, ownerID string) (domain.Product, bool) {
	p, ok := r.products[id]
	if !ok || !p.OwnedBy(ownerID) {
		return domain.Product{}, false
	}
	return p, true
}
