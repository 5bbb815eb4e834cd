package elasticsearch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/timiFoxtrot/main-product-store/internal/domain"
	"github.com/timiFoxtrot/main-product-store/internal/repository"
	"github.com/timiFoxtrot/main-product-store/pkg/pagination"
)

// SearchIndex is the part of Index the repository needs.
type SearchIndex interface {
	Put(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id string) error
	BulkPut(ctx context.Context, products []domain.Product) error
	Search(ctx context.Context, filter repository.ProductFilter, window pagination.Params) ([]domain.Product, int, error)
}

// ProductRepository serves text searches from the index and everything
// else from the primary store. Writes go to the primary first; the index is
// then updated and a failure to do so is logged, not returned.
type ProductRepository struct {
	repository.ProductRepository
	index  SearchIndex
	logger *slog.Logger
}

// NewProductRepository wraps primary with index.
func NewProductRepository(primary repository.ProductRepository, index SearchIndex, logger *slog.Logger) *ProductRepository {
	return &ProductRepository{ProductRepository: primary, index: index, logger: logger}
}

var _ repository.ProductRepository = (*ProductRepository)(nil)

// Create stores p and indexes it.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	if err := r.ProductRepository.Create(ctx, p); err != nil {
		return err
	}
	r.put(ctx, p)
	return nil
}

// List uses the index for filters with a search term whose window fits the
// index result window.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	window := pagination.New(filter.Page, filter.Limit)
	if filter.Search == nil || *filter.Search == "" || window.Offset()+window.Limit > maxResultWindow {
		return r.ProductRepository.List(ctx, filter)
	}
	return r.index.Search(ctx, filter, window)
}

func (r *ProductRepository) UpdateOwned(ctx context.Context, id, ownerID string, patch repository.ProductPatch) (*domain.Product, error) {
	p, err := r.ProductRepository.UpdateOwned(ctx, id, ownerID, patch)
	if err != nil {
		return nil, err
	}
	if !patch.IsEmpty() {
		r.put(ctx, p)
	}
	return p, nil
}

func (r *ProductRepository) DeleteOwned(ctx context.Context, id, ownerID string) (*domain.Product, error) {
	p, err := r.ProductRepository.DeleteOwned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if err := r.index.Delete(ctx, id); err != nil {
		r.logger.WarnContext(ctx, "failed to remove product from search index",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	}
	return p, nil
}

func (r *ProductRepository) AppendImages(ctx context.Context, id, ownerID string, urls []string) (*domain.Product, error) {
	p, err := r.ProductRepository.AppendImages(ctx, id, ownerID, urls)
	if err != nil {
		return nil, err
	}
	r.put(ctx, p)
	return p, nil
}

func (r *ProductRepository) AppendReview(ctx context.Context, id string, review domain.Review) (*domain.Product, error) {
	p, err := r.ProductRepository.AppendReview(ctx, id, review)
	if err != nil {
		return nil, err
	}
	r.put(ctx, p)
	return p, nil
}

// Reindex copies every product of the primary store into the index, one
// page at a time, and returns how many were indexed.
func (r *ProductRepository) Reindex(ctx context.Context) (int, error) {
	indexed := 0
	for page := 1; ; page++ {
		products, total, err := r.ProductRepository.List(ctx, repository.ProductFilter{Page: page, Limit: pagination.MaxLimit})
		if err != nil {
			return indexed, fmt.Errorf("reindex: list page %d: %w", page, err)
		}
		if err := r.index.BulkPut(ctx, products); err != nil {
			return indexed, fmt.Errorf("reindex: %w", err)
		}
		indexed += len(products)
		if len(products) == 0 || indexed >= total {
			return indexed, nil
		}
	}
}

func (r *ProductRepository) put(ctx context.Context, p *domain.Product) {
	if err := r.index.Put(ctx, p); err != nil {
		r.logger.WarnContext(ctx, "failed to index product",
			slog.String("product_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
}
