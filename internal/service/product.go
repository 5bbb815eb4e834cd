package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/timiFoxtrot/main-product-store/internal/domain"
	"github.com/timiFoxtrot/main-product-store/internal/repository"
	"github.com/timiFoxtrot/main-product-store/internal/storage"
	apperrors "github.com/timiFoxtrot/main-product-store/pkg/errors"
	"github.com/timiFoxtrot/main-product-store/pkg/pagination"
)

// UploadConfig bounds image attachment.
type UploadConfig struct {
	MaxFiles     int
	MaxFileBytes int64
	AllowedTypes []string
	// Timeout caps all uploads of one call. Zero means no extra deadline.
	Timeout time.Duration
}

// DefaultUploadConfig allows five JPEG or PNG files of up to 5MB.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		MaxFiles:     5,
		MaxFileBytes: 5 << 20,
		AllowedTypes: []string{"image/jpeg", "image/png"},
		Timeout:      30 * time.Second,
	}
}

// ProductService implements the catalog: owner-scoped product CRUD, image
// attachment, reviews and enriched listings.
type ProductService struct {
	repo       repository.ProductRepository
	categories CategoryLookup
	owners     OwnerLookup
	store      storage.Storage
	events     EventPublisher
	logger     *slog.Logger
	upload     UploadConfig
	now        func() time.Time
}

// NewProductService creates a product service.
func NewProductService(
	repo repository.ProductRepository,
	categories CategoryLookup,
	owners OwnerLookup,
	store storage.Storage,
	events EventPublisher,
	logger *slog.Logger,
	upload UploadConfig,
) *ProductService {
	return &ProductService{
		repo:       repo,
		categories: categories,
		owners:     owners,
		store:      store,
		events:     events,
		logger:     logger,
		upload:     upload,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateProductInput holds the parameters for creating a product. The owner
// always comes from the caller.
type CreateProductInput struct {
	Name        string
	Description string
	Price       float64
	CategoryID  string
	Images      []string
}

// UpdateProductInput holds a partial update. Nil fields are left unchanged.
type UpdateProductInput struct {
	Name        *string
	Description *string
	Price       *float64
	CategoryID  *string
	Images      []string
}

// AddReviewInput holds a new review.
type AddReviewInput struct {
	Rating  int
	Comment string
}

// UploadFile is one image to attach.
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Data        io.Reader
}

// CreateProduct validates the category and stores a product owned by caller.
func (s *ProductService) CreateProduct(ctx context.Context, input CreateProductInput, caller domain.Caller) (*domain.Product, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.InvalidInput("product name is required")
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, apperrors.InvalidInput("product description is required")
	}
	if input.Price < 0 {
		return nil, apperrors.InvalidInput("price must not be negative")
	}
	if err := s.requireCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	now := s.now()
	product := &domain.Product{
		ID:          uuid.NewString(),
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		CategoryID:  input.CategoryID,
		OwnerID:     caller.ID,
		Images:      slices.Clone(input.Images),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	product.Normalize()

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.publish(ctx, "product.created", product.ID, func() error { return s.events.ProductCreated(ctx, product) })

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("owner_id", product.OwnerID),
	)
	return product, nil
}

func (s *ProductService) requireCategory(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.InvalidInput("category is required")
	}
	if _, err := s.categories.GetByID(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("category", id)
		}
		return fmt.Errorf("look up category: %w", err)
	}
	return nil
}

// ListProducts returns one enriched page of products matching filter. Page
// and limit are normalized; total counts every match.
func (s *ProductService) ListProducts(ctx context.Context, filter repository.ProductFilter) (*pagination.Result[domain.ProductView], error) {
	params := pagination.New(filter.Page, filter.Limit)
	filter.Page, filter.Limit = params.Page, params.Limit

	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	views, err := s.enrich(ctx, products)
	if err != nil {
		return nil, err
	}
	result := pagination.NewResult(views, total, params)
	return &result, nil
}

// ListOwnedProducts is ListProducts restricted to the caller's products.
func (s *ProductService) ListOwnedProducts(ctx context.Context, caller domain.Caller, page, limit int) (*pagination.Result[domain.ProductView], error) {
	owner := caller.ID
	return s.ListProducts(ctx, repository.ProductFilter{OwnerID: &owner, Page: page, Limit: limit})
}

// enrich attaches owner and category details using one batch lookup per
// collaborator. Missing referents leave the block nil.
func (s *ProductService) enrich(ctx context.Context, products []domain.Product) ([]domain.ProductView, error) {
	views := make([]domain.ProductView, len(products))
	if len(products) == 0 {
		return views, nil
	}

	ownerIDs := make([]string, 0, len(products))
	categoryIDs := make([]string, 0, len(products))
	for _, p := range products {
		if p.OwnerID != "" && !slices.Contains(ownerIDs, p.OwnerID) {
			ownerIDs = append(ownerIDs, p.OwnerID)
		}
		if p.CategoryID != "" && !slices.Contains(categoryIDs, p.CategoryID) {
			categoryIDs = append(categoryIDs, p.CategoryID)
		}
	}

	var (
		owners     []domain.User
		categories []domain.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	if len(ownerIDs) > 0 {
		g.Go(func() error {
			var err error
			if owners, err = s.owners.GetByIDs(gctx, ownerIDs); err != nil {
				return fmt.Errorf("look up owners: %w", err)
			}
			return nil
		})
	}
	if len(categoryIDs) > 0 {
		g.Go(func() error {
			var err error
			if categories, err = s.categories.GetByIDs(gctx, categoryIDs); err != nil {
				return fmt.Errorf("look up categories: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ownerByID := make(map[string]*domain.OwnerInfo, len(owners))
	for _, u := range owners {
		ownerByID[u.ID] = &domain.OwnerInfo{Name: u.Name, Email: u.Email}
	}
	categoryByID := make(map[string]*domain.CategoryInfo, len(categories))
	for _, c := range categories {
		categoryByID[c.ID] = &domain.CategoryInfo{Name: c.Name}
	}

	for i, p := range products {
		p.Normalize()
		views[i] = domain.ProductView{
			Product:      p,
			OwnerInfo:    ownerByID[p.OwnerID],
			CategoryInfo: categoryByID[p.CategoryID],
		}
	}
	return views, nil
}

// GetOwnedProduct returns the product when caller owns it. Products owned by
// someone else are reported as not found.
func (s *ProductService) GetOwnedProduct(ctx context.Context, id string, caller domain.Caller) (*domain.Product, error) {
	product, err := s.repo.GetOwned(ctx, id, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

// UpdateOwnedProduct applies a partial update to a product caller owns. An
// empty update returns the product unchanged.
func (s *ProductService) UpdateOwnedProduct(ctx context.Context, id string, input UpdateProductInput, caller domain.Caller) (*domain.Product, error) {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, apperrors.InvalidInput("product name must not be empty")
	}
	if input.Description != nil && strings.TrimSpace(*input.Description) == "" {
		return nil, apperrors.InvalidInput("product description must not be empty")
	}
	if input.Price != nil && *input.Price < 0 {
		return nil, apperrors.InvalidInput("price must not be negative")
	}

	patch := repository.ProductPatch{
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		CategoryID:  input.CategoryID,
		Images:      input.Images,
	}
	product, err := s.repo.UpdateOwned(ctx, id, caller.ID, patch)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	if patch.IsEmpty() {
		return product, nil
	}

	s.publish(ctx, "product.updated", product.ID, func() error { return s.events.ProductUpdated(ctx, product) })

	s.logger.InfoContext(ctx, "product updated", slog.String("product_id", product.ID))
	return product, nil
}

// DeleteOwnedProduct removes a product caller owns and returns it as it was.
func (s *ProductService) DeleteOwnedProduct(ctx context.Context, id string, caller domain.Caller) (*domain.Product, error) {
	product, err := s.repo.DeleteOwned(ctx, id, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("delete product: %w", err)
	}

	s.publish(ctx, "product.deleted", product.ID, func() error { return s.events.ProductDeleted(ctx, product) })

	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", product.ID))
	return product, nil
}

// AttachImages uploads files in parallel and appends their URLs to a product
// caller owns. If any upload fails nothing is appended; files that did
// upload stay in the blob store.
func (s *ProductService) AttachImages(ctx context.Context, id string, files []UploadFile, caller domain.Caller) ([]string, error) {
	if err := s.checkFiles(files); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetOwned(ctx, id, caller.ID); err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}

	uctx := ctx
	if s.upload.Timeout > 0 {
		var cancel context.CancelFunc
		uctx, cancel = context.WithTimeout(ctx, s.upload.Timeout)
		defer cancel()
	}

	// URLs keep the order of files.
	urls := make([]string, len(files))
	var uploaded atomic.Int32
	g, gctx := errgroup.WithContext(uctx)
	for i, f := range files {
		g.Go(func() error {
			res, err := s.store.Upload(gctx, &storage.UploadInput{
				Key:         storage.NewKey("products/"+id, f.Filename),
				Filename:    f.Filename,
				ContentType: f.ContentType,
				Size:        f.Size,
				Data:        f.Data,
			})
			if err != nil {
				return fmt.Errorf("upload %s: %w", f.Filename, err)
			}
			imagesUploaded.Inc()
			uploaded.Add(1)
			urls[i] = res.URL
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		uploadFailures.Inc()
		s.logger.ErrorContext(ctx, "image upload failed",
			slog.String("product_id", id),
			slog.Int("uploaded", int(uploaded.Load())),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.UploadFailed(err)
	}

	product, err := s.repo.AppendImages(ctx, id, caller.ID, urls)
	if err != nil {
		return nil, fmt.Errorf("append images: %w", err)
	}

	s.publish(ctx, "product.images_added", id, func() error { return s.events.ImagesAdded(ctx, product, urls) })

	s.logger.InfoContext(ctx, "images attached",
		slog.String("product_id", id),
		slog.Int("count", len(urls)),
	)
	return urls, nil
}

func (s *ProductService) checkFiles(files []UploadFile) error {
	if len(files) == 0 {
		return apperrors.InvalidInput("at least one file is required")
	}
	if s.upload.MaxFiles > 0 && len(files) > s.upload.MaxFiles {
		return apperrors.InvalidInput(fmt.Sprintf("at most %d files may be uploaded at once", s.upload.MaxFiles))
	}
	for _, f := range files {
		if len(s.upload.AllowedTypes) > 0 && !slices.Contains(s.upload.AllowedTypes, f.ContentType) {
			return apperrors.UnsupportedMediaType(fmt.Sprintf("%s: only %s files are allowed", f.Filename, strings.Join(s.upload.AllowedTypes, ", ")))
		}
		if s.upload.MaxFileBytes > 0 && f.Size > s.upload.MaxFileBytes {
			return apperrors.PayloadTooLarge(fmt.Sprintf("%s exceeds the %d byte limit", f.Filename, s.upload.MaxFileBytes))
		}
	}
	return nil
}

// AddReview appends a review by caller. Owners cannot review their own
// products; the same caller may review a product more than once.
func (s *ProductService) AddReview(ctx context.Context, productID string, input AddReviewInput, caller domain.Caller) (*domain.Product, error) {
	if !domain.ValidRating(input.Rating) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("rating must be between %d and %d", domain.MinRating, domain.MaxRating))
	}

	product, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product.OwnedBy(caller.ID) {
		return nil, apperrors.Forbidden("you cannot review your own product")
	}

	review := domain.Review{
		Reviewer:   caller.Name,
		ReviewerID: caller.ID,
		Rating:     input.Rating,
		Comment:    input.Comment,
		CreatedAt:  s.now(),
	}
	updated, err := s.repo.AppendReview(ctx, productID, review)
	if err != nil {
		return nil, fmt.Errorf("append review: %w", err)
	}

	s.publish(ctx, "product.reviewed", productID, func() error { return s.events.ProductReviewed(ctx, productID, review) })

	s.logger.InfoContext(ctx, "review added",
		slog.String("product_id", productID),
		slog.Int("rating", review.Rating),
	)
	return updated, nil
}

// publish runs fn and logs a failure without failing the operation.
func (s *ProductService) publish(ctx context.Context, event, productID string, fn func() error) {
	if err := fn(); err != nil {
		eventPublishFailures.WithLabelValues(event).Inc()
		s.logger.ErrorContext(ctx, "failed to publish event",
			slog.String("event", event),
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
	}
}
