package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/timiFoxtrot/main-product-store/internal/domain"
	"github.com/timiFoxtrot/main-product-store/internal/repository"
	apperrors "github.com/timiFoxtrot/main-product-store/pkg/errors"
)

// CategoryService manages the category list.
type CategoryService struct {
	repo   repository.CategoryRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewCategoryService creates a category service.
func NewCategoryService(repo repository.CategoryRepository, logger *slog.Logger) *CategoryService {
	return &CategoryService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type CreateCategoryInput struct {
	Name        string
	Description string
}

type UpdateCategoryInput struct {
	Name        *string
	Description *string
}

// CreateCategory stores a new category. Names are unique.
func (s *CategoryService) CreateCategory(ctx context.Context, input CreateCategoryInput) (*domain.Category, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.InvalidInput("category name is required")
	}

	now := s.now()
	c := &domain.Category{
		ID:          uuid.NewString(),
		Name:        input.Name,
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.logger.InfoContext(ctx, "category created", slog.String("category_id", c.ID))
	return c, nil
}

func (s *CategoryService) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (s *CategoryService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	cats, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if cats == nil {
		cats = []domain.Category{}
	}
	return cats, nil
}

// UpdateCategory applies the non-nil fields of input.
func (s *CategoryService) UpdateCategory(ctx context.Context, id string, input UpdateCategoryInput) (*domain.Category, error) {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, apperrors.InvalidInput("category name must not be empty")
	}

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	if input.Name == nil && input.Description == nil {
		return c, nil
	}
	if input.Name != nil {
		c.Name = *input.Name
	}
	if input.Description != nil {
		c.Description = *input.Description
	}
	c.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}

	s.logger.InfoContext(ctx, "category updated", slog.String("category_id", id))
	return c, nil
}

// DeleteCategory removes a category. Products that referenced it keep the
// id and list without category details.
func (s *CategoryService) DeleteCategory(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	s.logger.InfoContext(ctx, "category deleted", slog.String("category_id", id))
	return nil
}
