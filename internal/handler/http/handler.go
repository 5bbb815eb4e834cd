package http

import (
	"context"
	"net/http"

	"github.com/timiFoxtrot/main-product-store/internal/auth"
	"github.com/timiFoxtrot/main-product-store/internal/domain"
	"github.com/timiFoxtrot/main-product-store/internal/repository"
	"github.com/timiFoxtrot/main-product-store/internal/service"
	apperrors "github.com/timiFoxtrot/main-product-store/pkg/errors"
	"github.com/timiFoxtrot/main-product-store/pkg/pagination"
)

// ProductService is the catalog as the HTTP layer sees it.
// *service.ProductService satisfies it.
type ProductService interface {
	CreateProduct(ctx context.Context, input service.CreateProductInput, caller domain.Caller) (*domain.Product, error)
	ListProducts(ctx context.Context, filter repository.ProductFilter) (*pagination.Result[domain.ProductView], error)
	ListOwnedProducts(ctx context.Context, caller domain.Caller, page, limit int) (*pagination.Result[domain.ProductView], error)
	GetOwnedProduct(ctx context.Context, id string, caller domain.Caller) (*domain.Product, error)
	UpdateOwnedProduct(ctx context.Context, id string, input service.UpdateProductInput, caller domain.Caller) (*domain.Product, error)
	DeleteOwnedProduct(ctx context.Context, id string, caller domain.Caller) (*domain.Product, error)
	AttachImages(ctx context.Context, id string, files []service.UploadFile, caller domain.Caller) ([]string, error)
	AddReview(ctx context.Context, productID string, input service.AddReviewInput, caller domain.Caller) (*domain.Product, error)
}

// CategoryService is satisfied by *service.CategoryService.
type CategoryService interface {
	CreateCategory(ctx context.Context, input service.CreateCategoryInput) (*domain.Category, error)
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	UpdateCategory(ctx context.Context, id string, input service.UpdateCategoryInput) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// UserService is satisfied by *service.UserService.
type UserService interface {
	Register(ctx context.Context, input service.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, input service.LoginInput) (*service.LoginResult, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

var (
	_ ProductService  = (*service.ProductService)(nil)
	_ CategoryService = (*service.CategoryService)(nil)
	_ UserService     = (*service.UserService)(nil)
)

// callerFrom returns the authenticated caller. Routes that use it are
// mounted behind the auth middleware, so a missing caller means the router
// is misconfigured.
func callerFrom(r *http.Request) (domain.Caller, error) {
	caller, ok := auth.CallerFrom(r.Context())
	if !ok {
		return domain.Caller{}, apperrors.Unauthorized("authentication required")
	}
	return caller, nil
}
