package repository

import (
	"context"
	"strings"

	"github.com/timiFoxtrot/main-product-store/internal/domain"
)

// ProductFilter defines filter criteria for listing products. Nil fields
// are not applied.
type ProductFilter struct {
	Search     *string
	CategoryID *string
	OwnerID    *string
	MinPrice   *float64
	MaxPrice   *float64
	Page       int
	Limit      int
}

// Matches reports whether p satisfies every criterion of the filter. Search
// is a case-insensitive substring of the name or the description.
func (f ProductFilter) Matches(p *domain.Product) bool {
	if f.Search != nil && *f.Search != "" {
		term := strings.ToLower(*f.Search)
		if !strings.Contains(strings.ToLower(p.Name), term) && !strings.Contains(strings.ToLower(p.Description), term) {
			return false
		}
	}
	if f.CategoryID != nil && p.CategoryID != *f.CategoryID {
		return false
	}
	if f.OwnerID != nil && p.OwnerID != *f.OwnerID {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	return true
}

// ProductPatch carries the fields of a partial update. Nil fields are left
// unchanged; a nil Images leaves images unchanged and a non-nil one replaces
// them.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *float64
	CategoryID  *string
	Images      []string
}

// IsEmpty reports whether the patch changes nothing.
func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil && p.CategoryID == nil && p.Images == nil
}

// ProductRepository persists products. Every owner-scoped method returns a
// NotFound error when no product matches both id and owner.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error

	// List returns one page of products matching filter, ordered by
	// creation time then id, and the number of products matching filter.
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)

	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetOwned(ctx context.Context, id, ownerID string) (*domain.Product, error)

	// UpdateOwned applies patch in one statement and returns the stored
	// record.
	UpdateOwned(ctx context.Context, id, ownerID string, patch ProductPatch) (*domain.Product, error)

	// DeleteOwned removes the product and returns it as it was.
	DeleteOwned(ctx context.Context, id, ownerID string) (*domain.Product, error)

	// AppendImages atomically appends urls to the owned product's images.
	AppendImages(ctx context.Context, id, ownerID string, urls []string) (*domain.Product, error)

	// AppendReview atomically appends review to the product's reviews.
	AppendReview(ctx context.Context, id string, review domain.Review) (*domain.Product, error)
}

// CategoryRepository persists categories. Names are unique.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	GetByID(ctx context.Context, id string) (*domain.Category, error)

	// GetByIDs returns the categories that exist among ids, in no
	// particular order.
	GetByIDs(ctx context.Context, ids []string) ([]domain.Category, error)
	List(ctx context.Context) ([]domain.Category, error)
	Update(ctx context.Context, category *domain.Category) error
	Delete(ctx context.Context, id string) error
}

// UserRepository persists users. Emails are unique and stored lowercase.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByIDs returns the users that exist among ids, in no particular
	// order.
	GetByIDs(ctx context.Context, ids []string) ([]domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}
