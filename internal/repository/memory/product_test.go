package memory

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timiFoxtrot/main-product-store/internal/domain"
	"github.com/timiFoxtrot/main-product-store/internal/repository"
	apperrors "github.com/timiFoxtrot/main-product-store/pkg/errors"
)

var base = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func seed(t *testing.T, repo *ProductRepository, products ...domain.Product) {
	t.Helper()
	for i := range products {
		require.NoError(t, repo.Create(context.Background(), &products[i]))
	}
}

func TestCreate_DuplicateID(t *testing.T) {
	repo := NewProductRepository()
	seed(t, repo, domain.Product{ID: "p1", OwnerID: "u1"})

	err := repo.Create(context.Background(), &domain.Product{ID: "p1"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestList_OrderAndWindow(t *testing.T) {
	repo := NewProductRepository()
	seed(t, repo,
		domain.Product{ID: "b", OwnerID: "u1", CreatedAt: base},
		domain.Product{ID: "a", OwnerID: "u1", CreatedAt: base},
		domain.Product{ID: "c", OwnerID: "u1", CreatedAt: base.Add(-time.Hour)},
	)

	page, total, err := repo.List(context.Background(), repository.ProductFilter{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].ID)
	assert.Equal(t, "a", page[1].ID)

	page, _, err = repo.List(context.Background(), repository.ProductFilter{Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestOwnerScopedMethods(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository()
	seed(t, repo, domain.Product{ID: "p1", Name: "Lamp", OwnerID: "u1"})

	_, err := repo.GetOwned(ctx, "p1", "u2")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = repo.UpdateOwned(ctx, "p1", "u2", repository.ProductPatch{Name: strPtr("x")})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = repo.AppendImages(ctx, "p1", "u2", []string{"u"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = repo.DeleteOwned(ctx, "p1", "u2")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	p, err := repo.UpdateOwned(ctx, "p1", "u1", repository.ProductPatch{Price: floatPtr(9)})
	require.NoError(t, err)
	assert.Equal(t, "Lamp", p.Name)
	assert.Equal(t, 9.0, p.Price)

	p, err = repo.AppendImages(ctx, "p1", "u1", []string{"a.png", "b.png"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.png"}, p.Images)

	p, err = repo.AppendReview(ctx, "p1", domain.Review{ReviewerID: "u2", Rating: 4})
	require.NoError(t, err)
	require.Len(t, p.Reviews, 1)

	deleted, err := repo.DeleteOwned(ctx, "p1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "p1", deleted.ID)
	_, err = repo.GetByID(ctx, "p1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReturnedProductsAreCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository()
	seed(t, repo, domain.Product{ID: "p1", OwnerID: "u1", Images: []string{"a.png"}})

	p, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	p.Images[0] = "changed"

	again, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png"}, again.Images)
}

type productSample struct {
	Name     string
	Desc     string
	Category string
	Owner    string
	Price    int
}

// An empty string or a negative bound means the criterion is unset.
type filterCase struct {
	Search   string
	Category string
	Owner    string
	Min      int
	Max      int
}

func (f filterCase) filter() repository.ProductFilter {
	out := repository.ProductFilter{Page: 1, Limit: 100}
	if f.Search != "" {
		out.Search = strPtr(f.Search)
	}
	if f.Category != "" {
		out.CategoryID = strPtr(f.Category)
	}
	if f.Owner != "" {
		out.OwnerID = strPtr(f.Owner)
	}
	if f.Min >= 0 {
		out.MinPrice = floatPtr(float64(f.Min))
	}
	if f.Max >= 0 {
		out.MaxPrice = floatPtr(float64(f.Max))
	}
	return out
}

// want restates the filter semantics one criterion at a time.
func (f filterCase) want(p productSample) bool {
	text := f.Search == "" ||
		strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) ||
		strings.Contains(strings.ToLower(p.Desc), strings.ToLower(f.Search))
	category := f.Category == "" || p.Category == f.Category
	owner := f.Owner == "" || p.Owner == f.Owner
	lo := f.Min < 0 || p.Price >= f.Min
	hi := f.Max < 0 || p.Price <= f.Max
	return text && category && owner && lo && hi
}

func TestProperty_FilterConjunction(t *testing.T) {
	properties := gopter.NewProperties(nil)

	productGen := gen.Struct(reflect.TypeOf(productSample{}), map[string]gopter.Gen{
		"Name":     gen.OneConstOf("Desk Lamp", "desk", "Chair", "LAMPSHADE", "Sofa"),
		"Desc":     gen.OneConstOf("oak wood", "bright lamp", "", "Leather"),
		"Category": gen.OneConstOf("c1", "c2", "c3"),
		"Owner":    gen.OneConstOf("u1", "u2"),
		"Price":    gen.IntRange(0, 50),
	})
	filterGen := gen.Struct(reflect.TypeOf(filterCase{}), map[string]gopter.Gen{
		"Search":   gen.OneConstOf("", "lamp", "DESK", "wood", "zzz"),
		"Category": gen.OneConstOf("", "c1", "c2"),
		"Owner":    gen.OneConstOf("", "u1", "u2"),
		"Min":      gen.IntRange(-1, 50),
		"Max":      gen.IntRange(-1, 50),
	})

	properties.Property("listed products are exactly those matching every criterion", prop.ForAll(
		func(samples []productSample, fs filterCase) bool {
			ctx := context.Background()
			repo := NewProductRepository()
			expected := map[string]bool{}
			for i, s := range samples {
				id := fmt.Sprintf("p%03d", i)
				p := domain.Product{
					ID: id, Name: s.Name, Description: s.Desc, CategoryID: s.Category,
					OwnerID: s.Owner, Price: float64(s.Price), CreatedAt: base,
				}
				if err := repo.Create(ctx, &p); err != nil {
					return false
				}
				if fs.want(s) {
					expected[id] = true
				}
			}

			got, total, err := repo.List(ctx, fs.filter())
			if err != nil || total != len(expected) || len(got) != len(expected) {
				return false
			}
			for _, p := range got {
				if !expected[p.ID] {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(20, productGen),
		filterGen,
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
