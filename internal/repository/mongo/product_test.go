package mongo

import (
	"context"
	"math"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/timiFoxtrot/main-product-store/internal/domain"
	"github.com/timiFoxtrot/main-product-store/internal/repository"
	apperrors "github.com/timiFoxtrot/main-product-store/pkg/errors"
	"github.com/timiFoxtrot/main-product-store/pkg/pagination"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestBuildFilter_Empty(t *testing.T) {
	assert.Empty(t, buildFilter(repository.ProductFilter{}))
}

func TestBuildFilter_AllFields(t *testing.T) {
	q := buildFilter(repository.ProductFilter{
		Search:     strPtr("a.b"),
		CategoryID: strPtr("cat-1"),
		OwnerID:    strPtr("owner-1"),
		MinPrice:   floatPtr(10),
		MaxPrice:   floatPtr(20),
	})

	or, ok := q["$or"].(bson.A)
	require.True(t, ok)
	require.Len(t, or, 2)
	assert.Equal(t, bson.M{"name": bson.M{"$regex": `a\.b`, "$options": "i"}}, or[0])
	assert.Equal(t, bson.M{"description": bson.M{"$regex": `a\.b`, "$options": "i"}}, or[1])
	assert.Equal(t, "cat-1", q["category_id"])
	assert.Equal(t, "owner-1", q["owner_id"])
	assert.Equal(t, bson.M{"$gte": 10.0, "$lte": 20.0}, q["price"])
}

func TestBuildFilter_BlankSearchIgnored(t *testing.T) {
	q := buildFilter(repository.ProductFilter{Search: strPtr("")})
	_, ok := q["$or"]
	assert.False(t, ok)
}

func TestProperty_BuildFilterConjunction(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("each set criterion adds one top-level condition", prop.ForAll(
		func(search, category, owner string, minSet, maxSet bool) bool {
			f := repository.ProductFilter{}
			want := 0
			if search != "" {
				f.Search = strPtr(search)
				want++
			}
			if category != "" {
				f.CategoryID = strPtr(category)
				want++
			}
			if owner != "" {
				f.OwnerID = strPtr(owner)
				want++
			}
			if minSet {
				f.MinPrice = floatPtr(1)
			}
			if maxSet {
				f.MaxPrice = floatPtr(2)
			}
			if minSet || maxSet {
				want++
			}
			return len(buildFilter(f)) == want
		},
		gen.OneConstOf("", "lamp", "a.b"),
		gen.OneConstOf("", "c1"),
		gen.OneConstOf("", "u1"),
		gen.Bool(),
		gen.Bool(),
	))

	properties.Property("search pattern is a case-insensitive substring test", prop.ForAll(
		func(term, text string) bool {
			q := buildFilter(repository.ProductFilter{Search: &term})
			cond := q["$or"].(bson.A)[0].(bson.M)["name"].(bson.M)
			re := regexp.MustCompile("(?i)" + cond["$regex"].(string))
			return re.MatchString(text) == strings.Contains(strings.ToLower(text), strings.ToLower(term))
		},
		gen.OneGenOf(gen.AlphaString(), gen.OneConstOf(".", "a.b", "(x)", "50%_off", "[", "*", "A+")).
			SuchThat(func(s string) bool { return s != "" }),
		gen.OneGenOf(gen.AlphaString(), gen.OneConstOf("xa.by", "aXb", "(X)", "50%_OFF", "[a]", "a+", "**")),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestBuildFilter_MinPriceOnly(t *testing.T) {
	q := buildFilter(repository.ProductFilter{MinPrice: floatPtr(0)})
	assert.Equal(t, bson.M{"$gte": 0.0}, q["price"])
}

func TestBuildSet(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	set := buildSet(repository.ProductPatch{
		Name:   strPtr("Lamp"),
		Price:  floatPtr(12.5),
		Images: []string{"a"},
	}, now)

	assert.Equal(t, bson.M{
		"updated_at": now,
		"name":       "Lamp",
		"price":      12.5,
		"images":     []string{"a"},
	}, set)
}

func TestProductDoc_RoundTripNormalizes(t *testing.T) {
	p := &domain.Product{ID: "p1", Name: "Lamp", OwnerID: "u1"}
	doc := fromDomain(p)
	assert.NotNil(t, doc.Images)
	assert.NotNil(t, doc.Reviews)

	back := doc.toDomain()
	assert.Equal(t, "p1", back.ID)
	assert.Equal(t, []string{}, back.Images)
	assert.Equal(t, []domain.Review{}, back.Reviews)
}

func productBSON(id, owner string) bson.D {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "name", Value: "Lamp"},
		{Key: "description", Value: "desk lamp"},
		{Key: "price", Value: 12.5},
		{Key: "category_id", Value: "cat-1"},
		{Key: "owner_id", Value: owner},
		{Key: "images", Value: bson.A{}},
		{Key: "reviews", Value: bson.A{}},
		{Key: "created_at", Value: ts},
		{Key: "updated_at", Value: ts},
	}
}

func TestProductRepository_Mock(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		repo := NewProductRepository(mt.Coll)

		err := repo.Create(context.Background(), &domain.Product{ID: "p1", Name: "Lamp", OwnerID: "u1"})
		require.NoError(t, err)
	})

	mt.Run("create duplicate", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))
		repo := NewProductRepository(mt.Coll)

		err := repo.Create(context.Background(), &domain.Product{ID: "p1"})
		assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	})

	mt.Run("get by id", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, productBSON("p1", "u1")))
		repo := NewProductRepository(mt.Coll)

		p, err := repo.GetByID(context.Background(), "p1")
		require.NoError(t, err)
		assert.Equal(t, "p1", p.ID)
		assert.Equal(t, "u1", p.OwnerID)
		assert.Equal(t, 12.5, p.Price)
		assert.Equal(t, []string{}, p.Images)
	})

	mt.Run("get by id not found", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		repo := NewProductRepository(mt.Coll)

		_, err := repo.GetByID(context.Background(), "missing")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	mt.Run("append review", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: productBSON("p1", "u1")},
		})
		repo := NewProductRepository(mt.Coll)

		p, err := repo.AppendReview(context.Background(), "p1", domain.Review{ReviewerID: "u2", Rating: 5})
		require.NoError(t, err)
		assert.Equal(t, "p1", p.ID)
	})

	mt.Run("list huge page", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(3)}}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
		)
		repo := NewProductRepository(mt.Coll)

		products, total, err := repo.List(context.Background(), repository.ProductFilter{Page: math.MaxInt, Limit: 5})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Empty(t, products)

		var skip int64
		for _, evt := range mt.GetAllStartedEvents() {
			if evt.CommandName == "find" {
				skip, _ = evt.Command.Lookup("skip").Int64OK()
			}
		}
		assert.Equal(t, int64(pagination.New(math.MaxInt, 5).Offset()), skip)
		assert.Positive(t, skip)
	})

	mt.Run("delete owned by someone else", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: nil},
		})
		repo := NewProductRepository(mt.Coll)

		_, err := repo.DeleteOwned(context.Background(), "p1", "intruder")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}
