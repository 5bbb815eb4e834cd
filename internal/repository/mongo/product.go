package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/timiFoxtrot/main-product-store/internal/domain"
	"github.com/timiFoxtrot/main-product-store/internal/repository"
	"github.com/timiFoxtrot/main-product-store/pkg/database"
	apperrors "github.com/timiFoxtrot/main-product-store/pkg/errors"
	"github.com/timiFoxtrot/main-product-store/pkg/pagination"
)

const dbSystem = "mongodb"

type productDoc struct {
	ID          string          `bson:"_id"`
	Name        string          `bson:"name"`
	Description string          `bson:"description"`
	Price       float64         `bson:"price"`
	CategoryID  string          `bson:"category_id"`
	OwnerID     string          `bson:"owner_id"`
	Images      []string        `bson:"images"`
	Reviews     []domain.Review `bson:"reviews"`
	CreatedAt   time.Time       `bson:"created_at"`
	UpdatedAt   time.Time       `bson:"updated_at"`
}

func fromDomain(p *domain.Product) productDoc {
	p.Normalize()
	return productDoc{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		CategoryID:  p.CategoryID,
		OwnerID:     p.OwnerID,
		Images:      p.Images,
		Reviews:     p.Reviews,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (d productDoc) toDomain() *domain.Product {
	p := &domain.Product{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price,
		CategoryID:  d.CategoryID,
		OwnerID:     d.OwnerID,
		Images:      d.Images,
		Reviews:     d.Reviews,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	p.Normalize()
	return p
}

// ProductRepository implements repository.ProductRepository on a MongoDB
// collection. Appends use $push with $each so they are single-document
// atomic updates.
type ProductRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewProductRepository creates a repository over coll.
func NewProductRepository(coll *mongo.Collection) *ProductRepository {
	return &ProductRepository{coll: coll, now: func() time.Time { return time.Now().UTC() }}
}

var _ repository.ProductRepository = (*ProductRepository)(nil)

// Create inserts a new product document.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	ctx, end := database.TraceQuery(ctx, dbSystem, "products.create", "insertOne")
	defer func() { end(err) }()

	if _, err = r.coll.InsertOne(ctx, fromDomain(p)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.AlreadyExists("product", "id", p.ID)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// buildFilter translates a ProductFilter into a query document. The search
// term is matched literally and case-insensitively against name or
// description.
func buildFilter(filter repository.ProductFilter) bson.M {
	q := bson.M{}
	if filter.Search != nil && *filter.Search != "" {
		pattern := regexp.QuoteMeta(*filter.Search)
		q["$or"] = bson.A{
			bson.M{"name": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"description": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}
	if filter.CategoryID != nil {
		q["category_id"] = *filter.CategoryID
	}
	if filter.OwnerID != nil {
		q["owner_id"] = *filter.OwnerID
	}
	if filter.MinPrice != nil || filter.MaxPrice != nil {
		price := bson.M{}
		if filter.MinPrice != nil {
			price["$gte"] = *filter.MinPrice
		}
		if filter.MaxPrice != nil {
			price["$lte"] = *filter.MaxPrice
		}
		q["price"] = price
	}
	return q
}

// buildSet translates a non-empty patch into a $set document.
func buildSet(patch repository.ProductPatch, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Price != nil {
		set["price"] = *patch.Price
	}
	if patch.CategoryID != nil {
		set["category_id"] = *patch.CategoryID
	}
	if patch.Images != nil {
		set["images"] = patch.Images
	}
	return set
}

// List returns one page of matching products and the filtered total.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) (_ []domain.Product, _ int, err error) {
	ctx, end := database.TraceQuery(ctx, dbSystem, "products.list", "find")
	defer func() { end(err) }()

	q := buildFilter(filter)
	total, err := r.coll.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	window := pagination.New(filter.Page, filter.Limit)
	limit, skip := int64(window.Limit), int64(window.Offset())

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(skip).
		SetLimit(limit)

	cur, err := r.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	var docs []productDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode products: %w", err)
	}

	products := make([]domain.Product, 0, len(docs))
	for _, d := range docs {
		products = append(products, *d.toDomain())
	}
	return products, int(total), nil
}

// GetByID retrieves a product by id regardless of owner.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return r.findOne(ctx, "products.get", id, bson.M{"_id": id})
}

// GetOwned retrieves a product by id when it belongs to ownerID.
func (r *ProductRepository) GetOwned(ctx context.Context, id, ownerID string) (*domain.Product, error) {
	return r.findOne(ctx, "products.get_owned", id, bson.M{"_id": id, "owner_id": ownerID})
}

// UpdateOwned applies patch and returns the document after the update.
func (r *ProductRepository) UpdateOwned(ctx context.Context, id, ownerID string, patch repository.ProductPatch) (*domain.Product, error) {
	if patch.IsEmpty() {
		return r.GetOwned(ctx, id, ownerID)
	}
	return r.findOneAndUpdate(ctx, "products.update_owned", id,
		bson.M{"_id": id, "owner_id": ownerID},
		bson.M{"$set": buildSet(patch, r.now())},
	)
}

// DeleteOwned removes the owned product and returns it.
func (r *ProductRepository) DeleteOwned(ctx context.Context, id, ownerID string) (_ *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, dbSystem, "products.delete_owned", "findOneAndDelete")
	defer func() { end(err) }()

	var doc productDoc
	err = r.coll.FindOneAndDelete(ctx, bson.M{"_id": id, "owner_id": ownerID}).Decode(&doc)
	if err != nil {
		return nil, r.mapErr("delete product", id, err)
	}
	return doc.toDomain(), nil
}

// AppendImages pushes urls onto the owned product's images.
func (r *ProductRepository) AppendImages(ctx context.Context, id, ownerID string, urls []string) (*domain.Product, error) {
	if urls == nil {
		urls = []string{}
	}
	return r.findOneAndUpdate(ctx, "products.append_images", id,
		bson.M{"_id": id, "owner_id": ownerID},
		bson.M{
			"$push": bson.M{"images": bson.M{"$each": urls}},
			"$set":  bson.M{"updated_at": r.now()},
		},
	)
}

// AppendReview pushes review onto the product's reviews.
func (r *ProductRepository) AppendReview(ctx context.Context, id string, review domain.Review) (*domain.Product, error) {
	return r.findOneAndUpdate(ctx, "products.append_review", id,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"reviews": review},
			"$set":  bson.M{"updated_at": r.now()},
		},
	)
}

func (r *ProductRepository) findOne(ctx context.Context, operation, id string, q bson.M) (_ *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, dbSystem, operation, "findOne")
	defer func() { end(err) }()

	var doc productDoc
	if err = r.coll.FindOne(ctx, q).Decode(&doc); err != nil {
		return nil, r.mapErr("get product", id, err)
	}
	return doc.toDomain(), nil
}

func (r *ProductRepository) findOneAndUpdate(ctx context.Context, operation, id string, q, update bson.M) (_ *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, dbSystem, operation, "findOneAndUpdate")
	defer func() { end(err) }()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc productDoc
	if err = r.coll.FindOneAndUpdate(ctx, q, update, opts).Decode(&doc); err != nil {
		return nil, r.mapErr("update product", id, err)
	}
	return doc.toDomain(), nil
}

func (r *ProductRepository) mapErr(what, id string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperrors.NotFound("product", id)
	}
	return fmt.Errorf("%s: %w", what, err)
}
