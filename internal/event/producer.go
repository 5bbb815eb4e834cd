package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/timiFoxtrot/main-product-store/internal/domain"
	pkgkafka "github.com/timiFoxtrot/main-product-store/pkg/kafka"
	"github.com/timiFoxtrot/main-product-store/pkg/logger"
)

// Kafka topics for catalog events.
const (
	TopicProductCreated     = "catalog.product.created"
	TopicProductUpdated     = "catalog.product.updated"
	TopicProductDeleted     = "catalog.product.deleted"
	TopicProductImagesAdded = "catalog.product.images_added"
	TopicProductReviewed    = "catalog.product.reviewed"
)

// Topics lists every topic the catalog writes to.
var Topics = []string{
	TopicProductCreated,
	TopicProductUpdated,
	TopicProductDeleted,
	TopicProductImagesAdded,
	TopicProductReviewed,
}

const (
	AggregateTypeProduct = "product"
	SourceCatalog        = "product-store"
)

// ProductData is the payload for created and updated events.
type ProductData struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	CategoryID  string   `json:"category_id"`
	OwnerID     string   `json:"owner_id"`
	Images      []string `json:"images"`
}

// ProductDeletedData is the payload for a product.deleted event.
type ProductDeletedData struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
}

// ImagesAddedData is the payload for a product.images_added event.
type ImagesAddedData struct {
	ID      string   `json:"id"`
	OwnerID string   `json:"owner_id"`
	URLs    []string `json:"urls"`
}

// ReviewedData is the payload for a product.reviewed event.
type ReviewedData struct {
	ID         string    `json:"id"`
	ReviewerID string    `json:"reviewer_id"`
	Rating     int       `json:"rating"`
	CreatedAt  time.Time `json:"created_at"`
}

// Publisher is the part of the Kafka producer this package uses.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes catalog events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates an event producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

func productData(p *domain.Product) ProductData {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return ProductData{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		CategoryID:  p.CategoryID,
		OwnerID:     p.OwnerID,
		Images:      images,
	}
}

// ProductCreated publishes a product.created event.
func (p *Producer) ProductCreated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductCreated, product.ID, productData(product))
}

// ProductUpdated publishes a product.updated event.
func (p *Producer) ProductUpdated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductUpdated, product.ID, productData(product))
}

// ProductDeleted publishes a product.deleted event.
func (p *Producer) ProductDeleted(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductDeleted, product.ID, ProductDeletedData{ID: product.ID, OwnerID: product.OwnerID})
}

// ImagesAdded publishes a product.images_added event.
func (p *Producer) ImagesAdded(ctx context.Context, product *domain.Product, urls []string) error {
	return p.publish(ctx, TopicProductImagesAdded, product.ID, ImagesAddedData{ID: product.ID, OwnerID: product.OwnerID, URLs: urls})
}

// ProductReviewed publishes a product.reviewed event.
func (p *Producer) ProductReviewed(ctx context.Context, productID string, review domain.Review) error {
	return p.publish(ctx, TopicProductReviewed, productID, ReviewedData{
		ID:         productID,
		ReviewerID: review.ReviewerID,
		Rating:     review.Rating,
		CreatedAt:  review.CreatedAt,
	})
}

func (p *Producer) publish(ctx context.Context, topic, productID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, productID, AggregateTypeProduct, SourceCatalog, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.RequestIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("product_id", productID),
	)
	return nil
}

// Noop discards events. It is used when Kafka is disabled.
type Noop struct{}

func (Noop) ProductCreated(context.Context, *domain.Product) error        { return nil }
func (Noop) ProductUpdated(context.Context, *domain.Product) error        { return nil }
func (Noop) ProductDeleted(context.Context, *domain.Product) error        { return nil }
func (Noop) ImagesAdded(context.Context, *domain.Product, []string) error { return nil }
func (Noop) ProductReviewed(context.Context, string, domain.Review) error { return nil }
