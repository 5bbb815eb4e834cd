package service

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/timiFoxtrot/main-product-store/internal/domain"
)

// CategoryLookup resolves the categories products refer to.
type CategoryLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Category, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Category, error)
}

// OwnerLookup resolves the users that own products.
type OwnerLookup interface {
	GetByIDs(ctx context.Context, ids []string) ([]domain.User, error)
}

// EventPublisher announces catalog changes. Publishing is best effort:
// callers log failures and carry on.
type EventPublisher interface {
	ProductCreated(ctx context.Context, product *domain.Product) error
	ProductUpdated(ctx context.Context, product *domain.Product) error
	ProductDeleted(ctx context.Context, product *domain.Product) error
	ImagesAdded(ctx context.Context, product *domain.Product, urls []string) error
	ProductReviewed(ctx context.Context, productID string, review domain.Review) error
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Generate(userID string, roles []string) (string, error)
}

var (
	imagesUploaded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "product_images_uploaded_total",
		Help: "Product images stored in the blob store.",
	})
	uploadFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "product_image_upload_failures_total",
		Help: "Image attach calls that failed because an upload failed.",
	})
	eventPublishFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_event_publish_failures_total",
		Help: "Catalog events that could not be published.",
	}, []string{"event"})
)

// RegisterMetrics registers the service collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{imagesUploaded, uploadFailures, eventPublishFailures} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
