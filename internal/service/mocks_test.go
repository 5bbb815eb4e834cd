package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/timiFoxtrot/main-product-store/internal/domain"
	"github.com/timiFoxtrot/main-product-store/internal/repository"
	"github.com/timiFoxtrot/main-product-store/internal/storage"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

// --- Mock product repository ---

type mockProductRepository struct {
	mock.Mock
}

func productOrNil(args mock.Arguments) (*domain.Product, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) Create(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProductRepository) List(ctx context.Context, f repository.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return productOrNil(m.Called(ctx, id))
}

func (m *mockProductRepository) GetOwned(ctx context.Context, id, ownerID string) (*domain.Product, error) {
	return productOrNil(m.Called(ctx, id, ownerID))
}

func (m *mockProductRepository) UpdateOwned(ctx context.Context, id, ownerID string, patch repository.ProductPatch) (*domain.Product, error) {
	return productOrNil(m.Called(ctx, id, ownerID, patch))
}

func (m *mockProductRepository) DeleteOwned(ctx context.Context, id, ownerID string) (*domain.Product, error) {
	return productOrNil(m.Called(ctx, id, ownerID))
}

func (m *mockProductRepository) AppendImages(ctx context.Context, id, ownerID string, urls []string) (*domain.Product, error) {
	return productOrNil(m.Called(ctx, id, ownerID, urls))
}

func (m *mockProductRepository) AppendReview(ctx context.Context, id string, r domain.Review) (*domain.Product, error) {
	return productOrNil(m.Called(ctx, id, r))
}

// --- Mock lookups ---

type mockCategoryLookup struct {
	mock.Mock
}

func (m *mockCategoryLookup) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategoryLookup) GetByIDs(ctx context.Context, ids []string) ([]domain.Category, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]domain.Category), args.Error(1)
}

type mockOwnerLookup struct {
	mock.Mock
}

func (m *mockOwnerLookup) GetByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]domain.User), args.Error(1)
}

// --- Recording event publisher ---

type recordingEvents struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (r *recordingEvents) record(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
	return r.err
}

func (r *recordingEvents) ProductCreated(context.Context, *domain.Product) error {
	return r.record("created")
}

func (r *recordingEvents) ProductUpdated(context.Context, *domain.Product) error {
	return r.record("updated")
}

func (r *recordingEvents) ProductDeleted(context.Context, *domain.Product) error {
	return r.record("deleted")
}

func (r *recordingEvents) ImagesAdded(context.Context, *domain.Product, []string) error {
	return r.record("images_added")
}

func (r *recordingEvents) ProductReviewed(context.Context, string, domain.Review) error {
	return r.record("reviewed")
}

func (r *recordingEvents) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// --- Fake blob store ---

type fakeStorage struct {
	mu       sync.Mutex
	uploaded []string
	failOn   string
}

func (f *fakeStorage) Upload(_ context.Context, in *storage.UploadInput) (*storage.UploadResult, error) {
	if f.failOn != "" && in.Filename == f.failOn {
		return nil, errors.New("blob store unavailable")
	}
	if in.Data != nil {
		_, _ = io.Copy(io.Discard, in.Data)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = append(f.uploaded, in.Key)
	return &storage.UploadResult{Key: in.Key, URL: "https://cdn.test/" + in.Key}, nil
}

func (f *fakeStorage) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploaded)
}

// staticCategories answers every lookup with a category of the same id.
type staticCategories struct{}

func (staticCategories) GetByID(_ context.Context, id string) (*domain.Category, error) {
	return &domain.Category{ID: id, Name: "cat-" + id}, nil
}

func (staticCategories) GetByIDs(_ context.Context, ids []string) ([]domain.Category, error) {
	out := make([]domain.Category, len(ids))
	for i, id := range ids {
		out[i] = domain.Category{ID: id, Name: "cat-" + id}
	}
	return out, nil
}

type noOwners struct{}

func (noOwners) GetByIDs(context.Context, []string) ([]domain.User, error) {
	return []domain.User{}, nil
}
