// Package redis holds Redis-backed repository decorators.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/timiFoxtrot/main-product-store/internal/domain"
	"github.com/timiFoxtrot/main-product-store/internal/repository"
)

const categoryKeyPrefix = "category:"

// CategoryCache is a read-through cache in front of a CategoryRepository.
// Lookups by id are served from Redis when possible; writes go to the
// wrapped repository and then drop the cached entry. Redis failures are
// logged and the call falls through to the wrapped repository.
type CategoryCache struct {
	next   repository.CategoryRepository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCategoryCache wraps next with a Redis cache.
func NewCategoryCache(next repository.CategoryRepository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CategoryCache {
	return &CategoryCache{next: next, client: client, ttl: ttl, logger: logger}
}

var _ repository.CategoryRepository = (*CategoryCache)(nil)

func categoryKey(id string) string { return categoryKeyPrefix + id }

// Create passes through; new categories are cached on first read.
func (c *CategoryCache) Create(ctx context.Context, cat *domain.Category) error {
	return c.next.Create(ctx, cat)
}

// GetByID returns the cached category or loads and caches it.
func (c *CategoryCache) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	data, err := c.client.Get(ctx, categoryKey(id)).Bytes()
	switch {
	case err == nil:
		var cat domain.Category
		if uerr := json.Unmarshal(data, &cat); uerr == nil {
			return &cat, nil
		}
		c.logger.WarnContext(ctx, "discarding corrupt cached category", slog.String("category_id", id))
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "category cache read failed", slog.String("error", err.Error()))
	}

	cat, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, *cat)
	return cat, nil
}

// GetByIDs serves hits with a single MGET and loads the misses in one call
// to the wrapped repository.
func (c *CategoryCache) GetByIDs(ctx context.Context, ids []string) ([]domain.Category, error) {
	if len(ids) == 0 {
		return []domain.Category{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = categoryKey(id)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.WarnContext(ctx, "category cache read failed", slog.String("error", err.Error()))
		return c.loadAndStore(ctx, ids)
	}

	found := make([]domain.Category, 0, len(ids))
	var misses []string
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			misses = append(misses, ids[i])
			continue
		}
		var cat domain.Category
		if err := json.Unmarshal([]byte(s), &cat); err != nil {
			misses = append(misses, ids[i])
			continue
		}
		found = append(found, cat)
	}
	if len(misses) == 0 {
		return found, nil
	}

	loaded, err := c.loadAndStore(ctx, misses)
	if err != nil {
		return nil, err
	}
	return append(found, loaded...), nil
}

// List is not cached.
func (c *CategoryCache) List(ctx context.Context) ([]domain.Category, error) {
	return c.next.List(ctx)
}

// Update writes through and invalidates the cached entry.
func (c *CategoryCache) Update(ctx context.Context, cat *domain.Category) error {
	if err := c.next.Update(ctx, cat); err != nil {
		return err
	}
	c.invalidate(ctx, cat.ID)
	return nil
}

// Delete removes the category and its cached entry.
func (c *CategoryCache) Delete(ctx context.Context, id string) error {
	if err := c.next.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *CategoryCache) loadAndStore(ctx context.Context, ids []string) ([]domain.Category, error) {
	cats, err := c.next.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, cat := range cats {
		c.store(ctx, cat)
	}
	return cats, nil
}

func (c *CategoryCache) store(ctx context.Context, cat domain.Category) {
	data, err := json.Marshal(cat)
	if err != nil {
		c.logger.WarnContext(ctx, "marshal category for cache", slog.String("error", err.Error()))
		return
	}
	if err := c.client.Set(ctx, categoryKey(cat.ID), data, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "category cache write failed", slog.String("error", err.Error()))
	}
}

func (c *CategoryCache) invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, categoryKey(id)).Err(); err != nil {
		c.logger.WarnContext(ctx, "category cache invalidation failed",
			slog.String("category_id", id),
			slog.String("error", fmt.Sprint(err)),
		)
	}
}
