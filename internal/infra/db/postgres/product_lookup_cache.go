package postgres

import (
	"context"
	"errors"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"grocery-price-assistant/internal/derror"
	"grocery-price-assistant/internal/domain/model"
	"grocery-price-assistant/internal/domain/ports/repository"
	"grocery-price-assistant/internal/infra/metrics"
)

var _ repository.ProductLookup = (*lookupCacheDecorator)(nil)

// lookupCacheDecorator fronts a ProductLookup with an in-process LRU.
// Misses are cached too: "not on this source" is the common answer for a
// chat session that retries the same name. The catalog only changes on
// scraper runs, so staleness is bounded by process restarts in practice.
type lookupCacheDecorator struct {
	inner  repository.ProductLookup
	source model.Source
	cache  *lru.Cache[string, *model.Product]
}

// NewLookupCache wraps inner with an LRU of the given size. A nil entry in
// the cache records a previous ErrNotFound.
func NewLookupCache(inner repository.ProductLookup, source model.Source, size int) (repository.ProductLookup, error) {
	cache, err := lru.New[string, *model.Product](size)
	if err != nil {
		return nil, err
	}
	return &lookupCacheDecorator{inner: inner, source: source, cache: cache}, nil
}

func (d *lookupCacheDecorator) FindByName(ctx context.Context, name string) (*model.Product, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if product, ok := d.cache.Get(key); ok {
		metrics.IncCacheRequest(string(d.source), "hit")
		if product == nil {
			return nil, derror.ErrNotFound
		}
		return product, nil
	}

	metrics.IncCacheRequest(string(d.source), "miss")
	product, err := d.inner.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, derror.ErrNotFound) {
			d.cache.Add(key, nil)
		}
		return nil, err
	}
	d.cache.Add(key, product)
	return product, nil
}
