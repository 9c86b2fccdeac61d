package repository

import (
	"context"
	"time"

	"grocery-price-assistant/internal/domain/model"
)

// ProductLookup is the per-source lookup capability consumed by the chat
// core: case-insensitive substring match, first match only. A miss is
// derror.ErrNotFound; any other error means the lookup is unavailable.
type ProductLookup interface {
	FindByName(ctx context.Context, name string) (*model.Product, error)
}

// SourceStats summarizes one source's slice of the catalog.
type SourceStats struct {
	Source      model.Source `json:"source"`
	Products    int          `json:"products"`
	LastScraped time.Time    `json:"last_scraped"`
}

// ProductRepository is the port for product persistence. The scraper writes
// batches; the chat side only ever reads through Lookup.
type ProductRepository interface {
	SaveBatch(ctx context.Context, products []*model.Product) (int, error)
	Lookup(source model.Source) ProductLookup
	Stats(ctx context.Context) ([]SourceStats, error)
}
