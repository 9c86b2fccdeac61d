package usecase

import (
	"context"

	"grocery-price-assistant/internal/domain/ports/repository"
)

// CatalogUseCase exposes read-only catalog figures for the admin API.
type CatalogUseCase struct {
	products repository.ProductRepository
}

func NewCatalogUseCase(products repository.ProductRepository) *CatalogUseCase {
	return &CatalogUseCase{products: products}
}

// Stats returns per-source product counts and scrape freshness.
func (uc *CatalogUseCase) Stats(ctx context.Context) ([]repository.SourceStats, error) {
	return uc.products.Stats(ctx)
}
