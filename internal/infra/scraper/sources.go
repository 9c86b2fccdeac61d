package scraper

import (
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"grocery-price-assistant/internal/domain/model"
)

// Selectors track the storefronts' current markup; they are the first thing
// to check when a scrape run comes back empty.
const (
	zeptoCardSelector     = "a[data-testid='product-card']"
	bigbasketCardSelector = "div[class*='SKUDeck']"
)

func extractZepto(e *colly.HTMLElement) *model.Product {
	name := strings.TrimSpace(e.ChildText("h5[data-testid='product-card-name']"))
	price := strings.TrimSpace(e.ChildText("h4[data-testid='product-card-price']"))
	if name == "" || price == "" {
		return nil
	}

	discount := strings.TrimSpace(e.ChildText("p.line-through"))
	if discount == "" {
		discount = model.NoDiscount
	}

	return &model.Product{
		Source:    model.SourceZepto,
		Name:      name,
		Quantity:  strings.TrimSpace(e.ChildText("span[data-testid='product-card-quantity'] h4")),
		Price:     price,
		Discount:  discount,
		SourceURL: e.Request.URL.String(),
		ScrapedAt: time.Now(),
	}
}

func extractBigBasket(e *colly.HTMLElement) *model.Product {
	name := strings.TrimSpace(e.ChildText("h3"))
	price := strings.TrimSpace(e.ChildText("span[class*='Pricing___StyledLabel']"))
	if name == "" || price == "" {
		return nil
	}

	discount := strings.TrimSpace(e.ChildText("span.font-semibold"))
	if discount == "" {
		discount = model.NoDiscount
	}

	return &model.Product{
		Source:    model.SourceBigBasket,
		Name:      name,
		Quantity:  strings.TrimSpace(e.ChildText("button[class*='PackChanger'] span")),
		Price:     price,
		Discount:  discount,
		SourceURL: e.Request.URL.String(),
		ScrapedAt: time.Now(),
	}
}
