package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Source identifies which storefront a product record was scraped from.
type Source string

const (
	SourceZepto     Source = "zepto"
	SourceBigBasket Source = "bigbasket"
)

// DisplayName returns the storefront name as shown in chat replies.
func (s Source) DisplayName() string {
	switch s {
	case SourceZepto:
		return "Zepto"
	case SourceBigBasket:
		return "BigBasket"
	}
	return string(s)
}

// CurrencySymbol is the fixed prefix on scraped price text.
const CurrencySymbol = "₹"

// NoDiscount is the default discount text when the scraper found none.
const NoDiscount = "No Discount"

// Product is one scraped listing. Records are written once by the scraper
// and never mutated afterwards.
type Product struct {
	ID        int64     `json:"id"`
	Source    Source    `json:"source"`
	Name      string    `json:"name"`
	Quantity  string    `json:"quantity"` // free-form pack size, e.g. "500 g"
	Price     string    `json:"price"`    // currency-tagged text, e.g. "₹40"
	Discount  string    `json:"discount"`
	SourceURL string    `json:"source_url"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// PriceValue parses the record's price text into a decimal.
func (p *Product) PriceValue() (float64, error) {
	return ParsePrice(p.Price)
}

// ParsePrice strips the fixed currency prefix and parses the remainder as a
// decimal. No locale handling and no thousands separators.
func ParsePrice(text string) (float64, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, CurrencySymbol)
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("parse price %q: empty", text)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", text, err)
	}
	return v, nil
}

// FormatAmount renders a computed currency amount with exactly two
// fractional digits, e.g. "₹80.00".
func FormatAmount(v float64) string {
	return fmt.Sprintf("%s%.2f", CurrencySymbol, v)
}

// FormatQuantity renders a quantity the way users typed it, keeping a
// trailing ".0" on integral values ("2" -> "2.0", "2.5" -> "2.5").
func FormatQuantity(q float64) string {
	s := strconv.FormatFloat(q, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
