package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Conversation turns handled, by step.",
		},
		[]string{"step"},
	)

	lookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "product_lookups_total",
			Help: "Product lookups by source and result (hit/miss/error).",
		},
		[]string{"source", "result"},
	)

	cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_cache_requests_total",
			Help: "Lookup cache requests by source and result (hit/miss).",
		},
		[]string{"source", "result"},
	)

	scrapedItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_items_total",
			Help: "Product records extracted per source.",
		},
		[]string{"source"},
	)

	scrapeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Scrape failures per source (request or insert).",
		},
		[]string{"source", "kind"},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_rate_limited_total",
			Help: "Turns rejected by the per-session rate limiter.",
		},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			turnsTotal, lookupsTotal, cacheRequests,
			scrapedItems, scrapeErrors, rateLimited,
		)
	})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncTurn(step string) {
	turnsTotal.WithLabelValues(norm(step)).Inc()
}

func IncLookup(source, result string) {
	lookupsTotal.WithLabelValues(norm(source), norm(result)).Inc()
}

func IncCacheRequest(source, result string) {
	cacheRequests.WithLabelValues(norm(source), norm(result)).Inc()
}

func AddScrapedItems(source string, n int) {
	scrapedItems.WithLabelValues(norm(source)).Add(float64(n))
}

func IncScrapeError(source, kind string) {
	scrapeErrors.WithLabelValues(norm(source), norm(kind)).Inc()
}

func IncRateLimited() {
	rateLimited.Inc()
}
