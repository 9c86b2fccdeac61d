package scraper

import (
	"context"
	"fmt"
	"sync"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"

	"grocery-price-assistant/internal/config"
	"grocery-price-assistant/internal/domain/model"
	"grocery-price-assistant/internal/infra/metrics"
)

// Sink receives extracted records in batches.
type Sink interface {
	SaveBatch(ctx context.Context, products []*model.Product) (int, error)
}

// Scraper crawls one source's listing pages and streams product records
// into the sink.
type Scraper struct {
	cfg       *config.ScrapeConfig
	source    model.Source
	urls      []string
	sink      Sink
	log       *zerolog.Logger
	collector *colly.Collector

	mu      sync.Mutex
	pending []*model.Product
	saved   int

	handlersOnce sync.Once
}

func New(cfg *config.ScrapeConfig, source model.Source, urls []string, sink Sink, logger *zerolog.Logger) (*Scraper, error) {
	switch source {
	case model.SourceZepto, model.SourceBigBasket:
	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("source %s: no listing urls", source)
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	return &Scraper{
		cfg:       cfg,
		source:    source,
		urls:      urls,
		sink:      sink,
		log:       logger,
		collector: collector,
	}, nil
}

// Run visits every listing URL, extracts product cards, and flushes the
// remaining batch at the end. Returns the number of records saved.
func (s *Scraper) Run(ctx context.Context) (int, error) {
	s.configureHandlers(ctx)

	for _, url := range s.urls {
		if ctx.Err() != nil {
			break
		}
		s.log.Info().Str("source", string(s.source)).Str("url", url).Msg("scraping")
		if err := s.collector.Visit(url); err != nil {
			metrics.IncScrapeError(string(s.source), "visit")
			s.log.Error().Err(err).Str("url", url).Msg("visit failed")
		}
	}
	s.collector.Wait()

	s.flush(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved, ctx.Err()
}

func (s *Scraper) configureHandlers(ctx context.Context) {
	s.handlersOnce.Do(func() {
		s.collector.OnError(func(r *colly.Response, err error) {
			url := ""
			if r != nil && r.Request != nil && r.Request.URL != nil {
				url = r.Request.URL.String()
			}
			metrics.IncScrapeError(string(s.source), "request")
			s.log.Error().Err(err).Str("source", string(s.source)).Str("url", url).Msg("request failed")
		})

		switch s.source {
		case model.SourceZepto:
			s.collector.OnHTML(zeptoCardSelector, func(e *colly.HTMLElement) {
				if p := extractZepto(e); p != nil {
					s.add(ctx, p)
				}
			})
		case model.SourceBigBasket:
			s.collector.OnHTML(bigbasketCardSelector, func(e *colly.HTMLElement) {
				if p := extractBigBasket(e); p != nil {
					s.add(ctx, p)
				}
			})
		}
	})
}

func (s *Scraper) add(ctx context.Context, p *model.Product) {
	s.mu.Lock()
	s.pending = append(s.pending, p)
	full := len(s.pending) >= s.cfg.BatchSize
	s.mu.Unlock()
	if full {
		s.flush(ctx)
	}
}

func (s *Scraper) flush(ctx context.Context) {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	n, err := s.sink.SaveBatch(ctx, batch)
	if err != nil {
		metrics.IncScrapeError(string(s.source), "insert")
		s.log.Error().Err(err).Str("source", string(s.source)).Int("batch", len(batch)).Msg("save batch")
	}
	if n > 0 {
		metrics.AddScrapedItems(string(s.source), n)
		s.mu.Lock()
		s.saved += n
		s.mu.Unlock()
	}
}
