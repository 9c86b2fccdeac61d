package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"grocery-price-assistant/internal/config"
	"grocery-price-assistant/internal/domain/model"
	pg "grocery-price-assistant/internal/infra/db/postgres"
	"grocery-price-assistant/internal/infra/logging"
	"grocery-price-assistant/internal/infra/metrics"
	"grocery-price-assistant/internal/infra/scraper"
	"grocery-price-assistant/internal/infra/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "development mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	productRepo := pg.NewProductRepo(pool)
	if err := productRepo.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ensure schema")
	}

	workers := worker.NewPool(cfg.Scrape.Workers, logger)
	workers.Start(ctx)
	defer workers.Stop()

	var wg sync.WaitGroup
	for _, src := range cfg.Scrape.Sources {
		urls, err := sourceURLs(src)
		if err != nil {
			logger.Error().Err(err).Str("source", src.Name).Msg("resolve urls")
			continue
		}

		s, err := scraper.New(&cfg.Scrape, model.Source(strings.ToLower(src.Name)), urls, productRepo, logger)
		if err != nil {
			logger.Error().Err(err).Str("source", src.Name).Msg("build scraper")
			continue
		}

		wg.Add(1)
		name := src.Name
		if err := workers.Submit(func(ctx context.Context) error {
			defer wg.Done()
			saved, err := s.Run(ctx)
			logger.Info().Str("source", name).Int("saved", saved).Msg("scrape finished")
			return err
		}); err != nil {
			wg.Done()
			logger.Error().Err(err).Str("source", name).Msg("submit scrape job")
		}
	}
	wg.Wait()
}

// sourceURLs merges inline URLs with a newline-separated URL file.
func sourceURLs(src config.SourceConfig) ([]string, error) {
	urls := append([]string(nil), src.URLs...)
	if src.URLFile != "" {
		f, err := os.Open(src.URLFile)
		if err != nil {
			return nil, fmt.Errorf("open url file: %w", err)
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line != "" {
				urls = append(urls, line)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read url file: %w", err)
		}
	}
	return urls, nil
}
