package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grocery-price-assistant/internal/config"
	"grocery-price-assistant/internal/domain/model"
	pg "grocery-price-assistant/internal/infra/db/postgres"
	"grocery-price-assistant/internal/infra/logging"
	"grocery-price-assistant/internal/infra/metrics"
	red "grocery-price-assistant/internal/infra/redis"
	"grocery-price-assistant/internal/infra/web"
	"grocery-price-assistant/internal/usecase"
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

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	productRepo := pg.NewProductRepo(pool)
	if err := productRepo.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ensure schema")
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	stateRepo := red.NewStateRepo(redisClient, cfg.Chat.StateTTL)
	locker := red.NewLocker(redisClient)
	limiter := red.NewRateLimiter(redisClient)

	// ---- Lookups (LRU in front of Postgres, one per source) ----
	zepto, err := pg.NewLookupCache(productRepo.Lookup(model.SourceZepto), model.SourceZepto, cfg.Chat.LookupCacheSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("zepto lookup cache")
	}
	bigbasket, err := pg.NewLookupCache(productRepo.Lookup(model.SourceBigBasket), model.SourceBigBasket, cfg.Chat.LookupCacheSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("bigbasket lookup cache")
	}

	// ---- Use cases ----
	chatUC := usecase.NewChatUseCase(stateRepo, zepto, bigbasket, logger)
	catalogUC := usecase.NewCatalogUseCase(productRepo)

	// ---- HTTP ----
	sessions := web.NewSessionManager(cfg.Session)
	srv := web.NewServer(cfg, chatUC, catalogUC, sessions, locker, limiter, logger, map[string]web.Pinger{
		"postgres": func(ctx context.Context) error { return pool.Ping(ctx) },
		"redis":    redisClient.Ping,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
}
