package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"fitidea/internal/adapters/fetch"
	"fitidea/internal/adapters/observability"
	redisad "fitidea/internal/adapters/redis"
	"fitidea/internal/adapters/serpapi"
	"fitidea/internal/app"
	"fitidea/internal/shared"
	"fitidea/internal/sources"
	mysqlrepo "fitidea/internal/storage/mysql"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup happens before exit.
func run() int {
	// SIGTERM stops scheduling new items; in-flight items finish.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	log.Info().
		Int("workers", cfg.Workers).
		Int("attempts", cfg.FetchAttempts).
		Str("sources_file", cfg.SourcesFile).
		Msg("ingestor starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Error().Err(err).Msg("sql.Open failed")
		return 1
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Error().Err(err).Msg("db.Ping failed")
		return 1
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer func() { _ = cache.Close() }()
	fetcher := fetch.New(fetch.Options{Timeout: cfg.FetchTimeout, ConnectTimeout: cfg.ConnectTimeout, RPS: cfg.FetchRPS})
	shopping := serpapi.New(cfg.SerpAPIBase, cfg.SerpAPIKey, 5)

	srcCfg, err := sources.LoadConfig(cfg.SourcesFile)
	if err != nil {
		log.Error().Err(err).Msg("load sources failed")
		return 1
	}
	registry, err := sources.NewRegistry(srcCfg, fetcher, shopping)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize source registry")
		return 1
	}

	logos := app.NewLogoService(registry, fetcher, cache)
	ing := app.NewIngestionService(registry, fetcher, cache, repo, logos, time.Now, app.IngestOptions{
		GymTTL:     cfg.GymCacheTTL,
		ProductTTL: cfg.ProductCacheTTL,
		Workers:    cfg.Workers,
		Attempts:   cfg.FetchAttempts,
		Backoff:    2 * time.Second,
	})

	rep := ing.SyncAll(ctx)
	log.Info().
		Str("run_id", rep.RunID).
		Int("total", rep.Total).
		Int("created", rep.Created).
		Int("updated", rep.Updated).
		Int("cached", rep.Cached).
		Int("failed", rep.Failed).
		Msg("ingestion completed")
	return exitCode(rep)
}

// exitCode is non-zero only when the run failed every item it scheduled.
func exitCode(rep app.SyncReport) int {
	if rep.Failed > 0 && rep.Created+rep.Updated+rep.Cached == 0 {
		return 1
	}
	return 0
}
