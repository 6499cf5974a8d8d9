package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"fitidea/internal/adapters/fetch"
	server "fitidea/internal/adapters/http_server"
	"fitidea/internal/adapters/observability"
	redisad "fitidea/internal/adapters/redis"
	"fitidea/internal/adapters/serpapi"
	"fitidea/internal/app"
	"fitidea/internal/shared"
	"fitidea/internal/sources"
	mysqlrepo "fitidea/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	fetcher := fetch.New(fetch.Options{Timeout: cfg.FetchTimeout, ConnectTimeout: cfg.ConnectTimeout, RPS: cfg.FetchRPS})
	shopping := serpapi.New(cfg.SerpAPIBase, cfg.SerpAPIKey, 5)

	srcCfg, err := sources.LoadConfig(cfg.SourcesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("load sources failed")
	}
	registry, err := sources.NewRegistry(srcCfg, fetcher, shopping)
	if err != nil {
		log.Fatal().Err(err).Msg("source registry failed")
	}

	logos := app.NewLogoService(registry, fetcher, cache)
	ing := app.NewIngestionService(registry, fetcher, cache, repo, logos, time.Now, app.IngestOptions{
		GymTTL:     cfg.GymCacheTTL,
		ProductTTL: cfg.ProductCacheTTL,
		Workers:    cfg.Workers,
		Attempts:   cfg.FetchAttempts,
		Backoff:    2 * time.Second,
	})
	q := app.NewQueryService(repo, cache, cfg.CacheTTL)
	offers := app.NewOfferService(shopping, cache)

	// http
	srv := server.New(cfg.HTTPTimeout)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, Ingest: ing, Logos: logos, Offers: offers})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Int("sources", len(registry.All())).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
