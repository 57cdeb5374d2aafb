package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/edasearch/internal/config"
	dbRedis "github.com/kailas-cloud/edasearch/internal/db/redis"
	logpkg "github.com/kailas-cloud/edasearch/internal/logger"
	"github.com/kailas-cloud/edasearch/internal/metrics"
	budgetRepo "github.com/kailas-cloud/edasearch/internal/repository/budget"
	"github.com/kailas-cloud/edasearch/internal/repository/rescache"
	chiTransport "github.com/kailas-cloud/edasearch/internal/transport/chi"
	openaiExp "github.com/kailas-cloud/edasearch/internal/transport/openai"
	"github.com/kailas-cloud/edasearch/internal/transport/opensearch"
	"github.com/kailas-cloud/edasearch/internal/usecase/expansion"
	healthuc "github.com/kailas-cloud/edasearch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/edasearch/internal/usecase/search"
	"github.com/kailas-cloud/edasearch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting edasearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("engine_addresses", cfg.Engine.Addresses),
		zap.String("index", cfg.Engine.Index),
		zap.Bool("cache", cfg.Cache.Enabled),
		zap.Bool("expansion", cfg.Expansion.Enabled),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterSearchMetrics()

	engine, err := opensearch.New(&opensearch.Config{
		Addresses:          cfg.Engine.Addresses,
		Username:           cfg.Engine.Username,
		Password:           cfg.Engine.Password,
		Timeout:            time.Duration(cfg.Engine.RequestTimeoutSec) * time.Second,
		RetryAttempts:      cfg.Engine.RetryAttempts,
		RetryDelay:         time.Duration(cfg.Engine.RetryDelayMs) * time.Millisecond,
		InsecureSkipVerify: cfg.Engine.InsecureSkipVerify,
		Logger:             logger,
	})
	if err != nil {
		logger.Fatal("Failed to create search engine client", zap.Error(err))
	}

	ctx := context.Background()

	// Pass nil interfaces (not typed nil pointers) for disabled components.
	var (
		searchEngine searchuc.Engine = engine
		cachePinger  healthuc.Pinger
		purger       chiTransport.CachePurger
		expander     searchuc.Expander
		expChecker   healthuc.ExpansionChecker
		counterStore *dbRedis.Store
	)

	if cfg.Cache.Enabled {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		logger.Info("Connected to cache store")

		cached := rescache.New(engine, store, time.Duration(cfg.Cache.TTLSec)*time.Second,
			cfg.Cache.KeyPrefix, metrics.ResultCacheTotal, logger)
		searchEngine = cached
		cachePinger = store
		counterStore = store
		purger = cached
	}

	if cfg.Expansion.Enabled {
		exp := openaiExp.NewExpander(&openaiExp.Config{
			APIKey:   cfg.Expansion.APIKey,
			BaseURL:  cfg.Expansion.BaseURL,
			Model:    cfg.Expansion.Model,
			MaxTerms: cfg.Expansion.MaxTerms,
			Logger:   logger,
		})
		action, err := expansion.ParseAction(cfg.Expansion.BudgetAction)
		if err != nil {
			logger.Fatal("Invalid expansion budget action", zap.Error(err))
		}
		budget := expansion.NewBudget("openai", cfg.Expansion.DailyTokenLimit,
			cfg.Expansion.MonthlyTokenLimit, action, logger)
		if counterStore != nil {
			budget.WithStore(ctx, budgetRepo.New(counterStore, 0, 0))
		}
		expander = expansion.NewBudgeted(exp, budget, "openai", logger)
		expChecker = exp
		logger.Info("Query expansion enabled",
			zap.String("model", cfg.Expansion.Model),
			zap.Int64("daily_token_limit", cfg.Expansion.DailyTokenLimit),
			zap.Int64("monthly_token_limit", cfg.Expansion.MonthlyTokenLimit),
		)
	}

	opts := []searchuc.Option{
		searchuc.WithIndexes(cfg.Engine.Index, cfg.Engine.StatsIndex),
		searchuc.WithDefaults(searchuc.Defaults{
			Limit:        cfg.Search.DefaultLimit,
			MaxLimit:     cfg.Search.MaxLimit,
			CharsPadding: cfg.Search.CharsPadding,
			Operator:     cfg.Search.DefaultOperator,
		}),
	}
	if expander != nil {
		opts = append(opts, searchuc.WithExpander(expander))
	}
	searchService := searchuc.New(searchEngine, opts...)
	healthService := healthuc.New(engine, cachePinger, expChecker)

	server := chiTransport.NewServer(searchService, healthService, purger, logger)
	handler := chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
