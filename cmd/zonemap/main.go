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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/zonemap/internal/config"
	"github.com/kailas-cloud/zonemap/internal/db"
	dbGoRedis "github.com/kailas-cloud/zonemap/internal/db/goredis"
	dbRedis "github.com/kailas-cloud/zonemap/internal/db/redis"
	"github.com/kailas-cloud/zonemap/internal/domain"
	"github.com/kailas-cloud/zonemap/internal/domain/geo"
	"github.com/kailas-cloud/zonemap/internal/domain/hover"
	logpkg "github.com/kailas-cloud/zonemap/internal/logger"
	"github.com/kailas-cloud/zonemap/internal/metrics"
	"github.com/kailas-cloud/zonemap/internal/repository/answercache"
	"github.com/kailas-cloud/zonemap/internal/repository/geodata"
	quotarepo "github.com/kailas-cloud/zonemap/internal/repository/quota"
	chiTransport "github.com/kailas-cloud/zonemap/internal/transport/chi"
	"github.com/kailas-cloud/zonemap/internal/transport/langserve"
	openaiQuery "github.com/kailas-cloud/zonemap/internal/transport/openai"
	"github.com/kailas-cloud/zonemap/internal/usecase/features"
	healthuc "github.com/kailas-cloud/zonemap/internal/usecase/health"
	"github.com/kailas-cloud/zonemap/internal/usecase/page"
	"github.com/kailas-cloud/zonemap/internal/usecase/query"
	"github.com/kailas-cloud/zonemap/internal/version"
)

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		panic("failed to load .env: " + err.Error())
	}

	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, logpkg.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting zonemap server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("geodata", cfg.Geodata.Source),
		zap.String("query_provider", cfg.Query.Provider),
		zap.String("cache_driver", cfg.Cache.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Register query metrics explicitly (no init())
	metrics.RegisterQueryMetrics()

	// Optional KV store for the answer cache and quota counters
	store := openStore(ctx, cfg.Cache, logger)
	if store != nil {
		defer store.Close()
	}

	// Feature collection loads in the background; pages see an empty map until it lands.
	src, err := geodata.Open(ctx, cfg.Geodata.Source, geodata.Options{
		MaxBytes: cfg.Geodata.MaxBytes,
		S3: geodata.S3Config{
			Region:          cfg.Geodata.S3.Region,
			Endpoint:        cfg.Geodata.S3.Endpoint,
			PathStyle:       cfg.Geodata.S3.PathStyle,
			AccessKeyID:     cfg.Geodata.S3.AccessKeyID,
			SecretAccessKey: cfg.Geodata.S3.SecretAccessKey,
		},
	})
	if err != nil {
		logger.Fatal("Invalid geodata source", zap.Error(err))
	}
	featureStore := features.NewStore(geodata.NewLoader(src), logger)
	go func() {
		loadCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Geodata.LoadTimeoutSec)*time.Second)
		defer cancel()
		if err := featureStore.Load(loadCtx); err != nil {
			logger.Error("Feature collection unavailable", zap.String("source", src.String()), zap.Error(err))
		}
	}()

	// Query client chain: transport -> instrumented (quota) -> cached
	base, checker := buildProvider(cfg, logger)
	client := buildQueryClient(ctx, cfg, base, store, logger)

	pageCfg := page.Config{
		Keys: hover.Keys{
			Name:        cfg.Geodata.Attributes.Name,
			Description: cfg.Geodata.Attributes.Description,
			Layer:       cfg.Geodata.Attributes.Layer,
			Number:      cfg.Geodata.Attributes.Number,
		},
		Query: query.Config{
			PromptTemplate: cfg.Query.PromptTemplate,
			FailureMessage: cfg.Query.FailureMessage,
			DescriptionKey: cfg.Geodata.Attributes.Description,
			Timeout:        time.Duration(cfg.Query.TimeoutSec) * time.Second,
		},
		LoadingMessage: cfg.Query.LoadingMessage,
	}
	pages := page.NewManager(featureStore, client, pageCfg, page.ManagerConfig{
		IdleTTL:       time.Duration(cfg.Pages.IdleTTLSec) * time.Second,
		SweepInterval: time.Duration(cfg.Pages.SweepIntervalSec) * time.Second,
		MaxPages:      cfg.Pages.MaxPages,
	}, logger)
	go pages.Run(ctx)
	defer pages.CloseAll()

	// Pass nil interface (not typed nil pointer!) when no cache is configured.
	var cachePinger healthuc.CachePinger
	if store != nil {
		cachePinger = store
	}
	healthSvc := healthuc.New(featureStore, cachePinger, checker)

	server := chiTransport.NewServer(
		featureStore, pages, healthSvc,
		geo.LngLat{Lng: cfg.Geodata.View.Lng, Lat: cfg.Geodata.View.Lat}, cfg.Geodata.View.Zoom,
		time.Duration(cfg.Pages.WaitTimeoutSec)*time.Second,
		logger,
	)

	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.WideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// openStore connects the configured KV store, or returns nil when the cache is disabled.
// An unreachable store is logged and skipped: the map works without cache and quota persistence.
func openStore(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) db.Store {
	if !cfg.Enabled() {
		return nil
	}

	var (
		store db.Store
		err   error
	)
	switch cfg.Driver {
	case "valkey", "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	case "goredis":
		store, err = dbGoRedis.NewStore(dbGoRedis.Config{
			Addr:     cfg.Addrs[0],
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	default:
		logger.Fatal("Unknown cache driver", zap.String("driver", cfg.Driver))
	}
	if err != nil {
		logger.Error("Failed to create cache store, continuing without cache", zap.Error(err))
		return nil
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		logger.Error("Cache not ready, continuing without cache", zap.Error(err))
		store.Close()
		return nil
	}
	logger.Info("Connected to cache", zap.String("driver", cfg.Driver), zap.Strings("addrs", cfg.Addrs))
	return store
}

// buildProvider creates the transport client for the configured provider and its health checker.
func buildProvider(cfg config.Config, logger *zap.Logger) (domain.QueryClient, healthuc.ProviderChecker) {
	switch cfg.Query.Provider {
	case "langserve":
		c := langserve.NewClient(&langserve.Config{
			URL:      cfg.Providers.LangServe.URL,
			Headers:  cfg.Providers.LangServe.Headers,
			Provider: "langserve",
			Logger:   logger,
		})
		return c, c
	default:
		c := openaiQuery.NewClient(&openaiQuery.Config{
			APIKey:       cfg.Providers.OpenAI.APIKey,
			BaseURL:      cfg.Providers.OpenAI.BaseURL,
			Model:        cfg.Providers.OpenAI.Model,
			SystemPrompt: cfg.Providers.OpenAI.SystemPrompt,
			MaxTokens:    cfg.Providers.OpenAI.MaxTokens,
			Temperature:  cfg.Providers.OpenAI.Temperature,
			Provider:     "openai",
			Logger:       logger,
		})
		return c, c
	}
}

// buildQueryClient assembles the decorator chain: transport -> Instrumented -> Cached.
// The cache is outermost so cached answers never count against the quota.
func buildQueryClient(
	ctx context.Context,
	cfg config.Config,
	base domain.QueryClient,
	store db.Store,
	logger *zap.Logger,
) domain.QueryClient {
	provider := cfg.Query.Provider

	// Pass nil interface (not typed nil pointer!) if quota is not configured.
	var quota query.Quota
	qc := cfg.Query.Quota
	if qc.DailyLimit > 0 || qc.MonthlyLimit > 0 {
		tracker := query.NewQuotaTracker(provider, qc.DailyLimit, qc.MonthlyLimit, query.QuotaAction(qc.Action), logger)
		if store != nil {
			// Connect persistence store and load current counters.
			tracker.WithStore(ctx, quotarepo.New(store, 48*time.Hour, 62*24*time.Hour))
		}
		quota = tracker
	}

	var client domain.QueryClient = query.NewInstrumentedClient(base, provider, quota, logger)

	if store != nil {
		scope := provider
		if provider == "openai" {
			scope += ":" + cfg.Providers.OpenAI.Model
		}
		client = answercache.New(client, store, scope,
			time.Duration(cfg.Cache.TTLSec)*time.Second, metrics.QueryCacheTotal, logger)
	}
	return client
}
