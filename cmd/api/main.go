package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/trustbites/backend/internal/api"
	"github.com/trustbites/backend/internal/api/handlers"
	"github.com/trustbites/backend/internal/auth"
	"github.com/trustbites/backend/internal/cache/redis"
	"github.com/trustbites/backend/internal/dashboard"
	"github.com/trustbites/backend/internal/detection"
	"github.com/trustbites/backend/internal/ingestion"
	"github.com/trustbites/backend/internal/llm"
	"github.com/trustbites/backend/internal/metrics"
	"github.com/trustbites/backend/internal/middleware/ratelimit"
	"github.com/trustbites/backend/internal/places"
	"github.com/trustbites/backend/internal/reviews"
	"github.com/trustbites/backend/internal/storage/sqlite"
	"github.com/trustbites/backend/pkg/config"
	appLogger "github.com/trustbites/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting TrustBites API server", zap.String("llm_provider", cfg.LLM.Provider))

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	health := map[string]handlers.Pinger{"sqlite": sqliteClient}

	var (
		analysisCache reviews.AnalysisCache
		placesCache   handlers.PlacesCache
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, running without cache", zap.Error(err))
		} else {
			defer redisClient.Close()
			analysisCache = redisClient
			placesCache = redisClient
			health["redis"] = redisClient
		}
	}

	invoker, labelPrefix, err := llm.NewFromConfig(context.Background(), cfg.LLM)
	if err != nil {
		appLogger.Fatal("Failed to create model invoker", zap.Error(err))
	}

	detector := detection.NewDetector(invoker, detection.Config{
		DefaultModel: cfg.LLM.Model,
		BatchSize:    cfg.Analysis.BatchSize,
		BatchDelay:   cfg.Analysis.BatchDelay(),
	})

	placesClient := places.NewClient(cfg.Places.APIKey, cfg.Places.BaseURL, time.Duration(cfg.Places.TimeoutSec)*time.Second)
	if !placesClient.Configured() {
		appLogger.Warn("Places API key not set, restaurant search is disabled")
	}

	reviewService := reviews.NewService(detector, sqliteClient, analysisCache, placesClient, reviews.Config{
		DefaultModel:     cfg.LLM.Model,
		Models:           cfg.LLM.Models,
		AIVersion:        cfg.Analysis.AIVersion,
		CacheTTL:         cfg.Analysis.CacheTTL(),
		ModelLabelPrefix: labelPrefix,
	})

	var limiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
			Logger:            appLogger.Named("ratelimit"),
		})
		defer limiter.Stop()
	}

	app := api.NewApp(api.Deps{
		Reviews:     reviewService,
		Dashboard:   dashboard.NewService(sqliteClient),
		Auth:        auth.NewService(sqliteClient, cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour),
		Processor:   ingestion.NewProcessor(placesClient, sqliteClient),
		Places:      placesClient,
		PlacesCache: placesCache,
		Store:       sqliteClient,
		Health:      health,
		RateLimiter: limiter,
	}, api.Options{
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:      cfg.Server.BodyLimit,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Development:    cfg.Server.Development,
		SecureCookie:   cfg.Auth.SecureCookie,
		PlacesCacheTTL: cfg.Analysis.CacheTTL(),
		RequestLogging: true,
		ServeMetrics:   true,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
