// Command analyzer classifies every pending review once and exits. With
// --evaluate it scores the classifier against a labeled dataset instead.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/trustbites/backend/internal/cache/redis"
	"github.com/trustbites/backend/internal/detection"
	"github.com/trustbites/backend/internal/evaluation"
	"github.com/trustbites/backend/internal/llm"
	"github.com/trustbites/backend/internal/reviews"
	"github.com/trustbites/backend/internal/storage/sqlite"
	"github.com/trustbites/backend/pkg/config"
	appLogger "github.com/trustbites/backend/pkg/logger"
)

func main() {
	model := pflag.StringP("model", "m", "", "model id to classify with (defaults to llm.model)")
	dbPath := pflag.String("db", "", "sqlite database path (defaults to sqlite.path)")
	batchSize := pflag.Int("batch-size", 0, "reviews classified concurrently per batch")
	logLevel := pflag.String("log-level", "", "override logging.level")
	evalPath := pflag.String("evaluate", "", "labeled dataset (JSON) to score the classifier against")
	flushCache := pflag.Bool("flush-cache", false, "drop cached analyses before running, e.g. after a model change")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.SQLite.Path = *dbPath
	}
	if *batchSize > 0 {
		cfg.Analysis.BatchSize = *batchSize
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if err := appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *model, *evalPath, *flushCache); err != nil {
		appLogger.Error("Analyzer failed", zap.Error(err))
		appLogger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, model, datasetPath string, flushCache bool) error {
	if datasetPath != "" {
		return evaluate(ctx, cfg, model, datasetPath)
	}

	store, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.InitSchema(); err != nil {
		return err
	}

	var (
		cache       reviews.AnalysisCache
		redisClient *redis.Client
	)
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, running without cache", zap.Error(err))
		} else {
			defer redisClient.Close()
			cache = redisClient
			if flushCache {
				if err := redisClient.InvalidateAnalyses(ctx); err != nil {
					return err
				}
			}
		}
	}

	invoker, labelPrefix, err := llm.NewFromConfig(ctx, cfg.LLM)
	if err != nil {
		return err
	}

	detector := detection.NewDetector(invoker, detection.Config{
		DefaultModel: cfg.LLM.Model,
		BatchSize:    cfg.Analysis.BatchSize,
		BatchDelay:   cfg.Analysis.BatchDelay(),
	})
	svc := reviews.NewService(detector, store, cache, nil, reviews.Config{
		DefaultModel:     cfg.LLM.Model,
		Models:           cfg.LLM.Models,
		AIVersion:        cfg.Analysis.AIVersion,
		CacheTTL:         cfg.Analysis.CacheTTL(),
		ModelLabelPrefix: labelPrefix,
	})

	resolved := svc.ResolveModel(model)
	appLogger.Info("Analyzing pending reviews", zap.String("model", resolved))

	result, err := svc.AnalyzePending(ctx, resolved)
	if err != nil {
		return err
	}

	appLogger.Info("Pending reviews analyzed",
		zap.Int("processed", result.Processed),
		zap.Int("errors", result.Errors),
	)

	if redisClient != nil {
		logTotals(ctx, redisClient)
	}
	return nil
}

// logTotals reports the running per-classification counters kept in redis.
func logTotals(ctx context.Context, c *redis.Client) {
	fields := make([]zap.Field, 0, 3)
	for _, class := range []detection.Classification{detection.Genuine, detection.Suspicious, detection.Fake} {
		n, err := c.GetMetric(ctx, "analyses:"+string(class))
		if err != nil {
			appLogger.Debug("Failed to read analysis counter", zap.String("classification", string(class)), zap.Error(err))
			continue
		}
		fields = append(fields, zap.Int64(string(class), n))
	}
	appLogger.Info("Analysis totals", fields...)
}

func evaluate(ctx context.Context, cfg *config.Config, model, datasetPath string) error {
	dataset, err := evaluation.LoadDatasetFile(datasetPath)
	if err != nil {
		return err
	}

	invoker, _, err := llm.NewFromConfig(ctx, cfg.LLM)
	if err != nil {
		return err
	}

	detector := detection.NewDetector(invoker, detection.Config{
		DefaultModel: cfg.LLM.Model,
		BatchSize:    cfg.Analysis.BatchSize,
		BatchDelay:   cfg.Analysis.BatchDelay(),
	})

	if model == "" {
		model = cfg.LLM.Model
	}
	report := evaluation.NewEvaluator(detector).Run(ctx, dataset, model)
	fmt.Print(evaluation.GenerateReport(report))
	return nil
}
