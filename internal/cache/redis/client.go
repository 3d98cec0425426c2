package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/trustbites/backend/internal/metrics"
	"github.com/trustbites/backend/pkg/logger"
)

type Client struct {
	client *redis.Client
}

func NewClient(addr, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func analysisKey(hash string) string {
	return fmt.Sprintf("analysis:%s", hash)
}

// SetAnalysis caches an analysis under its review content hash.
func (c *Client) SetAnalysis(ctx context.Context, reviewHash string, analysis any, ttl time.Duration) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	err = c.client.Set(ctx, analysisKey(reviewHash), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set analysis cache: %w", err)
	}

	logger.Debug("Analysis cached", zap.String("review_hash", reviewHash), zap.Duration("ttl", ttl))
	return nil
}

// GetAnalysis decodes the cached analysis into out and reports whether one was found.
func (c *Client) GetAnalysis(ctx context.Context, reviewHash string, out any) (bool, error) {
	found, err := c.get(ctx, analysisKey(reviewHash), out)
	if err != nil {
		return false, fmt.Errorf("failed to get analysis cache: %w", err)
	}
	if !found {
		metrics.CacheMisses.WithLabelValues("analysis").Inc()
		return false, nil
	}

	metrics.CacheHits.WithLabelValues("analysis").Inc()
	logger.Debug("Analysis cache hit", zap.String("review_hash", reviewHash))
	return true, nil
}

// InvalidateAnalyses drops every cached analysis, used after a model change.
func (c *Client) InvalidateAnalyses(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "analysis:*", 0).Iterator()
	for iter.Next(ctx) {
		err := c.client.Del(ctx, iter.Val()).Err()
		if err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Analysis cache invalidated")
	return nil
}

// SetPlaces caches a places API response under a request key.
func (c *Client) SetPlaces(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal places response: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("places:%s", key), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set places cache: %w", err)
	}
	return nil
}

func (c *Client) GetPlaces(ctx context.Context, key string, out any) (bool, error) {
	found, err := c.get(ctx, fmt.Sprintf("places:%s", key), out)
	if err != nil {
		return false, fmt.Errorf("failed to get places cache: %w", err)
	}
	if found {
		metrics.CacheHits.WithLabelValues("places").Inc()
	} else {
		metrics.CacheMisses.WithLabelValues("places").Inc()
	}
	return found, nil
}

func (c *Client) IncrementMetric(ctx context.Context, metricName string) error {
	return c.client.Incr(ctx, fmt.Sprintf("metric:%s", metricName)).Err()
}

func (c *Client) GetMetric(ctx context.Context, metricName string) (int64, error) {
	val, err := c.client.Get(ctx, fmt.Sprintf("metric:%s", metricName)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

func (c *Client) get(ctx context.Context, key string, out any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}
