package detection

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/trustbites/backend/internal/metrics"
	"github.com/trustbites/backend/pkg/logger"
)

// Sink receives each analysis produced by a batch. A returned error counts
// the item as failed.
type Sink func(ctx context.Context, review ReviewForAnalysis, analysis FakeReviewAnalysis, source Source) error

type BatchResult struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}

// ProcessBatch analyzes reviews in chunks of the configured batch size,
// running each chunk concurrently and pausing between chunks. Items not
// started before ctx is done are counted as errors.
func (d *Detector) ProcessBatch(ctx context.Context, reviews []ReviewForAnalysis, modelID string, sink Sink) BatchResult {
	var processed, failed atomic.Int64
	size := d.cfg.BatchSize

	logger.Info("Batch analysis started",
		zap.Int("reviews", len(reviews)),
		zap.Int("batch_size", size),
		zap.String("model_id", modelID),
	)

	for i := 0; i < len(reviews); i += size {
		if ctx.Err() != nil {
			failed.Add(int64(len(reviews) - i))
			logger.Warn("Batch analysis cancelled",
				zap.Int("remaining", len(reviews)-i),
				zap.Error(ctx.Err()),
			)
			break
		}

		end := i + size
		if end > len(reviews) {
			end = len(reviews)
		}

		var wg sync.WaitGroup
		for _, review := range reviews[i:end] {
			wg.Add(1)
			go func(review ReviewForAnalysis) {
				defer wg.Done()

				analysis, source := d.DetectWithSource(ctx, review, modelID)
				if sink != nil {
					if err := sink(ctx, review, analysis, source); err != nil {
						logger.Error("Failed to store batch analysis",
							zap.String("review_id", review.ReviewID),
							zap.Error(err),
						)
						failed.Add(1)
						return
					}
				}
				processed.Add(1)
			}(review)
		}
		wg.Wait()

		if end < len(reviews) && d.cfg.BatchDelay > 0 {
			timer := time.NewTimer(d.cfg.BatchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
		}
	}

	result := BatchResult{Processed: int(processed.Load()), Errors: int(failed.Load())}
	metrics.BatchReviewsTotal.WithLabelValues("processed").Add(float64(result.Processed))
	metrics.BatchReviewsTotal.WithLabelValues("error").Add(float64(result.Errors))

	logger.Info("Batch analysis complete",
		zap.Int("processed", result.Processed),
		zap.Int("errors", result.Errors),
	)
	return result
}
