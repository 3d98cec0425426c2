package detection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/trustbites/backend/internal/llm"
	"github.com/trustbites/backend/internal/metrics"
	"github.com/trustbites/backend/pkg/logger"
)

type Config struct {
	DefaultModel string
	BatchSize    int
	BatchDelay   time.Duration
}

// Detector classifies reviews with a hosted model and degrades to the
// fallback heuristic on any failure.
type Detector struct {
	invoker llm.Invoker
	cfg     Config
}

func NewDetector(invoker llm.Invoker, cfg Config) *Detector {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	return &Detector{invoker: invoker, cfg: cfg}
}

func (d *Detector) DefaultModel() string {
	return d.cfg.DefaultModel
}

// DetectFakeReview always returns a valid analysis.
func (d *Detector) DetectFakeReview(ctx context.Context, review ReviewForAnalysis, modelID string) FakeReviewAnalysis {
	analysis, _ := d.DetectWithSource(ctx, review, modelID)
	return analysis
}

// DetectWithSource is DetectFakeReview that also reports whether the model
// or the fallback produced the result.
func (d *Detector) DetectWithSource(ctx context.Context, review ReviewForAnalysis, modelID string) (FakeReviewAnalysis, Source) {
	if strings.TrimSpace(modelID) == "" {
		modelID = d.cfg.DefaultModel
	}

	analysis, err := d.analyze(ctx, review, modelID)
	if err != nil {
		reason := failureReason(err)
		logger.Warn("Model analysis failed, using fallback",
			zap.String("review_id", review.ReviewID),
			zap.String("model_id", modelID),
			zap.String("error_type", reason),
			zap.Error(err),
		)
		metrics.FallbackTotal.WithLabelValues(reason).Inc()

		fallback := ClassifyFallback(review)
		record(fallback, SourceFallback)
		return fallback, SourceFallback
	}

	logger.Info("Review analyzed",
		zap.String("review_id", review.ReviewID),
		zap.String("model_id", modelID),
		zap.String("classification", string(analysis.Classification)),
		zap.Float64("confidence", analysis.Confidence),
	)
	record(*analysis, SourceAI)
	return *analysis, SourceAI
}

func (d *Detector) analyze(ctx context.Context, review ReviewForAnalysis, modelID string) (*FakeReviewAnalysis, error) {
	if d.invoker == nil {
		return nil, &llm.ModelInvocationError{ModelID: modelID, Cause: errors.New("no model invoker configured")}
	}

	raw, err := d.invoker.Invoke(ctx, BuildPrompt(review), modelID)
	if err != nil {
		return nil, err
	}

	analysis, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("review %s: %w", review.ReviewID, err)
	}
	return analysis, nil
}

func failureReason(err error) string {
	var (
		invErr   *llm.ModelInvocationError
		parseErr *ParseError
		valErr   *ValidationError
	)
	switch {
	case errors.As(err, &invErr):
		return "invocation"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &valErr):
		return "validation"
	default:
		return "unknown"
	}
}

func record(a FakeReviewAnalysis, source Source) {
	metrics.AnalysesTotal.WithLabelValues(string(a.Classification), string(source)).Inc()
	metrics.ConfidenceScore.WithLabelValues(string(a.Classification)).Observe(a.Confidence)
}
