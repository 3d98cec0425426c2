package reviews

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trustbites/backend/internal/detection"
	"github.com/trustbites/backend/internal/ingestion"
	"github.com/trustbites/backend/internal/metrics"
	"github.com/trustbites/backend/internal/storage/models"
	"github.com/trustbites/backend/pkg/logger"
	"github.com/trustbites/backend/pkg/utils"
)

// InputError is a submission the caller has to fix.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

type SubmitInput struct {
	RestaurantID string `json:"restaurantId"`
	ReviewText   string `json:"reviewText"`
	Rating       int    `json:"rating"`
	AuthorName   string `json:"authorName"`
	Language     string `json:"language"`
}

type SubmitResult struct {
	Review    *models.Review               `json:"review"`
	Analysis  detection.FakeReviewAnalysis `json:"analysis"`
	Source    detection.Source             `json:"source,omitempty"`
	Cached    bool                         `json:"cached"`
	Persisted bool                         `json:"persisted"`
	Warning   string                       `json:"warning,omitempty"`
}

func (in *SubmitInput) normalize() error {
	in.RestaurantID = strings.TrimSpace(in.RestaurantID)
	in.ReviewText = ingestion.SanitizeText(in.ReviewText)
	if in.RestaurantID == "" || in.ReviewText == "" {
		return &InputError{Message: "Restaurant ID and review text are required"}
	}
	if in.Rating == 0 {
		in.Rating = 3
	}
	if in.Rating < 1 || in.Rating > 5 {
		return &InputError{Message: "Rating must be between 1 and 5"}
	}
	in.AuthorName = strings.TrimSpace(in.AuthorName)
	if in.AuthorName == "" {
		in.AuthorName = "Anonymous"
	}
	if in.Language == "" {
		in.Language = "en"
	}
	return nil
}

// Submit stores a user review, classifies it and persists the analysis.
// A review whose content was analyzed before reuses that analysis.
func (s *Service) Submit(ctx context.Context, in SubmitInput, modelID string) (*SubmitResult, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	modelID = s.ResolveModel(modelID)

	now := time.Now()
	review := &models.Review{
		ID:           uuid.New().String(),
		RestaurantID: in.RestaurantID,
		ReviewText:   in.ReviewText,
		Rating:       in.Rating,
		Language:     in.Language,
		AuthorName:   in.AuthorName,
		ReviewDate:   now,
		Source:       models.ReviewSourceUser,
		Status:       models.ReviewStatusPending,
		ReviewHash:   utils.ContentHash(in.ReviewText, in.Rating, in.AuthorName),
		Reasons:      []string{},
		CreatedAt:    now,
	}
	metrics.ReviewsSubmitted.Inc()

	result := &SubmitResult{Review: review}

	if _, err := s.store.InsertReview(ctx, review); err != nil {
		logger.Error("Failed to store submitted review", zap.String("review_id", review.ID), zap.Error(err))
		result.Warning = "Review could not be saved"
	}

	prior, reused := s.lookup(ctx, review.ReviewHash)
	if reused {
		result.Analysis = prior.Analysis
		result.Cached = true
	} else {
		input := toReviewForAnalysis(review, s.restaurantName(ctx, review.RestaurantID))
		result.Analysis, result.Source = s.detector.DetectWithSource(ctx, input, modelID)
	}

	if result.Warning == "" {
		var (
			res     models.PersistResult
			aiModel = s.modelLabel(modelID, result.Source)
			version = s.cfg.AIVersion
		)
		if reused {
			res = s.reuse(ctx, review.ID, *prior)
			aiModel, version = prior.AIModel, prior.AIVersion
		} else {
			res = s.persist(ctx, review.ID, review.RestaurantID, review.ReviewHash, modelID, result.Analysis, result.Source)
		}

		if res.Saved {
			result.Persisted = true
			applyAnalysis(review, result.Analysis, aiModel, version)
		} else {
			logger.Error("Failed to persist analysis",
				zap.String("review_id", review.ID),
				zap.Error(res.Err),
			)
			result.Warning = "Analysis could not be saved"
		}
	}

	logger.Info("Review submitted",
		zap.String("review_id", review.ID),
		zap.String("restaurant_id", review.RestaurantID),
		zap.String("classification", string(result.Analysis.Classification)),
		zap.Bool("persisted", result.Persisted),
	)
	return result, nil
}

func applyAnalysis(r *models.Review, a detection.FakeReviewAnalysis, aiModel, aiVersion string) {
	now := time.Now()
	r.Status = models.ReviewStatusAnalyzed
	r.Classification = string(a.Classification)
	r.IsFake = a.IsFake
	r.Confidence = a.Confidence
	r.Reasons = a.Reasons
	r.Sentiment = string(a.Sentiment)
	r.Explanation = a.Explanation
	r.AIModel = aiModel
	r.AIVersion = aiVersion
	r.AnalyzedAt = &now
}
