package reviews

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/trustbites/backend/internal/detection"
	"github.com/trustbites/backend/internal/metrics"
	"github.com/trustbites/backend/internal/places"
	"github.com/trustbites/backend/internal/storage/models"
	"github.com/trustbites/backend/internal/storage/sqlite"
	"github.com/trustbites/backend/pkg/logger"
)

const fallbackModelLabel = "fallback-heuristic"

type Store interface {
	UpsertRestaurant(ctx context.Context, r *models.Restaurant) error
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)
	InsertReview(ctx context.Context, r *models.Review) (bool, error)
	GetReview(ctx context.Context, id string) (*models.Review, error)
	ListReviews(ctx context.Context, filter models.ReviewFilter) ([]models.Review, error)
	ListPendingReviews(ctx context.Context, limit int) ([]models.Review, error)
	SaveAnalysis(ctx context.Context, rec *models.AnalysisRecord) models.PersistResult
	ApplyAnalysis(ctx context.Context, reviewID string, rec *models.AnalysisRecord) error
	GetAnalysisByHash(ctx context.Context, hash string) (*models.AnalysisRecord, error)
}

type AnalysisCache interface {
	GetAnalysis(ctx context.Context, reviewHash string, out any) (bool, error)
	SetAnalysis(ctx context.Context, reviewHash string, analysis any, ttl time.Duration) error
	IncrementMetric(ctx context.Context, metricName string) error
}

type PlaceSource interface {
	Details(ctx context.Context, placeID string) (*places.PlaceDetails, error)
}

type Config struct {
	DefaultModel string
	Models       []string
	AIVersion    string
	CacheTTL     time.Duration
	// ModelLabelPrefix is prepended to the model id stored with each analysis.
	ModelLabelPrefix string
}

// Service runs the classifier for stored, submitted and places reviews and
// keeps the store and cache in step with the results.
type Service struct {
	detector *detection.Detector
	store    Store
	cache    AnalysisCache
	places   PlaceSource
	cfg      Config
}

// NewService wires the review service. cache and placeSource may be nil.
func NewService(detector *detection.Detector, store Store, cache AnalysisCache, placeSource PlaceSource, cfg Config) *Service {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = detector.DefaultModel()
	}
	if cfg.AIVersion == "" {
		cfg.AIVersion = "1.0"
	}
	return &Service{
		detector: detector,
		store:    store,
		cache:    cache,
		places:   placeSource,
		cfg:      cfg,
	}
}

// ResolveModel returns modelID when it is a configured model and the
// default model otherwise.
func (s *Service) ResolveModel(modelID string) string {
	for _, m := range s.cfg.Models {
		if m == modelID {
			return modelID
		}
	}
	if modelID != "" {
		logger.Debug("Unknown model requested, using default",
			zap.String("requested", modelID),
			zap.String("default", s.cfg.DefaultModel),
		)
	}
	return s.cfg.DefaultModel
}

func (s *Service) Models() []string {
	return append([]string(nil), s.cfg.Models...)
}

func (s *Service) modelLabel(modelID string, source detection.Source) string {
	if source == detection.SourceFallback {
		return fallbackModelLabel
	}
	return s.cfg.ModelLabelPrefix + modelID
}

// priorAnalysis is an earlier analysis of the same content together with
// the model label it was stored under.
type priorAnalysis struct {
	Analysis  detection.FakeReviewAnalysis `json:"analysis"`
	AIModel   string                       `json:"aiModel"`
	AIVersion string                       `json:"aiVersion"`
}

// lookup finds an earlier analysis of the same content, cache first.
func (s *Service) lookup(ctx context.Context, hash string) (*priorAnalysis, bool) {
	if s.cache != nil {
		var cached priorAnalysis
		found, err := s.cache.GetAnalysis(ctx, hash, &cached)
		if err != nil {
			logger.Warn("Analysis cache lookup failed", zap.String("review_hash", hash), zap.Error(err))
		}
		if found && cached.AIModel != "" && cached.Analysis.Classification.Valid() {
			return &cached, true
		}
	}

	rec, err := s.store.GetAnalysisByHash(ctx, hash)
	if err != nil {
		if !errors.Is(err, sqlite.ErrNotFound) {
			logger.Warn("Stored analysis lookup failed", zap.String("review_hash", hash), zap.Error(err))
		}
		return nil, false
	}

	prior := priorAnalysis{
		Analysis:  analysisFromRecord(rec),
		AIModel:   rec.AIModel,
		AIVersion: rec.AIVersion,
	}
	s.remember(ctx, hash, prior)
	return &prior, true
}

func (s *Service) remember(ctx context.Context, hash string, prior priorAnalysis) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetAnalysis(ctx, hash, prior, s.cfg.CacheTTL); err != nil {
		logger.Warn("Failed to cache analysis", zap.String("review_hash", hash), zap.Error(err))
	}
}

// persist stores the analysis against the review and reports the outcome.
func (s *Service) persist(ctx context.Context, reviewID, restaurantID, hash, modelID string, analysis detection.FakeReviewAnalysis, source detection.Source) models.PersistResult {
	label := s.modelLabel(modelID, source)
	res := s.store.SaveAnalysis(ctx, &models.AnalysisRecord{
		ReviewID:           reviewID,
		RestaurantID:       restaurantID,
		ReviewHash:         hash,
		Classification:     string(analysis.Classification),
		IsFake:             analysis.IsFake,
		Confidence:         analysis.Confidence,
		Reasons:            analysis.Reasons,
		Sentiment:          string(analysis.Sentiment),
		LanguageConfidence: analysis.LanguageConfidence,
		Explanation:        analysis.Explanation,
		AIModel:            label,
		AIVersion:          s.cfg.AIVersion,
		AnalyzedAt:         time.Now(),
	})
	if !res.Saved {
		metrics.PersistFailures.Inc()
		return res
	}

	s.remember(ctx, hash, priorAnalysis{Analysis: analysis, AIModel: label, AIVersion: s.cfg.AIVersion})
	if s.cache != nil {
		if err := s.cache.IncrementMetric(ctx, "analyses:"+string(analysis.Classification)); err != nil {
			logger.Debug("Failed to increment analysis counter", zap.Error(err))
		}
	}
	return res
}

// reuse copies an earlier analysis onto a review row under its original
// model label. The stored analysis keeps pointing at the review that
// produced it.
func (s *Service) reuse(ctx context.Context, reviewID string, prior priorAnalysis) models.PersistResult {
	a := prior.Analysis
	err := s.store.ApplyAnalysis(ctx, reviewID, &models.AnalysisRecord{
		Classification:     string(a.Classification),
		IsFake:             a.IsFake,
		Confidence:         a.Confidence,
		Reasons:            a.Reasons,
		Sentiment:          string(a.Sentiment),
		LanguageConfidence: a.LanguageConfidence,
		Explanation:        a.Explanation,
		AIModel:            prior.AIModel,
		AIVersion:          prior.AIVersion,
		AnalyzedAt:         time.Now(),
	})
	if err != nil {
		metrics.PersistFailures.Inc()
		return models.PersistResult{Err: err}
	}
	return models.PersistResult{Saved: true}
}

func (s *Service) restaurantName(ctx context.Context, restaurantID string) string {
	r, err := s.store.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return ""
	}
	return r.Name
}

func toReviewForAnalysis(r *models.Review, restaurantName string) detection.ReviewForAnalysis {
	language := r.Language
	if language == "" {
		language = "en"
	}
	author := r.AuthorName
	if author == "" {
		author = "Anonymous"
	}
	return detection.ReviewForAnalysis{
		ReviewID:       r.ID,
		ReviewText:     r.ReviewText,
		Rating:         r.Rating,
		Language:       language,
		AuthorName:     author,
		ReviewDate:     r.ReviewDate.UTC().Format(time.RFC3339),
		RestaurantName: restaurantName,
	}
}

func analysisFromRecord(rec *models.AnalysisRecord) detection.FakeReviewAnalysis {
	c := detection.Classification(rec.Classification)
	return detection.FakeReviewAnalysis{
		Classification:     c,
		IsFake:             c.IsFake(),
		Confidence:         rec.Confidence,
		Reasons:            rec.Reasons,
		Sentiment:          detection.NormalizeSentiment(rec.Sentiment),
		LanguageConfidence: rec.LanguageConfidence,
		Explanation:        rec.Explanation,
	}
}
