package reviews

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/trustbites/backend/internal/detection"
	"github.com/trustbites/backend/internal/ingestion"
	"github.com/trustbites/backend/internal/places"
	"github.com/trustbites/backend/internal/storage/models"
	"github.com/trustbites/backend/pkg/logger"
)

const (
	pendingLimit  = 500
	recentReviews = 5
)

// AnalyzeSingle classifies one stored review and persists the result.
func (s *Service) AnalyzeSingle(ctx context.Context, reviewID, modelID string) (*detection.FakeReviewAnalysis, detection.Source, error) {
	review, err := s.store.GetReview(ctx, reviewID)
	if err != nil {
		return nil, "", err
	}
	modelID = s.ResolveModel(modelID)

	input := toReviewForAnalysis(review, s.restaurantName(ctx, review.RestaurantID))
	analysis, source := s.detector.DetectWithSource(ctx, input, modelID)

	res := s.persist(ctx, review.ID, review.RestaurantID, review.ReviewHash, modelID, analysis, source)
	if !res.Saved {
		return &analysis, source, fmt.Errorf("failed to persist analysis for %s: %w", review.ID, res.Err)
	}
	return &analysis, source, nil
}

// AnalyzePending runs the batch processor over every pending review.
func (s *Service) AnalyzePending(ctx context.Context, modelID string) (detection.BatchResult, error) {
	pending, err := s.store.ListPendingReviews(ctx, pendingLimit)
	if err != nil {
		return detection.BatchResult{}, fmt.Errorf("failed to list pending reviews: %w", err)
	}
	if len(pending) == 0 {
		logger.Info("No pending reviews to analyze")
		return detection.BatchResult{}, nil
	}
	modelID = s.ResolveModel(modelID)

	names := make(map[string]string)
	byID := make(map[string]*models.Review, len(pending))
	inputs := make([]detection.ReviewForAnalysis, 0, len(pending))
	for i := range pending {
		r := &pending[i]
		name, ok := names[r.RestaurantID]
		if !ok {
			name = s.restaurantName(ctx, r.RestaurantID)
			names[r.RestaurantID] = name
		}
		byID[r.ID] = r
		inputs = append(inputs, toReviewForAnalysis(r, name))
	}

	sink := func(ctx context.Context, in detection.ReviewForAnalysis, a detection.FakeReviewAnalysis, src detection.Source) error {
		r := byID[in.ReviewID]
		res := s.persist(ctx, r.ID, r.RestaurantID, r.ReviewHash, modelID, a, src)
		return res.Err
	}

	return s.detector.ProcessBatch(ctx, inputs, modelID, sink), nil
}

// AnalyzedReview is a places review with its classification.
type AnalyzedReview struct {
	ReviewID       string                   `json:"reviewId"`
	ReviewText     string                   `json:"reviewText"`
	AuthorName     string                   `json:"authorName"`
	Rating         int                      `json:"rating"`
	Time           int64                    `json:"time"`
	Classification detection.Classification `json:"classification"`
	IsFake         bool                     `json:"isFake"`
	Confidence     float64                  `json:"confidence"`
	Sentiment      detection.Sentiment      `json:"sentiment"`
	Reasons        []string                 `json:"reasons"`
	Explanation    string                   `json:"reason"`
	Source         detection.Source         `json:"source,omitempty"`
	Cached         bool                     `json:"cached"`
}

type Distribution struct {
	Genuine    int `json:"genuine"`
	Suspicious int `json:"suspicious"`
	Fake       int `json:"fake"`
}

type RestaurantAnalysis struct {
	Restaurant         *models.Restaurant    `json:"restaurant"`
	TrustScore         int                   `json:"trustScore"`
	ReviewDistribution Distribution          `json:"reviewDistribution"`
	Counts             Distribution          `json:"counts"`
	TotalReviews       int                   `json:"totalReviews"`
	RecentReviews      []AnalyzedReview      `json:"recentReviews"`
	Batch              detection.BatchResult `json:"batch"`
}

// AnalyzeRestaurant fetches a place's reviews, stores them, and classifies
// each one. Content analyzed before is served from the cache or store.
// onReview, when set, is called once per analyzed review; calls are
// serialized.
func (s *Service) AnalyzeRestaurant(ctx context.Context, placeID, modelID string, onReview func(AnalyzedReview)) (*RestaurantAnalysis, error) {
	if s.places == nil {
		return nil, places.ErrNotConfigured
	}
	details, err := s.places.Details(ctx, placeID)
	if err != nil {
		return nil, err
	}
	modelID = s.ResolveModel(modelID)

	restaurant := ingestion.RestaurantFromPlace(details)
	if err := s.store.UpsertRestaurant(ctx, restaurant); err != nil {
		logger.Warn("Failed to store restaurant", zap.String("restaurant_id", restaurant.ID), zap.Error(err))
	}

	var (
		mu      sync.Mutex
		results = make([]*AnalyzedReview, len(details.Reviews))
		index   = make(map[string]int, len(details.Reviews))
		stored  = make(map[string]*models.Review, len(details.Reviews))
		pending []detection.ReviewForAnalysis
	)

	emit := func(i int, ar AnalyzedReview) {
		mu.Lock()
		defer mu.Unlock()
		results[i] = &ar
		if onReview != nil {
			onReview(ar)
		}
	}

	for i, pr := range details.Reviews {
		review := ingestion.ReviewFromPlace(restaurant.ID, pr)
		if review.ReviewText == "" {
			continue
		}
		if _, err := s.store.InsertReview(ctx, review); err != nil {
			logger.Warn("Failed to store place review", zap.String("review_id", review.ID), zap.Error(err))
		}

		if prior, ok := s.lookup(ctx, review.ReviewHash); ok {
			if res := s.reuse(ctx, review.ID, *prior); !res.Saved {
				logger.Warn("Failed to apply cached analysis", zap.String("review_id", review.ID), zap.Error(res.Err))
			}
			ar := newAnalyzedReview(pr, review, prior.Analysis, "")
			ar.Cached = true
			emit(i, ar)
			continue
		}

		index[review.ID] = i
		stored[review.ID] = review
		pending = append(pending, toReviewForAnalysis(review, restaurant.Name))
	}

	var batch detection.BatchResult
	if len(pending) > 0 {
		sink := func(ctx context.Context, in detection.ReviewForAnalysis, a detection.FakeReviewAnalysis, src detection.Source) error {
			i := index[in.ReviewID]
			r := stored[in.ReviewID]
			emit(i, newAnalyzedReview(details.Reviews[i], r, a, src))
			return s.persist(ctx, r.ID, r.RestaurantID, r.ReviewHash, modelID, a, src).Err
		}
		batch = s.detector.ProcessBatch(ctx, pending, modelID, sink)
	}

	out := &RestaurantAnalysis{
		Restaurant:    restaurant,
		RecentReviews: []AnalyzedReview{},
		Batch:         batch,
	}
	for _, ar := range results {
		if ar == nil {
			continue
		}
		switch ar.Classification {
		case detection.Fake:
			out.Counts.Fake++
		case detection.Suspicious:
			out.Counts.Suspicious++
		default:
			out.Counts.Genuine++
		}
		if len(out.RecentReviews) < recentReviews {
			out.RecentReviews = append(out.RecentReviews, *ar)
		}
	}

	out.TotalReviews = out.Counts.Genuine + out.Counts.Suspicious + out.Counts.Fake
	out.TrustScore = percent(out.Counts.Genuine, out.TotalReviews)
	out.ReviewDistribution = Distribution{
		Genuine:    percent(out.Counts.Genuine, out.TotalReviews),
		Suspicious: percent(out.Counts.Suspicious, out.TotalReviews),
		Fake:       percent(out.Counts.Fake, out.TotalReviews),
	}

	logger.Info("Restaurant reviews analyzed",
		zap.String("restaurant_id", restaurant.ID),
		zap.Int("reviews", out.TotalReviews),
		zap.Int("trust_score", out.TrustScore),
	)
	return out, nil
}

func newAnalyzedReview(pr places.PlaceReview, r *models.Review, a detection.FakeReviewAnalysis, src detection.Source) AnalyzedReview {
	return AnalyzedReview{
		ReviewID:       r.ID,
		ReviewText:     r.ReviewText,
		AuthorName:     r.AuthorName,
		Rating:         r.Rating,
		Time:           pr.Time,
		Classification: a.Classification,
		IsFake:         a.IsFake,
		Confidence:     a.Confidence,
		Sentiment:      a.Sentiment,
		Reasons:        a.Reasons,
		Explanation:    a.Explanation,
		Source:         src,
	}
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(n) / float64(total) * 100))
}
