package dashboard

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/trustbites/backend/internal/storage/models"
	"github.com/trustbites/backend/pkg/logger"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
	businessTrendDays  = 7
	businessRecent     = 5
)

type Store interface {
	ListReviews(ctx context.Context, filter models.ReviewFilter) ([]models.Review, error)
	ListRestaurants(ctx context.Context, ids ...string) ([]models.Restaurant, error)
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)
	CountRestaurants(ctx context.Context) (int, error)
}

// Service computes dashboard views over stored reviews. An empty
// restaurantID covers every restaurant.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) reviews(ctx context.Context, restaurantID string, since time.Time) ([]models.Review, error) {
	reviews, err := s.store.ListReviews(ctx, models.ReviewFilter{RestaurantID: restaurantID, Since: since})
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

func (s *Service) Summary(ctx context.Context, restaurantID string) (*Summary, error) {
	reviews, err := s.reviews(ctx, restaurantID, time.Time{})
	if err != nil {
		return nil, err
	}

	restaurants := 1
	if restaurantID == "" {
		restaurants, err = s.store.CountRestaurants(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count restaurants: %w", err)
		}
	}

	summary := Summarize(reviews, restaurants, s.now())
	logger.Debug("Dashboard summary computed",
		zap.String("restaurant_id", restaurantID),
		zap.Int("reviews", summary.TotalReviews),
	)
	return &summary, nil
}

func (s *Service) Trends(ctx context.Context, restaurantID string, period int) (*Trends, error) {
	if period <= 0 {
		period = 30
	}
	now := s.now()
	reviews, err := s.reviews(ctx, restaurantID, now.Add(-time.Duration(period)*day))
	if err != nil {
		return nil, err
	}
	trends := ComputeTrends(reviews, period, now)
	return &trends, nil
}

func (s *Service) Insights(ctx context.Context, restaurantID string) (*Insights, error) {
	fake := true
	reviews, err := s.store.ListReviews(ctx, models.ReviewFilter{RestaurantID: restaurantID, Fake: &fake})
	if err != nil {
		return nil, fmt.Errorf("failed to list flagged reviews: %w", err)
	}
	insights := ComputeInsights(reviews)
	return &insights, nil
}

type RecentReview struct {
	models.Review
	Restaurant *models.Restaurant `json:"restaurant"`
}

type RecentReviews struct {
	Reviews []RecentReview `json:"reviews"`
	Total   int            `json:"total"`
	Filter  string         `json:"filter"`
	Limit   int            `json:"limit"`
}

// RecentReviews lists reviews newest first. filter is all, fake or genuine.
func (s *Service) RecentReviews(ctx context.Context, restaurantID string, limit int, filter string) (*RecentReviews, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	f := models.ReviewFilter{RestaurantID: restaurantID}
	switch filter {
	case "fake":
		fake := true
		f.Fake = &fake
	case "genuine":
		genuine := false
		f.Fake = &genuine
	default:
		filter = "all"
	}

	reviews, err := s.store.ListReviews(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}

	out := &RecentReviews{Reviews: []RecentReview{}, Total: len(reviews), Filter: filter, Limit: limit}
	if len(reviews) > limit {
		reviews = reviews[:limit]
	}

	seen := map[string]bool{}
	var ids []string
	for _, r := range reviews {
		if !seen[r.RestaurantID] {
			seen[r.RestaurantID] = true
			ids = append(ids, r.RestaurantID)
		}
	}
	byID := map[string]*models.Restaurant{}
	if len(ids) > 0 {
		restaurants, err := s.store.ListRestaurants(ctx, ids...)
		if err != nil {
			return nil, fmt.Errorf("failed to list restaurants: %w", err)
		}
		for i := range restaurants {
			byID[restaurants[i].ID] = &restaurants[i]
		}
	}

	for _, r := range reviews {
		out.Reviews = append(out.Reviews, RecentReview{Review: r, Restaurant: byID[r.RestaurantID]})
	}
	return out, nil
}

type BusinessInsights struct {
	Insights
	RiskLevel    string `json:"riskLevel"`
	MonthlyTrend string `json:"monthlyTrend"`
}

type BusinessDashboard struct {
	Business      *models.Restaurant `json:"business"`
	Summary       *Summary           `json:"summary"`
	Trends        *Trends            `json:"trends"`
	RecentReviews []RecentReview     `json:"recentReviews"`
	Insights      BusinessInsights   `json:"insights"`
}

// Business assembles the dashboard of one owner's restaurant.
func (s *Service) Business(ctx context.Context, restaurantID string) (*BusinessDashboard, error) {
	restaurant, err := s.store.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	summary, err := s.Summary(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	trends, err := s.Trends(ctx, restaurantID, businessTrendDays)
	if err != nil {
		return nil, err
	}
	recent, err := s.RecentReviews(ctx, restaurantID, businessRecent, "all")
	if err != nil {
		return nil, err
	}
	insights, err := s.Insights(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	monthly, err := s.Trends(ctx, restaurantID, 30)
	if err != nil {
		return nil, err
	}

	return &BusinessDashboard{
		Business:      restaurant,
		Summary:       summary,
		Trends:        trends,
		RecentReviews: recent.Reviews,
		Insights: BusinessInsights{
			Insights:     *insights,
			RiskLevel:    RiskLevel(summary.FakeReviewPercentage),
			MonthlyTrend: monthly.AverageRatingTrend.Trend,
		},
	}, nil
}
