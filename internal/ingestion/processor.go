package ingestion

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/trustbites/backend/internal/places"
	"github.com/trustbites/backend/internal/storage/models"
	"github.com/trustbites/backend/pkg/logger"
	"github.com/trustbites/backend/pkg/utils"
)

type PlaceSource interface {
	Details(ctx context.Context, placeID string) (*places.PlaceDetails, error)
}

type Store interface {
	UpsertRestaurant(ctx context.Context, r *models.Restaurant) error
	InsertReview(ctx context.Context, r *models.Review) (bool, error)
}

// Processor imports places reviews into the store as pending reviews.
type Processor struct {
	source PlaceSource
	store  Store
}

func NewProcessor(source PlaceSource, store Store) *Processor {
	return &Processor{source: source, store: store}
}

type ImportResult struct {
	RestaurantID string `json:"restaurantId"`
	Name         string `json:"name"`
	Imported     int    `json:"imported"`
	Skipped      int    `json:"skipped"`
}

func (p *Processor) ImportPlaceReviews(ctx context.Context, placeID string) (*ImportResult, error) {
	logger.Info("Importing place reviews", zap.String("place_id", placeID))

	details, err := p.source.Details(ctx, placeID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch place details: %w", err)
	}

	restaurant := RestaurantFromPlace(details)
	if err := p.store.UpsertRestaurant(ctx, restaurant); err != nil {
		return nil, fmt.Errorf("failed to store restaurant: %w", err)
	}

	result := &ImportResult{RestaurantID: restaurant.ID, Name: restaurant.Name}
	for _, pr := range details.Reviews {
		review := ReviewFromPlace(restaurant.ID, pr)
		if review.ReviewText == "" {
			result.Skipped++
			continue
		}

		inserted, err := p.store.InsertReview(ctx, review)
		if err != nil {
			return result, fmt.Errorf("failed to store review %s: %w", review.ID, err)
		}
		if inserted {
			result.Imported++
		} else {
			result.Skipped++
		}
	}

	logger.Info("Place reviews imported",
		zap.String("restaurant_id", restaurant.ID),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
	)

	return result, nil
}

func RestaurantFromPlace(d *places.PlaceDetails) *models.Restaurant {
	return &models.Restaurant{
		ID:           d.PlaceID,
		Name:         d.Name,
		Address:      d.Address,
		Lat:          d.Location.Lat,
		Lng:          d.Location.Lng,
		Rating:       d.Rating,
		TotalReviews: d.TotalReviews,
		PriceLevel:   d.PriceLevel,
		Cuisine:      d.Cuisine,
	}
}

// ReviewFromPlace converts a places review into a pending stored review.
func ReviewFromPlace(restaurantID string, pr places.PlaceReview) *models.Review {
	text := SanitizeText(pr.Text)
	author := strings.TrimSpace(pr.AuthorName)
	if author == "" {
		author = "Anonymous"
	}

	return &models.Review{
		ID:           pr.ID(),
		RestaurantID: restaurantID,
		ReviewText:   text,
		Rating:       pr.Rating,
		Language:     pr.Language,
		AuthorName:   author,
		ReviewDate:   pr.Date(),
		Source:       models.ReviewSourcePlaces,
		Status:       models.ReviewStatusPending,
		ReviewHash:   utils.ContentHash(text, pr.Rating, author),
		Reasons:      []string{},
		CreatedAt:    time.Now(),
	}
}

var spaces = regexp.MustCompile(`\s+`)

// SanitizeText strips markup from review text and collapses whitespace.
func SanitizeText(raw string) string {
	if !strings.ContainsAny(raw, "<&") {
		return strings.TrimSpace(spaces.ReplaceAllString(raw, " "))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(spaces.ReplaceAllString(raw, " "))
	}

	doc.Find("script, style").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})
	doc.Find("br, p, div, li").Each(func(i int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	text := doc.Text()
	return strings.TrimSpace(spaces.ReplaceAllString(text, " "))
}
