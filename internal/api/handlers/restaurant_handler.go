package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/trustbites/backend/internal/ingestion"
	"github.com/trustbites/backend/internal/places"
	"github.com/trustbites/backend/internal/reviews"
	"github.com/trustbites/backend/pkg/logger"
)

const (
	defaultRadius = 1000
	maxRadius     = 50000
	searchLimit   = 20
)

type PlacesAPI interface {
	Geocode(ctx context.Context, address string) (places.LatLng, error)
	NearbySearch(ctx context.Context, loc places.LatLng, radius int) ([]places.Place, error)
	Details(ctx context.Context, placeID string) (*places.PlaceDetails, error)
	Autocomplete(ctx context.Context, input string) ([]places.Prediction, error)
}

// PlacesCache stores places API responses between requests.
type PlacesCache interface {
	GetPlaces(ctx context.Context, key string, out any) (bool, error)
	SetPlaces(ctx context.Context, key string, value any, ttl time.Duration) error
}

type RestaurantHandler struct {
	places    PlacesAPI
	cache     PlacesCache
	cacheTTL  time.Duration
	reviews   *reviews.Service
	processor *ingestion.Processor
}

// NewRestaurantHandler wires the places endpoints. cache may be nil.
func NewRestaurantHandler(api PlacesAPI, cache PlacesCache, cacheTTL time.Duration, svc *reviews.Service, processor *ingestion.Processor) *RestaurantHandler {
	return &RestaurantHandler{
		places:    api,
		cache:     cache,
		cacheTTL:  cacheTTL,
		reviews:   svc,
		processor: processor,
	}
}

type searchLocation struct {
	Query       string        `json:"query"`
	Coordinates places.LatLng `json:"coordinates"`
}

type searchResult struct {
	Location    searchLocation `json:"location"`
	Restaurants []places.Place `json:"restaurants"`
	Total       int            `json:"total"`
}

func (h *RestaurantHandler) Search(c *fiber.Ctx) error {
	location := strings.TrimSpace(c.Query("location"))
	latRaw, lngRaw := c.Query("lat"), c.Query("lng")
	if location == "" && (latRaw == "" || lngRaw == "") {
		return fail(c, fiber.StatusBadRequest, "Location parameter or coordinates are required")
	}

	radius := c.QueryInt("radius", defaultRadius)
	if radius <= 0 || radius > maxRadius {
		return fail(c, fiber.StatusBadRequest, fmt.Sprintf("Radius must be between 1 and %d", maxRadius))
	}

	ctx := c.UserContext()
	result := searchResult{Location: searchLocation{Query: location}}

	if latRaw != "" && lngRaw != "" {
		lat, errLat := strconv.ParseFloat(latRaw, 64)
		lng, errLng := strconv.ParseFloat(lngRaw, 64)
		if errLat != nil || errLng != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid coordinates")
		}
		result.Location.Coordinates = places.LatLng{Lat: lat, Lng: lng}
		if location == "" {
			result.Location.Query = "Current Location"
		}
	} else {
		loc, err := h.geocode(ctx, location)
		if err != nil {
			return failFrom(c, err, "Failed to search restaurants")
		}
		result.Location.Coordinates = loc
	}

	found, err := h.nearby(ctx, result.Location.Coordinates, radius)
	if err != nil {
		return failFrom(c, err, "Failed to search restaurants")
	}

	if maxPrice, ok := places.ParseMaxPrice(c.Query("maxPrice")); ok {
		found = places.FilterByPriceLevel(found, maxPrice)
	}

	result.Total = len(found)
	if len(found) > searchLimit {
		found = found[:searchLimit]
	}
	result.Restaurants = found

	return c.JSON(fiber.Map{
		"success":      true,
		"location":     result.Location,
		"restaurants":  result.Restaurants,
		"total":        result.Total,
		"priceSummary": places.AveragePriceLevel(found),
		"priceBuckets": places.PriceDistribution(found),
	})
}

func (h *RestaurantHandler) geocode(ctx context.Context, address string) (places.LatLng, error) {
	key := "geocode:" + strings.ToLower(address)
	var loc places.LatLng
	if h.cached(ctx, key, &loc) {
		return loc, nil
	}

	loc, err := h.places.Geocode(ctx, address)
	if err != nil {
		return places.LatLng{}, err
	}
	h.store(ctx, key, loc)
	return loc, nil
}

func (h *RestaurantHandler) nearby(ctx context.Context, loc places.LatLng, radius int) ([]places.Place, error) {
	key := fmt.Sprintf("nearby:%.5f,%.5f:%d", loc.Lat, loc.Lng, radius)
	var found []places.Place
	if h.cached(ctx, key, &found) {
		return found, nil
	}

	found, err := h.places.NearbySearch(ctx, loc, radius)
	if err != nil {
		return nil, err
	}
	h.store(ctx, key, found)
	return found, nil
}

func (h *RestaurantHandler) cached(ctx context.Context, key string, out any) bool {
	if h.cache == nil {
		return false
	}
	found, err := h.cache.GetPlaces(ctx, key, out)
	if err != nil {
		logger.Warn("Places cache lookup failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return found
}

func (h *RestaurantHandler) store(ctx context.Context, key string, value any) {
	if h.cache == nil {
		return
	}
	if err := h.cache.SetPlaces(ctx, key, value, h.cacheTTL); err != nil {
		logger.Warn("Failed to cache places response", zap.String("key", key), zap.Error(err))
	}
}

type placeReviewView struct {
	ReviewID                string `json:"reviewId"`
	RestaurantPlaceID       string `json:"restaurantPlaceId"`
	AuthorName              string `json:"authorName"`
	AuthorURL               string `json:"authorUrl,omitempty"`
	ProfilePhotoURL         string `json:"profilePhotoUrl,omitempty"`
	ReviewText              string `json:"reviewText"`
	Rating                  int    `json:"rating"`
	ReviewDate              string `json:"reviewDate"`
	Language                string `json:"language"`
	RelativeTimeDescription string `json:"relativeTimeDescription,omitempty"`
	Source                  string `json:"source"`
}

func (h *RestaurantHandler) Details(c *fiber.Ctx) error {
	placeID := c.Params("placeId")
	if placeID == "" {
		return fail(c, fiber.StatusBadRequest, "placeId is required")
	}

	details, err := h.places.Details(c.UserContext(), placeID)
	if err != nil {
		return failFrom(c, err, "Failed to fetch restaurant details")
	}

	views := make([]placeReviewView, 0, len(details.Reviews))
	for _, r := range details.Reviews {
		lang := r.Language
		if lang == "" {
			lang = "en"
		}
		views = append(views, placeReviewView{
			ReviewID:                r.ID(),
			RestaurantPlaceID:       placeID,
			AuthorName:              r.AuthorName,
			AuthorURL:               r.AuthorURL,
			ProfilePhotoURL:         r.ProfilePhotoURL,
			ReviewText:              r.Text,
			Rating:                  r.Rating,
			ReviewDate:              r.Date().Format(time.RFC3339),
			Language:                lang,
			RelativeTimeDescription: r.RelativeTimeDescription,
			Source:                  "google_places",
		})
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"restaurant":   details,
		"reviews":      views,
		"totalReviews": len(views),
		"lastUpdated":  time.Now().UTC().Format(time.RFC3339),
	})
}

// AnalyzeReviews classifies every review of a place and returns its trust score.
func (h *RestaurantHandler) AnalyzeReviews(c *fiber.Ctx) error {
	placeID := c.Params("placeId")
	result, err := h.reviews.AnalyzeRestaurant(c.UserContext(), placeID, c.Query("modelId"), nil)
	if err != nil {
		return failFrom(c, err, "Failed to fetch reviews")
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"analysis": result,
	})
}

// Import stores a place's reviews as pending for batch analysis.
func (h *RestaurantHandler) Import(c *fiber.Ctx) error {
	placeID := c.Params("placeId")
	result, err := h.processor.ImportPlaceReviews(c.UserContext(), placeID)
	if err != nil {
		return failFrom(c, err, "Failed to import reviews")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

func (h *RestaurantHandler) Autocomplete(c *fiber.Ctx) error {
	input := strings.TrimSpace(c.Query("input"))
	if input == "" {
		return fail(c, fiber.StatusBadRequest, "Input is required")
	}

	predictions, err := h.places.Autocomplete(c.UserContext(), input)
	if err != nil {
		return failFrom(c, err, "Failed to fetch suggestions")
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"predictions": predictions,
	})
}
