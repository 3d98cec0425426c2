package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/trustbites/backend/internal/reviews"
	"github.com/trustbites/backend/internal/storage/models"
)

const maxListLimit = 200

type ReviewLister interface {
	ListReviews(ctx context.Context, filter models.ReviewFilter) ([]models.Review, error)
	ListAnalysesByRestaurant(ctx context.Context, restaurantID string) ([]models.AnalysisRecord, error)
}

type ReviewHandler struct {
	reviews *reviews.Service
	store   ReviewLister
}

func NewReviewHandler(svc *reviews.Service, store ReviewLister) *ReviewHandler {
	return &ReviewHandler{reviews: svc, store: store}
}

// List returns stored reviews, optionally narrowed by restaurantId, status,
// fake=true|false and days.
func (h *ReviewHandler) List(c *fiber.Ctx) error {
	filter := models.ReviewFilter{
		RestaurantID: c.Query("restaurantId"),
		Limit:        c.QueryInt("limit", 50),
	}
	if filter.Limit <= 0 || filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	switch status := c.Query("status"); status {
	case "":
	case models.ReviewStatusPending, models.ReviewStatusAnalyzed:
		filter.Status = status
	default:
		return fail(c, fiber.StatusBadRequest, "status must be pending or analyzed")
	}

	switch c.Query("fake") {
	case "true":
		fake := true
		filter.Fake = &fake
	case "false":
		fake := false
		filter.Fake = &fake
	}

	if days := c.QueryInt("days", 0); days > 0 {
		filter.Since = time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	}

	list, err := h.store.ListReviews(c.UserContext(), filter)
	if err != nil {
		return failFrom(c, err, "Failed to fetch reviews")
	}
	if list == nil {
		list = []models.Review{}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"reviews": list,
		"count":   len(list),
	})
}

// Analyses returns the analysis history of a restaurant, newest first.
func (h *ReviewHandler) Analyses(c *fiber.Ctx) error {
	restaurantID := c.Query("restaurantId")
	if restaurantID == "" {
		return fail(c, fiber.StatusBadRequest, "restaurantId parameter is required")
	}

	records, err := h.store.ListAnalysesByRestaurant(c.UserContext(), restaurantID)
	if err != nil {
		return failFrom(c, err, "Failed to fetch analyses")
	}
	if records == nil {
		records = []models.AnalysisRecord{}
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"analyses": records,
		"count":    len(records),
	})
}

func (h *ReviewHandler) Submit(c *fiber.Ctx) error {
	var req struct {
		reviews.SubmitInput
		ModelID string `json:"modelId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	result, err := h.reviews.Submit(c.UserContext(), req.SubmitInput, req.ModelID)
	if err != nil {
		return failFrom(c, err, "Failed to process review")
	}

	status := fiber.StatusCreated
	if !result.Persisted {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"success":   true,
		"review":    result.Review,
		"analysis":  result.Analysis,
		"source":    result.Source,
		"cached":    result.Cached,
		"persisted": result.Persisted,
		"warning":   result.Warning,
	})
}
