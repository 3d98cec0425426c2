package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/trustbites/backend/internal/reviews"
)

type AIHandler struct {
	reviews *reviews.Service
}

func NewAIHandler(svc *reviews.Service) *AIHandler {
	return &AIHandler{reviews: svc}
}

// Analyze runs analyze-single for one review or analyze-pending for the
// whole backlog. An empty action means analyze-pending.
func (h *AIHandler) Analyze(c *fiber.Ctx) error {
	var req struct {
		Action   string `json:"action"`
		ReviewID string `json:"reviewId"`
		ModelID  string `json:"modelId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	switch {
	case req.Action == "analyze-single":
		if req.ReviewID == "" {
			return fail(c, fiber.StatusBadRequest, "reviewId is required for analyze-single")
		}
		return h.single(c, req.ReviewID, req.ModelID, false)

	case req.Action == "analyze-pending" || req.Action == "":
		model := h.reviews.ResolveModel(req.ModelID)
		result, err := h.reviews.AnalyzePending(c.UserContext(), model)
		if err != nil {
			return failFrom(c, err, "Failed to process AI analysis request")
		}
		return c.JSON(fiber.Map{
			"success": true,
			"data": fiber.Map{
				"processed": result.Processed,
				"errors":    result.Errors,
				"modelUsed": model,
				"message":   fmt.Sprintf("Successfully processed %d reviews with %d errors", result.Processed, result.Errors),
			},
		})

	default:
		return fail(c, fiber.StatusBadRequest, `Invalid action. Use "analyze-single" or "analyze-pending"`)
	}
}

func (h *AIHandler) AnalyzeGet(c *fiber.Ctx) error {
	reviewID := c.Query("reviewId")
	if reviewID == "" {
		return fail(c, fiber.StatusBadRequest, "reviewId parameter is required")
	}
	return h.single(c, reviewID, c.Query("modelId"), true)
}

func (h *AIHandler) single(c *fiber.Ctx, reviewID, modelID string, listModels bool) error {
	model := h.reviews.ResolveModel(modelID)
	analysis, source, err := h.reviews.AnalyzeSingle(c.UserContext(), reviewID, model)
	if err != nil && analysis == nil {
		return failFrom(c, err, "Failed to analyze review")
	}

	data := fiber.Map{
		"reviewId":  reviewID,
		"analysis":  analysis,
		"source":    source,
		"modelUsed": model,
		"persisted": err == nil,
	}
	if listModels {
		data["availableModels"] = h.reviews.Models()
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}
