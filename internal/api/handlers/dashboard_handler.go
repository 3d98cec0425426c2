package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/trustbites/backend/internal/auth"
	"github.com/trustbites/backend/internal/dashboard"
	"github.com/trustbites/backend/internal/storage/sqlite"
)

type DashboardHandler struct {
	dashboard *dashboard.Service
	auth      *auth.Service
}

func NewDashboardHandler(svc *dashboard.Service, authSvc *auth.Service) *DashboardHandler {
	return &DashboardHandler{dashboard: svc, auth: authSvc}
}

func (h *DashboardHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.dashboard.Summary(c.UserContext(), c.Query("restaurantId"))
	if err != nil {
		return failFrom(c, err, "Failed to fetch dashboard summary")
	}
	return c.JSON(fiber.Map{"success": true, "data": summary})
}

func (h *DashboardHandler) Trends(c *fiber.Ctx) error {
	period := c.QueryInt("period", 30)
	if period <= 0 || period > 365 {
		return fail(c, fiber.StatusBadRequest, "period must be between 1 and 365 days")
	}

	trends, err := h.dashboard.Trends(c.UserContext(), c.Query("restaurantId"), period)
	if err != nil {
		return failFrom(c, err, "Failed to fetch trends")
	}
	return c.JSON(fiber.Map{"success": true, "data": trends})
}

func (h *DashboardHandler) Insights(c *fiber.Ctx) error {
	insights, err := h.dashboard.Insights(c.UserContext(), c.Query("restaurantId"))
	if err != nil {
		return failFrom(c, err, "Failed to fetch insights")
	}
	return c.JSON(fiber.Map{"success": true, "data": insights})
}

func (h *DashboardHandler) RecentReviews(c *fiber.Ctx) error {
	recent, err := h.dashboard.RecentReviews(c.UserContext(), c.Query("restaurantId"), c.QueryInt("limit", 20), c.Query("filter", "all"))
	if err != nil {
		return failFrom(c, err, "Failed to fetch recent reviews")
	}
	return c.JSON(fiber.Map{"success": true, "data": recent})
}

// Business serves the dashboard of the signed-in owner's restaurant.
func (h *DashboardHandler) Business(c *fiber.Ctx) error {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "Authentication required")
	}

	owner, err := h.auth.Owner(c.UserContext(), claims)
	if errors.Is(err, sqlite.ErrNotFound) {
		return fail(c, fiber.StatusUnauthorized, "Account no longer exists")
	}
	if err != nil {
		return failFrom(c, err, "Failed to load account")
	}
	if owner.RestaurantID == "" {
		return fail(c, fiber.StatusNotFound, "No restaurant linked to this account")
	}

	board, err := h.dashboard.Business(c.UserContext(), owner.RestaurantID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return fail(c, fiber.StatusNotFound, "Business not found")
	}
	if err != nil {
		return failFrom(c, err, "Failed to fetch business dashboard")
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"business":      board.Business,
		"summary":       board.Summary,
		"trends":        board.Trends,
		"recentReviews": board.RecentReviews,
		"insights":      board.Insights,
	})
}
