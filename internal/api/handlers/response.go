package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/trustbites/backend/internal/auth"
	"github.com/trustbites/backend/internal/places"
	"github.com/trustbites/backend/internal/reviews"
	"github.com/trustbites/backend/internal/storage/sqlite"
	"github.com/trustbites/backend/pkg/logger"
)

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}

// failFrom maps a service error onto a response. Unexpected errors are
// logged and hidden behind fallbackMsg.
func failFrom(c *fiber.Ctx, err error, fallbackMsg string) error {
	var (
		reviewInput *reviews.InputError
		authInput   *auth.InputError
		apiErr      *places.APIError
	)

	switch {
	case errors.As(err, &reviewInput):
		return fail(c, fiber.StatusBadRequest, reviewInput.Message)
	case errors.As(err, &authInput):
		return fail(c, fiber.StatusBadRequest, authInput.Message)
	case errors.Is(err, sqlite.ErrNotFound):
		return fail(c, fiber.StatusNotFound, "Not found")
	case errors.Is(err, places.ErrNotConfigured):
		return fail(c, fiber.StatusServiceUnavailable, "Places API not configured")
	case errors.As(err, &apiErr) && apiErr.NotFound():
		return fail(c, fiber.StatusNotFound, "Place not found")
	case errors.As(err, &apiErr):
		logger.Error("Places API error", zap.String("endpoint", apiErr.Endpoint), zap.String("status", apiErr.Status))
		return fail(c, fiber.StatusBadGateway, "Places API error: "+apiErr.Status)
	}

	logger.Error(fallbackMsg, zap.String("path", c.Path()), zap.Error(err))
	return fail(c, fiber.StatusInternalServerError, fallbackMsg)
}
