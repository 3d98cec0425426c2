package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/trustbites/backend/internal/auth"
	"github.com/trustbites/backend/internal/storage/models"
	"github.com/trustbites/backend/pkg/logger"
)

type AuthHandler struct {
	auth         *auth.Service
	secureCookie bool
}

func NewAuthHandler(svc *auth.Service, secureCookie bool) *AuthHandler {
	return &AuthHandler{auth: svc, secureCookie: secureCookie}
}

func ownerView(o *models.BusinessOwner) fiber.Map {
	return fiber.Map{
		"ownerId":      o.ID,
		"email":        o.Email,
		"ownerName":    o.OwnerName,
		"businessName": o.BusinessName,
		"restaurantId": o.RestaurantID,
	}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in auth.RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	owner, err := h.auth.Register(c.UserContext(), in)
	if err != nil {
		return failFrom(c, err, "Registration failed. Please try again.")
	}

	logger.Info("Business owner registered", zap.String("owner_id", owner.ID))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Business owner registered successfully",
		"owner":   ownerView(owner),
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	owner, token, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return fail(c, fiber.StatusUnauthorized, "Invalid email or password")
	}
	if err != nil {
		return failFrom(c, err, "Login failed. Please try again.")
	}

	auth.SetCookie(c, token, h.auth.TokenTTL(), h.secureCookie)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Login successful",
		"owner":   ownerView(owner),
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	auth.ClearCookie(c, h.secureCookie)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out",
	})
}

func (h *AuthHandler) Check(c *fiber.Ctx) error {
	token := c.Cookies(auth.CookieName)
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"authenticated": false})
	}
	claims, err := h.auth.ParseToken(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"authenticated": false})
	}

	return c.JSON(fiber.Map{
		"authenticated": true,
		"user": fiber.Map{
			"ownerId":      claims.OwnerID,
			"email":        claims.Email,
			"ownerName":    claims.OwnerName,
			"businessName": claims.BusinessName,
		},
	})
}
