package validation

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var scriptPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

type Config struct {
	MaxReviewLength int
	MaxNameLength   int
	Logger          *zap.Logger
}

// nameFields are short free-text fields rendered back to other users.
var nameFields = []string{"authorName", "ownerName", "businessName"}

// Middleware rejects malformed JSON bodies, overlong review text and
// markup in name fields before handlers run.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxReviewLength <= 0 {
		cfg.MaxReviewLength = 5000
	}
	if cfg.MaxNameLength <= 0 {
		cfg.MaxNameLength = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		body := c.Body()
		if len(body) == 0 {
			return c.Next()
		}

		if ct := c.Get(fiber.HeaderContentType); ct != "" && !strings.HasPrefix(ct, fiber.MIMEApplicationJSON) {
			return reject(c, fiber.StatusUnsupportedMediaType, "Unsupported content type")
		}

		var req map[string]any
		if err := json.Unmarshal(body, &req); err != nil {
			return reject(c, fiber.StatusBadRequest, "Invalid JSON format")
		}

		if text, ok := req["reviewText"].(string); ok && utf8.RuneCountInString(text) > cfg.MaxReviewLength {
			return reject(c, fiber.StatusBadRequest, "Review text exceeds maximum length")
		}

		for _, field := range nameFields {
			v, ok := req[field].(string)
			if !ok {
				continue
			}
			if utf8.RuneCountInString(v) > cfg.MaxNameLength {
				return reject(c, fiber.StatusBadRequest, field+" exceeds maximum length")
			}
			if scriptPattern.MatchString(v) {
				cfg.Logger.Warn("Markup rejected in request field",
					zap.String("ip", c.IP()),
					zap.String("path", c.Path()),
					zap.String("field", field),
				)
				return reject(c, fiber.StatusBadRequest, "Invalid "+field)
			}
		}

		return c.Next()
	}
}

func reject(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}
