package security

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type HeadersConfig struct {
	AllowedOrigins []string
	IsDevelopment  bool
}

// mapsOrigins serve the map tiles and place photos the UI embeds.
var mapsOrigins = []string{
	"https://maps.googleapis.com",
	"https://maps.gstatic.com",
}

func HeadersMiddleware(cfg HeadersConfig) fiber.Handler {
	connect := append([]string{"'self'"}, cfg.AllowedOrigins...)
	connect = append(connect, mapsOrigins...)

	csp := strings.Join([]string{
		"default-src 'self'",
		"img-src 'self' data: https:",
		"style-src 'self' 'unsafe-inline'",
		"script-src 'self' " + strings.Join(mapsOrigins, " "),
		"connect-src " + strings.Join(connect, " "),
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action 'self'",
	}, "; ")

	return func(c *fiber.Ctx) error {
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(self)")
		c.Set("Content-Security-Policy", csp)

		if !cfg.IsDevelopment {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		return c.Next()
	}
}
