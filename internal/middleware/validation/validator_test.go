package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestMiddleware(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Use(Middleware(Config{MaxReviewLength: 20, MaxNameLength: 10}))
	app.Post("/reviews", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusCreated) })
	app.Get("/reviews", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	cases := []struct {
		name        string
		method      string
		body        string
		contentType string
		want        int
	}{
		{"valid", "POST", `{"reviewText":"Sedap","authorName":"Ali"}`, "application/json", fiber.StatusCreated},
		{"charset suffix", "POST", `{"reviewText":"Sedap"}`, "application/json; charset=utf-8", fiber.StatusCreated},
		{"empty body", "POST", ``, "", fiber.StatusCreated},
		{"get ignored", "GET", ``, "", fiber.StatusOK},
		{"bad json", "POST", `{"reviewText":`, "application/json", fiber.StatusBadRequest},
		{"form body", "POST", `reviewText=x`, "application/x-www-form-urlencoded", fiber.StatusUnsupportedMediaType},
		{"long review", "POST", `{"reviewText":"` + strings.Repeat("a", 21) + `"}`, "application/json", fiber.StatusBadRequest},
		{"multibyte review within limit", "POST", `{"reviewText":"` + strings.Repeat("é", 20) + `"}`, "application/json", fiber.StatusCreated},
		{"long name", "POST", `{"ownerName":"` + strings.Repeat("b", 11) + `"}`, "application/json", fiber.StatusBadRequest},
		{"script in name", "POST", `{"authorName":"<script>"}`, "application/json", fiber.StatusBadRequest},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, "/reviews", strings.NewReader(tc.body))
		if tc.contentType != "" {
			req.Header.Set("Content-Type", tc.contentType)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s: app.Test: %v", tc.name, err)
		}
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: status %d, want %d", tc.name, resp.StatusCode, tc.want)
		}
	}
}
