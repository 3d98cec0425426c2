package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/trustbites/backend/internal/api/handlers"
	"github.com/trustbites/backend/internal/auth"
	"github.com/trustbites/backend/internal/dashboard"
	"github.com/trustbites/backend/internal/ingestion"
	"github.com/trustbites/backend/internal/metrics"
	"github.com/trustbites/backend/internal/middleware/ratelimit"
	"github.com/trustbites/backend/internal/middleware/security"
	"github.com/trustbites/backend/internal/middleware/validation"
	"github.com/trustbites/backend/internal/reviews"
	"github.com/trustbites/backend/pkg/logger"
)

type Deps struct {
	Reviews   *reviews.Service
	Dashboard *dashboard.Service
	Auth      *auth.Service
	Processor *ingestion.Processor
	Places    handlers.PlacesAPI
	// PlacesCache may be nil.
	PlacesCache handlers.PlacesCache
	Store       handlers.ReviewLister
	Health      map[string]handlers.Pinger
	// RateLimiter may be nil to disable limiting.
	RateLimiter *ratelimit.RateLimiter
}

type Options struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	BodyLimit      int
	AllowedOrigins []string
	Development    bool
	SecureCookie   bool
	PlacesCacheTTL time.Duration
	RequestLogging bool
	ServeMetrics   bool
}

// NewApp builds the fiber application with every route mounted.
func NewApp(deps Deps, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		BodyLimit:    opts.BodyLimit,
	})

	app.Use(recover.New())
	if opts.RequestLogging {
		app.Use(fiberlogger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     joinOrigins(opts.AllowedOrigins),
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowMethods:     "GET, POST, OPTIONS",
		AllowCredentials: len(opts.AllowedOrigins) > 0,
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: opts.AllowedOrigins,
		IsDevelopment:  opts.Development,
	}))

	if opts.ServeMetrics {
		app.Get("/metrics", metrics.MetricsHandler())
	}

	healthHandler := handlers.NewHealthHandler(deps.Health)
	restaurantHandler := handlers.NewRestaurantHandler(deps.Places, deps.PlacesCache, opts.PlacesCacheTTL, deps.Reviews, deps.Processor)
	reviewHandler := handlers.NewReviewHandler(deps.Reviews, deps.Store)
	aiHandler := handlers.NewAIHandler(deps.Reviews)
	authHandler := handlers.NewAuthHandler(deps.Auth, opts.SecureCookie)
	dashboardHandler := handlers.NewDashboardHandler(deps.Dashboard, deps.Auth)
	wsHandler := handlers.NewWebSocketHandler(deps.Reviews)

	api := app.Group("/api/v1")

	api.Get("/health", healthHandler.Health)
	api.Get("/ready", healthHandler.Ready)

	if deps.RateLimiter != nil {
		api.Use(deps.RateLimiter.Middleware(ownerKey(deps.Auth)))
	}
	api.Use(validation.Middleware(validation.Config{Logger: logger.Named("validation")}))

	api.Get("/restaurants/search", restaurantHandler.Search)
	api.Get("/restaurants/:placeId", restaurantHandler.Details)
	api.Get("/restaurants/:placeId/reviews", restaurantHandler.AnalyzeReviews)
	api.Post("/restaurants/:placeId/import", restaurantHandler.Import)
	api.Get("/places/autocomplete", restaurantHandler.Autocomplete)

	api.Get("/reviews", reviewHandler.List)
	api.Get("/reviews/analyses", reviewHandler.Analyses)
	api.Post("/reviews", reviewHandler.Submit)

	api.Post("/ai/analyze", aiHandler.Analyze)
	api.Get("/ai/analyze", aiHandler.AnalyzeGet)

	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/logout", authHandler.Logout)
	authGroup.Get("/check", authHandler.Check)

	requireAuth := deps.Auth.RequireAuth()
	dash := api.Group("/dashboard")
	dash.Get("/summary", requireAuth, dashboardHandler.Summary)
	dash.Get("/trends", dashboardHandler.Trends)
	dash.Get("/insights", dashboardHandler.Insights)
	dash.Get("/recent-reviews", dashboardHandler.RecentReviews)

	api.Get("/business/dashboard", requireAuth, dashboardHandler.Business)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/analysis", websocket.New(wsHandler.HandleConnection))

	logger.Debug("Routes mounted", zap.Int("handlers", int(app.HandlersCount())))
	return app
}

// ownerKey rate limits signed-in owners by account instead of IP.
func ownerKey(svc *auth.Service) func(c *fiber.Ctx) string {
	return func(c *fiber.Ctx) string {
		token := c.Cookies(auth.CookieName)
		if token == "" {
			return ""
		}
		claims, err := svc.ParseToken(token)
		if err != nil {
			return ""
		}
		return "owner:" + claims.OwnerID
	}
}

func joinOrigins(origins []string) string {
	if len(origins) == 0 {
		return "*"
	}
	out := origins[0]
	for _, o := range origins[1:] {
		out += ", " + o
	}
	return out
}
