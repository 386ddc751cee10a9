package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"
	"github.com/ortziar/ankora/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // Balance speed vs compression ratio
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 600 requests per minute per IP. Fix ingestion is
	// roughly 1 Hz per device, so a handful of devices behind one NAT
	// must still fit.
	app.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout — fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1 — 15s per-request timeout
	v1 := app.Group("/v1")

	// Catalog
	v1.Get("/sites", timeout.NewWithContext(ListSitesHandler(deps), 15*time.Second))
	v1.Get("/sites/:id", timeout.NewWithContext(GetSiteHandler(deps), 15*time.Second))
	v1.Get("/sites/:id/experiences", timeout.NewWithContext(SiteExperiencesHandler(deps), 15*time.Second))
	v1.Get("/experiences/nearby", timeout.NewWithContext(NearbyExperiencesHandler(deps), 15*time.Second))
	v1.Get("/experiences/:id", timeout.NewWithContext(GetExperienceHandler(deps), 15*time.Second))
	v1.Get("/catalog/stats", timeout.NewWithContext(CatalogStatsHandler(deps), 15*time.Second))

	// Positioning
	v1.Post("/devices/:id/fixes", timeout.NewWithContext(IngestFixHandler(deps), 15*time.Second))
	v1.Post("/devices/:id/fixes/batch", timeout.NewWithContext(BatchFixesHandler(deps), 15*time.Second))
	v1.Get("/devices/:id/position", BestPositionHandler(deps))
	v1.Put("/devices/:id/position/override", SetOverrideHandler(deps))
	v1.Delete("/devices/:id/position/override", ClearOverrideHandler(deps))
	v1.Get("/devices/:id/completions", timeout.NewWithContext(DeviceCompletionsHandler(deps), 15*time.Second))

	// Experience sessions (one per device)
	v1.Post("/sessions", timeout.NewWithContext(OpenSessionHandler(deps), 15*time.Second))
	v1.Get("/sessions/:device", GetSessionHandler(deps))
	v1.Post("/sessions/:device/close", CloseSessionHandler(deps))
	v1.Post("/sessions/:device/placement", PlacementHandler(deps))
	v1.Post("/sessions/:device/content/ready", ContentReadyHandler(deps))
	v1.Post("/sessions/:device/content/error", ContentErrorHandler(deps))
	v1.Post("/sessions/:device/gestures/:kind/claim", ClaimGestureHandler(deps))
	v1.Post("/sessions/:device/gestures/:kind", GestureHandler(deps))

	// Shared elevation state
	v1.Get("/sessions/:device/elevation", GetElevationHandler(deps))
	v1.Put("/sessions/:device/elevation", SetElevationHandler(deps))
	v1.Post("/sessions/:device/elevation/adjust", AdjustElevationHandler(deps))
	v1.Post("/sessions/:device/elevation/reset", ResetElevationHandler(deps))

	// Anchor projection
	v1.Post("/sessions/:device/anchor/project", ProjectAnchorHandler(deps))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
