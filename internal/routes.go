package internal

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	v1 "visitorstats/api/v1"
	"visitorstats/internal/http"
	"visitorstats/internal/http/middleware"
)

// publicCORSConfig is the permissive CORS setup shared by the tracking
// endpoints, which are called cross-origin from the tracked sites.
var publicCORSConfig = cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization, Referrer, User-Agent, DNT",
}

// MountRoutes wires all endpoints on the fiber app.
func (a *Application) MountRoutes(app *fiber.App) {
	collector := v1.NewHandler(a.DBManager.GetConnection(), a.Logger, a.Config, a.Recorder)
	admin := http.NewHandler(a.DBManager.GetConnection(), a.Logger, a.Config)

	app.Get("/health", admin.HealthHandler)

	// Rate limiting would interfere with tests and local development
	conditionalRateLimiter := func(l fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if a.Config.IsProduction() {
				return l(c)
			}
			return c.Next()
		}
	}
	trackingLimiter := limiter.New(limiter.Config{Max: 70})

	public := app.Group("/api/v1", cors.New(publicCORSConfig), conditionalRateLimiter(trackingLimiter))
	public.Post("/visits", collector.CreateVisitHandler)
	public.Post("/behavior", collector.CreateBehaviorHandler)

	adminGroup := app.Group("/admin/api/v1",
		middleware.AdminAPIKeyAuth(a.DBManager.GetConnection(), a.Logger))
	adminGroup.Get("/dashboard", admin.DashboardHandler)
	adminGroup.Get("/export.csv", admin.ExportCSVHandler)
	adminGroup.Get("/settings", admin.GetSettingsHandler)
	adminGroup.Put("/settings", admin.UpdateSettingsHandler)
	adminGroup.Post("/reset", admin.ResetDataHandler)
	adminGroup.Post("/apikey/regenerate", admin.RegenerateAPIKeyHandler)
}
