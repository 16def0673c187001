package routes

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/kippnorcal/zoom/internal/config"
	"github.com/kippnorcal/zoom/internal/handlers"
	"github.com/kippnorcal/zoom/internal/middleware"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	healthHandler *handlers.HealthHandler,
	runHandler *handlers.RunHandler,
) {
	api := app.Group("/api")

	api.Use(perIPPerMinute(60))

	api.Get("/health", healthHandler.Check)

	api.Get("/runs", runHandler.List)
	api.Get("/runs/:id", runHandler.Get)

	if cfg.AdminJWTSecret == "" {
		slog.Warn("ADMIN_JWT_SECRET is not set, manual run trigger disabled")
		return
	}
	api.Post("/runs", middleware.JWTProtected(cfg.AdminJWTSecret), perIPPerMinute(5), runHandler.Trigger)
}

// perIPPerMinute is a sliding-window limiter keyed on the client address.
func perIPPerMinute(n int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               n,
		Expiration:        time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})
}
