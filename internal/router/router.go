package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/kelas-go-api/internal/config"
	"github.com/noah-isme/kelas-go-api/internal/handler"
	"github.com/noah-isme/kelas-go-api/internal/middleware"
	"github.com/noah-isme/kelas-go-api/internal/models"
	"github.com/noah-isme/kelas-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler *handler.SubmissionHandler
	GradingHandler    *handler.GradingHandler
	AnalyticsHandler  *handler.AnalyticsHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.SubmissionHandler != nil {
		assignments := api.Group("/assignments", jwtMiddleware, middleware.RateLimit("submissions", 60, time.Minute))
		deps.SubmissionHandler.RegisterAssignmentRoutes(assignments)

		submissions := api.Group("/submissions", jwtMiddleware)
		deps.SubmissionHandler.RegisterSubmissionRoutes(submissions)

		if deps.GradingHandler != nil {
			deps.GradingHandler.Register(submissions)
		}
	}

	if deps.AnalyticsHandler != nil {
		courses := api.Group("/courses", jwtMiddleware, middleware.RequireRole(models.RoleTeacher))
		deps.AnalyticsHandler.Register(courses)
	}
}
