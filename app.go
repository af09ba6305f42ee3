package main

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/yourusername/footprint/handlers"
	"github.com/yourusername/footprint/middleware"
	"github.com/yourusername/footprint/models"
	"github.com/yourusername/footprint/services"
)

// appDeps is everything the HTTP layer needs. Optional parts are nil when
// they are not configured.
type appDeps struct {
	analyzer   handlers.ReportAnalyzer
	prober     handlers.MediaProbe
	reports    models.ReportRepositoryInterface
	archiveDir string
	limiter    *services.RateLimiter
	provider   string
	pingDB     bool
	quiet      bool
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// preflightOK answers CORS preflights with 200 instead of 204; some embedded
// browsers treat 204 on OPTIONS as a failure.
func preflightOK(c *fiber.Ctx) error {
	err := c.Next()
	if c.Method() == fiber.MethodOptions && c.Response().StatusCode() == fiber.StatusNoContent {
		c.Status(fiber.StatusOK)
	}
	return err
}

func newApp(d appDeps) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             10 * 1024 * 1024,
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: d.quiet,
	})

	if !d.quiet {
		app.Use(logger.New())
	}
	app.Use(preflightOK)
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "POST, GET, OPTIONS",
		AllowHeaders: "Content-Type, Authorization",
	}))
	app.Use(compress.New())
	app.Use(services.NewSecurityHeaders(nil).Middleware())

	limit := func(h fiber.Handler) []fiber.Handler {
		if d.limiter == nil {
			return []fiber.Handler{h}
		}
		return []fiber.Handler{d.limiter.Middleware(), h}
	}

	healthHandler := handlers.NewHealthHandler(d.provider, d.reports != nil, d.limiter)
	analyzeHandler := handlers.NewAnalyzeHandler(d.analyzer)
	sniffHandler := handlers.NewSniffHandler(d.prober)

	app.Get("/healthz", healthHandler.Health)

	api := app.Group("/api")

	api.Options("/analyze", analyzeHandler.Preflight)
	api.Post("/analyze", limit(analyzeHandler.Analyze)...)
	api.Get("/sniff", limit(sniffHandler.SniffURL)...)
	api.Post("/sniff", limit(sniffHandler.SniffUpload)...)

	// History
	if d.reports != nil {
		reportHandler := handlers.NewReportHandler(d.reports)
		guards := []fiber.Handler{middleware.Protected()}
		if d.pingDB {
			guards = append(guards, middleware.DBPing())
		}
		api.Get("/reports", append(guards, reportHandler.List)...)
		api.Get("/reports/:id", append(guards, reportHandler.Get)...)
	}

	if d.archiveDir != "" {
		app.Use("/archive", middleware.Protected())
		app.Static("/archive", d.archiveDir, fiber.Static{
			CacheDuration: 5 * time.Minute,
		})
	}

	app.Use(func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/api") {
			return fiber.ErrNotFound
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not Found"})
	})

	return app
}
