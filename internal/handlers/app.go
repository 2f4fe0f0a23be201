package handlers

import (
	"time"

	"fontbox/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

// AppOptions configures the Fiber app.
type AppOptions struct {
	BodyLimit int       // Bytes; larger bodies are rejected before reaching a handler
	Health    fiber.Map // Extra fields for GET /health
	Logger    *zap.Logger
}

// NewApp builds the Fiber app with middleware and every route registered.
func NewApp(fonts *FontHandler, groups *FontGroupHandler, opts AppOptions) *fiber.App {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "fontbox",
		BodyLimit:             opts.BodyLimit,
		ErrorHandler:          ErrorHandler(logger, fonts.service.MaxFileSize()),
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(logger))
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		body := fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		}
		for k, v := range opts.Health {
			body[k] = v
		}
		return c.JSON(body)
	})

	fonts.RegisterRoutes(app)
	groups.RegisterRoutes(app)
	return app
}
