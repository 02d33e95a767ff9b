package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/meinhoongagan/spa-app/middleware"
	"github.com/meinhoongagan/spa-app/utils"
)

// NewApp builds the Fiber app with every route group mounted. config, db
// and the realtime broker must be initialised first.
func NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "spa-app",
		ErrorHandler: utils.ErrorHandler,
		BodyLimit:    10 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupAuthRoutes(app)
	SetupSessionRoutes(app)
	SetupServiceRoutes(app)
	SetupCustomerRoutes(app)
	SetupAdminRoutes(app)
	SetupProfileRoutes(app)
	SetupTodoRoutes(app)
	return app
}
