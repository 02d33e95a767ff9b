package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/meinhoongagan/spa-app/controllers"
	"github.com/meinhoongagan/spa-app/middleware"
)

// SetupSessionRoutes exposes the resolved session. Anonymous callers get the
// unauthenticated stack.
func SetupSessionRoutes(app *fiber.App) {
	s := app.Group("/session", middleware.OptionalAuth(), middleware.ResolveSession())
	s.Get("/", controllers.GetSession)
	s.Get("/stream", controllers.StreamSession)
	s.Get("/screens/:screen", controllers.CheckScreen)
}
