package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/meinhoongagan/spa-app/controllers"
	"github.com/meinhoongagan/spa-app/controllers/customer"
	"github.com/meinhoongagan/spa-app/middleware"
)

func SetupServiceRoutes(app *fiber.App) {
	service := app.Group("/services", middleware.Protected(), middleware.ResolveSession())
	read := middleware.RequirePermission("services", "read")

	service.Get("/", read, controllers.GetAllServices)
	service.Get("/featured", read, controllers.GetFeaturedServices)
	service.Get("/stream", read, controllers.StreamServices)
	service.Get("/:id", read, controllers.GetService)
	service.Post("/", middleware.RequirePermission("services", "create"), controllers.CreateService)
	service.Put("/:id", middleware.RequirePermission("services", "update"), controllers.UpdateService)
	service.Delete("/:id", middleware.RequirePermission("services", "delete"), controllers.DeleteService)

	service.Post("/:id/registrations", middleware.RequirePermission("registrations", "create"), customer.CreateRegistration)
}
