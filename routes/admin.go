package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/meinhoongagan/spa-app/controllers/admin"
	"github.com/meinhoongagan/spa-app/middleware"
	"github.com/meinhoongagan/spa-app/models"
)

// SetupAdminRoutes configures registration management
func SetupAdminRoutes(app *fiber.App) {
	group := app.Group("/admin", middleware.Protected(), middleware.ResolveSession(), middleware.RequireRole(models.RoleAdmin))
	readAll := middleware.RequirePermission("registrations", "read_all")

	group.Get("/registrations", readAll, admin.GetAllRegistrations)
	group.Get("/registrations/stream", readAll, admin.StreamAllRegistrations)
	group.Get("/registrations/:id", readAll, admin.GetRegistration)
	group.Patch("/registrations/:id/status", middleware.RequirePermission("registrations", "update_status"), admin.UpdateRegistrationStatus)
}
