package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/meinhoongagan/spa-app/controllers/customer"
	"github.com/meinhoongagan/spa-app/middleware"
)

// SetupCustomerRoutes configures the caller's own registrations
func SetupCustomerRoutes(app *fiber.App) {
	regs := app.Group("/registrations", middleware.Protected(), middleware.ResolveSession())
	own := middleware.RequirePermission("registrations", "read_own")

	regs.Get("/", own, customer.GetMyRegistrations)
	regs.Get("/stream", own, customer.StreamMyRegistrations)
	regs.Get("/:id", own, customer.GetMyRegistration)
	regs.Delete("/:id", middleware.RequirePermission("registrations", "cancel_own"), customer.CancelRegistration)
}
