package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/meinhoongagan/spa-app/controllers"
	"github.com/meinhoongagan/spa-app/middleware"
)

// SetupProfileRoutes needs a signed-in caller only; callers without a user
// record still see a placeholder profile and can fill it in
func SetupProfileRoutes(app *fiber.App) {
	profile := app.Group("/profile", middleware.Protected(), middleware.ResolveSession())
	profile.Get("/", controllers.GetProfile)
	profile.Patch("/", controllers.UpdateProfile)
	profile.Post("/avatar", controllers.UploadAvatar)
	profile.Post("/password", controllers.ChangePassword)
}
