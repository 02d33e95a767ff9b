package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/meinhoongagan/spa-app/config"
	"github.com/meinhoongagan/spa-app/controllers"
	"github.com/meinhoongagan/spa-app/middleware"
)

// SetupAuthRoutes configures all authentication related routes
func SetupAuthRoutes(app *fiber.App) {
	cfg := config.Get()
	limiter := middleware.NewRateLimiter(cfg.LoginRate, cfg.LoginBurst)

	auth := app.Group("/auth")

	// Public routes
	auth.Post("/register", middleware.RateLimit(limiter), controllers.Register)
	auth.Post("/login", middleware.RateLimit(limiter), controllers.Login)
	auth.Post("/refresh", controllers.RefreshToken)
	auth.Post("/forgot-password", middleware.RateLimit(limiter), controllers.ForgotPassword)
	auth.Post("/reset-password", middleware.RateLimit(limiter), controllers.ResetPassword)

	// Protected routes
	auth.Post("/logout", middleware.Protected(), controllers.Logout)
}
