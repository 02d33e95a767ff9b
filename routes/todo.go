package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/meinhoongagan/spa-app/controllers"
	"github.com/meinhoongagan/spa-app/middleware"
)

func SetupTodoRoutes(app *fiber.App) {
	todos := app.Group("/todos", middleware.Protected(), middleware.ResolveSession(), middleware.RequirePermission("todos", "manage"))
	todos.Get("/", controllers.GetTodos)
	todos.Post("/", controllers.CreateTodo)
	todos.Get("/stream", controllers.StreamTodos)
	todos.Patch("/:id", controllers.UpdateTodo)
	todos.Post("/:id/toggle", controllers.ToggleTodo)
	todos.Delete("/:id", controllers.DeleteTodo)
}
