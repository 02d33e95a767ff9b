package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/meinhoongagan/spa-app/db"
	"github.com/meinhoongagan/spa-app/models"
	"github.com/meinhoongagan/spa-app/realtime"
	"github.com/meinhoongagan/spa-app/utils"
)

type TodoInput struct {
	Text string `json:"text"`
}

func listTodos() ([]models.Todo, error) {
	todos := []models.Todo{}
	err := db.DB.Order("created_at asc").Find(&todos).Error
	return todos, err
}

func GetTodos(c *fiber.Ctx) error {
	todos, err := listTodos()
	if err != nil {
		return utils.Internal(err.Error(), err)
	}
	return c.JSON(todos)
}

func StreamTodos(c *fiber.Ctx) error {
	return StreamPath(c, "todos", func() (any, error) {
		return listTodos()
	})
}

func parseTodoText(c *fiber.Ctx) (string, error) {
	input := new(TodoInput)
	if err := c.BodyParser(input); err != nil {
		return "", utils.BadRequest(utils.CodeValidation, "Cannot parse JSON")
	}
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return "", utils.BadRequest(utils.CodeValidation, "text is required")
	}
	return text, nil
}

func CreateTodo(c *fiber.Ctx) error {
	text, err := parseTodoText(c)
	if err != nil {
		return err
	}
	todo := models.Todo{Text: text}
	if err := db.DB.Create(&todo).Error; err != nil {
		return utils.Internal(err.Error(), err)
	}
	realtime.Emit(c.UserContext(), realtime.TodoPath(todo.ID), realtime.OpPut, todo)
	return c.Status(fiber.StatusCreated).JSON(todo)
}

func UpdateTodo(c *fiber.Ctx) error {
	text, err := parseTodoText(c)
	if err != nil {
		return err
	}
	todo, err := findTodo(c.Params("id"))
	if err != nil {
		return err
	}
	todo.Text = text
	if err := db.DB.Model(todo).Update("text", text).Error; err != nil {
		return utils.Internal(err.Error(), err)
	}
	realtime.Emit(c.UserContext(), realtime.TodoPath(todo.ID), realtime.OpPatch, todo)
	return c.JSON(todo)
}

// ToggleTodo flips the completed flag in a single statement
func ToggleTodo(c *fiber.Ctx) error {
	id := c.Params("id")
	res := db.DB.Model(&models.Todo{}).Where("id = ?", id).Update("completed", gorm.Expr("NOT completed"))
	if res.Error != nil {
		return utils.Internal(res.Error.Error(), res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.NotFound("Todo not found")
	}
	todo, err := findTodo(id)
	if err != nil {
		return err
	}
	realtime.Emit(c.UserContext(), realtime.TodoPath(todo.ID), realtime.OpPatch, todo)
	return c.JSON(todo)
}

func DeleteTodo(c *fiber.Ctx) error {
	id := c.Params("id")
	res := db.DB.Delete(&models.Todo{}, "id = ?", id)
	if res.Error != nil {
		return utils.Internal(res.Error.Error(), res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.NotFound("Todo not found")
	}
	realtime.Emit(c.UserContext(), realtime.TodoPath(id), realtime.OpDelete, nil)
	return c.SendStatus(fiber.StatusNoContent)
}

func findTodo(id string) (*models.Todo, error) {
	var todo models.Todo
	if err := db.DB.First(&todo, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Todo not found")
		}
		return nil, utils.Internal(err.Error(), err)
	}
	return &todo, nil
}
