package admin

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/meinhoongagan/spa-app/controllers"
	"github.com/meinhoongagan/spa-app/db"
	"github.com/meinhoongagan/spa-app/middleware"
	"github.com/meinhoongagan/spa-app/models"
	"github.com/meinhoongagan/spa-app/realtime"
	"github.com/meinhoongagan/spa-app/utils"
)

type listFilter struct {
	Status models.RegistrationStatus
	Limit  int
	Offset int
}

func parseFilter(c *fiber.Ctx) (listFilter, error) {
	f := listFilter{Status: models.RegistrationStatus(c.Query("status"))}
	switch f.Status {
	case "", models.StatusPending, models.StatusConfirmed, models.StatusCancelled:
	default:
		return f, utils.BadRequest(utils.CodeValidation, "status must be pending, confirmed or cancelled")
	}

	// Get pagination parameters
	if limit := c.QueryInt("limit"); limit > 0 {
		f.Limit = limit
		if page := c.QueryInt("page", 1); page > 1 {
			f.Offset = (page - 1) * limit
		}
	}
	return f, nil
}

func listAll(f listFilter) ([]models.Registration, error) {
	regs := []models.Registration{}
	q := db.DB.Order("created_at desc")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	err := q.Find(&regs).Error
	return regs, err
}

// GetAllRegistrations lists every registration, newest first
func GetAllRegistrations(c *fiber.Ctx) error {
	f, err := parseFilter(c)
	if err != nil {
		return err
	}
	regs, err := listAll(f)
	if err != nil {
		return utils.Internal(err.Error(), err)
	}
	return c.JSON(regs)
}

func GetRegistration(c *fiber.Ctx) error {
	var reg models.Registration
	if err := db.DB.First(&reg, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound("Registration not found")
		}
		return utils.Internal(err.Error(), err)
	}
	return c.JSON(reg)
}

type StatusInput struct {
	Status models.RegistrationStatus `json:"status" validate:"required,oneof=confirmed cancelled"`
}

// UpdateRegistrationStatus confirms or cancels a pending registration. Only
// the first decision sticks; later ones get registration/not-pending.
func UpdateRegistrationStatus(c *fiber.Ctx) error {
	input := new(StatusInput)
	if err := c.BodyParser(input); err != nil {
		return utils.BadRequest(utils.CodeValidation, "Cannot parse JSON")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.BadRequest(utils.CodeInvalidTransition, err.Error())
	}

	reg, err := models.TransitionRegistration(db.DB, c.Params("id"), input.Status)
	switch {
	case errors.Is(err, models.ErrRegistrationNotFound):
		return utils.NotFound("Registration not found")
	case errors.Is(err, models.ErrInvalidTransition):
		return utils.BadRequest(utils.CodeInvalidTransition, err.Error())
	case errors.Is(err, models.ErrNotPending):
		return utils.Conflict(utils.CodeNotPending, "Registration has already been decided", err)
	case err != nil:
		return utils.Internal(err.Error(), err)
	}

	log.Info().
		Str("registration_id", reg.ID).
		Str("status", string(reg.Status)).
		Str("admin_id", middleware.UserID(c)).
		Msg("registration status changed")

	change := fiber.Map{"status": reg.Status}
	realtime.Emit(c.UserContext(), realtime.RegistrationPath(reg.ID), realtime.OpPatch, change)
	realtime.Emit(c.UserContext(), realtime.UserRegistrationPath(reg.UserID, reg.ID), realtime.OpPatch, change)
	return c.JSON(reg)
}

// StreamAllRegistrations pushes the registrations matching ?status= and
// their changes. A registration whose status leaves the filter arrives as
// a delete.
func StreamAllRegistrations(c *fiber.Ctx) error {
	if c.Query("limit") != "" || c.Query("page") != "" {
		return utils.BadRequest(utils.CodeValidation, "streams are not paginated")
	}
	f, err := parseFilter(c)
	if err != nil {
		return err
	}
	snapshot := func() (any, error) { return listAll(f) }
	if f.Status == "" {
		return controllers.StreamPath(c, "registrations", snapshot)
	}
	return controllers.StreamMapped(c, "registrations", snapshot, withStatus(f.Status))
}

func withStatus(status models.RegistrationStatus) realtime.MapFunc {
	return func(ev realtime.Event) (realtime.Event, bool) {
		if ev.Op == realtime.OpDelete {
			return ev, true
		}
		var body struct {
			Status models.RegistrationStatus `json:"status"`
		}
		if err := json.Unmarshal(ev.Data, &body); err != nil || body.Status == status {
			return ev, true
		}
		ev.Op = realtime.OpDelete
		ev.Data = nil
		return ev, true
	}
}
