package customer

import (
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

type RegistrationInput struct {
	AppointmentDate string `json:"appointmentDate" validate:"required,apptdate"`
	AppointmentTime string `json:"appointmentTime" validate:"required,appttime"`
	Location        string `json:"location" validate:"required"`
}

// CreateRegistration books a service for the caller. The service and the
// caller's contact details are copied onto the registration.
func CreateRegistration(c *fiber.Ctx) error {
	customer := middleware.Session(c).Record()
	if customer == nil {
		return utils.Forbidden(utils.CodeNoUserRecord, "")
	}

	input := new(RegistrationInput)
	if err := c.BodyParser(input); err != nil {
		return utils.BadRequest(utils.CodeValidation, "Cannot parse JSON")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.BadRequest(utils.CodeValidation, err.Error())
	}
	loc, ok := models.LookupLocation(input.Location)
	if !ok {
		return utils.BadRequest(utils.CodeValidation, "location is not one of our branches")
	}
	at, _ := utils.NormalizeTime(input.AppointmentTime)

	var service models.Service
	if err := db.DB.First(&service, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound("Service not found")
		}
		return utils.Internal(err.Error(), err)
	}

	reg := models.NewRegistration(service, *customer, input.AppointmentDate, at, loc)
	if err := models.CreateRegistration(db.DB, &reg); err != nil {
		if errors.Is(err, models.ErrAlreadyRegistered) {
			return utils.Conflict(utils.CodeAlreadyRegistered, "You have already registered for this service", err)
		}
		return utils.Internal(err.Error(), err)
	}

	log.Info().
		Str("registration_id", reg.ID).
		Str("service_id", reg.ServiceID).
		Str("user_id", reg.UserID).
		Msg("registration created")
	realtime.Emit(c.UserContext(), realtime.RegistrationPath(reg.ID), realtime.OpPut, reg)
	realtime.Emit(c.UserContext(), realtime.UserRegistrationPath(reg.UserID, reg.ID), realtime.OpPut, reg.Mirror())

	return c.Status(fiber.StatusCreated).JSON(reg)
}

func listOwn(userID string) ([]models.Registration, error) {
	regs := []models.Registration{}
	err := db.DB.Where("user_id = ?", userID).Order("created_at desc").Find(&regs).Error
	return regs, err
}

// GetMyRegistrations lists the caller's registrations, newest first
func GetMyRegistrations(c *fiber.Ctx) error {
	regs, err := listOwn(middleware.UserID(c))
	if err != nil {
		return utils.Internal(err.Error(), err)
	}
	return c.JSON(regs)
}

func GetMyRegistration(c *fiber.Ctx) error {
	var reg models.Registration
	err := db.DB.Where("id = ? AND user_id = ?", c.Params("id"), middleware.UserID(c)).First(&reg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound("Registration not found")
		}
		return utils.Internal(err.Error(), err)
	}
	return c.JSON(reg)
}

// CancelRegistration withdraws a registration that is still pending
func CancelRegistration(c *fiber.Ctx) error {
	id := c.Params("id")
	userID := middleware.UserID(c)

	err := models.CancelPendingRegistration(db.DB, id, userID)
	switch {
	case errors.Is(err, models.ErrRegistrationNotFound):
		return utils.NotFound("Registration not found")
	case errors.Is(err, models.ErrNotPending):
		return utils.Conflict(utils.CodeNotPending, "Only pending registrations can be cancelled", err)
	case err != nil:
		return utils.Internal(err.Error(), err)
	}

	realtime.Emit(c.UserContext(), realtime.RegistrationPath(id), realtime.OpDelete, nil)
	realtime.Emit(c.UserContext(), realtime.UserRegistrationPath(userID, id), realtime.OpDelete, nil)
	return c.SendStatus(fiber.StatusNoContent)
}

func listMirrors(userID string) ([]models.UserRegistration, error) {
	regs := []models.UserRegistration{}
	err := db.DB.Where("user_id = ?", userID).Order("created_at desc").Find(&regs).Error
	return regs, err
}

// StreamMyRegistrations pushes the caller's mirror records and their
// changes; snapshot and events share the mirror shape
func StreamMyRegistrations(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	return controllers.StreamPath(c, realtime.Join(realtime.UserPath(userID), "registrations"), func() (any, error) {
		return listMirrors(userID)
	})
}
