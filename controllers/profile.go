package controllers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/meinhoongagan/spa-app/config"
	"github.com/meinhoongagan/spa-app/db"
	"github.com/meinhoongagan/spa-app/middleware"
	"github.com/meinhoongagan/spa-app/models"
	"github.com/meinhoongagan/spa-app/realtime"
	"github.com/meinhoongagan/spa-app/utils"
)

type ProfileResponse struct {
	models.User
	HasRecord bool `json:"hasRecord"`
}

// GetProfile returns the caller's profile. A caller without a user record
// gets a placeholder named after their email.
func GetProfile(c *fiber.Ctx) error {
	s := middleware.Session(c)
	if u := s.Record(); u != nil {
		return c.JSON(ProfileResponse{User: *u, HasRecord: true})
	}
	email := middleware.Email(c)
	return c.JSON(ProfileResponse{
		User: models.User{ID: s.UserID(), DisplayName: email, Email: email},
	})
}

type UpdateProfileInput struct {
	DisplayName *string `json:"displayName" validate:"omitempty,min=2"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
}

// UpdateProfile changes the given fields only
func UpdateProfile(c *fiber.Ctx) error {
	input := new(UpdateProfileInput)
	if err := c.BodyParser(input); err != nil {
		return utils.BadRequest(utils.CodeValidation, "Cannot parse JSON")
	}
	trim(input.DisplayName)
	trim(input.Phone)
	trim(input.Address)
	if err := utils.ValidateStruct(input); err != nil {
		return validationError(err)
	}

	changes := map[string]interface{}{}
	if input.DisplayName != nil {
		changes["display_name"] = *input.DisplayName
	}
	if input.Phone != nil {
		changes["phone"] = *input.Phone
	}
	if input.Address != nil {
		changes["address"] = *input.Address
	}

	user, err := updateUser(c, changes)
	if err != nil {
		return err
	}
	return c.JSON(ProfileResponse{User: *user, HasRecord: true})
}

// UploadAvatar uploads the "avatar" file, then points the profile at it
func UploadAvatar(c *fiber.Ctx) error {
	file, err := c.FormFile("avatar")
	if err != nil {
		return utils.BadRequest(utils.CodeValidation, "avatar file is required")
	}

	f, err := file.Open()
	if err != nil {
		return utils.Internal("Failed to open avatar", err)
	}
	defer f.Close()

	userID := middleware.UserID(c)
	publicID := fmt.Sprintf("user_%s_%d", userID, time.Now().Unix())
	url, err := utils.UploadImage(c.UserContext(), f, publicID, config.Get().MediaFolder+"/avatars")
	if err != nil {
		return utils.NewError(fiber.StatusBadGateway, utils.CodeUploadFailed, err.Error(), err)
	}

	user, err := updateUser(c, map[string]interface{}{"avatar_url": url})
	if err != nil {
		log.Warn().Str("image_url", url).Str("user_id", userID).Msg("orphaned upload: avatar write failed")
		return err
	}
	return c.JSON(ProfileResponse{User: *user, HasRecord: true})
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ChangePassword re-checks the current password before setting a new one
func ChangePassword(c *fiber.Ctx) error {
	input := new(ChangePasswordInput)
	if err := c.BodyParser(input); err != nil {
		return utils.BadRequest(utils.CodeValidation, "Cannot parse JSON")
	}
	if input.CurrentPassword == "" || input.NewPassword == "" || input.ConfirmPassword == "" {
		return utils.BadRequest(utils.CodeValidation, "All password fields are required")
	}

	var account models.Account
	if err := db.DB.First(&account, "id = ?", middleware.UserID(c)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NewError(fiber.StatusNotFound, utils.CodeUserNotFound, "", nil)
		}
		return utils.Internal(err.Error(), err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.CurrentPassword)); err != nil {
		return utils.BadRequest(utils.CodeWrongPassword, "Current password is incorrect")
	}
	if !utils.IsStrongPassword(input.NewPassword) {
		return utils.BadRequest(utils.CodeWeakPassword, "")
	}
	if input.NewPassword != input.ConfirmPassword {
		return utils.BadRequest(utils.CodeValidation, "Passwords do not match")
	}

	if err := setPassword(account.ID, input.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Password changed",
	})
}

// updateUser applies changes to the caller's record, creating the record
// first when the caller has none
func updateUser(c *fiber.Ctx, changes map[string]interface{}) (*models.User, error) {
	s := middleware.Session(c)
	id := s.UserID()

	err := db.DB.Transaction(func(tx *gorm.DB) error {
		if s.Record() == nil {
			email := middleware.Email(c)
			placeholder := models.User{ID: id, DisplayName: email, Email: email, Role: models.RoleCustomer}
			if err := tx.Where(models.User{ID: id}).FirstOrCreate(&placeholder).Error; err != nil {
				return err
			}
		}
		if len(changes) == 0 {
			return nil
		}
		changes["updated_at"] = time.Now()
		return tx.Model(&models.User{}).Where("id = ?", id).Updates(changes).Error
	})
	if err != nil {
		return nil, utils.Internal(err.Error(), err)
	}

	var user models.User
	if err := db.DB.First(&user, "id = ?", id).Error; err != nil {
		return nil, utils.Internal(err.Error(), err)
	}
	realtime.Emit(c.UserContext(), realtime.UserPath(id), realtime.OpPatch, user)
	return &user, nil
}

func trim(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
