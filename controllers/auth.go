package controllers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/meinhoongagan/spa-app/config"
	"github.com/meinhoongagan/spa-app/db"
	"github.com/meinhoongagan/spa-app/middleware"
	"github.com/meinhoongagan/spa-app/models"
	"github.com/meinhoongagan/spa-app/realtime"
	"github.com/meinhoongagan/spa-app/redis"
	"github.com/meinhoongagan/spa-app/session"
	"github.com/meinhoongagan/spa-app/utils"
)

// PasswordCost is the bcrypt cost for new hashes
var PasswordCost = bcrypt.DefaultCost

const (
	accessTTL  = 24 * time.Hour
	refreshTTL = 7 * 24 * time.Hour
)

type RegisterInput struct {
	Email           string      `json:"email" validate:"required,email"`
	Password        string      `json:"password" validate:"required,strongpassword"`
	ConfirmPassword string      `json:"confirmPassword" validate:"required,eqfield=Password"`
	DisplayName     string      `json:"displayName" validate:"required,min=2"`
	Role            models.Role `json:"role"`
	AdminCode       string      `json:"adminCode"`
}

// Register handles user registration
func Register(c *fiber.Ctx) error {
	input := new(RegisterInput)
	if err := c.BodyParser(input); err != nil {
		return utils.BadRequest(utils.CodeValidation, "Cannot parse JSON")
	}
	input.Email = normalizeEmail(input.Email)
	input.DisplayName = strings.TrimSpace(input.DisplayName)

	if err := utils.ValidateStruct(input); err != nil {
		return validationError(err)
	}

	if input.Role == "" {
		input.Role = models.RoleCustomer
	}
	if !input.Role.Valid() {
		return utils.BadRequest(utils.CodeValidation, "role must be admin or customer")
	}
	if input.Role == models.RoleAdmin && input.AdminCode != config.Get().AdminCode {
		return utils.Forbidden(utils.CodeValidation, "Invalid admin code")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), PasswordCost)
	if err != nil {
		return utils.Internal("Failed to hash password", err)
	}

	account := models.Account{Email: input.Email, PasswordHash: string(hash)}
	var user models.User
	err = db.DB.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Account{}).Where("email = ?", input.Email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return utils.Conflict(utils.CodeEmailInUse, "", nil)
		}
		if err := tx.Create(&account).Error; err != nil {
			if models.IsUniqueViolation(err) {
				return utils.Conflict(utils.CodeEmailInUse, "", nil)
			}
			return err
		}

		user = models.User{
			ID:          account.ID,
			DisplayName: input.DisplayName,
			Email:       account.Email,
			Role:        input.Role,
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		var appErr *utils.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return utils.Internal(err.Error(), err)
	}

	log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("account registered")
	realtime.Emit(c.UserContext(), realtime.UserPath(user.ID), realtime.OpPut, user)

	tokens, err := issueTokens(account)
	if err != nil {
		return err
	}
	s, _ := session.Resolve(c.UserContext(), db.DB, user.ID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token":        tokens.Access,
		"refreshToken": tokens.Refresh,
		"user":         user,
		"session":      session.ViewOf(s),
	})
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles user authentication
func Login(c *fiber.Ctx) error {
	input := new(LoginInput)
	if err := c.BodyParser(input); err != nil {
		return utils.BadRequest(utils.CodeValidation, "Cannot parse JSON")
	}
	input.Email = normalizeEmail(input.Email)

	if input.Email == "" || input.Password == "" {
		return utils.BadRequest(utils.CodeValidation, "Email and password are required")
	}
	if err := utils.ValidateStruct(struct {
		Email string `json:"email" validate:"email"`
	}{input.Email}); err != nil {
		return utils.BadRequest(utils.CodeInvalidEmail, "")
	}

	var account models.Account
	if err := db.DB.Where("email = ?", input.Email).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NewError(fiber.StatusNotFound, utils.CodeUserNotFound, "", nil)
		}
		return utils.Internal(err.Error(), err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.Password)); err != nil {
		return utils.Unauthorized(utils.CodeWrongPassword)
	}
	// only a caller holding the password learns the account is disabled
	if account.Disabled {
		return utils.Forbidden(utils.CodeUserDisabled, "")
	}

	// the credential is good; the app still needs a user record with a role
	var user models.User
	if err := db.DB.First(&user, "id = ?", account.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Forbidden(utils.CodeNoUserRecord, "")
		}
		return utils.NewError(fiber.StatusServiceUnavailable, utils.CodeLookupFailed, "Could not load the user role", err)
	}
	if !user.Role.Valid() {
		return utils.Forbidden(utils.CodeNoAccess, "")
	}

	tokens, err := issueTokens(account)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"token":        tokens.Access,
		"refreshToken": tokens.Refresh,
		"user":         user,
		"session":      session.ViewOf(session.ForUser(user)),
	})
}

// Logout doesn't actually invalidate the token as JWTs are stateless
func Logout(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Successfully logged out",
	})
}

// RefreshToken generates a new access token using a refresh token
func RefreshToken(c *fiber.Ctx) error {
	type RefreshRequest struct {
		RefreshToken string `json:"refreshToken"`
	}

	refreshRequest := new(RefreshRequest)
	if err := c.BodyParser(refreshRequest); err != nil {
		return utils.BadRequest(utils.CodeValidation, "Cannot parse JSON")
	}

	token, err := jwt.Parse(refreshRequest.RefreshToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(config.Get().JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return utils.NewError(fiber.StatusUnauthorized, utils.CodeUnauthenticated, "Invalid refresh token", err)
	}

	claims, _ := token.Claims.(jwt.MapClaims)
	id, _ := claims["id"].(string)
	if typ, _ := claims["typ"].(string); typ != middleware.TokenRefresh || id == "" {
		return utils.NewError(fiber.StatusUnauthorized, utils.CodeUnauthenticated, "Invalid refresh token", nil)
	}

	var account models.Account
	if err := db.DB.First(&account, "id = ?", id).Error; err != nil {
		return utils.NewError(fiber.StatusUnauthorized, utils.CodeUserNotFound, "", err)
	}
	if account.Disabled {
		return utils.Forbidden(utils.CodeUserDisabled, "")
	}

	access, err := signToken(account, middleware.TokenAccess, accessTTL)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"token": access,
	})
}

type ForgotPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPassword mails a reset code to a registered user
func ForgotPassword(c *fiber.Ctx) error {
	input := new(ForgotPasswordInput)
	if err := c.BodyParser(input); err != nil {
		return utils.BadRequest(utils.CodeValidation, "Cannot parse JSON")
	}
	input.Email = normalizeEmail(input.Email)
	if err := utils.ValidateStruct(input); err != nil {
		return utils.BadRequest(utils.CodeInvalidEmail, "")
	}

	var user models.User
	if err := db.DB.Where("email = ?", input.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NewError(fiber.StatusNotFound, utils.CodeUserNotFound, "", nil)
		}
		return utils.Internal(err.Error(), err)
	}
	if redis.Client == nil {
		return utils.NewError(fiber.StatusServiceUnavailable, utils.CodeInternal, "Password reset is unavailable", nil)
	}

	code, err := utils.SaveResetCode(c.UserContext(), redis.Client, user.ID, user.Email, config.Get().ResetCodeTTL)
	if err != nil {
		return utils.Internal(err.Error(), err)
	}

	body := fmt.Sprintf(
		"<p>Hello %s,</p><p>Your password reset code is <b>%s</b>. It expires in %s.</p>",
		user.NameOrEmail(), code, config.Get().ResetCodeTTL,
	)
	if err := utils.SendEmail(user.Email, "Reset your password", body); err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("failed to send reset email")
		return utils.Internal(err.Error(), err)
	}

	return c.JSON(fiber.Map{
		"message": "Password reset email sent",
	})
}

type ResetPasswordInput struct {
	Code            string `json:"code"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ResetPassword sets a new password with a mailed reset code
func ResetPassword(c *fiber.Ctx) error {
	input := new(ResetPasswordInput)
	if err := c.BodyParser(input); err != nil {
		return utils.BadRequest(utils.CodeValidation, "Cannot parse JSON")
	}
	if redis.Client == nil {
		return utils.NewError(fiber.StatusServiceUnavailable, utils.CodeInternal, "Password reset is unavailable", nil)
	}

	code := strings.TrimSpace(input.Code)
	ticket, err := utils.LookupResetCode(c.UserContext(), redis.Client, code, time.Now())
	switch {
	case errors.Is(err, utils.ErrInvalidResetCode):
		return utils.BadRequest(utils.CodeInvalidActionCode, "")
	case errors.Is(err, utils.ErrExpiredResetCode):
		return utils.BadRequest(utils.CodeExpiredActionCode, "")
	case err != nil:
		return utils.Internal(err.Error(), err)
	}

	if !utils.IsStrongPassword(input.NewPassword) {
		return utils.BadRequest(utils.CodeWeakPassword, "")
	}
	if input.NewPassword != input.ConfirmPassword {
		return utils.BadRequest(utils.CodeValidation, "Passwords do not match")
	}

	// spend the code before the write so a parallel reset cannot use it too
	switch err := utils.ConsumeResetCode(c.UserContext(), redis.Client, code); {
	case errors.Is(err, utils.ErrInvalidResetCode):
		return utils.BadRequest(utils.CodeInvalidActionCode, "")
	case err != nil:
		return utils.Internal(err.Error(), err)
	}
	if err := setPassword(ticket.AccountID, input.NewPassword); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"message": "Password has been reset",
	})
}

func setPassword(accountID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return utils.Internal("Failed to hash password", err)
	}
	res := db.DB.Model(&models.Account{}).Where("id = ?", accountID).Update("password_hash", string(hash))
	if res.Error != nil {
		return utils.Internal(res.Error.Error(), res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.NewError(fiber.StatusNotFound, utils.CodeUserNotFound, "", nil)
	}
	return nil
}

type tokenPair struct {
	Access  string
	Refresh string
}

func issueTokens(account models.Account) (tokenPair, error) {
	access, err := signToken(account, middleware.TokenAccess, accessTTL)
	if err != nil {
		return tokenPair{}, err
	}
	refresh, err := signToken(account, middleware.TokenRefresh, refreshTTL)
	if err != nil {
		return tokenPair{}, err
	}
	return tokenPair{Access: access, Refresh: refresh}, nil
}

func signToken(account models.Account, typ string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"id":    account.ID,
		"email": account.Email,
		"typ":   typ,
		"exp":   time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(config.Get().JWTSecret))
	if err != nil {
		return "", utils.Internal("Failed to generate token", err)
	}
	return signed, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validationError maps the first failed field to a client error code
func validationError(err error) error {
	var fe *utils.FieldError
	if !errors.As(err, &fe) {
		return utils.BadRequest(utils.CodeValidation, err.Error())
	}
	switch {
	case fe.Field == "email" && fe.Tag == "email":
		return utils.BadRequest(utils.CodeInvalidEmail, "")
	case fe.Field == "password" && fe.Tag == "strongpassword":
		return utils.BadRequest(utils.CodeWeakPassword, fe.Error())
	default:
		return utils.BadRequest(utils.CodeValidation, fe.Error())
	}
}
