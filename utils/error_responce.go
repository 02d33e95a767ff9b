package utils

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// ErrorResponse is a struct for error response
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// Error codes shared with the client
const (
	CodeInvalidEmail      = "auth/invalid-email"
	CodeUserNotFound      = "auth/user-not-found"
	CodeUserDisabled      = "auth/user-disabled"
	CodeWrongPassword     = "auth/wrong-password"
	CodeTooManyRequests   = "auth/too-many-requests"
	CodeEmailInUse        = "auth/email-already-in-use"
	CodeWeakPassword      = "auth/weak-password"
	CodeInvalidActionCode = "auth/invalid-action-code"
	CodeExpiredActionCode = "auth/expired-action-code"
	CodeNoUserRecord      = "auth/no-user-record"
	CodeNoAccess          = "auth/no-access"
	CodeUnauthenticated   = "auth/unauthenticated"
	CodeForbidden         = "auth/forbidden"
	CodeLookupFailed      = "auth/lookup-failed"
	CodeValidation        = "request/invalid"
	CodeNotFound          = "request/not-found"
	CodeAlreadyRegistered = "registration/already-registered"
	CodeNotPending        = "registration/not-pending"
	CodeInvalidTransition = "registration/invalid-transition"
	CodeUploadFailed      = "storage/upload-failed"
	CodeUnreachableScreen = "navigation/unreachable"
	CodeMissingRouteParam = "navigation/missing-param"
	CodeInternal          = "internal"
)

var codeMessages = map[string]string{
	CodeInvalidEmail:      "Invalid email address",
	CodeUserNotFound:      "No account found for this email",
	CodeUserDisabled:      "This account has been disabled",
	CodeWrongPassword:     "Incorrect password",
	CodeTooManyRequests:   "Too many attempts. Please try again later",
	CodeEmailInUse:        "This email is already in use",
	CodeWeakPassword:      "Password is too weak",
	CodeInvalidActionCode: "The reset code is invalid",
	CodeExpiredActionCode: "The reset code has expired",
	CodeNoUserRecord:      "User info not found",
	CodeNoAccess:          "This account has no access",
}

// MessageFor returns the user facing message of a known code
func MessageFor(code string) string {
	return codeMessages[code]
}

// AppError carries an HTTP status and a client error code
type AppError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// NewError builds an AppError; an empty message falls back to the code's
// standard message
func NewError(status int, code, message string, err error) *AppError {
	if message == "" {
		message = MessageFor(code)
	}
	return &AppError{Status: status, Code: code, Message: message, Err: err}
}

func BadRequest(code, message string) *AppError {
	return NewError(fiber.StatusBadRequest, code, message, nil)
}

func Unauthorized(code string) *AppError {
	return NewError(fiber.StatusUnauthorized, code, "", nil)
}

func Forbidden(code, message string) *AppError {
	return NewError(fiber.StatusForbidden, code, message, nil)
}

func NotFound(message string) *AppError {
	return NewError(fiber.StatusNotFound, CodeNotFound, message, nil)
}

func Conflict(code, message string, err error) *AppError {
	return NewError(fiber.StatusConflict, code, message, err)
}

// Internal surfaces the backend error text to the client
func Internal(message string, err error) *AppError {
	return NewError(fiber.StatusInternalServerError, CodeInternal, message, err)
}

// RespondError writes err as an ErrorResponse
func RespondError(c *fiber.Ctx, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			appErr = NewError(fiberErr.Code, "", fiberErr.Message, nil)
		} else {
			appErr = Internal(err.Error(), err)
		}
	}

	resp := ErrorResponse{Message: appErr.Message, Code: appErr.Code}
	if appErr.Err != nil {
		resp.Error = appErr.Err.Error()
	}
	if appErr.Status >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Str("method", c.Method()).Msg(appErr.Message)
	}
	return c.Status(appErr.Status).JSON(resp)
}

// ErrorHandler renders errors returned by handlers
func ErrorHandler(c *fiber.Ctx, err error) error {
	return RespondError(c, err)
}
