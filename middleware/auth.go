package middleware

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"

	"github.com/meinhoongagan/spa-app/config"
	"github.com/meinhoongagan/spa-app/utils"
)

// Token types carried in the "typ" claim
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// tokens are read from the Authorization header, or from ?access_token= for
// EventSource clients that cannot set headers
const tokenLookup = "header:Authorization,query:access_token"

// Protected rejects requests without a valid access token
func Protected() fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:     []byte(config.Get().JWTSecret),
		TokenLookup:    tokenLookup,
		AuthScheme:     "Bearer",
		ErrorHandler:   jwtError,
		SuccessHandler: storeClaims,
	})
}

// OptionalAuth reads a token when one is sent and lets anonymous requests
// through
func OptionalAuth() fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:     []byte(config.Get().JWTSecret),
		TokenLookup:    tokenLookup,
		AuthScheme:     "Bearer",
		ErrorHandler:   jwtError,
		SuccessHandler: storeClaims,
		Filter: func(c *fiber.Ctx) bool {
			return c.Get(fiber.HeaderAuthorization) == "" && c.Query("access_token") == ""
		},
	})
}

func storeClaims(c *fiber.Ctx) error {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return utils.Unauthorized(utils.CodeUnauthenticated)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return utils.Unauthorized(utils.CodeUnauthenticated)
	}
	if typ, _ := claims["typ"].(string); typ != TokenAccess {
		return utils.NewError(fiber.StatusUnauthorized, utils.CodeUnauthenticated, "Not an access token", nil)
	}

	userID, err := extractUserID(claims)
	if err != nil {
		return utils.NewError(fiber.StatusUnauthorized, utils.CodeUnauthenticated, "Invalid user ID in token", err)
	}
	email, _ := claims["email"].(string)

	c.Locals("userID", userID)
	c.Locals("email", email)
	return c.Next()
}

// extractUserID reads the principal id, which is always a string
func extractUserID(claims jwt.MapClaims) (string, error) {
	switch v := claims["id"].(type) {
	case nil:
		return "", errors.New("no ID found in claims")
	case string:
		if v == "" {
			return "", errors.New("empty ID in claims")
		}
		return v, nil
	default:
		return "", fmt.Errorf("unsupported ID type: %T", v)
	}
}

// jwtError handles JWT errors
func jwtError(c *fiber.Ctx, err error) error {
	return utils.RespondError(c, utils.NewError(fiber.StatusUnauthorized, utils.CodeUnauthenticated, "Invalid or expired token", err))
}

// UserID is the authenticated principal, empty when anonymous
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals("userID").(string)
	return id
}

// Email is the email claim of the access token
func Email(c *fiber.Ctx) string {
	email, _ := c.Locals("email").(string)
	return email
}
