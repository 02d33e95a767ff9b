package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/meinhoongagan/spa-app/models"
	"github.com/meinhoongagan/spa-app/navigation"
	"github.com/meinhoongagan/spa-app/utils"
)

// RequirePermission checks if the user has the required permission.
// It must run after ResolveSession.
func RequirePermission(resource string, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s := Session(c)
		if s.Stack() == navigation.StackUnauthenticated {
			return utils.Unauthorized(utils.CodeUnauthenticated)
		}
		if s.Record() == nil {
			return utils.Forbidden(utils.CodeNoUserRecord, "")
		}
		if !s.Role().Can(resource, action) {
			log.Debug().
				Str("user_id", s.UserID()).
				Str("role", string(s.Role())).
				Str("resource", resource).
				Str("action", action).
				Msg("permission denied")
			return utils.Forbidden(utils.CodeForbidden, "You don't have permission to perform this action")
		}
		return c.Next()
	}
}

// RequireRole checks if the user has the required role
func RequireRole(role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s := Session(c)
		if s.Stack() == navigation.StackUnauthenticated {
			return utils.Unauthorized(utils.CodeUnauthenticated)
		}
		if s.Role() != role {
			return utils.Forbidden(utils.CodeForbidden, "You don't have the required role to perform this action")
		}
		return c.Next()
	}
}
