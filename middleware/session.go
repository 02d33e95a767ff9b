package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/meinhoongagan/spa-app/db"
	"github.com/meinhoongagan/spa-app/session"
	"github.com/meinhoongagan/spa-app/utils"
)

// ResolveSession resolves the principal set by Protected or OptionalAuth
// and stores the result under "session". A failed lookup stops the
// request; it is never downgraded to a session without a role.
func ResolveSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := session.Resolve(c.UserContext(), db.GetDB(), UserID(c))
		if err != nil {
			return utils.NewError(fiber.StatusServiceUnavailable, utils.CodeLookupFailed, "Could not load the user role", err)
		}
		c.Locals("session", s)
		return c.Next()
	}
}

// Session returns the resolved session, signed out if none was resolved
func Session(c *fiber.Ctx) session.Session {
	if s, ok := c.Locals("session").(session.Session); ok {
		return s
	}
	return session.Unauthenticated{}
}
