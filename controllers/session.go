package controllers

import (
	"bufio"
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"

	"github.com/meinhoongagan/spa-app/db"
	"github.com/meinhoongagan/spa-app/middleware"
	"github.com/meinhoongagan/spa-app/navigation"
	"github.com/meinhoongagan/spa-app/realtime"
	"github.com/meinhoongagan/spa-app/session"
	"github.com/meinhoongagan/spa-app/utils"
)

// GetSession returns the stack, screens and user of the caller
func GetSession(c *fiber.Ctx) error {
	return c.JSON(session.ViewOf(middleware.Session(c)))
}

// CheckScreen validates a navigation request. Query values are the route
// parameters.
func CheckScreen(c *fiber.Ctx) error {
	s := middleware.Session(c)
	route := navigation.Route{
		Screen: navigation.Screen(c.Params("screen")),
		Params: c.Queries(),
	}

	err := navigation.Validate(s.Stack(), route)
	switch {
	case errors.Is(err, navigation.ErrUnreachable):
		return utils.Forbidden(utils.CodeUnreachableScreen, err.Error())
	case errors.Is(err, navigation.ErrMissingParam):
		return utils.BadRequest(utils.CodeMissingRouteParam, err.Error())
	case err != nil:
		return utils.Internal(err.Error(), err)
	}

	return c.JSON(fiber.Map{
		"stack": s.Stack(),
		"route": route,
	})
}

// StreamSession pushes a new session every time the caller's user record
// changes
func StreamSession(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	ctx, cancel := context.WithCancel(streamContext())
	w, err := session.Watch(ctx, realtime.Default, db.GetDB(), userID)
	if err != nil {
		cancel()
		return utils.Internal("Failed to watch session", err)
	}

	setStreamHeaders(c)
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(bw *bufio.Writer) {
		defer cancel()
		defer w.Close()
		err := writeSessionUpdates(ctx, bw, w)
		log.Debug().Err(err).Str("user_id", userID).Msg("session stream closed")
	}))
	return nil
}

func writeSessionUpdates(ctx context.Context, bw *bufio.Writer, w *session.Watcher) error {
	ticker := time.NewTicker(realtime.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := realtime.WriteEvent(bw, "heartbeat", fiber.Map{"timestamp": time.Now().UTC()}); err != nil {
				return err
			}
		case u, ok := <-w.Updates():
			if !ok {
				return nil
			}
			if u.Err != nil {
				// keep the last good session on the client
				if err := realtime.WriteEvent(bw, "error", utils.ErrorResponse{
					Message: "Could not load the user role",
					Error:   u.Err.Error(),
					Code:    utils.CodeLookupFailed,
				}); err != nil {
					return err
				}
				continue
			}
			if err := realtime.WriteEvent(bw, "session", session.ViewOf(u.Session)); err != nil {
				return err
			}
		}
	}
}
