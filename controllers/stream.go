package controllers

import (
	"bufio"
	"context"
	"errors"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"

	"github.com/meinhoongagan/spa-app/realtime"
	"github.com/meinhoongagan/spa-app/utils"
)

var (
	streamMu  sync.RWMutex
	streamCtx = context.Background()
)

// SetStreamContext bounds every open event stream by ctx. Cancel it before
// shutting the server down so streams end instead of holding connections.
func SetStreamContext(ctx context.Context) {
	streamMu.Lock()
	defer streamMu.Unlock()
	streamCtx = ctx
}

func streamContext() context.Context {
	streamMu.RLock()
	defer streamMu.RUnlock()
	return streamCtx
}

// StreamPath answers with a server-sent event stream: a snapshot, then every
// change under path. The subscription is taken before the snapshot is read
// so no change falls between the two.
func StreamPath(c *fiber.Ctx, path string, snapshot func() (any, error)) error {
	return StreamMapped(c, path, snapshot, nil)
}

// StreamMapped is StreamPath with every change passed through fn first, for
// streams whose snapshot is a filtered view of path.
func StreamMapped(c *fiber.Ctx, path string, snapshot func() (any, error), fn realtime.MapFunc) error {
	ctx, cancel := context.WithCancel(streamContext())
	sub, err := realtime.Default.Subscribe(ctx, path)
	if err != nil {
		cancel()
		return utils.Internal("Failed to subscribe to changes", err)
	}
	if fn != nil {
		sub = realtime.Map(sub, fn)
	}

	snap, err := snapshot()
	if err != nil {
		_ = sub.Close()
		cancel()
		var appErr *utils.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return utils.Internal(err.Error(), err)
	}

	setStreamHeaders(c)
	userID, _ := c.Locals("userID").(string)
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer func() { _ = sub.Close() }()
		err := realtime.Stream(ctx, w, snap, sub)
		log.Debug().Err(err).Str("path", path).Str("user_id", userID).Msg("stream closed")
	}))
	return nil
}

func setStreamHeaders(c *fiber.Ctx) {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")
}
