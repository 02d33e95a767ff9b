package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// HeartbeatInterval is how often an idle stream writes a heartbeat
var HeartbeatInterval = 30 * time.Second

// ErrEvicted is returned by Stream when the subscription ended under it
var ErrEvicted = errors.New("subscription ended")

// WriteEvent writes one server-sent event and flushes it
func WriteEvent(w *bufio.Writer, name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", name, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	return w.Flush()
}

// Stream writes a "snapshot" event followed by every change delivered on
// sub until ctx is done or a write fails. When sub ends a "reset" event asks
// the client to reconnect for a fresh snapshot.
func Stream(ctx context.Context, w *bufio.Writer, snapshot any, sub Subscription) error {
	if err := WriteEvent(w, "snapshot", snapshot); err != nil {
		return err
	}

	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := WriteEvent(w, "heartbeat", map[string]any{"timestamp": time.Now().UTC()}); err != nil {
				return err
			}
		case ev, ok := <-sub.Events():
			if !ok {
				_ = WriteEvent(w, "reset", map[string]any{"reason": "resubscribe"})
				return ErrEvicted
			}
			if err := WriteEvent(w, string(ev.Op), ev); err != nil {
				return err
			}
		}
	}
}
