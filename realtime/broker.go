// Package realtime pushes path-addressed change events to subscribers.
//
// Paths are slash separated ("services/<id>", "users/<uid>/registrations/<id>").
// A subscription to a path receives the events of that path and of every
// path below it.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Op string

const (
	OpPut    Op = "put"
	OpPatch  Op = "patch"
	OpDelete Op = "delete"
)

var ErrClosed = errors.New("broker is closed")

type Event struct {
	Path string          `json:"path"`
	Op   Op              `json:"op"`
	Data json.RawMessage `json:"data,omitempty"`
	At   time.Time       `json:"at"`
}

// NewEvent encodes data as the event payload. A nil data leaves it empty.
func NewEvent(path string, op Op, data any) (Event, error) {
	ev := Event{Path: Clean(path), Op: op, At: time.Now().UTC()}
	if data == nil {
		return ev, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode event data: %w", err)
	}
	ev.Data = raw
	return ev, nil
}

// Subscription delivers events until closed. The channel is closed when the
// subscription ends, either by Close or because the subscriber fell behind
// and was evicted.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

type Broker interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, path string) (Subscription, error)
	Close() error
}

// DefaultBuffer is the per-subscriber queue length before eviction
const DefaultBuffer = 64

// Default is the broker the HTTP layer publishes to. main installs a Redis
// broker when Redis is reachable.
var Default Broker = NewLocalBroker(DefaultBuffer)

// Emit publishes a change on Default. Writes have already committed when it
// is called, so a failure is logged and not returned.
func Emit(ctx context.Context, path string, op Op, data any) {
	ev, err := NewEvent(path, op, data)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to build change event")
		return
	}
	if err := Default.Publish(ctx, ev); err != nil {
		log.Error().Err(err).Str("path", ev.Path).Str("op", string(op)).Msg("failed to publish change event")
	}
}

// Clean trims surrounding and duplicate slashes
func Clean(path string) string {
	parts := strings.Split(path, "/")
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

func Join(parts ...string) string {
	return Clean(strings.Join(parts, "/"))
}

// Ancestors lists path and each of its parents, deepest first:
// "a/b/c" gives ["a/b/c", "a/b", "a"].
func Ancestors(path string) []string {
	path = Clean(path)
	if path == "" {
		return nil
	}
	out := []string{path}
	for i := len(path) - 1; i > 0; i-- {
		if path[i] == '/' {
			out = append(out, path[:i])
		}
	}
	return out
}

// Paths used by the HTTP layer
func ServicePath(id string) string { return Join("services", id) }

func RegistrationPath(id string) string { return Join("registrations", id) }

func UserPath(uid string) string { return Join("users", uid) }

func UserRegistrationPath(uid, id string) string {
	return Join("users", uid, "registrations", id)
}

func TodoPath(id string) string { return Join("todos", id) }
