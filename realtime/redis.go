package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const channelPrefix = "spa:changes:"

// RedisBroker publishes each event once per ancestor channel so that
// several API instances share one stream of changes
type RedisBroker struct {
	client *redis.Client
	buffer int
}

func NewRedisBroker(client *redis.Client, buffer int) (*RedisBroker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &RedisBroker{client: client, buffer: buffer}, nil
}

func (b *RedisBroker) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pipe := b.client.Pipeline()
	for _, p := range Ancestors(ev.Path) {
		pipe.Publish(ctx, channelPrefix+p, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, path string) (Subscription, error) {
	path = Clean(path)
	ps := b.client.Subscribe(ctx, channelPrefix+path)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to confirm subscription: %w", err)
	}

	sub := &redisSub{ps: ps, ch: make(chan Event, b.buffer), done: make(chan struct{})}
	go sub.receive(path)
	return sub, nil
}

// Close is a no-op; the client belongs to the redis package
func (b *RedisBroker) Close() error { return nil }

type redisSub struct {
	ps   *redis.PubSub
	ch   chan Event
	done chan struct{}
	once sync.Once
}

func (s *redisSub) Events() <-chan Event { return s.ch }

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() { err = s.ps.Close() })
	<-s.done
	return err
}

func (s *redisSub) receive(path string) {
	defer close(s.done)
	defer close(s.ch)

	for msg := range s.ps.Channel() {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			log.Error().Err(err).Str("channel", msg.Channel).Msg("dropping malformed change event")
			continue
		}
		select {
		case s.ch <- ev:
		default:
			log.Warn().Str("path", path).Msg("subscriber fell behind, evicting")
			s.once.Do(func() { _ = s.ps.Close() })
			return
		}
	}
}
