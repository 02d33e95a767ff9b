package realtime

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// LocalBroker fans events out in process
type LocalBroker struct {
	mu     sync.Mutex
	subs   map[string]map[*localSub]struct{}
	buffer int
	closed bool
}

func NewLocalBroker(buffer int) *LocalBroker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &LocalBroker{
		subs:   make(map[string]map[*localSub]struct{}),
		buffer: buffer,
	}
}

type localSub struct {
	broker *LocalBroker
	path   string
	ch     chan Event
	once   sync.Once
}

func (s *localSub) Events() <-chan Event { return s.ch }

func (s *localSub) Close() error {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	s.broker.remove(s)
	return nil
}

func (b *LocalBroker) Subscribe(_ context.Context, path string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	sub := &localSub{broker: b, path: Clean(path), ch: make(chan Event, b.buffer)}
	set, ok := b.subs[sub.path]
	if !ok {
		set = make(map[*localSub]struct{})
		b.subs[sub.path] = set
	}
	set[sub] = struct{}{}
	return sub, nil
}

func (b *LocalBroker) Publish(_ context.Context, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	for _, p := range Ancestors(ev.Path) {
		for sub := range b.subs[p] {
			select {
			case sub.ch <- ev:
			default:
				log.Warn().Str("path", sub.path).Msg("subscriber fell behind, evicting")
				b.remove(sub)
			}
		}
	}
	return nil
}

// Close ends every subscription
func (b *LocalBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, set := range b.subs {
		for sub := range set {
			b.remove(sub)
		}
	}
	return nil
}

// remove must be called with b.mu held
func (b *LocalBroker) remove(sub *localSub) {
	if set, ok := b.subs[sub.path]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, sub.path)
		}
	}
	sub.once.Do(func() { close(sub.ch) })
}
