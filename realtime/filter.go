package realtime

import "sync"

// MapFunc rewrites an event for one subscriber. Returning false drops it.
type MapFunc func(Event) (Event, bool)

type mappedSub struct {
	inner Subscription
	ch    chan Event
	done  chan struct{}
	once  sync.Once
}

// Map wraps sub so every event passes through fn. The wrapper ends when sub
// ends, so an evicted subscriber still sees its channel close.
func Map(sub Subscription, fn MapFunc) Subscription {
	m := &mappedSub{
		inner: sub,
		ch:    make(chan Event),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(m.ch)
		for ev := range sub.Events() {
			out, ok := fn(ev)
			if !ok {
				continue
			}
			select {
			case m.ch <- out:
			case <-m.done:
				return
			}
		}
	}()
	return m
}

func (m *mappedSub) Events() <-chan Event { return m.ch }

func (m *mappedSub) Close() error {
	var err error
	m.once.Do(func() {
		close(m.done)
		err = m.inner.Close()
	})
	return err
}
