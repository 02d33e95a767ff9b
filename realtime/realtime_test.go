package realtime

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func assertQuiet(t *testing.T, sub Subscription) {
	t.Helper()
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAncestors(t *testing.T) {
	assert.Equal(t, []string{"users/u1/registrations/r1", "users/u1/registrations", "users/u1", "users"},
		Ancestors("/users/u1/registrations/r1/"))
	assert.Equal(t, []string{"services"}, Ancestors("services"))
	assert.Nil(t, Ancestors("//"))
	assert.Equal(t, "a/b", Join("a", "", "/b/"))
}

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent("/todos/1", OpPatch, map[string]bool{"completed": true})
	require.NoError(t, err)
	assert.Equal(t, "todos/1", ev.Path)
	assert.JSONEq(t, `{"completed":true}`, string(ev.Data))

	ev, err = NewEvent("todos/1", OpDelete, nil)
	require.NoError(t, err)
	assert.Empty(t, ev.Data)
}

func brokerSuite(t *testing.T, b Broker) {
	ctx := context.Background()

	t.Run("Should deliver descendant events to a parent subscriber", func(t *testing.T) {
		parent, err := b.Subscribe(ctx, "services")
		require.NoError(t, err)
		defer parent.Close()
		sibling, err := b.Subscribe(ctx, "todos")
		require.NoError(t, err)
		defer sibling.Close()

		ev, err := NewEvent(ServicePath("s1"), OpPut, map[string]string{"serviceName": "Spa"})
		require.NoError(t, err)
		require.NoError(t, b.Publish(ctx, ev))

		got := receive(t, parent)
		assert.Equal(t, "services/s1", got.Path)
		assert.Equal(t, OpPut, got.Op)
		assertQuiet(t, sibling)
	})

	t.Run("Should not deliver parent events to a child subscriber", func(t *testing.T) {
		child, err := b.Subscribe(ctx, "users/u1/registrations")
		require.NoError(t, err)
		defer child.Close()

		ev, _ := NewEvent(UserPath("u1"), OpPatch, nil)
		require.NoError(t, b.Publish(ctx, ev))
		assertQuiet(t, child)

		ev, _ = NewEvent(UserRegistrationPath("u1", "r1"), OpDelete, nil)
		require.NoError(t, b.Publish(ctx, ev))
		assert.Equal(t, OpDelete, receive(t, child).Op)
	})

	t.Run("Should close the channel on Close", func(t *testing.T) {
		sub, err := b.Subscribe(ctx, "todos")
		require.NoError(t, err)
		require.NoError(t, sub.Close())
		select {
		case _, ok := <-sub.Events():
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("channel not closed")
		}
	})
}

func TestLocalBroker(t *testing.T) {
	b := NewLocalBroker(8)
	defer b.Close()
	brokerSuite(t, b)

	t.Run("Should evict a subscriber that falls behind", func(t *testing.T) {
		b := NewLocalBroker(1)
		sub, err := b.Subscribe(context.Background(), "todos")
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			ev, _ := NewEvent("todos/x", OpPut, nil)
			require.NoError(t, b.Publish(context.Background(), ev))
		}

		_, ok := <-sub.Events()
		assert.True(t, ok, "buffered event is still delivered")
		_, ok = <-sub.Events()
		assert.False(t, ok, "evicted subscription is closed")
		assert.NoError(t, sub.Close())
	})

	t.Run("Should refuse after Close", func(t *testing.T) {
		b := NewLocalBroker(1)
		require.NoError(t, b.Close())
		_, err := b.Subscribe(context.Background(), "todos")
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestRedisBroker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	b, err := NewRedisBroker(client, 8)
	require.NoError(t, err)
	brokerSuite(t, b)

	_, err = NewRedisBroker(nil, 8)
	assert.Error(t, err)
}

type fakeSub struct{ ch chan Event }

func (f fakeSub) Events() <-chan Event { return f.ch }
func (f fakeSub) Close() error         { return nil }

func TestStream(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	sub := fakeSub{ch: make(chan Event, 2)}

	ev, _ := NewEvent("todos/1", OpPatch, map[string]bool{"completed": true})
	sub.ch <- ev
	close(sub.ch)

	err := Stream(context.Background(), w, []string{"a"}, sub)
	assert.ErrorIs(t, err, ErrEvicted)

	out := buf.String()
	snapshot := strings.Index(out, "event: snapshot\ndata: [\"a\"]\n\n")
	patch := strings.Index(out, "event: patch\n")
	reset := strings.Index(out, "event: reset\n")
	require.GreaterOrEqual(t, snapshot, 0)
	assert.Greater(t, patch, snapshot)
	assert.Greater(t, reset, patch)
}

func TestStream_ContextDone(t *testing.T) {
	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Stream(ctx, bufio.NewWriter(&buf), nil, fakeSub{ch: make(chan Event)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, buf.String(), "event: snapshot")
}

func TestMap(t *testing.T) {
	b := NewLocalBroker(1)
	defer b.Close()
	ctx := context.Background()

	inner, err := b.Subscribe(ctx, "registrations")
	require.NoError(t, err)
	sub := Map(inner, func(ev Event) (Event, bool) {
		if ev.Path == "registrations/skip" {
			return ev, false
		}
		ev.Op = OpDelete
		return ev, true
	})

	t.Run("Should drop and rewrite events", func(t *testing.T) {
		skip, _ := NewEvent("registrations/skip", OpPut, nil)
		keep, _ := NewEvent("registrations/r1", OpPut, nil)
		require.NoError(t, b.Publish(ctx, skip))
		require.NoError(t, b.Publish(ctx, keep))

		ev := receive(t, sub)
		assert.Equal(t, "registrations/r1", ev.Path)
		assert.Equal(t, OpDelete, ev.Op)
	})

	t.Run("Should end when the inner subscription is evicted", func(t *testing.T) {
		unread, err := b.Subscribe(ctx, "registrations")
		require.NoError(t, err)
		wrapped := Map(unread, func(ev Event) (Event, bool) { return ev, true })
		defer wrapped.Close()

		// nobody reads wrapped, so the inner buffer of one overflows
		for i := 0; i < 4; i++ {
			ev, _ := NewEvent("registrations/r2", OpPatch, nil)
			require.NoError(t, b.Publish(ctx, ev))
			<-sub.Events()
		}

		deadline := time.After(2 * time.Second)
		for {
			select {
			case _, ok := <-wrapped.Events():
				if !ok {
					return
				}
			case <-deadline:
				t.Fatal("wrapped subscription did not end")
			}
		}
	})

	t.Run("Should close the inner subscription", func(t *testing.T) {
		require.NoError(t, sub.Close())
		_, ok := <-inner.Events()
		assert.False(t, ok)
		assert.NoError(t, sub.Close())
	})
}
