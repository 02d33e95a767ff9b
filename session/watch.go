package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/meinhoongagan/spa-app/realtime"
)

// Update is one resolution pushed by a Watcher
type Update struct {
	Session Session
	Err     error
}

// Watcher re-resolves a principal every time its user record changes.
// Close must be called to release the subscription.
type Watcher struct {
	updates chan Update
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// resubscribeDelay spaces out resubscribe attempts after the broker drops us
var resubscribeDelay = 500 * time.Millisecond

// Watch emits the current session straight away and again after each change
// published under the user's path.
func Watch(ctx context.Context, broker realtime.Broker, db *gorm.DB, principalID string) (*Watcher, error) {
	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		updates: make(chan Update, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	if principalID == "" {
		go func() {
			defer close(w.done)
			defer close(w.updates)
			w.send(ctx, Update{Session: Unauthenticated{}})
			<-ctx.Done()
		}()
		return w, nil
	}

	sub, err := broker.Subscribe(ctx, realtime.UserPath(principalID))
	if err != nil {
		cancel()
		return nil, err
	}
	go w.run(ctx, broker, db, principalID, sub)
	return w, nil
}

func (w *Watcher) Updates() <-chan Update { return w.updates }

func (w *Watcher) Close() {
	w.once.Do(w.cancel)
	<-w.done
}

func (w *Watcher) run(ctx context.Context, broker realtime.Broker, db *gorm.DB, principalID string, sub realtime.Subscription) {
	defer close(w.done)
	defer close(w.updates)
	defer func() { _ = sub.Close() }()

	resolve := func() bool {
		s, err := Resolve(ctx, db, principalID)
		return w.send(ctx, Update{Session: s, Err: err})
	}

	if !resolve() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.Events():
			if ok {
				if !resolve() {
					return
				}
				continue
			}

			// evicted; take a new subscription and a fresh read
			_ = sub.Close()
			for {
				next, err := broker.Subscribe(ctx, realtime.UserPath(principalID))
				if err == nil {
					sub = next
					break
				}
				log.Warn().Err(err).Str("user_id", principalID).Msg("session resubscribe failed")
				select {
				case <-ctx.Done():
					return
				case <-time.After(resubscribeDelay):
				}
			}
			if !resolve() {
				return
			}
		}
	}
}

// send drops a stale pending update in favour of the newer one
func (w *Watcher) send(ctx context.Context, u Update) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case w.updates <- u:
			return true
		default:
			select {
			case <-w.updates:
			default:
			}
		}
	}
}
