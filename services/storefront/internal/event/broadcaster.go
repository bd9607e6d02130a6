// Package event provides the in-process notifications the sync engine emits
// and forwards them to Kafka.
package event

import (
	"context"
	"log/slog"
	"sync"
)

// Event names.
const (
	NameWishlistUpdated = "wishlistUpdated"
	NameCartUpdated     = "cartUpdated"
	NameUserLoggedIn    = "userLoggedIn"
)

// WishlistUpdated is emitted after every local wishlist change.
type WishlistUpdated struct {
	Count int      `json:"count"`
	IDs   []string `json:"ids"`
}

// Handler types for each event.
type (
	WishlistHandler func(ctx context.Context, e WishlistUpdated)
	Handler         func(ctx context.Context)
)

// topic holds the subscribers of one event type in subscription order.
type topic[T any] struct {
	mu   sync.RWMutex
	next uint64
	subs []subscription[T]
}

type subscription[T any] struct {
	id uint64
	fn func(context.Context, T)
}

func (t *topic[T]) subscribe(fn func(context.Context, T)) func() {
	t.mu.Lock()
	t.next++
	id := t.next
	t.subs = append(t.subs, subscription[T]{id: id, fn: fn})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			for i, s := range t.subs {
				if s.id == id {
					t.subs = append(t.subs[:i:i], t.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (t *topic[T]) snapshot() []subscription[T] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]subscription[T], len(t.subs))
	copy(out, t.subs)
	return out
}

func (t *topic[T]) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// Broadcaster is a typed in-memory pub/sub. Publishing calls every handler
// synchronously in subscription order; a panicking handler is logged and
// does not stop delivery to the rest. Handlers may subscribe, unsubscribe or
// publish from within a handler.
type Broadcaster struct {
	wishlist topic[WishlistUpdated]
	cart     topic[struct{}]
	login    topic[struct{}]
	logger   *slog.Logger
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{logger: logger}
}

// OnWishlistUpdated subscribes fn and returns its unsubscribe func.
func (b *Broadcaster) OnWishlistUpdated(fn WishlistHandler) func() {
	return b.wishlist.subscribe(fn)
}

// OnCartUpdated subscribes fn and returns its unsubscribe func.
func (b *Broadcaster) OnCartUpdated(fn Handler) func() {
	return b.cart.subscribe(func(ctx context.Context, _ struct{}) { fn(ctx) })
}

// OnUserLoggedIn subscribes fn and returns its unsubscribe func.
func (b *Broadcaster) OnUserLoggedIn(fn Handler) func() {
	return b.login.subscribe(func(ctx context.Context, _ struct{}) { fn(ctx) })
}

// PublishWishlistUpdated notifies wishlist subscribers. IDs is copied so
// handlers cannot alias the caller's slice.
func (b *Broadcaster) PublishWishlistUpdated(ctx context.Context, e WishlistUpdated) {
	e.IDs = append([]string{}, e.IDs...)
	dispatch(ctx, b.logger, NameWishlistUpdated, &b.wishlist, e)
}

// PublishCartUpdated notifies cart subscribers.
func (b *Broadcaster) PublishCartUpdated(ctx context.Context) {
	dispatch(ctx, b.logger, NameCartUpdated, &b.cart, struct{}{})
}

// PublishUserLoggedIn notifies login subscribers.
func (b *Broadcaster) PublishUserLoggedIn(ctx context.Context) {
	dispatch(ctx, b.logger, NameUserLoggedIn, &b.login, struct{}{})
}

// Subscribers returns the number of handlers registered for name.
func (b *Broadcaster) Subscribers(name string) int {
	switch name {
	case NameWishlistUpdated:
		return b.wishlist.len()
	case NameCartUpdated:
		return b.cart.len()
	case NameUserLoggedIn:
		return b.login.len()
	}
	return 0
}

func dispatch[T any](ctx context.Context, logger *slog.Logger, name string, t *topic[T], payload T) {
	for _, s := range t.snapshot() {
		call(ctx, logger, name, s.fn, payload)
	}
}

func call[T any](ctx context.Context, logger *slog.Logger, name string, fn func(context.Context, T), payload T) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "event handler panicked",
				slog.String("event", name),
				slog.Any("panic", r),
			)
		}
	}()
	fn(ctx, payload)
}
