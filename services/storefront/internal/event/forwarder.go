package event

import (
	"context"
	"log/slog"
	"sync"

	pkgkafka "github.com/utafrali/shopsync/pkg/kafka"
	"github.com/utafrali/shopsync/pkg/logger"
	"github.com/utafrali/shopsync/services/storefront/internal/domain"
)

// Kafka topics for forwarded events.
var (
	TopicWishlistUpdated = pkgkafka.Topic("wishlist", "updated")
	TopicCartUpdated     = pkgkafka.Topic("cart", "updated")
)

// Aggregate types and source for forwarded events.
const (
	AggregateTypeWishlist = "wishlist"
	AggregateTypeCart     = "cart"
	SourceStorefront      = "storefront"
)

// DefaultQueueSize bounds the events waiting to be published.
const DefaultQueueSize = 256

// WishlistUpdatedData is the payload of a wishlist.updated event.
type WishlistUpdatedData struct {
	ClientID string   `json:"client_id"`
	Count    int      `json:"count"`
	IDs      []string `json:"ids"`
}

// CartUpdatedData is the payload of a cart.updated event.
type CartUpdatedData struct {
	ClientID string             `json:"client_id"`
	Summary  domain.CartSummary `json:"summary"`
}

// CartSnapshot returns the current cart summary.
type CartSnapshot func() domain.CartSummary

type outbound struct {
	topic string
	event *pkgkafka.Event
}

// Forwarder republishes broadcaster events to Kafka. Handlers only enqueue;
// Run publishes in order on its own goroutine so broadcasting never waits on
// the broker. When the queue is full, events are dropped and logged.
type Forwarder struct {
	publisher pkgkafka.Publisher
	clientID  string
	cart      CartSnapshot
	logger    *slog.Logger

	mu     sync.Mutex // guards queue sends against Close
	closed bool
	queue  chan outbound
	unsubs []func()
}

// NewForwarder creates a forwarder publishing as clientID. cart may be nil,
// in which case cart events carry an empty summary.
func NewForwarder(publisher pkgkafka.Publisher, clientID string, cart CartSnapshot, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		publisher: publisher,
		clientID:  clientID,
		cart:      cart,
		logger:    logger,
		queue:     make(chan outbound, DefaultQueueSize),
	}
}

// Attach subscribes the forwarder to b.
func (f *Forwarder) Attach(b *Broadcaster) {
	f.unsubs = append(f.unsubs,
		b.OnWishlistUpdated(f.onWishlistUpdated),
		b.OnCartUpdated(f.onCartUpdated),
	)
}

func (f *Forwarder) onWishlistUpdated(ctx context.Context, e WishlistUpdated) {
	data := WishlistUpdatedData{ClientID: f.clientID, Count: e.Count, IDs: e.IDs}
	f.enqueue(ctx, TopicWishlistUpdated, AggregateTypeWishlist, data)
}

func (f *Forwarder) onCartUpdated(ctx context.Context) {
	data := CartUpdatedData{ClientID: f.clientID}
	if f.cart != nil {
		data.Summary = f.cart()
	}
	f.enqueue(ctx, TopicCartUpdated, AggregateTypeCart, data)
}

func (f *Forwarder) enqueue(ctx context.Context, topic, aggregateType string, data any) {
	evt, err := pkgkafka.NewEvent(topic, f.clientID, aggregateType, SourceStorefront, data)
	if err != nil {
		f.logger.ErrorContext(ctx, "failed to build event",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		return
	}
	evt.CorrelationID = logger.CorrelationIDFromContext(ctx)
	if userID := logger.UserIDFromContext(ctx); userID != "" {
		evt.WithMetadata("user_id", userID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.queue <- outbound{topic: topic, event: evt}:
	default:
		f.logger.WarnContext(ctx, "event queue full, dropping event", slog.String("topic", topic))
	}
}

// Run publishes queued events until ctx is done or Close is called, then
// drains what is left using a fresh context.
func (f *Forwarder) Run(ctx context.Context) {
	for {
		select {
		case out, ok := <-f.queue:
			if !ok {
				return
			}
			f.publish(ctx, out)
		case <-ctx.Done():
			f.drain()
			return
		}
	}
}

func (f *Forwarder) drain() {
	for {
		select {
		case out, ok := <-f.queue:
			if !ok {
				return
			}
			f.publish(context.Background(), out)
		default:
			return
		}
	}
}

func (f *Forwarder) publish(ctx context.Context, out outbound) {
	if err := f.publisher.Publish(ctx, out.topic, out.event); err != nil {
		f.logger.ErrorContext(ctx, "failed to forward event",
			slog.String("topic", out.topic),
			slog.String("event_id", out.event.EventID),
			slog.String("error", err.Error()),
		)
		return
	}
	f.logger.DebugContext(ctx, "forwarded event",
		slog.String("topic", out.topic),
		slog.String("event_id", out.event.EventID),
	)
}

// Close unsubscribes from the broadcaster and closes the queue. Run returns
// once the remaining events are published.
func (f *Forwarder) Close() {
	for _, unsub := range f.unsubs {
		unsub()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.queue)
	}
}
