package event

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/shopsync/pkg/logger"
)

func TestBroadcaster_DeliversInSubscriptionOrder(t *testing.T) {
	b := NewBroadcaster(logger.Discard())
	var got []string
	b.OnWishlistUpdated(func(_ context.Context, e WishlistUpdated) { got = append(got, "first") })
	b.OnWishlistUpdated(func(_ context.Context, e WishlistUpdated) { got = append(got, "second") })

	b.PublishWishlistUpdated(context.Background(), WishlistUpdated{Count: 1, IDs: []string{"p1"}})

	assert.Equal(t, []string{"first", "second"}, got)
}

func TestBroadcaster_WishlistPayload(t *testing.T) {
	b := NewBroadcaster(logger.Discard())
	var got WishlistUpdated
	b.OnWishlistUpdated(func(_ context.Context, e WishlistUpdated) { got = e })

	ids := []string{"p1", "p2"}
	b.PublishWishlistUpdated(context.Background(), WishlistUpdated{Count: 2, IDs: ids})
	ids[0] = "mutated"

	assert.Equal(t, 2, got.Count)
	assert.Equal(t, []string{"p1", "p2"}, got.IDs)
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBroadcaster(logger.Discard())
	calls := 0
	unsub := b.OnCartUpdated(func(context.Context) { calls++ })
	require.Equal(t, 1, b.Subscribers(NameCartUpdated))

	b.PublishCartUpdated(context.Background())
	unsub()
	unsub()
	b.PublishCartUpdated(context.Background())

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, b.Subscribers(NameCartUpdated))
}

func TestBroadcaster_UnsubscribeOnlyRemovesOwnHandler(t *testing.T) {
	b := NewBroadcaster(logger.Discard())
	var got []int
	unsubA := b.OnUserLoggedIn(func(context.Context) { got = append(got, 1) })
	b.OnUserLoggedIn(func(context.Context) { got = append(got, 2) })

	unsubA()
	b.PublishUserLoggedIn(context.Background())

	assert.Equal(t, []int{2}, got)
}

func TestBroadcaster_PanicDoesNotStopDelivery(t *testing.T) {
	b := NewBroadcaster(logger.Discard())
	delivered := false
	b.OnUserLoggedIn(func(context.Context) { panic("boom") })
	b.OnUserLoggedIn(func(context.Context) { delivered = true })

	assert.NotPanics(t, func() { b.PublishUserLoggedIn(context.Background()) })
	assert.True(t, delivered)
}

func TestBroadcaster_TopicsAreIndependent(t *testing.T) {
	b := NewBroadcaster(logger.Discard())
	var cart, login, wishlist int
	b.OnCartUpdated(func(context.Context) { cart++ })
	b.OnUserLoggedIn(func(context.Context) { login++ })
	b.OnWishlistUpdated(func(context.Context, WishlistUpdated) { wishlist++ })

	b.PublishCartUpdated(context.Background())

	assert.Equal(t, 1, cart)
	assert.Zero(t, login)
	assert.Zero(t, wishlist)
	assert.Zero(t, b.Subscribers("unknown"))
}

func TestBroadcaster_HandlerMayUnsubscribeDuringDispatch(t *testing.T) {
	b := NewBroadcaster(logger.Discard())
	calls := 0
	var unsub func()
	unsub = b.OnCartUpdated(func(context.Context) {
		calls++
		unsub()
	})
	b.OnCartUpdated(func(context.Context) { calls++ })

	b.PublishCartUpdated(context.Background())
	b.PublishCartUpdated(context.Background())

	assert.Equal(t, 3, calls)
}

func TestBroadcaster_ConcurrentUse(t *testing.T) {
	b := NewBroadcaster(logger.Discard())
	var mu sync.Mutex
	total := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := b.OnWishlistUpdated(func(context.Context, WishlistUpdated) {
				mu.Lock()
				total++
				mu.Unlock()
			})
			b.PublishWishlistUpdated(context.Background(), WishlistUpdated{})
			unsub()
		}()
	}
	wg.Wait()

	assert.Positive(t, total)
	assert.Zero(t, b.Subscribers(NameWishlistUpdated))
}
