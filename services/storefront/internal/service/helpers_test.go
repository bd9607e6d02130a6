package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/shopsync/pkg/logger"
	"github.com/utafrali/shopsync/services/storefront/internal/domain"
	"github.com/utafrali/shopsync/services/storefront/internal/event"
	"github.com/utafrali/shopsync/services/storefront/internal/localstore"
	"github.com/utafrali/shopsync/services/storefront/internal/remote"
	"github.com/utafrali/shopsync/services/storefront/internal/repository/memory"
)

// mockRemote is a testify mock of remote.WishlistClient.
type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) List(ctx context.Context, token string) (domain.WishlistSet, error) {
	args := m.Called(ctx, token)
	set, _ := args.Get(0).(domain.WishlistSet)
	return set, args.Error(1)
}

func (m *mockRemote) Add(ctx context.Context, token, productID string) error {
	return m.Called(ctx, token, productID).Error(0)
}

func (m *mockRemote) Remove(ctx context.Context, token, productID string) error {
	return m.Called(ctx, token, productID).Error(0)
}

// fakeServer is an in-memory server-side wishlist satisfying
// remote.WishlistClient.
type fakeServer struct {
	mu    sync.Mutex
	ids   domain.WishlistSet
	calls []string
	fail  map[string]error // "add:p1" -> error, consumed by the first matching call
	delay map[string]time.Duration
}

func newFakeServer(ids ...string) *fakeServer {
	return &fakeServer{
		ids:   domain.NewWishlistSet(ids...),
		fail:  make(map[string]error),
		delay: make(map[string]time.Duration),
	}
}

func (f *fakeServer) List(_ context.Context, _ string) (domain.WishlistSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "list")
	if err := f.takeFailure("list"); err != nil {
		return domain.WishlistSet{}, err
	}
	return f.ids.Clone(), nil
}

func (f *fakeServer) Add(ctx context.Context, _ string, id string) error {
	return f.mutate(ctx, "add:"+id, func() { f.ids.Add(id) })
}

func (f *fakeServer) Remove(ctx context.Context, _ string, id string) error {
	return f.mutate(ctx, "remove:"+id, func() { f.ids.Remove(id) })
}

func (f *fakeServer) mutate(ctx context.Context, call string, apply func()) error {
	f.mu.Lock()
	d := f.delay[call]
	f.mu.Unlock()
	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if err := f.takeFailure(call); err != nil {
		return err
	}
	apply()
	return nil
}

// takeFailure returns and clears the failure configured for call. f.mu must
// be held.
func (f *fakeServer) takeFailure(call string) error {
	err := f.fail[call]
	delete(f.fail, call)
	return err
}

func (f *fakeServer) set() domain.WishlistSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ids.Clone()
}

func (f *fakeServer) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// staticTokens is a TokenSource returning a fixed token.
type staticTokens struct {
	mu    sync.Mutex
	token string
}

func (s *staticTokens) Token(context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *staticTokens) set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// recorder collects wishlistUpdated events.
type recorder struct {
	mu     sync.Mutex
	events []event.WishlistUpdated
}

func (r *recorder) handle(_ context.Context, e event.WishlistUpdated) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) all() []event.WishlistUpdated {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.WishlistUpdated(nil), r.events...)
}

type wishlistFixture struct {
	svc     *WishlistService
	store   *memory.Store
	adapter *localstore.Adapter
	tokens  *staticTokens
	events  *event.Broadcaster
	seen    *recorder
}

// testReconcilerConfig uses a long delay so runs only happen when a test
// flushes them explicitly.
func testReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{Delay: time.Hour}
}

func newWishlistFixture(t *testing.T, client remote.WishlistClient, token string, cfg ReconcilerConfig) *wishlistFixture {
	t.Helper()
	store := memory.NewStore()
	adapter := localstore.NewAdapter(store, logger.Discard())
	tokens := &staticTokens{token: token}
	b := event.NewBroadcaster(logger.Discard())
	seen := &recorder{}
	b.OnWishlistUpdated(seen.handle)

	svc := NewWishlistService(adapter, tokens, client, b, cfg, logger.Discard())
	t.Cleanup(svc.Close)
	return &wishlistFixture{svc: svc, store: store, adapter: adapter, tokens: tokens, events: b, seen: seen}
}
