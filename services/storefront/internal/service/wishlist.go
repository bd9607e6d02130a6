// Package service holds the storefront's stateful engines: the optimistic
// wishlist and the local cart.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	apperrors "github.com/utafrali/shopsync/pkg/errors"
	"github.com/utafrali/shopsync/services/storefront/internal/domain"
	"github.com/utafrali/shopsync/services/storefront/internal/event"
	"github.com/utafrali/shopsync/services/storefront/internal/localstore"
	"github.com/utafrali/shopsync/services/storefront/internal/remote"
	"github.com/utafrali/shopsync/services/storefront/internal/repository"
)

// TokenSource returns the current access token, or "" when anonymous.
type TokenSource interface {
	Token(ctx context.Context) string
}

// WishlistService is the optimistic wishlist. Mutations apply locally, are
// persisted and broadcast before returning, and are then confirmed with the
// server in the background. When the latest confirmation for an id is
// rejected, the id reverts to the membership the server last acknowledged.
//
// Remote calls for the same product id run one at a time in mutation order.
type WishlistService struct {
	store  *localstore.Adapter
	tokens TokenSource
	remote remote.WishlistClient
	events *event.Broadcaster
	logger *slog.Logger

	mu        sync.Mutex
	ids       domain.WishlistSet
	gens      map[string]uint64 // normalized id -> seq of its latest mutation
	confirmed map[string]bool   // normalized id -> membership the server last acknowledged
	seq       uint64
	refreshed uint64 // seq at the last authoritative overwrite
	loading   bool

	reconciler *Reconciler
	queue      *keyQueue
	background sync.WaitGroup
	unsub      func()

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWishlistService creates the wishlist and subscribes it to userLoggedIn.
// The wishlist is empty until Load is called.
func NewWishlistService(
	store *localstore.Adapter,
	tokens TokenSource,
	client remote.WishlistClient,
	events *event.Broadcaster,
	cfg ReconcilerConfig,
	logger *slog.Logger,
) *WishlistService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &WishlistService{
		store:     store,
		tokens:    tokens,
		remote:    client,
		events:    events,
		logger:    logger,
		gens:      make(map[string]uint64),
		confirmed: make(map[string]bool),
		loading:   true,
		queue:     newKeyQueue(),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.reconciler = newReconciler(ctx, cfg, s.snapshot, tokens, client, s.applyQueued, logger)
	s.unsub = events.OnUserLoggedIn(s.onUserLoggedIn)
	return s
}

// Reconciler returns the wishlist's reconciler.
func (s *WishlistService) Reconciler() *Reconciler {
	return s.reconciler
}

// Load hydrates the wishlist from storage, migrating the legacy format, and
// then from the server when authenticated. Hydration neither broadcasts nor
// schedules reconciliation. A failed remote fetch keeps the local copy.
func (s *WishlistService) Load(ctx context.Context) {
	local := s.store.LoadWishlist(ctx)

	s.mu.Lock()
	s.loading = true
	s.ids = local
	s.seq++
	s.refreshed = s.seq
	clear(s.confirmed)
	wishlistSize.Set(float64(local.Len()))
	s.mu.Unlock()

	if token := s.tokens.Token(ctx); token != "" {
		if err := s.overwriteFromRemote(ctx, token); err != nil {
			s.logger.WarnContext(ctx, "initial wishlist fetch failed, keeping local copy",
				slog.String("error", err.Error()),
			)
		}
	}

	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "wishlist loaded", slog.Int("count", s.Count()))
}

// Has reports whether id is in the wishlist, ignoring case.
func (s *WishlistService) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids.Has(id)
}

// IDs returns the ids in insertion order.
func (s *WishlistService) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids.IDs()
}

// Count returns the number of ids.
func (s *WishlistService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids.Len()
}

func (s *WishlistService) snapshot() domain.WishlistSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids.Clone()
}

// Add puts id on the wishlist. Adding a present id does nothing.
func (s *WishlistService) Add(ctx context.Context, id string) error {
	id, err := validID(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.ids.Has(id) {
		s.mu.Unlock()
		return nil
	}
	gen := s.applyLocked(ctx, opAdd, id)
	s.mu.Unlock()

	s.afterMutation(ctx)
	s.confirm(ctx, opAdd, id, gen)
	return nil
}

// Remove takes id off the wishlist. Removing an absent id does nothing.
func (s *WishlistService) Remove(ctx context.Context, id string) error {
	id, err := validID(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	stored, ok := s.ids.Lookup(id)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	gen := s.applyLocked(ctx, opRemove, stored)
	s.mu.Unlock()

	s.afterMutation(ctx)
	s.confirm(ctx, opRemove, stored, gen)
	return nil
}

// Toggle flips membership of id and returns the new membership. Exactly one
// remote call is made, chosen from the membership before the flip.
func (s *WishlistService) Toggle(ctx context.Context, id string) (bool, error) {
	id, err := validID(id)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	op := opAdd
	if stored, ok := s.ids.Lookup(id); ok {
		op, id = opRemove, stored
	}
	gen := s.applyLocked(ctx, op, id)
	s.mu.Unlock()

	s.afterMutation(ctx)
	s.confirm(ctx, op, id, gen)
	return op == opAdd, nil
}

// Refresh replaces the wishlist with the server's copy. It does nothing for
// anonymous sessions.
func (s *WishlistService) Refresh(ctx context.Context) error {
	token := s.tokens.Token(ctx)
	if token == "" {
		return nil
	}
	if err := s.overwriteFromRemote(ctx, token); err != nil {
		return err
	}
	s.afterMutation(ctx)
	return nil
}

func (s *WishlistService) overwriteFromRemote(ctx context.Context, token string) error {
	remoteIDs, err := s.remote.List(ctx, token)
	if err != nil {
		return fmt.Errorf("refresh wishlist: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = remoteIDs
	s.seq++
	s.refreshed = s.seq
	clear(s.confirmed)
	s.persistLocked(ctx)

	s.logger.DebugContext(ctx, "wishlist overwritten from server", slog.Int("count", remoteIDs.Len()))
	return nil
}

// applyLocked mutates the set, persists it and returns the mutation's
// generation. s.mu must be held.
func (s *WishlistService) applyLocked(ctx context.Context, op, id string) uint64 {
	key := domain.NormalizeProductID(id)
	if _, ok := s.confirmed[key]; !ok {
		s.confirmed[key] = s.ids.Has(id)
	}
	if op == opAdd {
		s.ids.Add(id)
	} else {
		s.ids.Remove(id)
	}
	s.seq++
	s.gens[key] = s.seq
	s.persistLocked(ctx)
	wishlistMutations.WithLabelValues(op).Inc()
	return s.seq
}

func (s *WishlistService) persistLocked(ctx context.Context) {
	wishlistSize.Set(float64(s.ids.Len()))
	if err := s.store.SaveWishlist(ctx, s.ids); err != nil {
		s.logger.WarnContext(ctx, "failed to persist wishlist", slog.String("error", err.Error()))
	}
}

// afterMutation broadcasts the new state and schedules reconciliation,
// except during the initial load.
func (s *WishlistService) afterMutation(ctx context.Context) {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return
	}
	e := event.WishlistUpdated{Count: s.ids.Len(), IDs: s.ids.IDs()}
	s.mu.Unlock()

	s.events.PublishWishlistUpdated(ctx, e)
	s.reconciler.Trigger()
}

// confirm issues the remote call for a local mutation in the background and
// reverts the mutation if the call fails.
func (s *WishlistService) confirm(ctx context.Context, op, id string, gen uint64) {
	token := s.tokens.Token(ctx)
	if token == "" {
		return
	}

	callCtx, release := s.detach(ctx)
	s.queue.Go(domain.NormalizeProductID(id), func() {
		defer release()
		err := s.call(callCtx, token, op, id)
		if err == nil {
			s.acknowledge(op, id)
			wishlistRemoteCalls.WithLabelValues(op, resultOK).Inc()
			return
		}
		wishlistRemoteCalls.WithLabelValues(op, resultError).Inc()
		s.logger.ErrorContext(callCtx, "remote wishlist call failed",
			slog.String("op", op),
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
		s.rollback(callCtx, op, id, gen)
	})
}

// detach keeps ctx's values but ties cancellation to the service lifetime.
// The returned func must be called once the work is done.
func (s *WishlistService) detach(ctx context.Context) (context.Context, func()) {
	callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.ctx, cancel)
	return callCtx, func() {
		stop()
		cancel()
	}
}

func (s *WishlistService) call(ctx context.Context, token, op, id string) error {
	if op == opAdd {
		return s.remote.Add(ctx, token, id)
	}
	return s.remote.Remove(ctx, token, id)
}

// applyQueued runs a reconciliation call through the per-id queue and waits
// for its result.
func (s *WishlistService) applyQueued(ctx context.Context, token, op, id string) error {
	var err error
	if qerr := s.queue.Do(ctx, domain.NormalizeProductID(id), func() {
		err = s.call(ctx, token, op, id)
	}); qerr != nil {
		return qerr
	}
	if err == nil {
		s.acknowledge(op, id)
	}
	return err
}

// acknowledge records the membership the server holds after a successful call.
func (s *WishlistService) acknowledge(op, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmed[domain.NormalizeProductID(id)] = op == opAdd
}

func (s *WishlistService) rollback(ctx context.Context, op, id string, gen uint64) {
	s.mu.Lock()
	key := domain.NormalizeProductID(id)
	if s.gens[key] != gen || gen <= s.refreshed {
		s.mu.Unlock()
		s.logger.InfoContext(ctx, "rollback skipped, id changed since",
			slog.String("op", op),
			slog.String("product_id", id),
		)
		return
	}
	want, ok := s.confirmed[key]
	if !ok {
		want = op != opAdd
	}
	if s.ids.Has(id) == want {
		s.mu.Unlock()
		s.logger.InfoContext(ctx, "rollback skipped, membership matches server",
			slog.String("op", op),
			slog.String("product_id", id),
		)
		return
	}
	if want {
		s.ids.Add(id)
	} else {
		s.ids.Remove(id)
	}
	s.persistLocked(ctx)
	s.mu.Unlock()

	wishlistRollbacks.WithLabelValues(op).Inc()
	s.logger.WarnContext(ctx, "wishlist mutation rolled back",
		slog.String("op", op),
		slog.String("product_id", id),
	)
	s.afterMutation(ctx)
}

func (s *WishlistService) onUserLoggedIn(ctx context.Context) {
	s.goBackground(ctx, "refresh after login", s.Refresh)
}

// HandleStorageChange reacts to writes made by other instances sharing the
// store: a new non-empty access token triggers a refresh.
func (s *WishlistService) HandleStorageChange(ctx context.Context, c repository.Change) {
	if c.Key != localstore.KeyAccessToken || c.Deleted {
		return
	}
	if localstore.DecodeToken(c.Value) == "" {
		return
	}
	s.logger.DebugContext(ctx, "access token changed elsewhere", slog.String("origin", c.Origin))
	s.goBackground(ctx, "refresh after storage change", s.Refresh)
}

// WatchStorage feeds changes from w into HandleStorageChange until ctx is
// done.
func (s *WishlistService) WatchStorage(ctx context.Context, w repository.Watcher) error {
	return w.Watch(ctx, func(c repository.Change) {
		s.HandleStorageChange(ctx, c)
	})
}

func (s *WishlistService) goBackground(ctx context.Context, what string, fn func(context.Context) error) {
	callCtx, release := s.detach(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer release()
		if err := fn(callCtx); err != nil {
			s.logger.ErrorContext(callCtx, what+" failed", slog.String("error", err.Error()))
		}
	}()
}

// Wait blocks until every background remote call has settled.
func (s *WishlistService) Wait() {
	s.background.Wait()
	s.queue.Wait()
}

// Close cancels pending reconciliation and in-flight remote calls and waits
// for them to return.
func (s *WishlistService) Close() {
	s.unsub()
	s.reconciler.Stop()
	s.cancel()
	s.Wait()
}

func validID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", apperrors.InvalidInput("product id is required")
	}
	return id, nil
}
