package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/shopsync/pkg/errors"
	"github.com/utafrali/shopsync/services/storefront/internal/repository"
)

var (
	_ repository.Store   = (*Store)(nil)
	_ repository.Watcher = (*Store)(nil)
)

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.Get(ctx, "cart")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	value := []byte(`["p1"]`)
	require.NoError(t, s.Set(ctx, "wishlistIds", value))
	value[0] = 'X'

	got, err := s.Get(ctx, "wishlistIds")
	require.NoError(t, err)
	assert.Equal(t, `["p1"]`, string(got))

	got[0] = 'Y'
	again, _ := s.Get(ctx, "wishlistIds")
	assert.Equal(t, `["p1"]`, string(again))

	require.NoError(t, s.Delete(ctx, "wishlistIds"))
	require.NoError(t, s.Delete(ctx, "wishlistIds"))
	_, err = s.Get(ctx, "wishlistIds")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Empty(t, s.Keys())
}

type collector struct {
	mu      sync.Mutex
	changes []repository.Change
}

func (c *collector) add(ch repository.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, ch)
}

func (c *collector) snapshot() []repository.Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]repository.Change(nil), c.changes...)
}

func TestStore_WatchSeesOtherTabsOnly(t *testing.T) {
	backend := NewBackend()
	tabA, tabB := backend.Open(), backend.Open()
	assert.NotEqual(t, tabA.Origin(), tabB.Origin())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen collector
	started := make(chan struct{})
	go func() {
		close(started)
		_ = tabA.Watch(ctx, seen.add)
	}()
	<-started
	require.Eventually(t, func() bool { return backend.Watchers() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, tabA.Set(ctx, "cart", []byte(`[]`)))
	require.NoError(t, tabB.Set(ctx, "accessToken", []byte(`"tok"`)))
	require.NoError(t, tabB.Delete(ctx, "cart"))

	require.Eventually(t, func() bool { return len(seen.snapshot()) == 2 }, time.Second, time.Millisecond)
	changes := seen.snapshot()
	assert.Equal(t, "accessToken", changes[0].Key)
	assert.Equal(t, `"tok"`, string(changes[0].Value))
	assert.Equal(t, tabB.Origin(), changes[0].Origin)
	assert.Equal(t, "cart", changes[1].Key)
	assert.True(t, changes[1].Deleted)

	got, err := tabA.Get(ctx, "accessToken")
	require.NoError(t, err)
	assert.Equal(t, `"tok"`, string(got))
}

func TestStore_WatchStopsOnCancel(t *testing.T) {
	backend := NewBackend()
	tab := backend.Open()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- tab.Watch(ctx, func(repository.Change) {}) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}

	require.NoError(t, backend.Open().Set(context.Background(), "k", []byte("1")))
}
