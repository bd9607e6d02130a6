package localstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/shopsync/pkg/errors"
	"github.com/utafrali/shopsync/pkg/logger"
	"github.com/utafrali/shopsync/services/storefront/internal/domain"
	"github.com/utafrali/shopsync/services/storefront/internal/repository/memory"
)

func newAdapter(t *testing.T) (*Adapter, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewAdapter(store, logger.Discard()), store
}

// mockStore is a testify mock of repository.Store.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *mockStore) Set(ctx context.Context, key string, value []byte) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *mockStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func TestLoad_DefaultWhenAbsent(t *testing.T) {
	a, _ := newAdapter(t)
	assert.Equal(t, []string{"d"}, Load(context.Background(), a, "missing", []string{"d"}))
}

func TestLoad_DefaultWhenMalformed(t *testing.T) {
	a, store := newAdapter(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, KeyCart, []byte(`{not json`)))

	assert.Empty(t, a.LoadCart(ctx))
}

func TestLoad_DefaultWhenStoreFails(t *testing.T) {
	store := new(mockStore)
	store.On("Get", mock.Anything, KeyCart).Return(nil, errors.New("connection reset"))
	a := NewAdapter(store, logger.Discard())

	assert.Empty(t, a.LoadCart(context.Background()))
	store.AssertExpectations(t)
}

func TestSave_PropagatesStoreError(t *testing.T) {
	store := new(mockStore)
	store.On("Set", mock.Anything, KeyCart, []byte(`[]`)).Return(errors.New("read-only"))
	a := NewAdapter(store, logger.Discard())

	err := a.SaveCart(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save cart")
}

func TestSave_MarshalError(t *testing.T) {
	a, _ := newAdapter(t)
	err := a.Save(context.Background(), "bad", make(chan int))
	assert.Error(t, err)
}

func TestCart_RoundTrip(t *testing.T) {
	a, _ := newAdapter(t)
	ctx := context.Background()
	lines := []domain.CartLine{
		{ProductID: "x", VariantID: "v1", Quantity: 2, UnitPrice: 3.5, Selected: true,
			Customization: &domain.Customization{Text: "hi"}},
		{ProductID: "y", Quantity: 1},
	}

	require.NoError(t, a.SaveCart(ctx, lines))
	assert.Equal(t, lines, a.LoadCart(ctx))
}

func TestLoadCart_NormalizesDuplicates(t *testing.T) {
	a, store := newAdapter(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, KeyCart, []byte(
		`[{"productId":"x","variantId":null,"quantity":1},{"productId":"x","quantity":2},{"productId":"y","quantity":0}]`)))

	lines := a.LoadCart(ctx)
	require.Len(t, lines, 2)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, 1, lines[1].Quantity)
}

func TestWishlist_RoundTrip(t *testing.T) {
	a, _ := newAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.SaveWishlist(ctx, domain.NewWishlistSet("p1", "p2")))
	assert.True(t, domain.NewWishlistSet("p2", "p1").Equal(a.LoadWishlist(ctx)))
}

func TestLoadWishlist_MigratesLegacy(t *testing.T) {
	a, store := newAdapter(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, KeyWishlistIDs, []byte(`["p1"]`)))
	require.NoError(t, store.Set(ctx, KeyLegacyWishlist, []byte(
		`[{"id":"p1","name":"Mug"},{"_id":"p2"},{"product_id":"p3"},"junk",42,{"name":"no id"},[1,2]]`)))

	ids := a.LoadWishlist(ctx)

	assert.Equal(t, []string{"p1", "p2", "p3", "junk", "42"}, ids.IDs())
	_, err := store.Get(ctx, KeyLegacyWishlist)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	stored, err := store.Get(ctx, KeyWishlistIDs)
	require.NoError(t, err)
	assert.JSONEq(t, `["p1","p2","p3","junk","42"]`, string(stored))

	// A second load is a no-op.
	assert.Equal(t, ids.IDs(), a.LoadWishlist(ctx).IDs())
}

func TestLoadWishlist_MalformedLegacyDropped(t *testing.T) {
	a, store := newAdapter(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, KeyWishlistIDs, []byte(`["p1"]`)))
	require.NoError(t, store.Set(ctx, KeyLegacyWishlist, []byte(`{"oops":`)))

	ids := a.LoadWishlist(ctx)

	assert.Equal(t, []string{"p1"}, ids.IDs())
	_, err := store.Get(ctx, KeyLegacyWishlist)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLoadWishlist_LegacyKeptWhenSaveFails(t *testing.T) {
	store := new(mockStore)
	store.On("Get", mock.Anything, KeyWishlistIDs).Return(nil, apperrors.NotFound("storage key", KeyWishlistIDs))
	store.On("Get", mock.Anything, KeyLegacyWishlist).Return([]byte(`[{"id":"p9"}]`), nil)
	store.On("Set", mock.Anything, KeyWishlistIDs, mock.Anything).Return(errors.New("quota exceeded"))
	a := NewAdapter(store, logger.Discard())

	ids := a.LoadWishlist(context.Background())

	assert.Equal(t, []string{"p9"}, ids.IDs())
	store.AssertNotCalled(t, "Delete", mock.Anything, KeyLegacyWishlist)
}

func TestAccessToken(t *testing.T) {
	a, store := newAdapter(t)
	ctx := context.Background()

	assert.Empty(t, a.AccessToken(ctx))

	require.NoError(t, a.SetAccessToken(ctx, "tok-1"))
	assert.Equal(t, "tok-1", a.AccessToken(ctx))

	require.NoError(t, store.Set(ctx, KeyAccessToken, []byte(`"tok-2"`)))
	assert.Equal(t, "tok-2", a.AccessToken(ctx))

	require.NoError(t, a.ClearAccessToken(ctx))
	assert.Empty(t, a.AccessToken(ctx))
}

func TestDecodeToken(t *testing.T) {
	tests := map[string]string{
		"abc":         "abc",
		` "abc" `:     "abc",
		"null":        "",
		`"null"`:      "",
		"undefined":   "",
		"":            "",
		`"unterminat`: `"unterminat`,
	}
	for in, want := range tests {
		assert.Equal(t, want, DecodeToken([]byte(in)), "input %q", in)
	}
}
