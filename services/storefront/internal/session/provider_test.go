package session

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/shopsync/pkg/errors"
	"github.com/utafrali/shopsync/pkg/logger"
	"github.com/utafrali/shopsync/services/storefront/internal/domain"
	"github.com/utafrali/shopsync/services/storefront/internal/event"
	"github.com/utafrali/shopsync/services/storefront/internal/localstore"
	"github.com/utafrali/shopsync/services/storefront/internal/repository/memory"
)

func signed(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func newProvider(t *testing.T) (*Provider, *event.Broadcaster, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	b := event.NewBroadcaster(logger.Discard())
	return NewProvider(localstore.NewAdapter(store, logger.Discard()), b, logger.Discard()), b, store
}

func TestCurrent_AnonymousWithoutToken(t *testing.T) {
	p, _, _ := newProvider(t)
	assert.Equal(t, domain.Anonymous, p.Current(context.Background()))
	assert.Empty(t, p.Token(context.Background()))
}

func TestLogin_PersistsAndPublishes(t *testing.T) {
	p, b, store := newProvider(t)
	ctx := context.Background()
	logins := 0
	b.OnUserLoggedIn(func(context.Context) { logins++ })

	token := signed(t, Claims{UserID: "user-42"})
	require.NoError(t, p.Login(ctx, token))

	assert.Equal(t, 1, logins)
	raw, err := store.Get(ctx, localstore.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, token, string(raw))
	assert.Equal(t, domain.Session{Authenticated: true, UserID: "user-42"}, p.Current(ctx))
}

func TestLogin_RejectsEmptyToken(t *testing.T) {
	p, b, _ := newProvider(t)
	logins := 0
	b.OnUserLoggedIn(func(context.Context) { logins++ })

	for _, tok := range []string{"", "  ", "null", "undefined"} {
		err := p.Login(context.Background(), tok)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "token %q", tok)
	}
	assert.Zero(t, logins)
}

func TestLogout_ClearsToken(t *testing.T) {
	p, _, _ := newProvider(t)
	ctx := context.Background()
	require.NoError(t, p.Login(ctx, "opaque-token"))
	require.True(t, p.Current(ctx).Authenticated)

	require.NoError(t, p.Logout(ctx))
	assert.False(t, p.Current(ctx).Authenticated)
	require.NoError(t, p.Logout(ctx))
}

func TestCurrent_TokenWrittenElsewhere(t *testing.T) {
	p, _, store := newProvider(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, localstore.KeyAccessToken, []byte(`"opaque"`)))

	s := p.Current(ctx)
	assert.True(t, s.Authenticated)
	assert.Empty(t, s.UserID)
}

func TestUserID(t *testing.T) {
	assert.Equal(t, "u1", UserID(signed(t, Claims{UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "ignored"}})))
	assert.Equal(t, "sub-1", UserID(signed(t, jwt.RegisteredClaims{Subject: "sub-1"})))
	assert.Empty(t, UserID("not-a-jwt"))
	assert.Empty(t, UserID(""))
}
