// Package session derives the sync session from the stored access token.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/utafrali/shopsync/pkg/errors"
	"github.com/utafrali/shopsync/services/storefront/internal/domain"
	"github.com/utafrali/shopsync/services/storefront/internal/event"
	"github.com/utafrali/shopsync/services/storefront/internal/localstore"
)

// Claims are the access token claims the storefront reads. Tokens are
// issued and verified elsewhere; only the subject is used here.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Provider reads the session from storage on every call, so a token written
// by another tab is picked up without notification.
type Provider struct {
	store  *localstore.Adapter
	events *event.Broadcaster
	logger *slog.Logger
}

// NewProvider creates a session provider.
func NewProvider(store *localstore.Adapter, events *event.Broadcaster, logger *slog.Logger) *Provider {
	return &Provider{store: store, events: events, logger: logger}
}

// Token returns the stored access token, or "" when the session is
// anonymous.
func (p *Provider) Token(ctx context.Context) string {
	return p.store.AccessToken(ctx)
}

// Current returns the session. A session is authenticated whenever a token
// is present, whether or not it parses as a JWT.
func (p *Provider) Current(ctx context.Context) domain.Session {
	token := p.Token(ctx)
	if token == "" {
		return domain.Anonymous
	}
	return domain.Session{Authenticated: true, UserID: UserID(token)}
}

// Login stores token and publishes userLoggedIn.
func (p *Provider) Login(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if localstore.DecodeToken([]byte(token)) == "" {
		return apperrors.InvalidInput("access token is required")
	}
	if err := p.store.SetAccessToken(ctx, token); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	p.logger.InfoContext(ctx, "user logged in", slog.String("user_id", UserID(token)))
	p.events.PublishUserLoggedIn(ctx)
	return nil
}

// Logout removes the token. Local cart and wishlist are kept.
func (p *Provider) Logout(ctx context.Context) error {
	if err := p.store.ClearAccessToken(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	p.logger.InfoContext(ctx, "user logged out")
	return nil
}

// UserID extracts the user id from an unverified JWT, preferring the user_id
// claim over sub. It returns "" for opaque tokens.
func UserID(token string) string {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return ""
	}
	if claims.UserID != "" {
		return claims.UserID
	}
	return claims.Subject
}
