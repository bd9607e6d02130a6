// Package localstore persists engine state as JSON documents in a
// repository.Store, mirroring the browser storage layout.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	apperrors "github.com/utafrali/shopsync/pkg/errors"
	"github.com/utafrali/shopsync/services/storefront/internal/domain"
	"github.com/utafrali/shopsync/services/storefront/internal/repository"
)

// Storage keys.
const (
	KeyCart           = "cart"
	KeyWishlistIDs    = "wishlistIds"
	KeyLegacyWishlist = "wishlist"
	KeyAccessToken    = "accessToken"
)

// Adapter reads and writes typed values. Reads never fail: absent or
// malformed data yields the caller's default.
type Adapter struct {
	store  repository.Store
	logger *slog.Logger
}

// NewAdapter creates an adapter over store.
func NewAdapter(store repository.Store, logger *slog.Logger) *Adapter {
	return &Adapter{store: store, logger: logger}
}

// Load decodes the JSON value under key into a T, or returns def when the
// key is absent, unreadable or malformed.
func Load[T any](ctx context.Context, a *Adapter, key string, def T) T {
	data, ok := a.read(ctx, key)
	if !ok {
		return def
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		a.logger.WarnContext(ctx, "discarding malformed stored value",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return def
	}
	return v
}

func (a *Adapter) read(ctx context.Context, key string) ([]byte, bool) {
	data, err := a.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			a.logger.DebugContext(ctx, "storage key absent", slog.String("key", key))
		} else {
			a.logger.WarnContext(ctx, "storage read failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}
	return data, true
}

// Save stores v as JSON under key.
func (a *Adapter) Save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := a.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (a *Adapter) Delete(ctx context.Context, key string) error {
	if err := a.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// LoadCart returns the stored cart, normalized so that it holds at most one
// line per identity.
func (a *Adapter) LoadCart(ctx context.Context) []domain.CartLine {
	return domain.Normalize(Load[[]domain.CartLine](ctx, a, KeyCart, nil))
}

// SaveCart stores the cart.
func (a *Adapter) SaveCart(ctx context.Context, lines []domain.CartLine) error {
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return a.Save(ctx, KeyCart, lines)
}

// LoadWishlist returns the stored wishlist ids. A legacy wishlist (an array
// of product objects under KeyLegacyWishlist) is first folded into the id
// list and deleted.
func (a *Adapter) LoadWishlist(ctx context.Context) domain.WishlistSet {
	ids := Load(ctx, a, KeyWishlistIDs, domain.WishlistSet{})

	raw, ok := a.read(ctx, KeyLegacyWishlist)
	if !ok {
		return ids
	}

	legacy, err := parseLegacy(raw)
	if err != nil {
		a.logger.WarnContext(ctx, "dropping malformed legacy wishlist", slog.String("error", err.Error()))
		a.deleteLegacy(ctx)
		return ids
	}

	added := 0
	for _, id := range legacy {
		if ids.Add(id) {
			added++
		}
	}
	if err := a.SaveWishlist(ctx, ids); err != nil {
		// Keep the legacy key so the migration is retried on the next load.
		a.logger.WarnContext(ctx, "legacy wishlist migration not saved", slog.String("error", err.Error()))
		return ids
	}
	a.deleteLegacy(ctx)

	a.logger.InfoContext(ctx, "migrated legacy wishlist",
		slog.Int("legacy_items", len(legacy)),
		slog.Int("added", added),
		slog.Int("total", ids.Len()),
	)
	return ids
}

func (a *Adapter) deleteLegacy(ctx context.Context) {
	if err := a.Delete(ctx, KeyLegacyWishlist); err != nil {
		a.logger.WarnContext(ctx, "legacy wishlist not deleted", slog.String("error", err.Error()))
	}
}

// parseLegacy extracts product ids from the legacy format. Entries that are
// not products are skipped.
func parseLegacy(raw []byte) ([]string, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	refs := make([]domain.ProductRef, 0, len(entries))
	for _, e := range entries {
		var ref domain.ProductRef
		if err := json.Unmarshal(e, &ref); err != nil {
			continue
		}
		refs = append(refs, ref)
	}
	return domain.ProductIDs(refs), nil
}

// SaveWishlist stores the wishlist ids.
func (a *Adapter) SaveWishlist(ctx context.Context, ids domain.WishlistSet) error {
	return a.Save(ctx, KeyWishlistIDs, ids)
}

// AccessToken returns the stored access token, or "" when absent.
func (a *Adapter) AccessToken(ctx context.Context) string {
	raw, ok := a.read(ctx, KeyAccessToken)
	if !ok {
		return ""
	}
	return DecodeToken(raw)
}

// SetAccessToken stores the access token as a plain string.
func (a *Adapter) SetAccessToken(ctx context.Context, token string) error {
	if err := a.store.Set(ctx, KeyAccessToken, []byte(token)); err != nil {
		return fmt.Errorf("save %s: %w", KeyAccessToken, err)
	}
	return nil
}

// ClearAccessToken removes the access token.
func (a *Adapter) ClearAccessToken(ctx context.Context) error {
	return a.Delete(ctx, KeyAccessToken)
}

// DecodeToken reads a token stored either raw or as a JSON string. The
// literal values "null" and "undefined" count as no token.
func DecodeToken(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) >= 2 && s[0] == '"' {
		var unquoted string
		if err := json.Unmarshal([]byte(s), &unquoted); err == nil {
			s = strings.TrimSpace(unquoted)
		}
	}
	switch s {
	case "null", "undefined":
		return ""
	}
	return s
}
