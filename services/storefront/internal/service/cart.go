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
)

// CartService owns the local cart. Every change goes through the merge
// engine, is persisted, and publishes cartUpdated.
type CartService struct {
	store  *localstore.Adapter
	events *event.Broadcaster
	logger *slog.Logger

	mu    sync.Mutex
	lines []domain.CartLine
}

// NewCartService creates an empty cart. Call Load to hydrate it.
func NewCartService(store *localstore.Adapter, events *event.Broadcaster, logger *slog.Logger) *CartService {
	return &CartService{store: store, events: events, logger: logger}
}

// Load reads the cart from storage.
func (s *CartService) Load(ctx context.Context) {
	lines := s.store.LoadCart(ctx)

	s.mu.Lock()
	s.lines = lines
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "cart loaded", slog.Int("lines", len(lines)))
}

// Lines returns a copy of the cart lines.
func (s *CartService) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}

// Summary returns counts and subtotals.
func (s *CartService) Summary() domain.CartSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Summarize(s.lines)
}

// AddLine adds line, merging it into an existing line of the same identity.
func (s *CartService) AddLine(ctx context.Context, line domain.CartLine) error {
	line.ProductID = strings.TrimSpace(line.ProductID)
	line.VariantID = strings.TrimSpace(line.VariantID)
	if line.ProductID == "" {
		return apperrors.InvalidInput("product id is required")
	}
	if line.UnitPrice < 0 {
		return apperrors.InvalidInput("unit price must not be negative")
	}
	return s.update(ctx, "add_line", func(lines []domain.CartLine) []domain.CartLine {
		return domain.AddLine(lines, line)
	})
}

// SetQuantity sets a line's quantity, clamped to at least 1.
func (s *CartService) SetQuantity(ctx context.Context, id domain.Identity, qty int) error {
	return s.updateLine(ctx, "set_quantity", id, func(lines []domain.CartLine) []domain.CartLine {
		return domain.SetQuantity(lines, id, qty)
	})
}

// ToggleSelected flips a line's checkout selection.
func (s *CartService) ToggleSelected(ctx context.Context, id domain.Identity) error {
	return s.updateLine(ctx, "toggle_selected", id, func(lines []domain.CartLine) []domain.CartLine {
		return domain.ToggleSelected(lines, id)
	})
}

// SetAllSelected selects or deselects every line.
func (s *CartService) SetAllSelected(ctx context.Context, selected bool) error {
	return s.update(ctx, "set_all_selected", func(lines []domain.CartLine) []domain.CartLine {
		return domain.SetAllSelected(lines, selected)
	})
}

// ChangeVariant moves a line to variant v, merging with an existing line
// of that variant.
func (s *CartService) ChangeVariant(ctx context.Context, id domain.Identity, v domain.Variant) error {
	v.ID = strings.TrimSpace(v.ID)
	if v.Price != nil && *v.Price < 0 {
		return apperrors.InvalidInput("variant price must not be negative")
	}
	return s.updateLine(ctx, "change_variant", id, func(lines []domain.CartLine) []domain.CartLine {
		return domain.ChangeVariant(lines, id, v)
	})
}

// SetCustomization replaces a line's customization. nil clears it.
func (s *CartService) SetCustomization(ctx context.Context, id domain.Identity, c *domain.Customization) error {
	return s.updateLine(ctx, "set_customization", id, func(lines []domain.CartLine) []domain.CartLine {
		return domain.SetCustomization(lines, id, c)
	})
}

// RemoveLine deletes a line.
func (s *CartService) RemoveLine(ctx context.Context, id domain.Identity) error {
	return s.updateLine(ctx, "remove_line", id, func(lines []domain.CartLine) []domain.CartLine {
		return domain.RemoveLine(lines, id)
	})
}

// RemoveSelected deletes every selected line, as after a checkout.
func (s *CartService) RemoveSelected(ctx context.Context) error {
	return s.update(ctx, "remove_selected", domain.RemoveSelected)
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context) error {
	return s.update(ctx, "clear", func([]domain.CartLine) []domain.CartLine {
		return []domain.CartLine{}
	})
}

// updateLine is update for operations on an existing line.
func (s *CartService) updateLine(ctx context.Context, op string, id domain.Identity, fn func([]domain.CartLine) []domain.CartLine) error {
	s.mu.Lock()
	_, ok := domain.Find(s.lines, id)
	s.mu.Unlock()
	if !ok {
		return apperrors.NotFound("cart line", string(id))
	}
	return s.update(ctx, op, fn)
}

func (s *CartService) update(ctx context.Context, op string, fn func([]domain.CartLine) []domain.CartLine) error {
	s.mu.Lock()
	next := fn(s.lines)
	if err := s.store.SaveCart(ctx, next); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", op, err)
	}
	s.lines = next
	s.mu.Unlock()

	cartOperations.WithLabelValues(op).Inc()
	s.logger.DebugContext(ctx, "cart updated", slog.String("op", op), slog.Int("lines", len(next)))
	s.events.PublishCartUpdated(ctx)
	return nil
}
