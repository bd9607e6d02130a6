package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/utafrali/shopsync/pkg/errors"
	"github.com/utafrali/shopsync/pkg/httputil"
	"github.com/utafrali/shopsync/services/storefront/internal/service"
)

// WishlistHandler handles HTTP requests for wishlist endpoints.
type WishlistHandler struct {
	service *service.WishlistService
	logger  *slog.Logger
}

// NewWishlistHandler creates a new wishlist HTTP handler.
func NewWishlistHandler(svc *service.WishlistService, logger *slog.Logger) *WishlistHandler {
	return &WishlistHandler{service: svc, logger: logger}
}

// --- Response DTOs ---

// WishlistResponse is the local wishlist.
type WishlistResponse struct {
	Count int      `json:"count"`
	IDs   []string `json:"ids"`
}

// MembershipResponse reports whether a product is on the wishlist.
type MembershipResponse struct {
	ProductID  string `json:"product_id"`
	InWishlist bool   `json:"in_wishlist"`
	Count      int    `json:"count"`
}

func (h *WishlistHandler) state() WishlistResponse {
	ids := h.service.IDs()
	return WishlistResponse{Count: len(ids), IDs: ids}
}

func (h *WishlistHandler) membership(productID string) MembershipResponse {
	return MembershipResponse{
		ProductID:  productID,
		InWishlist: h.service.Has(productID),
		Count:      h.service.Count(),
	}
}

// --- Handlers ---

// List handles GET /api/v1/wishlist
func (h *WishlistHandler) List(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.state())
}

// Has handles GET /api/v1/wishlist/{productId}
func (h *WishlistHandler) Has(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.membership(chi.URLParam(r, "productId")))
}

// Add handles POST /api/v1/wishlist/{productId}
func (h *WishlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	if err := h.service.Add(r.Context(), productID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, h.membership(productID))
}

// Remove handles DELETE /api/v1/wishlist/{productId}
func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	if err := h.service.Remove(r.Context(), productID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, h.membership(productID))
}

// Toggle handles POST /api/v1/wishlist/{productId}/toggle
func (h *WishlistHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	in, err := h.service.Toggle(r.Context(), productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, MembershipResponse{
		ProductID:  productID,
		InWishlist: in,
		Count:      h.service.Count(),
	})
}

// Refresh handles POST /api/v1/wishlist/-/refresh
func (h *WishlistHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Refresh(r.Context()); err != nil {
		httputil.WriteError(w, r, upstream("wishlist refresh failed", err), h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, h.state())
}

// Reconcile handles POST /api/v1/wishlist/-/reconcile
func (h *WishlistHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Reconciler().RunNow(r.Context())
	if err != nil {
		httputil.WriteError(w, r, upstream("wishlist reconciliation failed", err), h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, report)
}

// upstream passes client errors from the user service through and reports
// everything else as unavailable.
func upstream(message string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Status < http.StatusInternalServerError {
		return err
	}
	return apperrors.Unavailable(message, err)
}
