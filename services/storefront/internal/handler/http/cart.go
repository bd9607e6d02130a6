package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/shopsync/pkg/httputil"
	"github.com/utafrali/shopsync/pkg/validator"
	"github.com/utafrali/shopsync/services/storefront/internal/domain"
	"github.com/utafrali/shopsync/services/storefront/internal/service"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// CustomizationRequest is the buyer personalisation of a line.
type CustomizationRequest struct {
	Text     string `json:"text" validate:"max=200"`
	Color    string `json:"color" validate:"omitempty,hexcolor"`
	Font     string `json:"font" validate:"max=100"`
	ImageRef string `json:"image_ref" validate:"omitempty,url"`
}

func (c *CustomizationRequest) toDomain() *domain.Customization {
	if c == nil {
		return nil
	}
	return &domain.Customization{Text: c.Text, Color: c.Color, Font: c.Font, ImageRef: c.ImageRef}
}

// AddItemRequest is the JSON request body for adding a line to the cart.
type AddItemRequest struct {
	ProductID     string                `json:"product_id" validate:"required,max=200"`
	VariantID     string                `json:"variant_id" validate:"max=200"`
	Quantity      int                   `json:"quantity" validate:"gte=0,lte=9999"`
	UnitPrice     float64               `json:"unit_price" validate:"gte=0"`
	Selected      bool                  `json:"selected"`
	Customization *CustomizationRequest `json:"customization"`
	DisplayImage  string                `json:"display_image"`
	DisplayName   string                `json:"display_name" validate:"max=500"`
}

// UpdateQuantityRequest is the JSON request body for updating a line's quantity.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1,lte=9999"`
}

// ChangeVariantRequest is the JSON request body for switching a line's variant.
type ChangeVariantRequest struct {
	VariantID string   `json:"variant_id" validate:"required,max=200"`
	Image     string   `json:"image"`
	Price     *float64 `json:"price" validate:"omitempty,gte=0"`
	Name      string   `json:"name" validate:"max=500"`
}

// SelectAllRequest is the JSON request body for selecting every line.
type SelectAllRequest struct {
	Selected bool `json:"selected"`
}

// --- Response DTOs ---

// CartResponse is the cart with its summary.
type CartResponse struct {
	Lines   []domain.CartLine  `json:"lines"`
	Summary domain.CartSummary `json:"summary"`
}

func (h *CartHandler) writeCart(w http.ResponseWriter, status int) {
	httputil.WriteData(w, status, CartResponse{
		Lines:   h.service.Lines(),
		Summary: h.service.Summary(),
	})
}

// lineIdentity reads the line addressed by the {productId} URL parameter and
// the optional variant_id query parameter.
func lineIdentity(r *http.Request) domain.Identity {
	return domain.IdentityOf(
		chi.URLParam(r, "productId"),
		strings.TrimSpace(r.URL.Query().Get("variant_id")),
	)
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, http.StatusOK)
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeCart(w, http.StatusOK)
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	line := domain.CartLine{
		ProductID:     req.ProductID,
		VariantID:     req.VariantID,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
		Selected:      req.Selected,
		Customization: req.Customization.toDomain(),
		DisplayImage:  req.DisplayImage,
		DisplayName:   req.DisplayName,
	}
	if err := h.service.AddLine(r.Context(), line); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeCart(w, http.StatusCreated)
}

// UpdateQuantity handles PUT /api/v1/cart/items/{productId}/quantity
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}
	if err := h.service.SetQuantity(r.Context(), lineIdentity(r), req.Quantity); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeCart(w, http.StatusOK)
}

// ChangeVariant handles PUT /api/v1/cart/items/{productId}/variant
func (h *CartHandler) ChangeVariant(w http.ResponseWriter, r *http.Request) {
	var req ChangeVariantRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}
	v := domain.Variant{ID: req.VariantID, Image: req.Image, Price: req.Price, Name: req.Name}
	if err := h.service.ChangeVariant(r.Context(), lineIdentity(r), v); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeCart(w, http.StatusOK)
}

// SetCustomization handles PUT /api/v1/cart/items/{productId}/customization
func (h *CartHandler) SetCustomization(w http.ResponseWriter, r *http.Request) {
	var req CustomizationRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}
	if err := h.service.SetCustomization(r.Context(), lineIdentity(r), req.toDomain()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeCart(w, http.StatusOK)
}

// ClearCustomization handles DELETE /api/v1/cart/items/{productId}/customization
func (h *CartHandler) ClearCustomization(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SetCustomization(r.Context(), lineIdentity(r), nil); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeCart(w, http.StatusOK)
}

// ToggleSelected handles POST /api/v1/cart/items/{productId}/select
func (h *CartHandler) ToggleSelected(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ToggleSelected(r.Context(), lineIdentity(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeCart(w, http.StatusOK)
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveLine(r.Context(), lineIdentity(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeCart(w, http.StatusOK)
}

// SelectAll handles POST /api/v1/cart/select-all
func (h *CartHandler) SelectAll(w http.ResponseWriter, r *http.Request) {
	var req SelectAllRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}
	if err := h.service.SetAllSelected(r.Context(), req.Selected); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeCart(w, http.StatusOK)
}

// RemoveSelected handles DELETE /api/v1/cart/selected
func (h *CartHandler) RemoveSelected(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveSelected(r.Context()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeCart(w, http.StatusOK)
}
