package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Identity identifies a cart line by (product, variant). Treat it as opaque.
type Identity string

// noVariant stands in for an absent variant. Real variant ids are always
// length-prefixed, so they can never encode to this value.
const noVariant = "-"

// IdentityOf returns the identity of the (productID, variantID) pair. An
// empty variantID means "no variant".
func IdentityOf(productID, variantID string) Identity {
	var b strings.Builder
	b.Grow(len(productID) + len(variantID) + 8)
	b.WriteString(strconv.Itoa(len(productID)))
	b.WriteByte(':')
	b.WriteString(productID)
	b.WriteByte('|')
	if variantID == "" {
		b.WriteString(noVariant)
	} else {
		b.WriteString(strconv.Itoa(len(variantID)))
		b.WriteByte(':')
		b.WriteString(variantID)
	}
	return Identity(b.String())
}

// Customization is the buyer-provided personalisation of a line.
type Customization struct {
	Text     string `json:"text,omitempty"`
	Color    string `json:"color,omitempty"`
	Font     string `json:"font,omitempty"`
	ImageRef string `json:"imageRef,omitempty"`
}

// CartLine is one purchasable selection in the cart.
type CartLine struct {
	ProductID     string
	VariantID     string // empty when the product has no variant
	Quantity      int
	UnitPrice     float64
	Selected      bool
	Customization *Customization
	DisplayImage  string
	DisplayName   string
}

// cartLineJSON is the persisted shape; variantId is null when absent.
type cartLineJSON struct {
	ProductID     string         `json:"productId"`
	VariantID     *string        `json:"variantId"`
	Quantity      int            `json:"quantity"`
	UnitPrice     float64        `json:"unitPrice"`
	Selected      bool           `json:"selected"`
	Customization *Customization `json:"customization"`
	DisplayImage  string         `json:"displayImage,omitempty"`
	DisplayName   string         `json:"displayName,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (l CartLine) MarshalJSON() ([]byte, error) {
	out := cartLineJSON{
		ProductID:     l.ProductID,
		Quantity:      l.Quantity,
		UnitPrice:     l.UnitPrice,
		Selected:      l.Selected,
		Customization: l.Customization,
		DisplayImage:  l.DisplayImage,
		DisplayName:   l.DisplayName,
	}
	if l.VariantID != "" {
		v := l.VariantID
		out.VariantID = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *CartLine) UnmarshalJSON(data []byte) error {
	var in cartLineJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*l = CartLine{
		ProductID:     in.ProductID,
		Quantity:      in.Quantity,
		UnitPrice:     in.UnitPrice,
		Selected:      in.Selected,
		Customization: in.Customization,
		DisplayImage:  in.DisplayImage,
		DisplayName:   in.DisplayName,
	}
	if in.VariantID != nil {
		l.VariantID = *in.VariantID
	}
	return nil
}

// Identity returns the line's identity key.
func (l CartLine) Identity() Identity {
	return IdentityOf(l.ProductID, l.VariantID)
}

// Subtotal returns unit price times quantity.
func (l CartLine) Subtotal() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// Variant is the target of a variant change. Zero-valued display fields
// leave the line's current values untouched.
type Variant struct {
	ID    string   `json:"id"`
	Image string   `json:"image,omitempty"`
	Price *float64 `json:"price,omitempty"`
	Name  string   `json:"name,omitempty"`
}

// CartSummary aggregates a cart for badges and checkout.
type CartSummary struct {
	LineCount        int     `json:"line_count"`
	ItemCount        int     `json:"item_count"`
	SelectedCount    int     `json:"selected_count"`
	Subtotal         float64 `json:"subtotal"`
	SelectedSubtotal float64 `json:"selected_subtotal"`
}
