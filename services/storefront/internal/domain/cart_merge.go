package domain

// Every function in this file returns a new slice and leaves its input
// untouched. None of them can produce two lines with the same identity.

func clone(lines []CartLine) []CartLine {
	out := make([]CartLine, len(lines))
	copy(out, lines)
	return out
}

func indexOf(lines []CartLine, id Identity) int {
	for i := range lines {
		if lines[i].Identity() == id {
			return i
		}
	}
	return -1
}

// Find returns the line with the given identity.
func Find(lines []CartLine, id Identity) (CartLine, bool) {
	if i := indexOf(lines, id); i >= 0 {
		return lines[i], true
	}
	return CartLine{}, false
}

func clampQuantity(q int) int {
	if q < 1 {
		return 1
	}
	return q
}

// SetQuantity sets the quantity of a line, clamped to at least 1.
func SetQuantity(lines []CartLine, id Identity, qty int) []CartLine {
	out := clone(lines)
	if i := indexOf(out, id); i >= 0 {
		out[i].Quantity = clampQuantity(qty)
	}
	return out
}

// ToggleSelected flips the selection flag of a line.
func ToggleSelected(lines []CartLine, id Identity) []CartLine {
	out := clone(lines)
	if i := indexOf(out, id); i >= 0 {
		out[i].Selected = !out[i].Selected
	}
	return out
}

// SetAllSelected marks every line as selected or unselected.
func SetAllSelected(lines []CartLine, selected bool) []CartLine {
	out := clone(lines)
	for i := range out {
		out[i].Selected = selected
	}
	return out
}

// RemoveLine drops the line with the given identity.
func RemoveLine(lines []CartLine, id Identity) []CartLine {
	out := make([]CartLine, 0, len(lines))
	for _, l := range lines {
		if l.Identity() != id {
			out = append(out, l)
		}
	}
	return out
}

// RemoveSelected drops every selected line, as after an order is placed
// from them.
func RemoveSelected(lines []CartLine) []CartLine {
	out := make([]CartLine, 0, len(lines))
	for _, l := range lines {
		if !l.Selected {
			out = append(out, l)
		}
	}
	return out
}

// SetCustomization replaces the customization of a line. nil clears it.
func SetCustomization(lines []CartLine, id Identity, c *Customization) []CartLine {
	out := clone(lines)
	if i := indexOf(out, id); i >= 0 {
		out[i].Customization = copyCustomization(c)
	}
	return out
}

func copyCustomization(c *Customization) *Customization {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// AddLine adds a line to the cart. When a line with the same identity exists
// its quantity grows by the added quantity and its price and display fields
// are refreshed; otherwise the line is appended.
func AddLine(lines []CartLine, line CartLine) []CartLine {
	line.Quantity = clampQuantity(line.Quantity)
	line.Customization = copyCustomization(line.Customization)
	out := clone(lines)

	i := indexOf(out, line.Identity())
	if i < 0 {
		return append(out, line)
	}

	existing := &out[i]
	existing.Quantity += line.Quantity
	existing.UnitPrice = line.UnitPrice
	if line.DisplayImage != "" {
		existing.DisplayImage = line.DisplayImage
	}
	if line.DisplayName != "" {
		existing.DisplayName = line.DisplayName
	}
	if line.Customization != nil {
		existing.Customization = line.Customization
	}
	return out
}

func applyVariant(l *CartLine, v Variant) {
	l.VariantID = v.ID
	if v.Image != "" {
		l.DisplayImage = v.Image
	}
	if v.Price != nil {
		l.UnitPrice = *v.Price
	}
	if v.Name != "" {
		l.DisplayName = v.Name
	}
}

// ChangeVariant moves a line to another variant of the same product.
//
// If another line already holds the target identity the two merge: the
// quantities add up, display fields come from v, and the selection flag and
// customization are kept from the line that was already there. The merged
// line takes that line's position. Otherwise the line is updated in place
// and keeps its quantity.
func ChangeVariant(lines []CartLine, id Identity, v Variant) []CartLine {
	src := indexOf(lines, id)
	if src < 0 {
		return clone(lines)
	}

	target := IdentityOf(lines[src].ProductID, v.ID)
	if target == id {
		return clone(lines)
	}

	dst := indexOf(lines, target)
	if dst < 0 {
		out := clone(lines)
		applyVariant(&out[src], v)
		return out
	}

	merged := lines[dst]
	merged.Quantity = lines[src].Quantity + lines[dst].Quantity
	applyVariant(&merged, v)

	out := make([]CartLine, 0, len(lines)-1)
	for i, l := range lines {
		switch i {
		case src:
			continue
		case dst:
			out = append(out, merged)
		default:
			out = append(out, l)
		}
	}
	return out
}

// Normalize repairs a cart read from storage: lines without a product are
// dropped, quantities are clamped, and duplicate identities are folded into
// the first occurrence with their quantities summed.
func Normalize(lines []CartLine) []CartLine {
	out := make([]CartLine, 0, len(lines))
	seen := make(map[Identity]int, len(lines))
	for _, l := range lines {
		if l.ProductID == "" {
			continue
		}
		l.Quantity = clampQuantity(l.Quantity)
		id := l.Identity()
		if i, ok := seen[id]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		seen[id] = len(out)
		out = append(out, l)
	}
	return out
}

// Summarize computes counts and subtotals.
func Summarize(lines []CartLine) CartSummary {
	var s CartSummary
	s.LineCount = len(lines)
	for _, l := range lines {
		s.ItemCount += l.Quantity
		s.Subtotal += l.Subtotal()
		if l.Selected {
			s.SelectedCount++
			s.SelectedSubtotal += l.Subtotal()
		}
	}
	return s
}
