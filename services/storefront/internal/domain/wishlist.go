package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// NormalizeProductID returns the comparison key for a product id. Ids are
// matched case-insensitively and without surrounding whitespace.
func NormalizeProductID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// WishlistSet is a set of product ids. Membership is case-insensitive; the
// first spelling seen for an id is the one reported by IDs. The zero value
// is an empty set ready for use. A WishlistSet is not safe for concurrent use.
type WishlistSet struct {
	order []string          // keys in insertion order
	ids   map[string]string // key -> original id
}

// NewWishlistSet builds a set from ids, ignoring blanks and duplicates.
func NewWishlistSet(ids ...string) WishlistSet {
	var s WishlistSet
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Has reports membership.
func (s WishlistSet) Has(id string) bool {
	_, ok := s.ids[NormalizeProductID(id)]
	return ok
}

// Add inserts id and reports whether the set changed. Blank ids are ignored.
func (s *WishlistSet) Add(id string) bool {
	key := NormalizeProductID(id)
	if key == "" {
		return false
	}
	if _, ok := s.ids[key]; ok {
		return false
	}
	if s.ids == nil {
		s.ids = make(map[string]string)
	}
	s.ids[key] = strings.TrimSpace(id)
	s.order = append(s.order, key)
	return true
}

// Remove deletes id and reports whether the set changed.
func (s *WishlistSet) Remove(id string) bool {
	key := NormalizeProductID(id)
	if _, ok := s.ids[key]; !ok {
		return false
	}
	delete(s.ids, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Lookup returns the stored spelling of id.
func (s WishlistSet) Lookup(id string) (string, bool) {
	v, ok := s.ids[NormalizeProductID(id)]
	return v, ok
}

// Len returns the number of ids.
func (s WishlistSet) Len() int {
	return len(s.order)
}

// IDs returns the ids in insertion order.
func (s WishlistSet) IDs() []string {
	out := make([]string, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.ids[k])
	}
	return out
}

// Clone returns an independent copy.
func (s WishlistSet) Clone() WishlistSet {
	return NewWishlistSet(s.IDs()...)
}

// Equal reports whether both sets hold the same ids.
func (s WishlistSet) Equal(other WishlistSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for k := range s.ids {
		if _, ok := other.ids[k]; !ok {
			return false
		}
	}
	return true
}

// Union returns s ∪ other. Spellings from s win.
func (s WishlistSet) Union(other WishlistSet) WishlistSet {
	out := s.Clone()
	for _, id := range other.IDs() {
		out.Add(id)
	}
	return out
}

// Minus returns the ids of s that are not in other.
func (s WishlistSet) Minus(other WishlistSet) []string {
	var out []string
	for _, k := range s.order {
		if _, ok := other.ids[k]; !ok {
			out = append(out, s.ids[k])
		}
	}
	return out
}

// MarshalJSON encodes the set as an array of ids.
func (s WishlistSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

// UnmarshalJSON decodes an array of ids. Non-string entries are coerced
// when they are numbers and skipped otherwise.
func (s *WishlistSet) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = WishlistSet{}
	for _, r := range raw {
		if id, ok := coerceID(r); ok {
			s.Add(id)
		}
	}
	return nil
}

// ReconciliationBatch holds the remote changes computed by one
// reconciliation run.
type ReconciliationBatch struct {
	ToAdd    []string
	ToRemove []string
}

// Empty reports whether the batch has nothing to apply.
func (b ReconciliationBatch) Empty() bool {
	return len(b.ToAdd) == 0 && len(b.ToRemove) == 0
}

// UnionDiff computes the batch from merged = remote ∪ local:
// ToAdd = merged − remote and ToRemove = remote − merged. Since merged always
// contains remote, ToRemove is always empty and ids removed locally are
// never removed remotely.
func UnionDiff(local, remote WishlistSet) ReconciliationBatch {
	merged := remote.Union(local)
	return ReconciliationBatch{
		ToAdd:    merged.Minus(remote),
		ToRemove: remote.Minus(merged),
	}
}

// ProductRef is a product as returned by the remote wishlist or stored in
// the legacy wishlist format. Only its id matters here.
type ProductRef struct {
	ID string `json:"id"`
}

// productRefKeys are the fields an id may be carried in, by precedence.
var productRefKeys = []string{"product_id", "productId", "id", "_id"}

// UnmarshalJSON resolves the id from the first non-empty of product_id,
// productId, id and _id. A bare string or number is taken as the id itself.
func (p *ProductRef) UnmarshalJSON(data []byte) error {
	*p = ProductRef{}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '{' {
		if id, ok := coerceID(data); ok {
			p.ID = id
		}
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for _, key := range productRefKeys {
		if raw, ok := fields[key]; ok {
			if id, ok := coerceID(raw); ok {
				p.ID = id
				return nil
			}
		}
	}
	return nil
}

// ProductIDs returns the non-blank ids of refs.
func ProductIDs(refs []ProductRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if strings.TrimSpace(r.ID) != "" {
			out = append(out, r.ID)
		}
	}
	return out
}

func coerceID(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10), true
		}
		return n.String(), true
	}
	return "", false
}
