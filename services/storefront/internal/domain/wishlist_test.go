package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWishlistSet_Basics(t *testing.T) {
	var s WishlistSet
	assert.False(t, s.Has("p1"))

	assert.True(t, s.Add("P1"))
	assert.False(t, s.Add(" p1 "))
	assert.False(t, s.Add("   "))
	assert.True(t, s.Has("p1"))
	assert.Equal(t, []string{"P1"}, s.IDs())

	id, ok := s.Lookup("p1")
	assert.True(t, ok)
	assert.Equal(t, "P1", id)

	assert.True(t, s.Add("p2"))
	assert.True(t, s.Remove("p1"))
	assert.False(t, s.Remove("p1"))
	assert.Equal(t, []string{"p2"}, s.IDs())
	assert.Equal(t, 1, s.Len())
}

func TestWishlistSet_CloneIsIndependent(t *testing.T) {
	s := NewWishlistSet("a", "b")
	c := s.Clone()
	c.Add("c")
	c.Remove("a")

	assert.Equal(t, []string{"a", "b"}, s.IDs())
	assert.Equal(t, []string{"b", "c"}, c.IDs())
}

func TestWishlistSet_Equal(t *testing.T) {
	assert.True(t, NewWishlistSet("a", "B").Equal(NewWishlistSet("b", "A")))
	assert.False(t, NewWishlistSet("a").Equal(NewWishlistSet("a", "b")))
	assert.False(t, NewWishlistSet("a", "c").Equal(NewWishlistSet("a", "b")))
	assert.True(t, WishlistSet{}.Equal(NewWishlistSet()))
}

func TestWishlistSet_JSON(t *testing.T) {
	s := NewWishlistSet("p1", "p2")
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["p1","p2"]`, string(data))

	var decoded WishlistSet
	require.NoError(t, json.Unmarshal([]byte(`["p1", 42, null, {"x":1}, "P1", ""]`), &decoded))
	assert.Equal(t, []string{"p1", "42"}, decoded.IDs())

	assert.Error(t, json.Unmarshal([]byte(`{"p1":true}`), &decoded))
}

func TestUnionDiff_BlindToRemoteRemovals(t *testing.T) {
	local := NewWishlistSet("p1", "p3")
	remote := NewWishlistSet("p1", "p2")

	batch := UnionDiff(local, remote)

	assert.Equal(t, []string{"p3"}, batch.ToAdd)
	assert.Empty(t, batch.ToRemove)
	assert.False(t, batch.Empty())
}

func TestUnionDiff_ToRemoveAlwaysEmpty(t *testing.T) {
	cases := [][2][]string{
		{{}, {"a", "b"}},
		{{"a"}, {}},
		{{"a", "b"}, {"c"}},
		{{"A"}, {"a"}},
	}
	for _, c := range cases {
		batch := UnionDiff(NewWishlistSet(c[0]...), NewWishlistSet(c[1]...))
		assert.Empty(t, batch.ToRemove)
	}
	assert.True(t, UnionDiff(NewWishlistSet("A"), NewWishlistSet("a")).Empty())
}

func TestProductRef_Unmarshal(t *testing.T) {
	var refs []ProductRef
	data := `[
		{"product_id":"p1","id":"ignored"},
		{"productId":"p2"},
		{"id":3},
		{"_id":"p4"},
		{"product_id":"","id":"p5"},
		{"name":"no id"},
		"p6"
	]`
	require.NoError(t, json.Unmarshal([]byte(data), &refs))

	assert.Equal(t, []string{"p1", "p2", "3", "p4", "p5", "p6"}, ProductIDs(refs))
}

func TestProductRef_MalformedObject(t *testing.T) {
	var ref ProductRef
	assert.Error(t, json.Unmarshal([]byte(`{"id":`), &ref))
}
