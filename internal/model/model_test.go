package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortedSet(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedSet([]string{"c", "a", "b", "a"}))
	empty := SortedSet(nil)
	require.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestInsertSorted(t *testing.T) {
	var list []string
	for _, s := range []string{"m", "a", "z", "m", "b"} {
		list = InsertSorted(list, s)
	}
	assert.Equal(t, []string{"a", "b", "m", "z"}, list)
	assert.True(t, ContainsSorted(list, "m"))
	assert.False(t, ContainsSorted(list, "c"))
}

func TestAppendUnique(t *testing.T) {
	list := AppendUnique(nil, "x.Y")
	list = AppendUnique(list, "a.B")
	list = AppendUnique(list, "x.Y")
	assert.Equal(t, []string{"x.Y", "a.B"}, list)
}

func TestCloneIsDeep(t *testing.T) {
	d := Declaration{
		FQN:       "app.User",
		Uses:      []string{"app.Id"},
		Members:   []Variable{{Name: "id", Type: "Id", Annotations: []string{"@Json"}}},
		Functions: []Function{{Name: "get", Parameters: []Variable{{Name: "x", Type: "Int"}}}},
	}
	c := d.Clone()
	c.Uses[0] = "changed"
	c.Members[0].Annotations[0] = "changed"
	c.Functions[0].Parameters[0].Name = "changed"

	assert.Equal(t, "app.Id", d.Uses[0])
	assert.Equal(t, "@Json", d.Members[0].Annotations[0])
	assert.Equal(t, "x", d.Functions[0].Parameters[0].Name)
}

func TestDeclarationJSONShape(t *testing.T) {
	d := Declaration{FQN: "app.User", Name: "User", Kind: KindDataClass, Uses: []string{}, UsedBy: []string{}}
	b, err := json.Marshal(d)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "DataClass", m["kind"])
	assert.Contains(t, m, "uses")
	assert.Contains(t, m, "used_by")
	assert.NotContains(t, m, "extends")
}

func TestIsVisibility(t *testing.T) {
	for _, v := range []string{"public", "internal", "protected", "private"} {
		assert.True(t, IsVisibility(v), v)
	}
	assert.False(t, IsVisibility("open"))
	assert.Len(t, AllKinds(), 7)
}
