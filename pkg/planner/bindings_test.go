package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBindingsInsertionOrder(t *testing.T) {
	b := NewBindings()
	b.Set("b", AliasNode)
	b.Set("a", AliasEdge)
	b.Set("c", AliasPath)

	assert.Equal(t, []string{"b", "a", "c"}, b.Names())

	// Re-setting updates the type but keeps the position.
	b.Set("a", AliasDefault)
	assert.Equal(t, []string{"b", "a", "c"}, b.Names())
	typ, ok := b.Get("a")
	assert.True(t, ok)
	assert.Equal(t, AliasDefault, typ)
}

func TestBindingsCloneIsIndependent(t *testing.T) {
	b := NewBindings()
	b.Set("a", AliasNode)

	c := b.Clone()
	c.Set("b", AliasEdge)
	c.Set("a", AliasPath)

	assert.Equal(t, 1, b.Len())
	typ, _ := b.Get("a")
	assert.Equal(t, AliasNode, typ)
	assert.Equal(t, 2, c.Len())
}

func TestBindingsMerge(t *testing.T) {
	b := NewBindings()
	b.Set("a", AliasNode)
	b.Set("b", AliasEdge)

	other := NewBindings()
	other.Set("b", AliasEdge)
	other.Set("c", AliasNode)

	b.Merge(other)
	assert.Equal(t, []string{"a", "b", "c"}, b.Names())
}
