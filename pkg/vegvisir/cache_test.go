package vegvisir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyForDistinguishesQueries(t *testing.T) {
	a := keyFor("MATCH (n) RETURN n")
	b := keyFor("MATCH (m) RETURN m")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, keyFor("MATCH (n) RETURN n"))
}

func TestPlanCacheLRU(t *testing.T) {
	c := newPlanCache(2)

	pa, pb, pc := &compiledPlan{}, &compiledPlan{}, &compiledPlan{}
	ka, kb, kc := keyFor("a"), keyFor("b"), keyFor("c")

	c.put(ka, pa)
	c.put(kb, pb)
	require.Equal(t, 2, c.len())

	// Touch a so b becomes the eviction candidate.
	got, ok := c.get(ka)
	require.True(t, ok)
	assert.Same(t, pa, got)

	c.put(kc, pc)
	assert.Equal(t, 2, c.len())

	_, ok = c.get(kb)
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.get(ka)
	assert.True(t, ok)
	_, ok = c.get(kc)
	assert.True(t, ok)
}

func TestPlanCachePutReplaces(t *testing.T) {
	c := newPlanCache(2)
	k := keyFor("q")

	first, second := &compiledPlan{}, &compiledPlan{}
	c.put(k, first)
	c.put(k, second)

	require.Equal(t, 1, c.len())
	got, ok := c.get(k)
	require.True(t, ok)
	assert.Same(t, second, got)
}
