package storage

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemoryEngine(t *testing.T) {
	engine := NewMemoryEngine()
	require.NotNil(t, engine)
	assert.NotNil(t, engine.nodes)
	assert.NotNil(t, engine.edges)
	assert.NotNil(t, engine.nodesByLabel)
	assert.NotNil(t, engine.outgoingEdges)
	assert.NotNil(t, engine.incomingEdges)
	assert.False(t, engine.closed)
}

// Node Tests

func TestMemoryEngine_CreateNode(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		engine := NewMemoryEngine()
		node := &Node{
			ID:         "node-1",
			Labels:     []string{"Person", "Employee"},
			Properties: map[string]any{"name": "Alice", "age": int64(30)},
		}

		err := engine.CreateNode(node)
		require.NoError(t, err)

		// Verify stored
		stored, err := engine.GetNode("node-1")
		require.NoError(t, err)
		assert.Equal(t, "node-1", string(stored.ID))
		assert.Equal(t, []string{"Person", "Employee"}, stored.Labels)
		assert.Equal(t, "Alice", stored.Properties["name"])
	})

	t.Run("nil node", func(t *testing.T) {
		engine := NewMemoryEngine()
		err := engine.CreateNode(nil)
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("empty ID", func(t *testing.T) {
		engine := NewMemoryEngine()
		err := engine.CreateNode(&Node{ID: ""})
		assert.ErrorIs(t, err, ErrInvalidID)
	})

	t.Run("duplicate ID", func(t *testing.T) {
		engine := NewMemoryEngine()
		require.NoError(t, engine.CreateNode(&Node{ID: "node-1"}))

		err := engine.CreateNode(&Node{ID: "node-1"})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("closed engine", func(t *testing.T) {
		engine := NewMemoryEngine()
		engine.Close()

		err := engine.CreateNode(&Node{ID: "node-1"})
		assert.ErrorIs(t, err, ErrStorageClosed)
	})

	t.Run("deep copy prevents mutation", func(t *testing.T) {
		engine := NewMemoryEngine()
		props := map[string]any{"key": "original"}
		node := &Node{
			ID:         "node-1",
			Properties: props,
		}

		require.NoError(t, engine.CreateNode(node))

		// Mutate original
		props["key"] = "mutated"
		node.Properties["new"] = "value"

		// Verify stored value unchanged
		stored, _ := engine.GetNode("node-1")
		assert.Equal(t, "original", stored.Properties["key"])
		assert.Nil(t, stored.Properties["new"])
	})
}

func TestMemoryEngine_GetNode(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		engine := NewMemoryEngine()
		require.NoError(t, engine.CreateNode(&Node{
			ID:         "node-1",
			Labels:     []string{"Test"},
			Properties: map[string]any{"data": "value"},
		}))

		node, err := engine.GetNode("node-1")
		require.NoError(t, err)
		assert.Equal(t, "node-1", string(node.ID))
	})

	t.Run("not found", func(t *testing.T) {
		engine := NewMemoryEngine()
		_, err := engine.GetNode("nonexistent")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty ID", func(t *testing.T) {
		engine := NewMemoryEngine()
		_, err := engine.GetNode("")
		assert.ErrorIs(t, err, ErrInvalidID)
	})

	t.Run("returned copy is independent", func(t *testing.T) {
		engine := NewMemoryEngine()
		require.NoError(t, engine.CreateNode(&Node{
			ID:         "node-1",
			Properties: map[string]any{"k": "v"},
		}))

		first, _ := engine.GetNode("node-1")
		first.Properties["k"] = "changed"

		second, _ := engine.GetNode("node-1")
		assert.Equal(t, "v", second.Properties["k"])
	})
}

// Edge Tests

func TestMemoryEngine_CreateEdge(t *testing.T) {
	setup := func(t *testing.T) *MemoryEngine {
		t.Helper()
		engine := NewMemoryEngine()
		require.NoError(t, engine.CreateNode(&Node{ID: "a"}))
		require.NoError(t, engine.CreateNode(&Node{ID: "b"}))
		return engine
	}

	t.Run("success", func(t *testing.T) {
		engine := setup(t)
		edge := &Edge{
			ID:         "e1",
			StartNode:  "a",
			EndNode:    "b",
			Type:       "KNOWS",
			Properties: map[string]any{"since": int64(2020)},
		}

		require.NoError(t, engine.CreateEdge(edge))

		stored, err := engine.GetEdge("e1")
		require.NoError(t, err)
		assert.Equal(t, "KNOWS", stored.Type)
		assert.Equal(t, NodeID("a"), stored.StartNode)
		assert.Equal(t, NodeID("b"), stored.EndNode)
	})

	t.Run("missing start node", func(t *testing.T) {
		engine := setup(t)
		err := engine.CreateEdge(&Edge{ID: "e1", StartNode: "ghost", EndNode: "b"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing end node", func(t *testing.T) {
		engine := setup(t)
		err := engine.CreateEdge(&Edge{ID: "e1", StartNode: "a", EndNode: "ghost"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate ID", func(t *testing.T) {
		engine := setup(t)
		require.NoError(t, engine.CreateEdge(&Edge{ID: "e1", StartNode: "a", EndNode: "b"}))

		err := engine.CreateEdge(&Edge{ID: "e1", StartNode: "b", EndNode: "a"})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("nil edge", func(t *testing.T) {
		engine := setup(t)
		assert.ErrorIs(t, engine.CreateEdge(nil), ErrInvalidData)
	})
}

// Query Tests

func TestMemoryEngine_GetNodesByLabel(t *testing.T) {
	engine := NewMemoryEngine()
	require.NoError(t, engine.CreateNode(&Node{ID: "p1", Labels: []string{"Person"}}))
	require.NoError(t, engine.CreateNode(&Node{ID: "p2", Labels: []string{"Person", "Admin"}}))
	require.NoError(t, engine.CreateNode(&Node{ID: "c1", Labels: []string{"City"}}))

	people, err := engine.GetNodesByLabel("Person")
	require.NoError(t, err)
	assert.Len(t, people, 2)

	admins, err := engine.GetNodesByLabel("Admin")
	require.NoError(t, err)
	assert.Len(t, admins, 1)
	assert.Equal(t, NodeID("p2"), admins[0].ID)

	none, err := engine.GetNodesByLabel("Ghost")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryEngine_AllNodes(t *testing.T) {
	engine := NewMemoryEngine()
	for i := 0; i < 5; i++ {
		require.NoError(t, engine.CreateNode(&Node{ID: NodeID(fmt.Sprintf("n%d", i))}))
	}

	nodes, err := engine.AllNodes()
	require.NoError(t, err)
	assert.Len(t, nodes, 5)
}

func TestMemoryEngine_Adjacency(t *testing.T) {
	engine := NewMemoryEngine()
	require.NoError(t, engine.CreateNode(&Node{ID: "a"}))
	require.NoError(t, engine.CreateNode(&Node{ID: "b"}))
	require.NoError(t, engine.CreateNode(&Node{ID: "c"}))
	require.NoError(t, engine.CreateEdge(&Edge{ID: "ab", StartNode: "a", EndNode: "b", Type: "KNOWS"}))
	require.NoError(t, engine.CreateEdge(&Edge{ID: "ac", StartNode: "a", EndNode: "c", Type: "KNOWS"}))
	require.NoError(t, engine.CreateEdge(&Edge{ID: "cb", StartNode: "c", EndNode: "b", Type: "LIKES"}))

	outgoing, err := engine.GetOutgoingEdges("a")
	require.NoError(t, err)
	assert.Len(t, outgoing, 2)

	incoming, err := engine.GetIncomingEdges("b")
	require.NoError(t, err)
	assert.Len(t, incoming, 2)

	incomingA, err := engine.GetIncomingEdges("a")
	require.NoError(t, err)
	assert.Empty(t, incomingA)
}

func TestMemoryEngine_Counts(t *testing.T) {
	engine := NewMemoryEngine()
	require.NoError(t, engine.CreateNode(&Node{ID: "a"}))
	require.NoError(t, engine.CreateNode(&Node{ID: "b"}))
	require.NoError(t, engine.CreateEdge(&Edge{ID: "e", StartNode: "a", EndNode: "b"}))

	nodes, err := engine.NodeCount()
	require.NoError(t, err)
	assert.Equal(t, int64(2), nodes)

	edges, err := engine.EdgeCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), edges)
}

func TestMemoryEngine_Close(t *testing.T) {
	engine := NewMemoryEngine()
	require.NoError(t, engine.CreateNode(&Node{ID: "a"}))
	require.NoError(t, engine.Close())

	_, err := engine.GetNode("a")
	assert.ErrorIs(t, err, ErrStorageClosed)

	_, err = engine.AllNodes()
	assert.ErrorIs(t, err, ErrStorageClosed)

	// Close is idempotent
	assert.NoError(t, engine.Close())
}

func TestMemoryEngine_ConcurrentAccess(t *testing.T) {
	engine := NewMemoryEngine()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				id := NodeID(fmt.Sprintf("n-%d-%d", n, j))
				_ = engine.CreateNode(&Node{ID: id, Labels: []string{"Worker"}})
				_, _ = engine.GetNode(id)
				_, _ = engine.GetNodesByLabel("Worker")
			}
		}(i)
	}
	wg.Wait()

	count, err := engine.NodeCount()
	require.NoError(t, err)
	assert.Equal(t, int64(200), count)
}
