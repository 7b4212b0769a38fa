package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDataset = `
nodes:
  - id: alice
    labels: [Person]
    properties: {name: Alice, age: 30}
  - id: bob
    labels: [Person]
    properties: {name: Bob, age: 25}
  - id: oslo
    labels: [City]
    properties: {name: Oslo}
edges:
  - id: e1
    from: alice
    to: bob
    type: KNOWS
    properties: {since: 2020}
  - from: alice
    to: oslo
    type: LIVES_IN
`

func TestLoadDataset(t *testing.T) {
	engine := NewMemoryEngine()
	defer engine.Close()

	stats, err := LoadDataset(context.Background(), engine, strings.NewReader(testDataset))
	require.NoError(t, err)
	assert.Equal(t, LoadStats{Nodes: 3, Edges: 2}, stats)

	alice, err := engine.GetNode("alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"Person"}, alice.Labels)
	assert.Equal(t, "Alice", alice.Properties["name"])

	knows, err := engine.GetEdge("e1")
	require.NoError(t, err)
	assert.Equal(t, NodeID("alice"), knows.StartNode)
	assert.Equal(t, NodeID("bob"), knows.EndNode)
	assert.Equal(t, "KNOWS", knows.Type)

	// Edge without an explicit ID still landed
	outgoing, err := engine.GetOutgoingEdges("alice")
	require.NoError(t, err)
	assert.Len(t, outgoing, 2)
}

func TestLoadDatasetDefaultsNodeIDs(t *testing.T) {
	engine := NewMemoryEngine()
	defer engine.Close()

	stats, err := LoadDataset(context.Background(), engine, strings.NewReader(`
nodes:
  - labels: [Orphan]
  - labels: [Orphan]
`))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Nodes)

	orphans, err := engine.GetNodesByLabel("Orphan")
	require.NoError(t, err)
	require.Len(t, orphans, 2)
	assert.NotEmpty(t, orphans[0].ID)
	assert.NotEqual(t, orphans[0].ID, orphans[1].ID)
}

func TestLoadDatasetUnknownEndpoint(t *testing.T) {
	engine := NewMemoryEngine()
	defer engine.Close()

	_, err := LoadDataset(context.Background(), engine, strings.NewReader(`
nodes:
  - id: a
edges:
  - from: a
    to: ghost
    type: KNOWS
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "ghost")
}

func TestLoadDatasetInvalidYAML(t *testing.T) {
	engine := NewMemoryEngine()
	defer engine.Close()

	_, err := LoadDataset(context.Background(), engine, strings.NewReader("nodes: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse dataset")
}

func TestLoadDatasetFile(t *testing.T) {
	engine := NewMemoryEngine()
	defer engine.Close()

	path := filepath.Join(t.TempDir(), "ds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testDataset), 0o644))

	stats, err := LoadDatasetFile(context.Background(), engine, path)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Nodes)

	_, err = LoadDatasetFile(context.Background(), engine, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadDatasetIntoBadger(t *testing.T) {
	engine := newTestBadgerEngine(t)

	stats, err := LoadDataset(context.Background(), engine, strings.NewReader(testDataset))
	require.NoError(t, err)
	assert.Equal(t, LoadStats{Nodes: 3, Edges: 2}, stats)

	people, err := engine.GetNodesByLabel("Person")
	require.NoError(t, err)
	assert.Len(t, people, 2)
}
