// Dataset loading from YAML files.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Dataset is the on-disk YAML shape for seed data.
//
// Example:
//
//	nodes:
//	  - id: alice
//	    labels: [Person]
//	    properties: {name: Alice, age: 30}
//	edges:
//	  - from: alice
//	    to: bob
//	    type: KNOWS
type Dataset struct {
	Nodes []DatasetNode `yaml:"nodes"`
	Edges []DatasetEdge `yaml:"edges"`
}

// DatasetNode is one node entry in a dataset file.
// ID may be omitted; a UUID is assigned, but such nodes cannot be
// referenced by edges.
type DatasetNode struct {
	ID         string         `yaml:"id"`
	Labels     []string       `yaml:"labels"`
	Properties map[string]any `yaml:"properties"`
}

// DatasetEdge is one edge entry in a dataset file. From and To name
// node IDs declared in the same file. ID may be omitted.
type DatasetEdge struct {
	ID         string         `yaml:"id"`
	From       string         `yaml:"from"`
	To         string         `yaml:"to"`
	Type       string         `yaml:"type"`
	Properties map[string]any `yaml:"properties"`
}

// LoadStats reports what a dataset load inserted.
type LoadStats struct {
	Nodes int
	Edges int
}

// LoadDataset parses a YAML dataset from r and inserts it into the
// engine. Nodes are inserted in parallel, then edges once every
// endpoint exists.
func LoadDataset(ctx context.Context, eng Engine, r io.Reader) (LoadStats, error) {
	var ds Dataset
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&ds); err != nil {
		return LoadStats{}, fmt.Errorf("failed to parse dataset: %w", err)
	}
	return insertDataset(ctx, eng, &ds)
}

// LoadDatasetFile is LoadDataset over a file path.
func LoadDatasetFile(ctx context.Context, eng Engine, path string) (LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return LoadStats{}, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	return LoadDataset(ctx, eng, f)
}

func insertDataset(ctx context.Context, eng Engine, ds *Dataset) (LoadStats, error) {
	for i := range ds.Nodes {
		if ds.Nodes[i].ID == "" {
			ds.Nodes[i].ID = uuid.New().String()
		}
	}
	for i := range ds.Edges {
		if ds.Edges[i].ID == "" {
			ds.Edges[i].ID = uuid.New().String()
		}
	}

	// Nodes first, in parallel. Edges wait so endpoints always exist.
	if len(ds.Nodes) > 0 {
		numWorkers := runtime.NumCPU()
		if numWorkers > len(ds.Nodes) {
			numWorkers = len(ds.Nodes)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(numWorkers)
		for _, dn := range ds.Nodes {
			dn := dn
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				node := &Node{
					ID:         NodeID(dn.ID),
					Labels:     dn.Labels,
					Properties: dn.Properties,
				}
				if err := eng.CreateNode(node); err != nil {
					return fmt.Errorf("node %q: %w", dn.ID, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return LoadStats{}, err
		}
	}

	for _, de := range ds.Edges {
		edge := &Edge{
			ID:         EdgeID(de.ID),
			StartNode:  NodeID(de.From),
			EndNode:    NodeID(de.To),
			Type:       de.Type,
			Properties: de.Properties,
		}
		if err := eng.CreateEdge(edge); err != nil {
			return LoadStats{}, fmt.Errorf("edge %q (%s->%s): %w", de.ID, de.From, de.To, err)
		}
	}

	return LoadStats{Nodes: len(ds.Nodes), Edges: len(ds.Edges)}, nil
}
