// Package storage provides the graph storage engines behind vegvisir.
//
// Two implementations of Engine ship with the module: MemoryEngine for
// tests and small datasets, and BadgerEngine for persistent storage on
// disk. Both return deep copies from read operations so callers can
// mutate results freely.
package storage

// NodeID uniquely identifies a node.
type NodeID string

// EdgeID uniquely identifies an edge.
type EdgeID string

// Node is a labeled property vertex.
type Node struct {
	ID         NodeID
	Labels     []string
	Properties map[string]any
}

// Edge is a typed, directed relationship between two nodes.
type Edge struct {
	ID         EdgeID
	StartNode  NodeID
	EndNode    NodeID
	Type       string
	Properties map[string]any
}

// Engine is the storage contract the query engine reads from and the
// dataset loader writes to. Implementations must be safe for concurrent
// use.
type Engine interface {
	// CreateNode stores a new node. ErrAlreadyExists if the ID is taken.
	CreateNode(node *Node) error

	// GetNode retrieves a node by ID. ErrNotFound if absent.
	GetNode(id NodeID) (*Node, error)

	// CreateEdge stores a new edge. Both endpoints must already exist.
	CreateEdge(edge *Edge) error

	// GetEdge retrieves an edge by ID. ErrNotFound if absent.
	GetEdge(id EdgeID) (*Edge, error)

	// GetNodesByLabel returns all nodes carrying the given label.
	GetNodesByLabel(label string) ([]*Node, error)

	// AllNodes returns every node in the store.
	AllNodes() ([]*Node, error)

	// GetOutgoingEdges returns all edges whose start node is nodeID.
	GetOutgoingEdges(nodeID NodeID) ([]*Edge, error)

	// GetIncomingEdges returns all edges whose end node is nodeID.
	GetIncomingEdges(nodeID NodeID) ([]*Edge, error)

	// NodeCount returns the number of stored nodes.
	NodeCount() (int64, error)

	// EdgeCount returns the number of stored edges.
	EdgeCount() (int64, error)

	// Close releases the engine. Further calls return ErrStorageClosed.
	Close() error
}

// copyNode creates a deep copy of a node.
func copyNode(n *Node) *Node {
	if n == nil {
		return nil
	}

	copied := &Node{
		ID:         n.ID,
		Labels:     make([]string, len(n.Labels)),
		Properties: make(map[string]any, len(n.Properties)),
	}

	copy(copied.Labels, n.Labels)
	for k, v := range n.Properties {
		copied.Properties[k] = v
	}

	return copied
}

// copyEdge creates a deep copy of an edge.
func copyEdge(e *Edge) *Edge {
	if e == nil {
		return nil
	}

	copied := &Edge{
		ID:         e.ID,
		StartNode:  e.StartNode,
		EndNode:    e.EndNode,
		Type:       e.Type,
		Properties: make(map[string]any, len(e.Properties)),
	}

	for k, v := range e.Properties {
		copied.Properties[k] = v
	}

	return copied
}
