// BadgerEngine provides persistent disk-based storage using BadgerDB.
// It implements the Engine interface with ACID transaction guarantees.
package storage

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
)

func init() {
	// Nested property values must be registered for gob interface encoding
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// Key prefixes for BadgerDB storage organization.
// Single-byte prefixes keep keys compact.
const (
	prefixNode          = byte(0x01) // node:nodeID -> gob(Node)
	prefixEdge          = byte(0x02) // edge:edgeID -> gob(Edge)
	prefixLabelIndex    = byte(0x03) // label + 0x00 + nodeID -> empty
	prefixOutgoingIndex = byte(0x04) // nodeID + 0x00 + edgeID -> empty
	prefixIncomingIndex = byte(0x05) // nodeID + 0x00 + edgeID -> empty
)

// BadgerEngine provides persistent storage using BadgerDB.
//
// Key structure:
//   - Nodes: 0x01 + nodeID -> gob(Node)
//   - Edges: 0x02 + edgeID -> gob(Edge)
//   - Label index: 0x03 + label + 0x00 + nodeID -> empty
//   - Outgoing index: 0x04 + nodeID + 0x00 + edgeID -> empty
//   - Incoming index: 0x05 + nodeID + 0x00 + edgeID -> empty
//
// Example:
//
//	engine, err := storage.NewBadgerEngine("/path/to/data")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
type BadgerEngine struct {
	db       *badger.DB
	mu       sync.RWMutex // Protects closed
	closed   bool
	inMemory bool // True if running in memory-only mode (testing)

	// Cached counts for O(1) stats lookups (updated on create)
	nodeCount atomic.Int64
	edgeCount atomic.Int64
}

// BadgerOptions configures the BadgerDB engine.
type BadgerOptions struct {
	// DataDir is the directory for storing data files.
	// Required unless InMemory is set.
	DataDir string

	// InMemory runs BadgerDB in memory-only mode.
	// Useful for testing. Data is not persisted.
	InMemory bool

	// SyncWrites forces fsync after each write.
	// Slower but more durable.
	SyncWrites bool

	// Logger for BadgerDB internal logging.
	// If nil, BadgerDB's logging is silenced.
	Logger badger.Logger
}

// NewBadgerEngine creates a persistent storage engine with default
// settings. Data is stored under dataDir and survives restarts.
//
// Example:
//
//	engine, err := storage.NewBadgerEngine("./data/vegvisir")
//	if err != nil {
//		return fmt.Errorf("open database: %w", err)
//	}
//	defer engine.Close()
func NewBadgerEngine(dataDir string) (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{
		DataDir: dataDir,
	})
}

// NewBadgerEngineWithOptions creates a BadgerEngine with custom
// configuration.
func NewBadgerEngineWithOptions(opts BadgerOptions) (*BadgerEngine, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir)

	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}

	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}

	// Quiet by default; BadgerDB's own logger is chatty
	badgerOpts = badgerOpts.WithLogger(opts.Logger)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	engine := &BadgerEngine{
		db:       db,
		inMemory: opts.InMemory,
	}

	// Initialize cached counts by scanning existing data (one-time cost)
	if err := engine.initializeCounts(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize counts: %w", err)
	}

	return engine, nil
}

// NewBadgerEngineInMemory creates an in-memory BadgerDB for testing.
//
// Data is not persisted and is lost when the engine is closed. Useful
// for unit tests that need persistent storage semantics without disk
// I/O.
func NewBadgerEngineInMemory() (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{
		InMemory: true,
	})
}

// IsInMemory returns true if the engine is running in memory-only mode.
func (b *BadgerEngine) IsInMemory() bool {
	return b.inMemory
}

// ============================================================================
// Key encoding helpers
// ============================================================================

// nodeKey creates a key for storing a node.
func nodeKey(id NodeID) []byte {
	return append([]byte{prefixNode}, []byte(id)...)
}

// edgeKey creates a key for storing an edge.
func edgeKey(id EdgeID) []byte {
	return append([]byte{prefixEdge}, []byte(id)...)
}

// labelIndexKey creates a key for the label index.
// Format: prefix + label + 0x00 + nodeID
func labelIndexKey(label string, nodeID NodeID) []byte {
	key := make([]byte, 0, 1+len(label)+1+len(nodeID))
	key = append(key, prefixLabelIndex)
	key = append(key, []byte(label)...)
	key = append(key, 0x00) // Separator
	key = append(key, []byte(nodeID)...)
	return key
}

// labelIndexPrefix returns the prefix for scanning all nodes with a label.
func labelIndexPrefix(label string) []byte {
	key := make([]byte, 0, 1+len(label)+1)
	key = append(key, prefixLabelIndex)
	key = append(key, []byte(label)...)
	key = append(key, 0x00)
	return key
}

// outgoingIndexKey creates a key for the outgoing edge index.
func outgoingIndexKey(nodeID NodeID, edgeID EdgeID) []byte {
	key := make([]byte, 0, 1+len(nodeID)+1+len(edgeID))
	key = append(key, prefixOutgoingIndex)
	key = append(key, []byte(nodeID)...)
	key = append(key, 0x00)
	key = append(key, []byte(edgeID)...)
	return key
}

// outgoingIndexPrefix returns the prefix for scanning outgoing edges.
func outgoingIndexPrefix(nodeID NodeID) []byte {
	key := make([]byte, 0, 1+len(nodeID)+1)
	key = append(key, prefixOutgoingIndex)
	key = append(key, []byte(nodeID)...)
	key = append(key, 0x00)
	return key
}

// incomingIndexKey creates a key for the incoming edge index.
func incomingIndexKey(nodeID NodeID, edgeID EdgeID) []byte {
	key := make([]byte, 0, 1+len(nodeID)+1+len(edgeID))
	key = append(key, prefixIncomingIndex)
	key = append(key, []byte(nodeID)...)
	key = append(key, 0x00)
	key = append(key, []byte(edgeID)...)
	return key
}

// incomingIndexPrefix returns the prefix for scanning incoming edges.
func incomingIndexPrefix(nodeID NodeID) []byte {
	key := make([]byte, 0, 1+len(nodeID)+1)
	key = append(key, prefixIncomingIndex)
	key = append(key, []byte(nodeID)...)
	key = append(key, 0x00)
	return key
}

// suffixAfterSeparator returns the key bytes after the first 0x00
// separator. Index keys store the indexed ID there.
func suffixAfterSeparator(key []byte) []byte {
	for i := 1; i < len(key); i++ {
		if key[i] == 0x00 {
			return key[i+1:]
		}
	}
	return nil
}

// ============================================================================
// Serialization helpers
// ============================================================================

// encodeNode serializes a Node using gob (preserves Go types like int64).
func encodeNode(n *Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeNode deserializes a Node from gob.
func decodeNode(data []byte) (*Node, error) {
	var node Node
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&node); err != nil {
		return nil, err
	}
	return &node, nil
}

// encodeEdge serializes an Edge using gob (preserves Go types).
func encodeEdge(e *Edge) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeEdge deserializes an Edge from gob.
func decodeEdge(data []byte) (*Edge, error) {
	var edge Edge
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&edge); err != nil {
		return nil, err
	}
	return &edge, nil
}

// ============================================================================
// Transaction helpers
// ============================================================================

func (b *BadgerEngine) ensureOpen() error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrStorageClosed
	}
	return nil
}

func (b *BadgerEngine) withView(fn func(txn *badger.Txn) error) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	return b.db.View(fn)
}

func (b *BadgerEngine) withUpdate(fn func(txn *badger.Txn) error) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	return b.db.Update(fn)
}

func badgerIterOptsKeyOnly(prefix []byte) badger.IteratorOptions {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	return opts
}

func badgerIterOptsPrefetchValues(prefix []byte) badger.IteratorOptions {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Prefix = prefix
	return opts
}

// initializeCounts scans existing keys so NodeCount/EdgeCount are O(1)
// afterwards.
func (b *BadgerEngine) initializeCounts() error {
	return b.db.View(func(txn *badger.Txn) error {
		var nodes, edges int64

		it := txn.NewIterator(badgerIterOptsKeyOnly([]byte{prefixNode}))
		for it.Rewind(); it.Valid(); it.Next() {
			nodes++
		}
		it.Close()

		it = txn.NewIterator(badgerIterOptsKeyOnly([]byte{prefixEdge}))
		for it.Rewind(); it.Valid(); it.Next() {
			edges++
		}
		it.Close()

		b.nodeCount.Store(nodes)
		b.edgeCount.Store(edges)
		return nil
	})
}

// ============================================================================
// Node operations
// ============================================================================

// CreateNode creates a new node in persistent storage.
func (b *BadgerEngine) CreateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}

	err := b.withUpdate(func(txn *badger.Txn) error {
		// Check if node already exists
		key := nodeKey(node.ID)
		_, err := txn.Get(key)
		if err == nil {
			return ErrAlreadyExists
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		data, err := encodeNode(node)
		if err != nil {
			return fmt.Errorf("failed to encode node: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}

		// Create label indexes
		for _, label := range node.Labels {
			if err := txn.Set(labelIndexKey(label, node.ID), []byte{}); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	b.nodeCount.Add(1)
	return nil
}

// GetNode retrieves a node by ID.
func (b *BadgerEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	var node *Node
	err := b.withView(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			var decodeErr error
			node, decodeErr = decodeNode(val)
			return decodeErr
		})
	})
	if err != nil {
		return nil, err
	}

	return node, nil
}

// GetNodesByLabel returns all nodes with the given label.
func (b *BadgerEngine) GetNodesByLabel(label string) ([]*Node, error) {
	nodes := []*Node{}
	err := b.withView(func(txn *badger.Txn) error {
		prefix := labelIndexPrefix(label)
		it := txn.NewIterator(badgerIterOptsKeyOnly(prefix))
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			nodeID := NodeID(it.Item().Key()[len(prefix):])

			item, err := txn.Get(nodeKey(nodeID))
			if err == badger.ErrKeyNotFound {
				// Stale index entry
				continue
			}
			if err != nil {
				return err
			}

			err = item.Value(func(val []byte) error {
				node, decodeErr := decodeNode(val)
				if decodeErr != nil {
					return decodeErr
				}
				nodes = append(nodes, node)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return nodes, nil
}

// AllNodes returns every node in the storage.
func (b *BadgerEngine) AllNodes() ([]*Node, error) {
	nodes := []*Node{}
	err := b.withView(func(txn *badger.Txn) error {
		it := txn.NewIterator(badgerIterOptsPrefetchValues([]byte{prefixNode}))
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				node, decodeErr := decodeNode(val)
				if decodeErr != nil {
					return decodeErr
				}
				nodes = append(nodes, node)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return nodes, nil
}

// ============================================================================
// Edge operations
// ============================================================================

// CreateEdge creates a new edge in persistent storage.
// Both endpoint nodes must already exist.
func (b *BadgerEngine) CreateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" {
		return ErrInvalidID
	}

	err := b.withUpdate(func(txn *badger.Txn) error {
		// Check if edge already exists
		key := edgeKey(edge.ID)
		_, err := txn.Get(key)
		if err == nil {
			return ErrAlreadyExists
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		// Verify start and end nodes exist
		if _, err := txn.Get(nodeKey(edge.StartNode)); err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}
		if _, err := txn.Get(nodeKey(edge.EndNode)); err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}

		data, err := encodeEdge(edge)
		if err != nil {
			return fmt.Errorf("failed to encode edge: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}

		// Create adjacency indexes
		if err := txn.Set(outgoingIndexKey(edge.StartNode, edge.ID), []byte{}); err != nil {
			return err
		}
		if err := txn.Set(incomingIndexKey(edge.EndNode, edge.ID), []byte{}); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return err
	}

	b.edgeCount.Add(1)
	return nil
}

// GetEdge retrieves an edge by ID.
func (b *BadgerEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	var edge *Edge
	err := b.withView(func(txn *badger.Txn) error {
		item, err := txn.Get(edgeKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			var decodeErr error
			edge, decodeErr = decodeEdge(val)
			return decodeErr
		})
	})
	if err != nil {
		return nil, err
	}

	return edge, nil
}

// GetOutgoingEdges returns all edges starting from the given node.
func (b *BadgerEngine) GetOutgoingEdges(nodeID NodeID) ([]*Edge, error) {
	if nodeID == "" {
		return nil, ErrInvalidID
	}
	return b.edgesByIndex(outgoingIndexPrefix(nodeID))
}

// GetIncomingEdges returns all edges ending at the given node.
func (b *BadgerEngine) GetIncomingEdges(nodeID NodeID) ([]*Edge, error) {
	if nodeID == "" {
		return nil, ErrInvalidID
	}
	return b.edgesByIndex(incomingIndexPrefix(nodeID))
}

// edgesByIndex scans an adjacency index prefix and loads the edges it
// points at.
func (b *BadgerEngine) edgesByIndex(prefix []byte) ([]*Edge, error) {
	edges := []*Edge{}
	err := b.withView(func(txn *badger.Txn) error {
		it := txn.NewIterator(badgerIterOptsKeyOnly(prefix))
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			edgeID := EdgeID(suffixAfterSeparator(it.Item().Key()))
			if edgeID == "" {
				continue
			}

			item, err := txn.Get(edgeKey(edgeID))
			if err == badger.ErrKeyNotFound {
				// Stale index entry
				continue
			}
			if err != nil {
				return err
			}

			err = item.Value(func(val []byte) error {
				edge, decodeErr := decodeEdge(val)
				if decodeErr != nil {
					return decodeErr
				}
				edges = append(edges, edge)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return edges, nil
}

// ============================================================================
// Stats and lifecycle
// ============================================================================

// NodeCount returns the number of nodes.
func (b *BadgerEngine) NodeCount() (int64, error) {
	if err := b.ensureOpen(); err != nil {
		return 0, err
	}
	return b.nodeCount.Load(), nil
}

// EdgeCount returns the number of edges.
func (b *BadgerEngine) EdgeCount() (int64, error) {
	if err := b.ensureOpen(); err != nil {
		return 0, err
	}
	return b.edgeCount.Load(), nil
}

// Close closes the storage engine and flushes pending writes.
func (b *BadgerEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	return b.db.Close()
}

// Verify BadgerEngine implements Engine interface
var _ Engine = (*BadgerEngine)(nil)
