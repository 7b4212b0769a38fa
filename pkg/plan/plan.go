// Package plan defines the logical query plan: an arena of plan nodes
// addressed by index, the node catalog the planner composes from, and the
// Segment fragment handle (root + tail) the planner and connector pass
// around.
//
// Nodes are owned by the Arena and referenced by plan.ID everywhere, so a
// Segment is two integers and fragments can be rewired without pointer
// surgery. A node's dependencies are IDs too; dependency slot 0 of a
// single-input node may be plan.None while the fragment is still waiting to
// be connected.
package plan

import (
	"fmt"

	"github.com/orneryd/vegvisir/pkg/cypher"
)

// ID addresses a node inside an Arena.
type ID int32

// None marks an absent node reference, e.g. the unconnected dependency slot
// of a fragment tail.
const None ID = -1

// Kind identifies a plan-node operator.
type Kind uint8

const (
	KindStart Kind = iota
	KindScanNodes
	KindExpand
	KindPathBuild
	KindFilter
	KindProject
	KindAggregate
	KindUnwind
	KindSort
	KindLimit
	KindDedup
	KindHashInnerJoin
	KindHashLeftJoin
	KindCartesianProduct
	KindArgument
)

var kindNames = map[Kind]string{
	KindStart:            "Start",
	KindScanNodes:        "ScanNodes",
	KindExpand:           "Expand",
	KindPathBuild:        "PathBuild",
	KindFilter:           "Filter",
	KindProject:          "Project",
	KindAggregate:        "Aggregate",
	KindUnwind:           "Unwind",
	KindSort:             "Sort",
	KindLimit:            "Limit",
	KindDedup:            "Dedup",
	KindHashInnerJoin:    "HashInnerJoin",
	KindHashLeftJoin:     "HashLeftJoin",
	KindCartesianProduct: "CartesianProduct",
	KindArgument:         "Argument",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Segment is a plan fragment: Root is the fragment's topmost node (its
// output), Tail its entry point (where an upstream fragment connects).
type Segment struct {
	Root ID
	Tail ID
}

// EmptySegment is the fold seed before any fragment has been adopted.
func EmptySegment() Segment { return Segment{Root: None, Tail: None} }

// Empty reports whether no fragment has been adopted yet.
func (s Segment) Empty() bool { return s.Root == None }

// Column pairs an output column name with the expression that produces it.
// Projections and aggregations are lists of Columns in output order.
type Column struct {
	Name string
	Expr cypher.Expr
}

// SortKey is one ORDER BY term.
type SortKey struct {
	Expr cypher.Expr
	Desc bool
}

// ScanSpec configures a ScanNodes leaf. Labels may be empty (scan
// everything); with several labels, all must be present on a node.
type ScanSpec struct {
	Col    string
	Labels []string
}

// ExpandSpec configures one relationship traversal step. When BoundDst is
// set, DstCol is already bound upstream and the step checks identity instead
// of binding a new column. A var-length step binds EdgeCol to the list of
// traversed edges. EdgeProps constrain every traversed relationship, which
// for a var-length step means each hop. UniqueWith names the edge columns
// bound earlier in the same pattern path; traversed relationships must be
// distinct from those.
type ExpandSpec struct {
	SrcCol     string
	EdgeCol    string
	DstCol     string
	Types      []string
	Dir        cypher.Direction
	MinHops    int
	MaxHops    int // -1 = unbounded
	VarLength  bool
	DstLabels  []string
	EdgeProps  []*cypher.PropPair
	BoundDst   bool
	UniqueWith []string
}

// PathSpec configures a PathBuild node: Col receives the path value
// assembled from the named node and edge columns.
type PathSpec struct {
	Col   string
	Nodes []string
	Edges []string
}

// FilterSpec holds a Filter node's predicate.
type FilterSpec struct {
	Condition cypher.Expr
}

// ProjectSpec holds a Project node's output columns.
type ProjectSpec struct {
	Columns []Column
}

// AggregateSpec holds an Aggregate node's output columns in order; columns
// whose expression aggregates become accumulators, the rest group keys.
type AggregateSpec struct {
	Columns []Column
}

// UnwindSpec holds an Unwind node's list expression and the column the
// elements bind to.
type UnwindSpec struct {
	Expr  cypher.Expr
	Alias string
}

// SortSpec holds Sort keys in significance order.
type SortSpec struct {
	Keys []SortKey
}

// LimitSpec holds SKIP/LIMIT expressions; either may be nil.
type LimitSpec struct {
	Skip  cypher.Expr
	Count cypher.Expr
}

// JoinSpec holds the equi-join key columns of a hash join. Empty for a
// cartesian product.
type JoinSpec struct {
	Keys []string
}

// Node is one operator in the plan DAG. Structure fields (kind, deps, vars,
// columns) are accessed through methods; the per-kind spec pointers are
// exported for the executor and exactly one of them is non-nil for kinds
// that carry one.
type Node struct {
	id        ID
	kind      Kind
	deps      []ID
	inputVar  string
	outputVar string
	colNames  []string

	Scan    *ScanSpec
	Expand  *ExpandSpec
	Path    *PathSpec
	Filter  *FilterSpec
	Project *ProjectSpec
	Agg     *AggregateSpec
	Unwind  *UnwindSpec
	Sort    *SortSpec
	Limit   *LimitSpec
	Join    *JoinSpec
}

// ID returns the node's arena address.
func (n *Node) ID() ID { return n.id }

// Kind returns the operator kind.
func (n *Node) Kind() Kind { return n.kind }

// Deps returns the dependency slots. Slots may hold None while a fragment is
// unconnected.
func (n *Node) Deps() []ID { return n.deps }

// Dep returns dependency slot i.
func (n *Node) Dep(i int) ID { return n.deps[i] }

// SetDep fills dependency slot i.
func (n *Node) SetDep(i int, dep ID) { n.deps[i] = dep }

// SingleInput reports whether the node has exactly one dependency slot.
// Start and Argument are leaves; joins are binary.
func (n *Node) SingleInput() bool { return len(n.deps) == 1 }

// InputVar returns the variable the node reads. Only Argument consumes it at
// execution time; on other nodes it records connector wiring.
func (n *Node) InputVar() string { return n.inputVar }

// SetInputVar records the variable the node reads.
func (n *Node) SetInputVar(v string) { n.inputVar = v }

// OutputVar returns the variable the node's result is published under.
func (n *Node) OutputVar() string { return n.outputVar }

// ColNames returns the node's output columns.
func (n *Node) ColNames() []string { return n.colNames }

// SetColNames replaces the node's output columns.
func (n *Node) SetColNames(cols []string) { n.colNames = cols }

// Arena owns every node of one compilation. IDs index into it. A fresh
// Arena per compiled query; arenas are not safe for concurrent mutation.
type Arena struct {
	nodes []*Node
	vars  int
}

// NewArena returns an empty arena.
func NewArena() *Arena { return &Arena{} }

// Len returns the number of allocated nodes.
func (a *Arena) Len() int { return len(a.nodes) }

// Node returns the node at id. The pointer stays valid for the arena's
// lifetime.
func (a *Arena) Node(id ID) *Node { return a.nodes[id] }

// AnonVar returns a fresh variable name from the arena's counter.
func (a *Arena) AnonVar() string {
	v := fmt.Sprintf("__v%d", a.vars)
	a.vars++
	return v
}

func (a *Arena) alloc(kind Kind, deps []ID, cols []string) *Node {
	n := &Node{
		id:       ID(len(a.nodes)),
		kind:     kind,
		deps:     deps,
		colNames: cols,
	}
	n.outputVar = a.AnonVar()
	a.nodes = append(a.nodes, n)
	return n
}

// NewStart allocates the plan entry marker.
func (a *Arena) NewStart() ID {
	return a.alloc(KindStart, nil, nil).id
}

// NewScanNodes allocates a node-scan leaf producing one column. The
// dependency slot exists so the start marker can be grafted beneath it.
func (a *Arena) NewScanNodes(dep ID, spec *ScanSpec) ID {
	n := a.alloc(KindScanNodes, []ID{dep}, []string{spec.Col})
	n.Scan = spec
	return n.id
}

// NewExpand allocates a traversal step.
func (a *Arena) NewExpand(dep ID, spec *ExpandSpec, cols []string) ID {
	n := a.alloc(KindExpand, []ID{dep}, cols)
	n.Expand = spec
	return n.id
}

// NewPathBuild allocates a path-assembly step.
func (a *Arena) NewPathBuild(dep ID, spec *PathSpec, cols []string) ID {
	n := a.alloc(KindPathBuild, []ID{dep}, cols)
	n.Path = spec
	return n.id
}

// NewFilter allocates a row filter.
func (a *Arena) NewFilter(dep ID, cond cypher.Expr, cols []string) ID {
	n := a.alloc(KindFilter, []ID{dep}, cols)
	n.Filter = &FilterSpec{Condition: cond}
	return n.id
}

// NewProject allocates a projection; output columns are the column names in
// order.
func (a *Arena) NewProject(dep ID, columns []Column) ID {
	n := a.alloc(KindProject, []ID{dep}, columnNames(columns))
	n.Project = &ProjectSpec{Columns: columns}
	return n.id
}

// NewAggregate allocates a grouping aggregation.
func (a *Arena) NewAggregate(dep ID, columns []Column) ID {
	n := a.alloc(KindAggregate, []ID{dep}, columnNames(columns))
	n.Agg = &AggregateSpec{Columns: columns}
	return n.id
}

// NewUnwind allocates a list-expansion step.
func (a *Arena) NewUnwind(dep ID, expr cypher.Expr, alias string, cols []string) ID {
	n := a.alloc(KindUnwind, []ID{dep}, cols)
	n.Unwind = &UnwindSpec{Expr: expr, Alias: alias}
	return n.id
}

// NewSort allocates an ORDER BY step; columns pass through unchanged.
func (a *Arena) NewSort(dep ID, keys []SortKey, cols []string) ID {
	n := a.alloc(KindSort, []ID{dep}, cols)
	n.Sort = &SortSpec{Keys: keys}
	return n.id
}

// NewLimit allocates a SKIP/LIMIT step; columns pass through unchanged.
func (a *Arena) NewLimit(dep ID, skip, count cypher.Expr, cols []string) ID {
	n := a.alloc(KindLimit, []ID{dep}, cols)
	n.Limit = &LimitSpec{Skip: skip, Count: count}
	return n.id
}

// NewDedup allocates a distinct step over whole rows.
func (a *Arena) NewDedup(dep ID, cols []string) ID {
	return a.alloc(KindDedup, []ID{dep}, cols).id
}

// NewHashInnerJoin allocates an inner equi-join of left and right on keys.
func (a *Arena) NewHashInnerJoin(left, right ID, keys []string, cols []string) ID {
	n := a.alloc(KindHashInnerJoin, []ID{left, right}, cols)
	n.Join = &JoinSpec{Keys: keys}
	return n.id
}

// NewHashLeftJoin allocates a left outer equi-join preserving every left
// row.
func (a *Arena) NewHashLeftJoin(left, right ID, keys []string, cols []string) ID {
	n := a.alloc(KindHashLeftJoin, []ID{left, right}, cols)
	n.Join = &JoinSpec{Keys: keys}
	return n.id
}

// NewCartesianProduct allocates an unconditional pairing of left and right.
func (a *Arena) NewCartesianProduct(left, right ID, cols []string) ID {
	n := a.alloc(KindCartesianProduct, []ID{left, right}, cols)
	n.Join = &JoinSpec{}
	return n.id
}

// NewArgument allocates a leaf that replays rows published under its input
// variable, deduplicated and projected to cols.
func (a *Arena) NewArgument(cols []string) ID {
	return a.alloc(KindArgument, nil, cols).id
}

func columnNames(columns []Column) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return names
}
