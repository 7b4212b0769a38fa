package executor

import (
	"context"
	"fmt"
	"sort"

	"github.com/orneryd/vegvisir/pkg/cypher"
	"github.com/orneryd/vegvisir/pkg/plan"
	"github.com/orneryd/vegvisir/pkg/storage"
)

// Executor runs plan segments against a storage engine.
type Executor struct {
	store storage.Engine
}

// New returns an executor reading from store.
func New(store storage.Engine) *Executor {
	return &Executor{store: store}
}

// Execute materializes the segment rooted at seg.Root. Parameters are
// normalized once up front so $param values compare like literals.
func (e *Executor) Execute(ctx context.Context, arena *plan.Arena, seg plan.Segment, params map[string]any) (*Result, error) {
	if arena == nil || seg.Empty() {
		return nil, fmt.Errorf("%w: empty segment", ErrInvalidPlan)
	}
	normalized := make(map[string]Value, len(params))
	for k, v := range params {
		normalized[k] = normalizeValue(v)
	}
	r := &run{
		store:   e.store,
		arena:   arena,
		params:  normalized,
		results: make(map[plan.ID]*Result),
		vars:    make(map[string]*Result),
	}
	return r.exec(ctx, seg.Root)
}

// run is the per-execution state: memoized node results plus the variable
// table. Every node publishes its result under its output variable so
// that Argument leaves on the right side of a join can read the rows the
// left side has already produced; dependencies execute left first for
// exactly that reason.
type run struct {
	store   storage.Engine
	arena   *plan.Arena
	params  map[string]Value
	results map[plan.ID]*Result
	vars    map[string]*Result

	// Traversal caches, filled lazily by expand.
	adjCache  map[adjKey][]*storage.Edge
	nodeCache map[storage.NodeID]*storage.Node
}

func (r *run) exec(ctx context.Context, id plan.ID) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if res, ok := r.results[id]; ok {
		return res, nil
	}
	n := r.arena.Node(id)
	if n == nil {
		return nil, fmt.Errorf("%w: node %d not in arena", ErrInvalidPlan, id)
	}

	deps := make([]*Result, len(n.Deps()))
	for i, dep := range n.Deps() {
		if dep == plan.None {
			continue
		}
		d, err := r.exec(ctx, dep)
		if err != nil {
			return nil, err
		}
		deps[i] = d
	}
	switch n.Kind() {
	case plan.KindStart, plan.KindArgument, plan.KindScanNodes:
		// Leaves. A scan tolerates an unconnected or grafted dep.
	default:
		for i, d := range deps {
			if d == nil {
				return nil, fmt.Errorf("%w: %s input %d is unconnected", ErrInvalidPlan, n.Kind(), i)
			}
		}
	}

	var res *Result
	var err error
	switch n.Kind() {
	case plan.KindStart:
		res = &Result{Columns: n.ColNames(), Rows: [][]Value{{}}}
	case plan.KindArgument:
		res, err = r.execArgument(n)
	case plan.KindScanNodes:
		res, err = r.execScanNodes(n)
	case plan.KindExpand:
		res, err = r.execExpand(ctx, n, deps[0])
	case plan.KindPathBuild:
		res, err = r.execPathBuild(n, deps[0])
	case plan.KindFilter:
		res, err = r.execFilter(n, deps[0])
	case plan.KindProject:
		res, err = r.execProject(n, deps[0])
	case plan.KindAggregate:
		res, err = r.execAggregate(n, deps[0])
	case plan.KindUnwind:
		res, err = r.execUnwind(n, deps[0])
	case plan.KindSort:
		res, err = r.execSort(n, deps[0])
	case plan.KindLimit:
		res, err = r.execLimit(n, deps[0])
	case plan.KindDedup:
		res, err = r.execDedup(n, deps[0])
	case plan.KindHashInnerJoin:
		res, err = r.execHashJoin(n, deps[0], deps[1], false)
	case plan.KindHashLeftJoin:
		res, err = r.execHashJoin(n, deps[0], deps[1], true)
	case plan.KindCartesianProduct:
		res, err = r.execCartesian(n, deps[0], deps[1])
	default:
		err = fmt.Errorf("%w: unhandled node kind %s", ErrInvalidPlan, n.Kind())
	}
	if err != nil {
		return nil, err
	}

	r.results[id] = res
	if v := n.OutputVar(); v != "" {
		r.vars[v] = res
	}
	return res, nil
}

// execArgument replays the rows another fragment already bound for this
// node's columns, deduplicated so the downstream expansion runs once per
// distinct binding.
func (r *run) execArgument(n *plan.Node) (*Result, error) {
	src, ok := r.vars[n.InputVar()]
	if !ok {
		return nil, fmt.Errorf("%w: argument input %q not materialized", ErrInvalidPlan, n.InputVar())
	}
	srcIdx := colIndex(src.Columns)
	cols := n.ColNames()
	pos := make([]int, len(cols))
	for i, c := range cols {
		j, ok := srcIdx[c]
		if !ok {
			return nil, fmt.Errorf("%w: argument column %q absent from input", ErrInvalidPlan, c)
		}
		pos[i] = j
	}
	out := &Result{Columns: cols}
	seen := make(map[string]struct{}, len(src.Rows))
	for _, row := range src.Rows {
		vals := make([]Value, len(pos))
		for i, j := range pos {
			vals[i] = row[j]
		}
		key := rowKey(vals)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out.Rows = append(out.Rows, vals)
	}
	return out, nil
}

// execScanNodes reads every node carrying the scan's labels, ordered by
// ID so plans execute deterministically.
func (r *run) execScanNodes(n *plan.Node) (*Result, error) {
	spec := n.Scan
	var (
		nodes []*storage.Node
		err   error
	)
	if len(spec.Labels) == 0 {
		nodes, err = r.store.AllNodes()
	} else {
		nodes, err = r.store.GetNodesByLabel(spec.Labels[0])
	}
	if err != nil {
		return nil, fmt.Errorf("scan nodes: %w", err)
	}
	out := &Result{Columns: n.ColNames()}
	for _, node := range nodes {
		if !hasAllLabels(node, spec.Labels) {
			continue
		}
		out.Rows = append(out.Rows, []Value{node})
	}
	sort.Slice(out.Rows, func(i, j int) bool {
		return out.Rows[i][0].(*storage.Node).ID < out.Rows[j][0].(*storage.Node).ID
	})
	return out, nil
}

func hasAllLabels(node *storage.Node, labels []string) bool {
	for _, want := range labels {
		found := false
		for _, l := range node.Labels {
			if l == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// execFilter keeps rows whose predicate is exactly true; false and null
// both drop the row.
func (r *run) execFilter(n *plan.Node, in *Result) (*Result, error) {
	env := newEvalEnv(in.Columns, r.params)
	out := &Result{Columns: n.ColNames()}
	for _, row := range in.Rows {
		env.row = row
		v, err := evalExpr(n.Filter.Condition, env)
		if err != nil {
			return nil, err
		}
		switch t := v.(type) {
		case nil:
		case bool:
			if t {
				out.Rows = append(out.Rows, row)
			}
		default:
			return nil, fmt.Errorf("%w: WHERE expects a boolean, got %T", ErrTypeMismatch, v)
		}
	}
	return out, nil
}

func (r *run) execProject(n *plan.Node, in *Result) (*Result, error) {
	env := newEvalEnv(in.Columns, r.params)
	out := &Result{Columns: n.ColNames()}
	for _, row := range in.Rows {
		env.row = row
		vals := make([]Value, len(n.Project.Columns))
		for i, col := range n.Project.Columns {
			v, err := evalExpr(col.Expr, env)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		out.Rows = append(out.Rows, vals)
	}
	return out, nil
}

// execUnwind emits one output row per list element. A null expression
// contributes no rows; a non-list value unwinds as a single element.
func (r *run) execUnwind(n *plan.Node, in *Result) (*Result, error) {
	env := newEvalEnv(in.Columns, r.params)
	out := &Result{Columns: n.ColNames()}
	for _, row := range in.Rows {
		env.row = row
		v, err := evalExpr(n.Unwind.Expr, env)
		if err != nil {
			return nil, err
		}
		switch t := v.(type) {
		case nil:
		case []Value:
			for _, elem := range t {
				next := make([]Value, 0, len(row)+1)
				next = append(next, row...)
				out.Rows = append(out.Rows, append(next, elem))
			}
		default:
			next := make([]Value, 0, len(row)+1)
			next = append(next, row...)
			out.Rows = append(out.Rows, append(next, v))
		}
	}
	return out, nil
}

// execSort orders rows by the sort keys. The comparison already ranks
// null after everything, so DESC places nulls first by plain reversal.
func (r *run) execSort(n *plan.Node, in *Result) (*Result, error) {
	env := newEvalEnv(in.Columns, r.params)
	keys := n.Sort.Keys
	keyVals := make([][]Value, len(in.Rows))
	for i, row := range in.Rows {
		env.row = row
		kv := make([]Value, len(keys))
		for j, k := range keys {
			v, err := evalExpr(k.Expr, env)
			if err != nil {
				return nil, err
			}
			kv[j] = v
		}
		keyVals[i] = kv
	}
	order := make([]int, len(in.Rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ka, kb := keyVals[order[a]], keyVals[order[b]]
		for j := range keys {
			c := compareValues(ka[j], kb[j])
			if keys[j].Desc {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	out := &Result{Columns: n.ColNames(), Rows: make([][]Value, len(order))}
	for i, idx := range order {
		out.Rows[i] = in.Rows[idx]
	}
	return out, nil
}

// execLimit applies SKIP and LIMIT. Both expressions evaluate without row
// bindings and must produce non-negative integers.
func (r *run) execLimit(n *plan.Node, in *Result) (*Result, error) {
	env := newEvalEnv(nil, r.params)
	skip, err := evalRowCount(n.Limit.Skip, env, "SKIP")
	if err != nil {
		return nil, err
	}
	count, err := evalRowCount(n.Limit.Count, env, "LIMIT")
	if err != nil {
		return nil, err
	}
	rows := in.Rows
	if skip >= 0 {
		if skip > int64(len(rows)) {
			rows = nil
		} else {
			rows = rows[skip:]
		}
	}
	if count >= 0 && count < int64(len(rows)) {
		rows = rows[:count]
	}
	out := &Result{Columns: n.ColNames(), Rows: make([][]Value, len(rows))}
	copy(out.Rows, rows)
	return out, nil
}

// evalRowCount evaluates a SKIP or LIMIT expression, returning -1 when
// the clause is absent.
func evalRowCount(expr cypher.Expr, env *evalEnv, clause string) (int64, error) {
	if expr == nil {
		return -1, nil
	}
	v, err := evalExpr(expr, env)
	if err != nil {
		return 0, err
	}
	c, ok := v.(int64)
	if !ok || c < 0 {
		return 0, fmt.Errorf("%w: %s expects a non-negative integer, got %v", ErrTypeMismatch, clause, v)
	}
	return c, nil
}

// execDedup keeps the first occurrence of each distinct row.
func (r *run) execDedup(n *plan.Node, in *Result) (*Result, error) {
	out := &Result{Columns: n.ColNames()}
	seen := make(map[string]struct{}, len(in.Rows))
	for _, row := range in.Rows {
		key := rowKey(row)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// execPathBuild appends a path value assembled from already-bound node
// and edge columns. A null component nullifies the whole path, which
// happens on the preserved side of a left join.
func (r *run) execPathBuild(n *plan.Node, in *Result) (*Result, error) {
	idx := colIndex(in.Columns)
	spec := n.Path
	nodePos := make([]int, len(spec.Nodes))
	for i, c := range spec.Nodes {
		j, ok := idx[c]
		if !ok {
			return nil, fmt.Errorf("%w: path node column %q absent", ErrInvalidPlan, c)
		}
		nodePos[i] = j
	}
	edgePos := make([]int, len(spec.Edges))
	for i, c := range spec.Edges {
		j, ok := idx[c]
		if !ok {
			return nil, fmt.Errorf("%w: path edge column %q absent", ErrInvalidPlan, c)
		}
		edgePos[i] = j
	}
	out := &Result{Columns: n.ColNames()}
	for _, row := range in.Rows {
		p, err := buildPath(row, nodePos, edgePos)
		if err != nil {
			return nil, err
		}
		next := make([]Value, 0, len(row)+1)
		next = append(next, row...)
		out.Rows = append(out.Rows, append(next, p))
	}
	return out, nil
}

func buildPath(row []Value, nodePos, edgePos []int) (Value, error) {
	p := &Path{Nodes: make([]*storage.Node, 0, len(nodePos))}
	for _, j := range nodePos {
		switch t := row[j].(type) {
		case nil:
			return nil, nil
		case *storage.Node:
			p.Nodes = append(p.Nodes, t)
		default:
			return nil, fmt.Errorf("%w: path component is %T, not a node", ErrTypeMismatch, row[j])
		}
	}
	for _, j := range edgePos {
		switch t := row[j].(type) {
		case nil:
			return nil, nil
		case *storage.Edge:
			p.Edges = append(p.Edges, t)
		case []Value:
			for _, e := range t {
				edge, ok := e.(*storage.Edge)
				if !ok {
					return nil, fmt.Errorf("%w: path hop list holds %T, not an edge", ErrTypeMismatch, e)
				}
				p.Edges = append(p.Edges, edge)
			}
		default:
			return nil, fmt.Errorf("%w: path component is %T, not an edge", ErrTypeMismatch, row[j])
		}
	}
	return p, nil
}

// colSrc locates an output column in one of a join's inputs.
type colSrc struct {
	fromLeft bool
	idx      int
}

func joinColSources(outCols, leftCols, rightCols []string) ([]colSrc, error) {
	leftIdx := colIndex(leftCols)
	rightIdx := colIndex(rightCols)
	srcs := make([]colSrc, len(outCols))
	for i, c := range outCols {
		if j, ok := leftIdx[c]; ok {
			srcs[i] = colSrc{fromLeft: true, idx: j}
			continue
		}
		j, ok := rightIdx[c]
		if !ok {
			return nil, fmt.Errorf("%w: join output column %q absent from both sides", ErrInvalidPlan, c)
		}
		srcs[i] = colSrc{idx: j}
	}
	return srcs, nil
}

// execHashJoin hashes the right side on the key columns and probes with
// the left. A null key never matches, not even another null. With
// leftOuter set, unmatched left rows survive with the right-only columns
// null.
func (r *run) execHashJoin(n *plan.Node, left, right *Result, leftOuter bool) (*Result, error) {
	keys := n.Join.Keys
	leftIdx := colIndex(left.Columns)
	rightIdx := colIndex(right.Columns)
	leftKeyPos := make([]int, len(keys))
	rightKeyPos := make([]int, len(keys))
	for i, k := range keys {
		lj, ok := leftIdx[k]
		if !ok {
			return nil, fmt.Errorf("%w: join key %q absent from left side", ErrInvalidPlan, k)
		}
		rj, ok := rightIdx[k]
		if !ok {
			return nil, fmt.Errorf("%w: join key %q absent from right side", ErrInvalidPlan, k)
		}
		leftKeyPos[i] = lj
		rightKeyPos[i] = rj
	}
	srcs, err := joinColSources(n.ColNames(), left.Columns, right.Columns)
	if err != nil {
		return nil, err
	}

	table := make(map[string][]int, len(right.Rows))
	keyBuf := make([]Value, len(keys))
	for i, row := range right.Rows {
		for j, pos := range rightKeyPos {
			keyBuf[j] = row[pos]
		}
		key, ok := joinKey(keyBuf)
		if !ok {
			continue
		}
		table[key] = append(table[key], i)
	}

	out := &Result{Columns: n.ColNames()}
	for _, lrow := range left.Rows {
		for j, pos := range leftKeyPos {
			keyBuf[j] = lrow[pos]
		}
		var matches []int
		if key, ok := joinKey(keyBuf); ok {
			matches = table[key]
		}
		if len(matches) == 0 {
			if leftOuter {
				out.Rows = append(out.Rows, mergeJoinRow(srcs, lrow, nil))
			}
			continue
		}
		for _, ri := range matches {
			out.Rows = append(out.Rows, mergeJoinRow(srcs, lrow, right.Rows[ri]))
		}
	}
	return out, nil
}

func mergeJoinRow(srcs []colSrc, lrow, rrow []Value) []Value {
	vals := make([]Value, len(srcs))
	for i, src := range srcs {
		if src.fromLeft {
			vals[i] = lrow[src.idx]
		} else if rrow != nil {
			vals[i] = rrow[src.idx]
		}
	}
	return vals
}

// execCartesian pairs every left row with every right row, left-major so
// accumulator order is preserved.
func (r *run) execCartesian(n *plan.Node, left, right *Result) (*Result, error) {
	srcs, err := joinColSources(n.ColNames(), left.Columns, right.Columns)
	if err != nil {
		return nil, err
	}
	out := &Result{Columns: n.ColNames(), Rows: make([][]Value, 0, len(left.Rows)*len(right.Rows))}
	for _, lrow := range left.Rows {
		for _, rrow := range right.Rows {
			out.Rows = append(out.Rows, mergeJoinRow(srcs, lrow, rrow))
		}
	}
	return out, nil
}
