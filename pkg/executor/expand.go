package executor

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/orneryd/vegvisir/pkg/cypher"
	"github.com/orneryd/vegvisir/pkg/plan"
	"github.com/orneryd/vegvisir/pkg/storage"
)

// execExpand traverses one relationship pattern step for every input row.
// A fixed step appends the matched edge (and the destination node unless
// it is already bound); a var-length step appends the list of traversed
// edges. Rows whose source binding is null expand to nothing, which is
// how optional-match nulls flow through downstream pattern steps.
func (r *run) execExpand(ctx context.Context, n *plan.Node, in *Result) (*Result, error) {
	spec := n.Expand
	idx := colIndex(in.Columns)
	srcPos, ok := idx[spec.SrcCol]
	if !ok {
		return nil, fmt.Errorf("%w: expand source column %q absent", ErrInvalidPlan, spec.SrcCol)
	}
	dstPos := -1
	if spec.BoundDst {
		dstPos, ok = idx[spec.DstCol]
		if !ok {
			return nil, fmt.Errorf("%w: expand destination column %q absent", ErrInvalidPlan, spec.DstCol)
		}
	}
	uniquePos := make([]int, len(spec.UniqueWith))
	for i, c := range spec.UniqueWith {
		j, ok := idx[c]
		if !ok {
			return nil, fmt.Errorf("%w: expand uniqueness column %q absent", ErrInvalidPlan, c)
		}
		uniquePos[i] = j
	}

	env := newEvalEnv(in.Columns, r.params)
	out := &Result{Columns: n.ColNames()}
	for _, row := range in.Rows {
		src := row[srcPos]
		if src == nil {
			continue
		}
		node, ok := src.(*storage.Node)
		if !ok {
			return nil, fmt.Errorf("%w: cannot expand from %T", ErrTypeMismatch, src)
		}
		var boundDst *storage.Node
		if spec.BoundDst {
			switch t := row[dstPos].(type) {
			case nil:
				continue
			case *storage.Node:
				boundDst = t
			default:
				return nil, fmt.Errorf("%w: cannot expand into %T", ErrTypeMismatch, row[dstPos])
			}
		}

		env.row = row
		wants, err := evalEdgeProps(spec.EdgeProps, env)
		if err != nil {
			return nil, err
		}
		used, err := usedEdges(row, uniquePos)
		if err != nil {
			return nil, err
		}

		step := expandStep{run: r, spec: spec, wants: wants, used: used, boundDst: boundDst, row: row, out: out}
		if spec.VarLength {
			err = step.walk(ctx, node, 0, nil)
		} else {
			err = step.fixed(node)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// evalEdgeProps evaluates the property constraints once per input row;
// the expressions may reference row bindings and parameters but never
// the edge itself.
func evalEdgeProps(props []*cypher.PropPair, env *evalEnv) ([]Value, error) {
	if len(props) == 0 {
		return nil, nil
	}
	wants := make([]Value, len(props))
	for i, p := range props {
		v, err := evalExpr(p.Value, env)
		if err != nil {
			return nil, err
		}
		wants[i] = v
	}
	return wants, nil
}

// usedEdges collects the IDs of relationships bound by earlier steps of
// the same pattern part; this step must not traverse them again.
func usedEdges(row []Value, uniquePos []int) (map[storage.EdgeID]struct{}, error) {
	if len(uniquePos) == 0 {
		return nil, nil
	}
	used := make(map[storage.EdgeID]struct{}, len(uniquePos))
	for _, j := range uniquePos {
		switch t := row[j].(type) {
		case nil:
		case *storage.Edge:
			used[t.ID] = struct{}{}
		case []Value:
			for _, e := range t {
				edge, ok := e.(*storage.Edge)
				if !ok {
					return nil, fmt.Errorf("%w: uniqueness column holds %T, not an edge", ErrTypeMismatch, e)
				}
				used[edge.ID] = struct{}{}
			}
		default:
			return nil, fmt.Errorf("%w: uniqueness column holds %T, not an edge", ErrTypeMismatch, row[j])
		}
	}
	return used, nil
}

// expandStep carries the per-row traversal state.
type expandStep struct {
	run      *run
	spec     *plan.ExpandSpec
	wants    []Value
	used     map[storage.EdgeID]struct{}
	boundDst *storage.Node
	row      []Value
	out      *Result
}

// fixed matches exactly one hop.
func (s *expandStep) fixed(node *storage.Node) error {
	edges, err := s.run.adjacentEdges(node.ID, s.spec.Dir)
	if err != nil {
		return err
	}
	for _, edge := range edges {
		if !s.admissible(edge) {
			continue
		}
		dst, err := s.run.cachedNode(otherEnd(edge, node.ID))
		if err != nil {
			return err
		}
		if !s.dstMatches(dst) {
			continue
		}
		s.emit(dst, nil, edge)
	}
	return nil
}

// walk enumerates var-length expansions depth-first, emitting every state
// whose hop count falls inside the bounds. Edges de-duplicate within a
// walk, so unbounded patterns terminate.
func (s *expandStep) walk(ctx context.Context, cur *storage.Node, depth int, edges []*storage.Edge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth >= s.spec.MinHops && s.dstMatches(cur) {
		list := make([]Value, len(edges))
		for i, e := range edges {
			list[i] = e
		}
		s.emit(cur, list, nil)
	}
	maxHops := s.spec.MaxHops
	if maxHops < 0 {
		maxHops = math.MaxInt
	}
	if depth >= maxHops {
		return nil
	}
	adj, err := s.run.adjacentEdges(cur.ID, s.spec.Dir)
	if err != nil {
		return err
	}
	for _, edge := range adj {
		if !s.admissible(edge) {
			continue
		}
		dst, err := s.run.cachedNode(otherEnd(edge, cur.ID))
		if err != nil {
			return err
		}
		if s.used == nil {
			s.used = make(map[storage.EdgeID]struct{})
		}
		s.used[edge.ID] = struct{}{}
		err = s.walk(ctx, dst, depth+1, append(edges[:len(edges):len(edges)], edge))
		delete(s.used, edge.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

// admissible checks type, property and relationship-uniqueness
// constraints for one candidate edge.
func (s *expandStep) admissible(edge *storage.Edge) bool {
	if _, dup := s.used[edge.ID]; dup {
		return false
	}
	if len(s.spec.Types) > 0 {
		found := false
		for _, t := range s.spec.Types {
			if edge.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for i, p := range s.spec.EdgeProps {
		have := normalizeValue(edge.Properties[p.Key])
		eq, isNull := valueEquals(have, s.wants[i])
		if isNull || !eq {
			return false
		}
	}
	return true
}

func (s *expandStep) dstMatches(dst *storage.Node) bool {
	if !hasAllLabels(dst, s.spec.DstLabels) {
		return false
	}
	return s.boundDst == nil || dst.ID == s.boundDst.ID
}

// emit appends one output row: the input row plus the edge binding, plus
// the destination when this step binds it. A fixed step binds the edge
// itself, a var-length step the list of traversed edges.
func (s *expandStep) emit(dst *storage.Node, edgeList []Value, single *storage.Edge) {
	next := make([]Value, 0, len(s.row)+2)
	next = append(next, s.row...)
	if single != nil {
		next = append(next, single)
	} else {
		next = append(next, edgeList)
	}
	if !s.spec.BoundDst {
		next = append(next, dst)
	}
	s.out.Rows = append(s.out.Rows, next)
}

// otherEnd resolves the node an edge leads to when traversed away from
// from. Directed steps never call this with a foreign edge, so for a
// self-loop both branches agree.
func otherEnd(edge *storage.Edge, from storage.NodeID) storage.NodeID {
	if edge.StartNode == from {
		return edge.EndNode
	}
	return edge.StartNode
}

// adjacentEdges returns the edges leaving (DirOut), entering (DirIn) or
// touching (DirBoth) a node, sorted by edge ID so traversal order is
// deterministic. Results are cached for the duration of the run; a
// var-length walk revisits nodes constantly.
func (r *run) adjacentEdges(id storage.NodeID, dir cypher.Direction) ([]*storage.Edge, error) {
	if r.adjCache == nil {
		r.adjCache = make(map[adjKey][]*storage.Edge)
	}
	key := adjKey{id: id, dir: dir}
	if edges, ok := r.adjCache[key]; ok {
		return edges, nil
	}
	var edges []*storage.Edge
	if dir == cypher.DirOut || dir == cypher.DirBoth {
		out, err := r.store.GetOutgoingEdges(id)
		if err != nil {
			return nil, fmt.Errorf("expand: %w", err)
		}
		edges = append(edges, out...)
	}
	if dir == cypher.DirIn || dir == cypher.DirBoth {
		in, err := r.store.GetIncomingEdges(id)
		if err != nil {
			return nil, fmt.Errorf("expand: %w", err)
		}
		edges = append(edges, in...)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	if dir == cypher.DirBoth {
		// A self-loop shows up in both adjacency lists.
		dedup := edges[:0]
		for i, e := range edges {
			if i > 0 && e.ID == edges[i-1].ID {
				continue
			}
			dedup = append(dedup, e)
		}
		edges = dedup
	}
	r.adjCache[key] = edges
	return edges, nil
}

// cachedNode resolves a node by ID through the run-scoped cache.
func (r *run) cachedNode(id storage.NodeID) (*storage.Node, error) {
	if r.nodeCache == nil {
		r.nodeCache = make(map[storage.NodeID]*storage.Node)
	}
	if n, ok := r.nodeCache[id]; ok {
		return n, nil
	}
	n, err := r.store.GetNode(id)
	if err != nil {
		return nil, fmt.Errorf("expand: resolve node %q: %w", id, err)
	}
	r.nodeCache[id] = n
	return n, nil
}

type adjKey struct {
	id  storage.NodeID
	dir cypher.Direction
}
