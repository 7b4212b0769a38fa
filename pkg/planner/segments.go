package planner

import "github.com/orneryd/vegvisir/pkg/plan"

// Segment connector: stateless functions that wire two plan fragments into
// one. They only rewire nodes already allocated in the arena (plus the join
// node itself); neither input fragment is copied.

// AddInput stacks upper on top of lower: lower's root becomes the first
// dependency of upper's tail, the output variable is propagated, and with
// copyColNames the tail also takes over lower's column shape. The combined
// segment keeps upper's root and lower's tail.
func AddInput(a *plan.Arena, upper, lower plan.Segment, copyColNames bool) plan.Segment {
	tail := a.Node(upper.Tail)
	root := a.Node(lower.Root)
	tail.SetDep(0, lower.Root)
	tail.SetInputVar(root.OutputVar())
	if copyColNames {
		tail.SetColNames(append([]string(nil), root.ColNames()...))
	}
	return plan.Segment{Root: upper.Root, Tail: lower.Tail}
}

// InnerJoin pairs rows of left and right whose key columns are identical.
// The joined segment's root is the new join node; the tail stays left's so
// the accumulated fragment keeps its entry point.
func InnerJoin(a *plan.Arena, left, right plan.Segment, keys []string) plan.Segment {
	cols := joinedCols(a, left, right)
	join := a.NewHashInnerJoin(left.Root, right.Root, keys, cols)
	return plan.Segment{Root: join, Tail: left.Tail}
}

// LeftJoin pairs like InnerJoin but preserves every left row, extending the
// right-side columns with nulls when no right row matches.
func LeftJoin(a *plan.Arena, left, right plan.Segment, keys []string) plan.Segment {
	cols := joinedCols(a, left, right)
	join := a.NewHashLeftJoin(left.Root, right.Root, keys, cols)
	return plan.Segment{Root: join, Tail: left.Tail}
}

// CrossProduct pairs every left row with every right row. Used when two
// fragments share no aliases.
func CrossProduct(a *plan.Arena, left, right plan.Segment) plan.Segment {
	cols := joinedCols(a, left, right)
	join := a.NewCartesianProduct(left.Root, right.Root, cols)
	return plan.Segment{Root: join, Tail: left.Tail}
}

// joinedCols is the left-then-right union of both roots' columns; columns
// present on both sides (the join keys) keep their left position.
func joinedCols(a *plan.Arena, left, right plan.Segment) []string {
	leftCols := a.Node(left.Root).ColNames()
	rightCols := a.Node(right.Root).ColNames()
	cols := make([]string, 0, len(leftCols)+len(rightCols))
	seen := make(map[string]bool, len(leftCols))
	for _, c := range leftCols {
		cols = append(cols, c)
		seen[c] = true
	}
	for _, c := range rightCols {
		if !seen[c] {
			cols = append(cols, c)
		}
	}
	return cols
}
