package planner

import (
	"github.com/orneryd/vegvisir/pkg/cypher"
	"github.com/orneryd/vegvisir/pkg/plan"
)

// genMatch builds the fragment for one MATCH clause. Comma-separated
// pattern parts are folded with the same join/cross rules used between
// clauses, scoped to what is visible inside this clause.
func (p *planner) genMatch(m *MatchCtx) (plan.Segment, error) {
	acc := plan.EmptySegment()
	local := m.Available.Clone()

	for i, part := range m.Pattern {
		seg := p.genPatternPart(part, m.Cols[i], local)
		partGen := partBindings(part, m.Cols[i], m.Generated)

		if acc.Empty() {
			acc = seg
		} else {
			keys, err := joinKeys(partGen, local)
			if err != nil {
				return plan.EmptySegment(), err
			}
			if len(keys) > 0 {
				tail := p.arena.Node(seg.Tail)
				if tail.Kind() == plan.KindArgument {
					tail.SetInputVar(p.arena.Node(acc.Root).OutputVar())
				}
				acc = InnerJoin(p.arena, acc, seg, keys)
			} else {
				acc = CrossProduct(p.arena, acc, seg)
			}
		}
		local.Merge(partGen)
	}
	return acc, nil
}

// genPatternPart builds the chain for a single path: a seed (scan, or an
// Argument replaying an already-bound node), one Expand per relationship, a
// Filter for inline property maps, and a PathBuild when the path is bound.
func (p *planner) genPatternPart(part *cypher.PatternPart, cols *PatternCols, scope *Bindings) plan.Segment {
	first := part.Nodes[0]
	firstCol := cols.Nodes[0]

	var seed plan.ID
	var filters []cypher.Expr

	if scope.Has(firstCol) {
		seed = p.arena.NewArgument([]string{firstCol})
		// Labels on an already-bound node become filters.
		for _, label := range first.Labels {
			filters = append(filters, labelCheck(firstCol, label))
		}
	} else {
		seed = p.arena.NewScanNodes(plan.None, &plan.ScanSpec{Col: firstCol, Labels: first.Labels})
	}
	filters = append(filters, propChecks(firstCol, first.Props)...)

	cur := seed
	rowCols := []string{firstCol}
	bound := map[string]bool{firstCol: true}

	for j, rel := range part.Rels {
		dst := part.Nodes[j+1]
		dstCol := cols.Nodes[j+1]
		spec := &plan.ExpandSpec{
			SrcCol:     cols.Nodes[j],
			EdgeCol:    cols.Edges[j],
			DstCol:     dstCol,
			Types:      rel.Types,
			Dir:        rel.Direction,
			MinHops:    rel.MinHops,
			MaxHops:    rel.MaxHops,
			VarLength:  rel.VarLength,
			DstLabels:  dst.Labels,
			EdgeProps:  rel.Props,
			BoundDst:   bound[dstCol],
			UniqueWith: append([]string(nil), cols.Edges[:j]...),
		}
		rowCols = append(append([]string(nil), rowCols...), spec.EdgeCol)
		if !spec.BoundDst {
			rowCols = append(rowCols, dstCol)
			bound[dstCol] = true
		}
		cur = p.arena.NewExpand(cur, spec, rowCols)
		filters = append(filters, propChecks(dstCol, dst.Props)...)
	}

	if len(filters) > 0 {
		cur = p.arena.NewFilter(cur, andAll(filters), append([]string(nil), rowCols...))
	}

	if cols.Path != "" {
		rowCols = append(append([]string(nil), rowCols...), cols.Path)
		cur = p.arena.NewPathBuild(cur, &plan.PathSpec{
			Col:   cols.Path,
			Nodes: cols.Nodes,
			Edges: cols.Edges,
		}, rowCols)
	}

	return plan.Segment{Root: cur, Tail: seed}
}

// partBindings collects the user-visible aliases of one pattern part, typed
// from the clause ledger. Analyzer-synthesized columns stay out.
func partBindings(part *cypher.PatternPart, cols *PatternCols, generated *Bindings) *Bindings {
	b := NewBindings()
	if cols.Path != "" {
		t, _ := generated.Get(cols.Path)
		b.Set(cols.Path, t)
	}
	for _, np := range part.Nodes {
		if np.Var == "" {
			continue
		}
		t, _ := generated.Get(np.Var)
		b.Set(np.Var, t)
	}
	for _, rp := range part.Rels {
		if rp.Var == "" {
			continue
		}
		t, _ := generated.Get(rp.Var)
		b.Set(rp.Var, t)
	}
	return b
}

func (p *planner) genUnwind(c *UnwindCtx, inputCols []string) plan.Segment {
	cols := append(append([]string(nil), inputCols...), c.Alias)
	u := p.arena.NewUnwind(plan.None, c.Expr, c.Alias, cols)
	return plan.Segment{Root: u, Tail: u}
}

func (p *planner) genWith(c *WithCtx) plan.Segment {
	return p.projectChain(c.Items, c.Distinct, c.OrderBy, c.Skip, c.Limit, c.Where)
}

func (p *planner) genReturn(c *ReturnCtx) plan.Segment {
	return p.projectChain(c.Items, c.Distinct, c.OrderBy, c.Skip, c.Limit, nil)
}

// genWhere plans a filter fragment over the given input shape. The caller
// decides where it attaches.
func (p *planner) genWhere(cond cypher.Expr, inputCols []string) plan.Segment {
	f := p.arena.NewFilter(plan.None, cond, append([]string(nil), inputCols...))
	return plan.Segment{Root: f, Tail: f}
}

// projectChain lowers a WITH/RETURN body. The projection (an Aggregate when
// any item aggregates) is the fragment tail; DISTINCT, ORDER BY, SKIP/LIMIT
// and a trailing WHERE stack on top in that order.
func (p *planner) projectChain(items []ProjItem, distinct bool, orderBy []plan.SortKey, skip, limit, where cypher.Expr) plan.Segment {
	columns := make([]plan.Column, len(items))
	hasAgg := false
	for i, it := range items {
		columns[i] = plan.Column{Name: it.Name, Expr: it.Expr}
		if cypher.IsAggregate(it.Expr) {
			hasAgg = true
		}
	}

	var root plan.ID
	if hasAgg {
		root = p.arena.NewAggregate(plan.None, columns)
	} else {
		root = p.arena.NewProject(plan.None, columns)
	}
	tail := root
	cols := p.arena.Node(root).ColNames()

	if distinct && !hasAgg {
		root = p.arena.NewDedup(root, append([]string(nil), cols...))
	}
	if len(orderBy) > 0 {
		root = p.arena.NewSort(root, orderBy, append([]string(nil), cols...))
	}
	if skip != nil || limit != nil {
		root = p.arena.NewLimit(root, skip, limit, append([]string(nil), cols...))
	}
	if where != nil {
		root = p.arena.NewFilter(root, where, append([]string(nil), cols...))
	}
	return plan.Segment{Root: root, Tail: tail}
}

func labelCheck(col, label string) cypher.Expr {
	return &cypher.Binary{
		Op:  cypher.OpIn,
		LHS: &cypher.Literal{Value: label},
		RHS: &cypher.FuncCall{Name: "labels", Args: []cypher.Expr{&cypher.Var{Name: col}}},
	}
}

func propChecks(col string, props []*cypher.PropPair) []cypher.Expr {
	var checks []cypher.Expr
	for _, pair := range props {
		checks = append(checks, &cypher.Binary{
			Op:  cypher.OpEq,
			LHS: &cypher.Prop{Var: col, Key: pair.Key},
			RHS: pair.Value,
		})
	}
	return checks
}

func andAll(exprs []cypher.Expr) cypher.Expr {
	cond := exprs[0]
	for _, e := range exprs[1:] {
		cond = &cypher.Binary{Op: cypher.OpAnd, LHS: cond, RHS: e}
	}
	return cond
}
