package planner

import (
	"fmt"

	"github.com/orneryd/vegvisir/pkg/cypher"
	"github.com/orneryd/vegvisir/pkg/plan"
)

// Analyze splits a parsed match sentence into query parts and computes the
// binding ledgers the planner joins on: per match clause the aliases it
// generates and the scope available before it, per boundary clause the
// projected scope it exposes to the next part.
//
// Alias visibility and intra-clause duplicates are rejected here;
// cross-clause type conflicts are left to join-key validation so they
// surface exactly where the join would be built.
func Analyze(stmt *cypher.Statement) (*QueryCtx, error) {
	if stmt == nil || stmt.Kind != cypher.StatementMatch {
		return nil, ErrUnsupportedSentence
	}
	az := &analyzer{scope: NewBindings()}
	return az.run(stmt.Clauses)
}

type analyzer struct {
	scope     *Bindings
	anonNodes int
	anonEdges int
}

func (az *analyzer) anonNode() string {
	az.anonNodes++
	return fmt.Sprintf("__n%d", az.anonNodes)
}

func (az *analyzer) anonEdge() string {
	az.anonEdges++
	return fmt.Sprintf("__e%d", az.anonEdges)
}

func (az *analyzer) run(clauses []cypher.Clause) (*QueryCtx, error) {
	qctx := &QueryCtx{}
	part := &QueryPart{}

	for i, clause := range clauses {
		last := i == len(clauses)-1
		switch c := clause.(type) {
		case *cypher.MatchClause:
			mctx, err := az.analyzeMatch(c)
			if err != nil {
				return nil, err
			}
			part.Matches = append(part.Matches, mctx)

		case *cypher.UnwindClause:
			uctx, err := az.analyzeUnwind(c)
			if err != nil {
				return nil, err
			}
			part.Boundary = uctx
			qctx.Parts = append(qctx.Parts, part)
			part = &QueryPart{}

		case *cypher.WithClause:
			wctx, err := az.analyzeWith(c)
			if err != nil {
				return nil, err
			}
			part.Boundary = wctx
			qctx.Parts = append(qctx.Parts, part)
			part = &QueryPart{}

		case *cypher.ReturnClause:
			if !last {
				return nil, fmt.Errorf("%w: RETURN must be the final clause", ErrInvalidQuery)
			}
			rctx, err := az.analyzeReturn(c)
			if err != nil {
				return nil, err
			}
			part.Boundary = rctx
			qctx.Parts = append(qctx.Parts, part)
			part = nil
		}
	}

	if part != nil {
		return nil, fmt.Errorf("%w: query must end with RETURN", ErrInvalidQuery)
	}
	return qctx, nil
}

func (az *analyzer) analyzeMatch(c *cypher.MatchClause) (*MatchCtx, error) {
	mctx := &MatchCtx{
		Optional:  c.Optional,
		Pattern:   c.Pattern,
		Where:     c.Where,
		Generated: NewBindings(),
		Available: az.scope.Clone(),
	}

	// Relationship and path variables may not repeat within one clause;
	// node variables may (a repeated node is a cycle, not a conflict).
	edgeSeen := make(map[string]bool)

	for _, pp := range c.Pattern {
		cols := &PatternCols{}

		if pp.PathVar != "" {
			if mctx.Generated.Has(pp.PathVar) {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateAlias, pp.PathVar)
			}
			cols.Path = pp.PathVar
			mctx.Generated.Set(pp.PathVar, AliasPath)
		}

		// Walk the chain in pattern order (node, edge, node, ...) so the
		// generated ledger and `*` expansions follow the query text.
		for j, np := range pp.Nodes {
			col := np.Var
			if col == "" {
				col = az.anonNode()
			} else {
				if t, ok := mctx.Generated.Get(col); ok && t != AliasNode {
					return nil, fmt.Errorf("%w: %s", ErrDuplicateAlias, col)
				}
				mctx.Generated.Set(col, AliasNode)
			}
			cols.Nodes = append(cols.Nodes, col)

			if j >= len(pp.Rels) {
				continue
			}
			rp := pp.Rels[j]
			col = rp.Var
			if col == "" {
				col = az.anonEdge()
			} else {
				if edgeSeen[col] || mctx.Generated.Has(col) {
					return nil, fmt.Errorf("%w: %s", ErrDuplicateAlias, col)
				}
				edgeSeen[col] = true
				t := AliasEdge
				if rp.VarLength {
					t = AliasEdgeList
				}
				mctx.Generated.Set(col, t)
			}
			cols.Edges = append(cols.Edges, col)
		}

		mctx.Cols = append(mctx.Cols, cols)
	}

	if c.Where != nil {
		if cypher.IsAggregate(c.Where) {
			return nil, fmt.Errorf("%w: aggregation is not allowed in a MATCH WHERE", ErrInvalidQuery)
		}
		for _, v := range cypher.CollectVars(c.Where) {
			if !mctx.Generated.Has(v) && !az.scope.Has(v) {
				return nil, fmt.Errorf("%w: %s", ErrUndefinedVariable, v)
			}
		}
	}

	az.scope.Merge(mctx.Generated)
	return mctx, nil
}

func (az *analyzer) analyzeUnwind(c *cypher.UnwindClause) (*UnwindCtx, error) {
	if cypher.IsAggregate(c.Expr) {
		return nil, fmt.Errorf("%w: aggregation is not allowed in UNWIND", ErrInvalidQuery)
	}
	for _, v := range cypher.CollectVars(c.Expr) {
		if !az.scope.Has(v) {
			return nil, fmt.Errorf("%w: %s", ErrUndefinedVariable, v)
		}
	}
	if az.scope.Has(c.Alias) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateAlias, c.Alias)
	}
	az.scope.Set(c.Alias, AliasDefault)
	return &UnwindCtx{Expr: c.Expr, Alias: c.Alias}, nil
}

func (az *analyzer) analyzeWith(c *cypher.WithClause) (*WithCtx, error) {
	items, err := az.analyzeItems(c.Items, "WITH")
	if err != nil {
		return nil, err
	}
	wctx := &WithCtx{
		Distinct: c.Distinct,
		Items:    items,
		Skip:     c.Skip,
		Limit:    c.Limit,
		Where:    c.Where,
	}

	// The projection replaces the visible scope; everything after it sees
	// only the projected aliases.
	az.scope = scopeOf(items)

	if wctx.OrderBy, err = az.analyzeOrderBy(c.OrderBy); err != nil {
		return nil, err
	}
	if err := az.checkPagination(c.Skip, c.Limit); err != nil {
		return nil, err
	}
	if c.Where != nil {
		if cypher.IsAggregate(c.Where) {
			return nil, fmt.Errorf("%w: aggregation is not allowed in a WITH WHERE", ErrInvalidQuery)
		}
		for _, v := range cypher.CollectVars(c.Where) {
			if !az.scope.Has(v) {
				return nil, fmt.Errorf("%w: %s", ErrUndefinedVariable, v)
			}
		}
	}
	return wctx, nil
}

func (az *analyzer) analyzeReturn(c *cypher.ReturnClause) (*ReturnCtx, error) {
	items, err := az.analyzeItems(c.Items, "RETURN")
	if err != nil {
		return nil, err
	}
	rctx := &ReturnCtx{
		Distinct: c.Distinct,
		Items:    items,
		Skip:     c.Skip,
		Limit:    c.Limit,
	}

	az.scope = scopeOf(items)

	if rctx.OrderBy, err = az.analyzeOrderBy(c.OrderBy); err != nil {
		return nil, err
	}
	if err := az.checkPagination(c.Skip, c.Limit); err != nil {
		return nil, err
	}
	return rctx, nil
}

// analyzeItems resolves one projection list: `*` expands to the visible
// scope in binding order, implicit aliases were assigned by the parser, and
// a bare variable carries its alias type through to the next scope.
func (az *analyzer) analyzeItems(items []*cypher.ReturnItem, clause string) ([]ProjItem, error) {
	var out []ProjItem
	seen := make(map[string]bool)

	for _, it := range items {
		if it.Star {
			if az.scope.Len() == 0 {
				return nil, fmt.Errorf("%w: %s * is not allowed when there are no variables in scope", ErrInvalidQuery, clause)
			}
			for _, name := range az.scope.Names() {
				if seen[name] {
					continue
				}
				seen[name] = true
				t, _ := az.scope.Get(name)
				out = append(out, ProjItem{Name: name, Expr: &cypher.Var{Name: name}, Type: t})
			}
			continue
		}

		for _, v := range cypher.CollectVars(it.Expr) {
			if !az.scope.Has(v) {
				return nil, fmt.Errorf("%w: %s", ErrUndefinedVariable, v)
			}
		}
		if seen[it.Alias] {
			return nil, fmt.Errorf("%w: column %s", ErrDuplicateAlias, it.Alias)
		}
		seen[it.Alias] = true

		t := AliasDefault
		if v, ok := it.Expr.(*cypher.Var); ok {
			t, _ = az.scope.Get(v.Name)
		}
		out = append(out, ProjItem{Name: it.Alias, Expr: it.Expr, Type: t})
	}
	return out, nil
}

// analyzeOrderBy validates sort keys against the projected scope.
func (az *analyzer) analyzeOrderBy(items []*cypher.SortItem) ([]plan.SortKey, error) {
	var keys []plan.SortKey
	for _, it := range items {
		if cypher.IsAggregate(it.Expr) {
			return nil, fmt.Errorf("%w: ORDER BY must use the projected alias of an aggregate", ErrInvalidQuery)
		}
		for _, v := range cypher.CollectVars(it.Expr) {
			if !az.scope.Has(v) {
				return nil, fmt.Errorf("%w: %s", ErrUndefinedVariable, v)
			}
		}
		keys = append(keys, plan.SortKey{Expr: it.Expr, Desc: it.Desc})
	}
	return keys, nil
}

// checkPagination rejects SKIP/LIMIT expressions that depend on rows.
func (az *analyzer) checkPagination(skip, limit cypher.Expr) error {
	for _, e := range []cypher.Expr{skip, limit} {
		if e == nil {
			continue
		}
		if len(cypher.CollectVars(e)) > 0 {
			return fmt.Errorf("%w: SKIP/LIMIT must be a literal or parameter", ErrInvalidQuery)
		}
	}
	return nil
}

func scopeOf(items []ProjItem) *Bindings {
	scope := NewBindings()
	for _, it := range items {
		scope.Set(it.Name, it.Type)
	}
	return scope
}
