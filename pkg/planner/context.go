package planner

import (
	"github.com/orneryd/vegvisir/pkg/cypher"
	"github.com/orneryd/vegvisir/pkg/plan"
)

// ClauseCtx is the analyzed form of one clause, ready for plan generation.
// The set of implementations is closed: MatchCtx, UnwindCtx, WithCtx and
// ReturnCtx. Plan generation dispatches on the concrete type.
type ClauseCtx interface {
	clauseCtx()
}

func (*MatchCtx) clauseCtx()  {}
func (*UnwindCtx) clauseCtx() {}
func (*WithCtx) clauseCtx()   {}
func (*ReturnCtx) clauseCtx() {}

// PatternCols carries the column name assigned to every element of one
// pattern part. Anonymous elements get analyzer-synthesized names that never
// appear in bindings.
type PatternCols struct {
	Path  string // "" when the part binds no path variable
	Nodes []string
	Edges []string
}

// MatchCtx is an analyzed MATCH clause.
type MatchCtx struct {
	Optional bool
	Pattern  []*cypher.PatternPart
	Cols     []*PatternCols // parallel to Pattern
	Where    cypher.Expr

	// Generated holds the user-visible aliases this clause binds, in
	// pattern order. Available is the scope before this clause; the
	// intersection of the two drives join-key selection.
	Generated *Bindings
	Available *Bindings
}

// UnwindCtx is an analyzed UNWIND clause.
type UnwindCtx struct {
	Expr  cypher.Expr
	Alias string
}

// WithCtx is an analyzed WITH clause.
type WithCtx struct {
	Distinct bool
	Items    []ProjItem
	OrderBy  []plan.SortKey
	Skip     cypher.Expr
	Limit    cypher.Expr
	Where    cypher.Expr
}

// ReturnCtx is an analyzed RETURN clause.
type ReturnCtx struct {
	Distinct bool
	Items    []ProjItem
	OrderBy  []plan.SortKey
	Skip     cypher.Expr
	Limit    cypher.Expr
}

// ProjItem is one projected column with the alias type it carries into the
// next scope.
type ProjItem struct {
	Name string
	Expr cypher.Expr
	Type AliasType
}

// QueryPart is a run of match clauses closed by a boundary clause (UNWIND,
// WITH or RETURN). The boundary resets the visible scope for the next part.
type QueryPart struct {
	Matches  []*MatchCtx
	Boundary ClauseCtx
}

// QueryCtx is a fully analyzed match sentence.
type QueryCtx struct {
	Parts []*QueryPart
}
