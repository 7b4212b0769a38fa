// Package planner compiles analyzed Cypher match sentences into logical
// plan segments.
//
// The planner works by composition: every clause is planned as a
// self-contained plan fragment (a Segment with a root and a tail), and
// fragments are folded left to right into one accumulated segment. How a
// MATCH fragment connects depends on the aliases it shares with what came
// before: no shared aliases means a cartesian product, shared aliases mean
// an inner join (or a left outer join for OPTIONAL MATCH) keyed on them.
// Boundary clauses (UNWIND, WITH, RETURN) stack on top of the accumulator
// and reset the visible scope. When a whole query part is assembled, the
// segment's entry point receives the start marker, exactly once per
// compilation.
//
// Shared aliases must agree on what they are bound to; see joinKeys for the
// validation rules.
package planner

import (
	"fmt"

	"github.com/orneryd/vegvisir/pkg/cypher"
	"github.com/orneryd/vegvisir/pkg/plan"
)

// planner is one compilation in progress. A fresh value per Transform call;
// the only state it carries is the arena nodes are allocated into.
type planner struct {
	arena *plan.Arena
}

// Transform compiles stmt into a plan segment allocated in arena. Only
// match sentences are accepted.
func Transform(arena *plan.Arena, stmt *cypher.Statement) (plan.Segment, error) {
	if stmt == nil {
		return plan.EmptySegment(), ErrUnsupportedSentence
	}
	if stmt.Kind != cypher.StatementMatch {
		return plan.EmptySegment(), fmt.Errorf("%w: got %s statement", ErrUnsupportedSentence, stmt.Kind)
	}
	qctx, err := Analyze(stmt)
	if err != nil {
		return plan.EmptySegment(), err
	}

	p := &planner{arena: arena}
	seg := plan.EmptySegment()
	grafted := false
	for _, part := range qctx.Parts {
		seg, grafted, err = p.planQueryPart(seg, part, grafted)
		if err != nil {
			return plan.EmptySegment(), err
		}
	}
	return seg, nil
}

// genPlan dispatches one clause context to its generator. inputCols is the
// column shape of the accumulated segment the fragment will attach to; a
// match fragment computes its own shape and ignores it.
func (p *planner) genPlan(ctx ClauseCtx, inputCols []string) (plan.Segment, error) {
	switch c := ctx.(type) {
	case *MatchCtx:
		return p.genMatch(c)
	case *UnwindCtx:
		return p.genUnwind(c, inputCols), nil
	case *WithCtx:
		return p.genWith(c), nil
	case *ReturnCtx:
		return p.genReturn(c), nil
	default:
		return plan.EmptySegment(), fmt.Errorf("%w: %T", ErrUnsupportedClause, ctx)
	}
}

// connectMatch folds one MATCH fragment into the accumulated segment.
//
// An empty accumulator adopts the fragment. Otherwise the aliases the match
// generates are intersected with those already available: shared aliases
// become join keys (inner join, or left join for an optional match), no
// shared aliases means a cartesian product. In both join cases the
// accumulator keeps its tail; an Argument fragment tail is wired to read
// the accumulator's output before the join is built.
func (p *planner) connectMatch(acc plan.Segment, m *MatchCtx) (plan.Segment, error) {
	matchSeg, err := p.genPlan(m, nil)
	if err != nil {
		return acc, err
	}

	if acc.Empty() {
		return p.planOptionalFilter(matchSeg, m)
	}

	keys, err := joinKeys(m.Generated, m.Available)
	if err != nil {
		return acc, err
	}

	if len(keys) > 0 {
		tail := p.arena.Node(matchSeg.Tail)
		if tail.Kind() == plan.KindArgument {
			// The argument always reads the output of the plan on the
			// other side of the join.
			tail.SetInputVar(p.arena.Node(acc.Root).OutputVar())
		}
		if m.Optional {
			if matchSeg, err = p.planOptionalFilter(matchSeg, m); err != nil {
				return acc, err
			}
			return LeftJoin(p.arena, acc, matchSeg, keys), nil
		}
		return InnerJoin(p.arena, acc, matchSeg, keys), nil
	}

	if matchSeg, err = p.planOptionalFilter(matchSeg, m); err != nil {
		return acc, err
	}
	return CrossProduct(p.arena, acc, matchSeg), nil
}

// planOptionalFilter plans an optional match's own WHERE onto its fragment
// before the fragment joins the accumulator, so the filter cannot see rows
// the join would produce. The filter may only reference aliases generated
// by the same match clause.
func (p *planner) planOptionalFilter(seg plan.Segment, m *MatchCtx) (plan.Segment, error) {
	if !m.Optional || m.Where == nil {
		return seg, nil
	}
	for _, v := range cypher.CollectVars(m.Where) {
		if !m.Generated.Has(v) {
			return seg, fmt.Errorf("%w: %s", ErrCrossSegmentFilter, v)
		}
	}
	whereSeg := p.genWhere(m.Where, p.arena.Node(seg.Root).ColNames())
	return AddInput(p.arena, whereSeg, seg, true), nil
}

// planQueryPart folds a part's match clauses into the accumulator, attaches
// the boundary clause, and grafts the start marker onto the first
// single-input tail of the compilation. The grafted flag is threaded
// through so the marker is placed exactly once.
func (p *planner) planQueryPart(acc plan.Segment, part *QueryPart, grafted bool) (plan.Segment, bool, error) {
	var err error
	for _, m := range part.Matches {
		if acc, err = p.connectMatch(acc, m); err != nil {
			return acc, grafted, err
		}
		// A non-optional match filter runs over the joined rows, so it is
		// planned here with the accumulated column shape.
		if m.Where != nil && !m.Optional {
			whereSeg := p.genWhere(m.Where, p.arena.Node(acc.Root).ColNames())
			acc = AddInput(p.arena, whereSeg, acc, true)
		}
	}

	var inputCols []string
	if !acc.Empty() {
		inputCols = p.arena.Node(acc.Root).ColNames()
	}
	boundarySeg, err := p.genPlan(part.Boundary, inputCols)
	if err != nil {
		return acc, grafted, err
	}
	if acc.Empty() {
		acc = boundarySeg
	} else {
		acc = AddInput(p.arena, boundarySeg, acc, false)
	}

	tail := p.arena.Node(acc.Tail)
	if tail.SingleInput() {
		tail.SetInputVar(p.arena.AnonVar())
		if !grafted {
			start := p.arena.NewStart()
			tail.SetDep(0, start)
			acc.Tail = start
			grafted = true
		}
	}
	return acc, grafted, nil
}
