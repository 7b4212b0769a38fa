package planner

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/vegvisir/pkg/cypher"
	"github.com/orneryd/vegvisir/pkg/plan"
)

func compile(t *testing.T, query string) (*plan.Arena, plan.Segment) {
	t.Helper()
	stmt, err := cypher.Parse(query)
	require.NoError(t, err)
	arena := plan.NewArena()
	seg, err := Transform(arena, stmt)
	require.NoError(t, err)
	return arena, seg
}

func compileErr(t *testing.T, query string) error {
	t.Helper()
	stmt, err := cypher.Parse(query)
	require.NoError(t, err)
	_, err = Transform(plan.NewArena(), stmt)
	require.Error(t, err)
	return err
}

func TestTransformRejectsNonMatchSentence(t *testing.T) {
	stmt, err := cypher.Parse("CREATE (n:Person {name: 'Kari'})")
	require.NoError(t, err)
	_, err = Transform(plan.NewArena(), stmt)
	assert.ErrorIs(t, err, ErrUnsupportedSentence)

	_, err = Transform(plan.NewArena(), nil)
	assert.ErrorIs(t, err, ErrUnsupportedSentence)
}

func TestGenPlanRejectsUnknownClause(t *testing.T) {
	p := &planner{arena: plan.NewArena()}
	_, err := p.genPlan(nil, nil)
	assert.ErrorIs(t, err, ErrUnsupportedClause)
}

// One start marker per compilation, grafted onto the first part's tail.
func TestStartGraftedExactlyOnce(t *testing.T) {
	arena, seg := compile(t, `
		MATCH (a:Person)
		WITH a
		MATCH (a)-[e:KNOWS]->(b)
		RETURN b`)

	starts := 0
	for id := plan.ID(0); int(id) < arena.Len(); id++ {
		if arena.Node(id).Kind() == plan.KindStart {
			starts++
		}
	}
	assert.Equal(t, 1, starts)
	assert.Equal(t, plan.KindStart, arena.Node(seg.Tail).Kind())
}

// Disjoint binding sets pair up with a cartesian product; the accumulator
// keeps its tail, so the start marker lands under the first match's scan.
func TestDisjointMatchesCrossProduct(t *testing.T) {
	arena, seg := compile(t, "MATCH (a:Person) MATCH (b:City) RETURN a, b")

	root := arena.Node(seg.Root)
	require.Equal(t, plan.KindProject, root.Kind())
	cross := arena.Node(root.Dep(0))
	require.Equal(t, plan.KindCartesianProduct, cross.Kind())
	assert.Equal(t, []string{"a", "b"}, cross.ColNames())

	left := arena.Node(cross.Dep(0))
	right := arena.Node(cross.Dep(1))
	require.Equal(t, plan.KindScanNodes, left.Kind())
	require.Equal(t, plan.KindScanNodes, right.Kind())
	assert.NotEqual(t, plan.None, left.Dep(0), "first match keeps the entry point")
	assert.Equal(t, plan.None, right.Dep(0))
}

// A shared alias joins the new fragment to the accumulator; the fragment
// reads the accumulator's rows through its Argument tail.
func TestSharedAliasInnerJoinWiresArgument(t *testing.T) {
	arena, seg := compile(t, `
		MATCH (a:Person)-[e:KNOWS]->(b)
		MATCH (b)-[f:LIVES_IN]->(c:City)
		RETURN a, c`)

	join := arena.Node(arena.Node(seg.Root).Dep(0))
	require.Equal(t, plan.KindHashInnerJoin, join.Kind())
	assert.Equal(t, []string{"b"}, join.Join.Keys)
	assert.Equal(t, []string{"a", "e", "b", "f", "c"}, join.ColNames())

	left := arena.Node(join.Dep(0))
	rightTail := arena.Node(arena.Node(join.Dep(1)).Dep(0))
	require.Equal(t, plan.KindArgument, rightTail.Kind())
	assert.Equal(t, []string{"b"}, rightTail.ColNames())
	assert.Equal(t, left.OutputVar(), rightTail.InputVar())
}

func TestOptionalMatchLeftJoin(t *testing.T) {
	arena, seg := compile(t, `
		MATCH (a:Person)
		OPTIONAL MATCH (a)-[e:OWNS]->(b:Car)
		RETURN a, b`)

	join := arena.Node(arena.Node(seg.Root).Dep(0))
	require.Equal(t, plan.KindHashLeftJoin, join.Kind())
	assert.Equal(t, []string{"a"}, join.Join.Keys)
	assert.Equal(t, []string{"a", "e", "b"}, join.ColNames())
}

// The optional match's own filter is planned onto the optional fragment,
// beneath the left join, never over the joined rows.
func TestOptionalFilterStaysOnOptionalSide(t *testing.T) {
	arena, seg := compile(t, `
		MATCH (a:Person)
		OPTIONAL MATCH (a)-[e:OWNS]->(b:Car)
		WHERE b.year > 2000
		RETURN a, b`)

	join := arena.Node(arena.Node(seg.Root).Dep(0))
	require.Equal(t, plan.KindHashLeftJoin, join.Kind())
	right := arena.Node(join.Dep(1))
	require.Equal(t, plan.KindFilter, right.Kind())
	assert.Equal(t, "(b.year > 2000)", right.Filter.Condition.String())
}

// A non-optional match filter runs over the joined rows instead.
func TestMandatoryFilterPlansOverJoinedRows(t *testing.T) {
	arena, seg := compile(t, `
		MATCH (a:Person)
		MATCH (a)-[e:KNOWS]->(b)
		WHERE a.age > b.age
		RETURN b`)

	filter := arena.Node(arena.Node(seg.Root).Dep(0))
	require.Equal(t, plan.KindFilter, filter.Kind())
	assert.Equal(t, plan.KindHashInnerJoin, arena.Node(filter.Dep(0)).Kind())
	assert.Equal(t, arena.Node(filter.Dep(0)).ColNames(), filter.ColNames())
}

func TestAliasTypeConflict(t *testing.T) {
	err := compileErr(t, "MATCH (a)-[e:KNOWS]->(b) MATCH (e) RETURN e")
	assert.ErrorIs(t, err, ErrAliasTypeConflict)
	assert.Contains(t, err.Error(), "Node vs Edge")
}

func TestEdgeListCannotBeJoinKey(t *testing.T) {
	err := compileErr(t, "MATCH (a)-[es:KNOWS*1..3]->(b) MATCH (x)-[es:KNOWS*1..3]->(y) RETURN x")
	assert.ErrorIs(t, err, ErrEdgeListJoin)
}

func TestOptionalFilterCrossSegmentReference(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{
			"joined optional",
			"MATCH (a:Person)-[e:KNOWS]->(b) OPTIONAL MATCH (b)-[f:OWNS]->(c) WHERE a.age > 30 RETURN c",
		},
		{
			"disjoint optional",
			"MATCH (a:Person) OPTIONAL MATCH (b:Car) WHERE b.owner = a.name RETURN a, b",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := compileErr(t, tt.query)
			assert.ErrorIs(t, err, ErrCrossSegmentFilter)
		})
	}
}

// Type conflicts surface before the optional filter is inspected, matching
// the join-first validation order.
func TestConflictBeatsCrossSegmentFilter(t *testing.T) {
	err := compileErr(t, "MATCH (a)-[e:KNOWS]->(b) OPTIONAL MATCH (e)-->(c) WHERE a.age > 1 RETURN c")
	assert.ErrorIs(t, err, ErrAliasTypeConflict)
}

// Comma-separated parts of one MATCH fold with the same connector rules.
func TestMultiPartPatternJoinsWithinMatch(t *testing.T) {
	arena, seg := compile(t, "MATCH (a)-[e:KNOWS]->(b), (b)-[f:OWNS]->(c) RETURN a, c")

	join := arena.Node(arena.Node(seg.Root).Dep(0))
	require.Equal(t, plan.KindHashInnerJoin, join.Kind())
	assert.Equal(t, []string{"b"}, join.Join.Keys)
}

func TestCyclicPatternChecksBoundDestination(t *testing.T) {
	arena, _ := compile(t, "MATCH (a)-[e:KNOWS]->(b)-[f:KNOWS]->(a) RETURN a, b")

	var cyclic *plan.Node
	for id := plan.ID(0); int(id) < arena.Len(); id++ {
		n := arena.Node(id)
		if n.Kind() == plan.KindExpand && n.Expand.BoundDst {
			cyclic = n
		}
	}
	require.NotNil(t, cyclic)
	assert.Equal(t, "a", cyclic.Expand.DstCol)
	assert.Equal(t, []string{"a", "e", "b", "f"}, cyclic.ColNames())
}

func TestProjectionOnlyQueryGetsStart(t *testing.T) {
	arena, seg := compile(t, "RETURN 1 AS one")

	root := arena.Node(seg.Root)
	require.Equal(t, plan.KindProject, root.Kind())
	assert.Equal(t, plan.KindStart, arena.Node(root.Dep(0)).Kind())
	assert.Equal(t, plan.KindStart, arena.Node(seg.Tail).Kind())
}

func TestPlanGolden(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{
			"match_filter_return",
			"MATCH (n:Person) WHERE n.age > 30 RETURN n.name AS name",
		},
		{
			"cross_product",
			"MATCH (a:Person) MATCH (b:City) RETURN a, b",
		},
		{
			"inner_join_argument",
			"MATCH (a:Person)-[e:KNOWS]->(b) MATCH (b)-[f:LIVES_IN]->(c:City) RETURN a, c",
		},
		{
			"optional_left_join",
			"MATCH (a:Person) OPTIONAL MATCH (a)-[e:OWNS]->(b:Car) RETURN a, b",
		},
		{
			"aggregate_pipeline",
			"MATCH (p:Person)-[:LIVES_IN]->(c:City) WITH c, count(p) AS cnt WHERE cnt > 1 RETURN c.name AS city, cnt ORDER BY cnt DESC LIMIT 3",
		},
		{
			"varlen_path_unwind",
			"MATCH p = (a:Person)-[es:KNOWS*1..2]->(b) UNWIND es AS e RETURN p, e.since AS since",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arena, seg := compile(t, tt.query)
			g := goldie.New(t,
				goldie.WithFixtureDir("testdata/golden"),
				goldie.WithNameSuffix(".golden"),
			)
			g.Assert(t, tt.name, []byte(plan.Explain(arena, seg)))
		})
	}
}
