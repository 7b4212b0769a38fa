package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/vegvisir/pkg/cypher"
)

func analyze(t *testing.T, query string) *QueryCtx {
	t.Helper()
	stmt, err := cypher.Parse(query)
	require.NoError(t, err)
	qctx, err := Analyze(stmt)
	require.NoError(t, err)
	return qctx
}

func analyzeErr(t *testing.T, query string) error {
	t.Helper()
	stmt, err := cypher.Parse(query)
	require.NoError(t, err)
	_, err = Analyze(stmt)
	require.Error(t, err)
	return err
}

func TestAnalyzeSplitsQueryParts(t *testing.T) {
	qctx := analyze(t, `
		MATCH (a:Person)
		UNWIND a.tags AS tag
		MATCH (b:Tag)
		WITH b, tag
		RETURN b`)

	require.Len(t, qctx.Parts, 3)
	assert.Len(t, qctx.Parts[0].Matches, 1)
	assert.IsType(t, &UnwindCtx{}, qctx.Parts[0].Boundary)
	assert.Len(t, qctx.Parts[1].Matches, 1)
	assert.IsType(t, &WithCtx{}, qctx.Parts[1].Boundary)
	assert.Empty(t, qctx.Parts[2].Matches)
	assert.IsType(t, &ReturnCtx{}, qctx.Parts[2].Boundary)
}

func TestAnalyzeBindingLedgers(t *testing.T) {
	qctx := analyze(t, `
		MATCH (a:Person)-[e:KNOWS]->(b)
		MATCH q = (b)-[es:ROAD*1..3]->(c)
		RETURN c`)

	first := qctx.Parts[0].Matches[0]
	assert.Equal(t, []string{"a", "e", "b"}, first.Generated.Names())
	assert.Equal(t, 0, first.Available.Len())

	second := qctx.Parts[0].Matches[1]
	assert.Equal(t, []string{"q", "b", "es", "c"}, second.Generated.Names())

	typ, _ := second.Generated.Get("q")
	assert.Equal(t, AliasPath, typ)
	typ, _ = second.Generated.Get("es")
	assert.Equal(t, AliasEdgeList, typ)
	typ, _ = second.Generated.Get("b")
	assert.Equal(t, AliasNode, typ)

	// Scope before the second match is what the first generated.
	assert.Equal(t, []string{"a", "e", "b"}, second.Available.Names())
}

func TestAnalyzeAnonymousColumns(t *testing.T) {
	qctx := analyze(t, "MATCH (a)-->()<--(b) RETURN a, b")

	m := qctx.Parts[0].Matches[0]
	require.Len(t, m.Cols, 1)
	assert.Equal(t, []string{"a", "__n1", "b"}, m.Cols[0].Nodes)
	assert.Equal(t, []string{"__e1", "__e2"}, m.Cols[0].Edges)
	// Synthesized names never become joinable aliases.
	assert.Equal(t, []string{"a", "b"}, m.Generated.Names())
}

func TestAnalyzeStarExpansion(t *testing.T) {
	qctx := analyze(t, "MATCH (a:Person)-[e:KNOWS]->(b) RETURN *")

	ret := qctx.Parts[0].Boundary.(*ReturnCtx)
	names := make([]string, len(ret.Items))
	for i, it := range ret.Items {
		names[i] = it.Name
	}
	assert.Equal(t, []string{"a", "e", "b"}, names)
	assert.Equal(t, AliasEdge, ret.Items[1].Type)
}

// A bare variable keeps its alias type across WITH; expressions degrade to
// plain values.
func TestWithScopeTypePassthrough(t *testing.T) {
	qctx := analyze(t, `
		MATCH (a:Person)
		WITH a, a.name AS name
		MATCH (a)-[e:KNOWS]->(b)
		RETURN b, name`)

	second := qctx.Parts[1].Matches[0]
	typ, ok := second.Available.Get("a")
	require.True(t, ok)
	assert.Equal(t, AliasNode, typ)
	typ, _ = second.Available.Get("name")
	assert.Equal(t, AliasDefault, typ)
}

func TestUnwindExtendsScope(t *testing.T) {
	qctx := analyze(t, `
		MATCH (a:Person)
		UNWIND a.tags AS tag
		RETURN a, tag`)

	ret := qctx.Parts[1].Boundary.(*ReturnCtx)
	require.Len(t, ret.Items, 2)
	assert.Equal(t, AliasNode, ret.Items[0].Type)
	assert.Equal(t, AliasDefault, ret.Items[1].Type)
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  error
	}{
		{"undefined in where", "MATCH (a) WHERE b.x = 1 RETURN a", ErrUndefinedVariable},
		{"undefined in return", "MATCH (a) RETURN b", ErrUndefinedVariable},
		{"undefined in unwind", "UNWIND xs AS x RETURN x", ErrUndefinedVariable},
		{"node and edge share name", "MATCH (a)-[a:KNOWS]->(b) RETURN a", ErrDuplicateAlias},
		{"relationship var repeated", "MATCH (a)-[e:KNOWS]->(b)-[e:KNOWS]->(c) RETURN a", ErrDuplicateAlias},
		{"unwind rebinds alias", "MATCH (a) UNWIND [1] AS a RETURN a", ErrDuplicateAlias},
		{"duplicate return column", "MATCH (a) RETURN a.x AS v, a.y AS v", ErrDuplicateAlias},
		{"return mid query", "MATCH (a) RETURN a MATCH (b) RETURN b", ErrInvalidQuery},
		{"no return at end", "MATCH (a) WITH a", ErrInvalidQuery},
		{"star with empty scope", "RETURN *", ErrInvalidQuery},
		{"aggregate in match where", "MATCH (a) WHERE count(a) > 1 RETURN a", ErrInvalidQuery},
		{"variable skip", "MATCH (a) RETURN a SKIP a.x", ErrInvalidQuery},
		{"aggregate in order by", "MATCH (a) RETURN a.x AS x ORDER BY count(a)", ErrInvalidQuery},
		{"where sees only projected scope", "MATCH (a)-[e:KNOWS]->(b) WITH a WHERE b.x = 1 RETURN a", ErrUndefinedVariable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := analyzeErr(t, tt.query)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAnalyzeRejectsNonMatch(t *testing.T) {
	stmt, err := cypher.Parse("CREATE (n)")
	require.NoError(t, err)
	_, err = Analyze(stmt)
	assert.ErrorIs(t, err, ErrUnsupportedSentence)
}
