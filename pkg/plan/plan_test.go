package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/vegvisir/pkg/cypher"
)

func TestArenaAllocation(t *testing.T) {
	a := NewArena()
	scan := a.NewScanNodes(None, &ScanSpec{Col: "n", Labels: []string{"Person"}})
	filter := a.NewFilter(scan, &cypher.Literal{Value: true}, []string{"n"})

	assert.Equal(t, 2, a.Len())
	assert.Equal(t, ID(0), scan)
	assert.Equal(t, ID(1), filter)

	fn := a.Node(filter)
	assert.Equal(t, KindFilter, fn.Kind())
	assert.Equal(t, []ID{scan}, fn.Deps())
	assert.Equal(t, []string{"n"}, fn.ColNames())
	require.NotNil(t, fn.Filter)
}

// Node pointers must survive later allocations; fragments are rewired long
// after their nodes were made.
func TestArenaPointerStability(t *testing.T) {
	a := NewArena()
	scan := a.NewScanNodes(None, &ScanSpec{Col: "n"})
	n := a.Node(scan)
	for i := 0; i < 100; i++ {
		a.NewStart()
	}
	assert.Same(t, n, a.Node(scan))
}

func TestSingleInput(t *testing.T) {
	a := NewArena()
	start := a.NewStart()
	scan := a.NewScanNodes(None, &ScanSpec{Col: "n"})
	arg := a.NewArgument([]string{"n"})
	join := a.NewHashInnerJoin(scan, arg, []string{"n"}, []string{"n"})

	assert.False(t, a.Node(start).SingleInput())
	assert.True(t, a.Node(scan).SingleInput())
	assert.False(t, a.Node(arg).SingleInput())
	assert.False(t, a.Node(join).SingleInput())
}

func TestSetDepGraftsStart(t *testing.T) {
	a := NewArena()
	scan := a.NewScanNodes(None, &ScanSpec{Col: "n"})
	require.Equal(t, None, a.Node(scan).Dep(0))

	start := a.NewStart()
	a.Node(scan).SetDep(0, start)
	assert.Equal(t, start, a.Node(scan).Dep(0))
}

func TestOutputVarsAreUnique(t *testing.T) {
	a := NewArena()
	scan := a.NewScanNodes(None, &ScanSpec{Col: "n"})
	filter := a.NewFilter(scan, &cypher.Literal{Value: true}, []string{"n"})

	assert.NotEmpty(t, a.Node(scan).OutputVar())
	assert.NotEqual(t, a.Node(scan).OutputVar(), a.Node(filter).OutputVar())
	assert.NotEqual(t, a.AnonVar(), a.AnonVar())
}

func TestEmptySegment(t *testing.T) {
	assert.True(t, EmptySegment().Empty())
	assert.False(t, Segment{Root: 0, Tail: 0}.Empty())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "ScanNodes", KindScanNodes.String())
	assert.Equal(t, "HashLeftJoin", KindHashLeftJoin.String())
	assert.Equal(t, "Kind(200)", Kind(200).String())
}
