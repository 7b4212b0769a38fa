// Package executor evaluates composed plan segments against a storage
// engine. Rows flow bottom-up through the segment: scans and expands
// produce bindings from the graph, joins merge fragments on their shared
// columns, and the projection operators shape the final result.
//
// Values follow openCypher's three-valued logic: null propagates through
// expressions, comparisons against null yield null, and WHERE keeps only
// rows whose predicate is exactly true.
package executor

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/orneryd/vegvisir/pkg/storage"
)

// Value is a single cell of a result row. Concrete types are nil, bool,
// int64, float64, string, []Value, map[string]Value semantics via
// map[string]any, *storage.Node, *storage.Edge and *Path.
type Value = any

// Path is the value bound by a path variable: the endpoint nodes of each
// hop interleaved with the traversed edges.
type Path struct {
	Nodes []*storage.Node
	Edges []*storage.Edge
}

// Result is a materialized table of rows produced by a plan node.
type Result struct {
	Columns []string
	Rows    [][]Value
}

// colIndex maps column names to their position in a row.
func colIndex(cols []string) map[string]int {
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		idx[c] = i
	}
	return idx
}

// normalizeValue coerces parameter and property values into the executor's
// canonical types: integers widen to int64, typed slices and maps become
// []Value and map[string]any.
func normalizeValue(v any) Value {
	switch t := v.(type) {
	case nil, bool, int64, float64, string, *storage.Node, *storage.Edge, *Path:
		return v
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		return float64(t)
	case []any:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	case []string:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case []int:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = int64(e)
		}
		return out
	case []int64:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case []float64:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case []bool:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}

// asNumber extracts a numeric value. isInt reports whether the original
// value was an integer.
func asNumber(v Value) (i int64, f float64, isInt, ok bool) {
	switch t := v.(type) {
	case int64:
		return t, float64(t), true, true
	case float64:
		return 0, t, false, true
	default:
		return 0, 0, false, false
	}
}

// valueEquals compares two values under Cypher equality. isNull reports
// that the outcome is null rather than a boolean, which happens when
// either side is null or a list comparison hits a null element.
func valueEquals(a, b Value) (equal, isNull bool) {
	if a == nil || b == nil {
		return false, true
	}
	if _, _, _, okA := asNumber(a); okA {
		_, _, _, okB := asNumber(b)
		if !okB {
			return false, false
		}
		return numberEquals(a, b), false
	}
	switch ta := a.(type) {
	case string:
		tb, ok := b.(string)
		return ok && ta == tb, false
	case bool:
		tb, ok := b.(bool)
		return ok && ta == tb, false
	case *storage.Node:
		tb, ok := b.(*storage.Node)
		return ok && ta.ID == tb.ID, false
	case *storage.Edge:
		tb, ok := b.(*storage.Edge)
		return ok && ta.ID == tb.ID, false
	case *Path:
		tb, ok := b.(*Path)
		if !ok {
			return false, false
		}
		return identityKey(ta) == identityKey(tb), false
	case []Value:
		tb, ok := b.([]Value)
		if !ok || len(ta) != len(tb) {
			return false, false
		}
		sawNull := false
		for i := range ta {
			eq, null := valueEquals(ta[i], tb[i])
			if null {
				sawNull = true
				continue
			}
			if !eq {
				return false, false
			}
		}
		if sawNull {
			return false, true
		}
		return true, false
	default:
		return false, false
	}
}

func numberEquals(a, b Value) bool {
	ai, af, aInt, _ := asNumber(a)
	bi, bf, bInt, _ := asNumber(b)
	if aInt && bInt {
		return ai == bi
	}
	return af == bf
}

// Type ranks for ordering values of different types relative to each
// other. Null ranks after everything so ascending sorts place it last.
const (
	rankNumber = iota
	rankString
	rankBool
	rankList
	rankNode
	rankEdge
	rankPath
	rankOther
	rankNull
)

func typeRank(v Value) int {
	switch v.(type) {
	case nil:
		return rankNull
	case int64, float64:
		return rankNumber
	case string:
		return rankString
	case bool:
		return rankBool
	case []Value:
		return rankList
	case *storage.Node:
		return rankNode
	case *storage.Edge:
		return rankEdge
	case *Path:
		return rankPath
	default:
		return rankOther
	}
}

// compareValues imposes a total order across all value types for ORDER BY
// and min/max. Values of different types order by type rank, null last.
func compareValues(a, b Value) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case rankNull:
		return 0
	case rankNumber:
		ai, af, aInt, _ := asNumber(a)
		bi, bf, bInt, _ := asNumber(b)
		if aInt && bInt {
			switch {
			case ai < bi:
				return -1
			case ai > bi:
				return 1
			}
			return 0
		}
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		}
		return 1
	case rankList:
		la, lb := a.([]Value), b.([]Value)
		for i := 0; i < len(la) && i < len(lb); i++ {
			if c := compareValues(la[i], lb[i]); c != 0 {
				return c
			}
		}
		switch {
		case len(la) < len(lb):
			return -1
		case len(la) > len(lb):
			return 1
		}
		return 0
	case rankNode:
		return strings.Compare(string(a.(*storage.Node).ID), string(b.(*storage.Node).ID))
	case rankEdge:
		return strings.Compare(string(a.(*storage.Edge).ID), string(b.(*storage.Edge).ID))
	default:
		return strings.Compare(identityKey(a), identityKey(b))
	}
}

// identityKey encodes a value for hashing in joins, DISTINCT and grouping.
// Nodes and edges key on their IDs, integral floats collapse onto the
// same key as the equal integer, and null encodes as its own key so
// grouping treats nulls as equal to each other.
func identityKey(v Value) string {
	var sb strings.Builder
	writeIdentity(&sb, v)
	return sb.String()
}

func writeIdentity(sb *strings.Builder, v Value) {
	switch t := v.(type) {
	case nil:
		sb.WriteString("_:")
	case bool:
		sb.WriteString("b:")
		sb.WriteString(strconv.FormatBool(t))
	case int64:
		sb.WriteString("i:")
		sb.WriteString(strconv.FormatInt(t, 10))
	case float64:
		if t == math.Trunc(t) && t >= math.MinInt64 && t <= math.MaxInt64 {
			sb.WriteString("i:")
			sb.WriteString(strconv.FormatInt(int64(t), 10))
			return
		}
		sb.WriteString("f:")
		sb.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case string:
		sb.WriteString("s:")
		sb.WriteString(strconv.Itoa(len(t)))
		sb.WriteByte(':')
		sb.WriteString(t)
	case *storage.Node:
		sb.WriteString("n:")
		sb.WriteString(string(t.ID))
	case *storage.Edge:
		sb.WriteString("e:")
		sb.WriteString(string(t.ID))
	case *Path:
		sb.WriteString("p:")
		sb.WriteString(strconv.Itoa(len(t.Nodes)))
		for _, n := range t.Nodes {
			sb.WriteByte('|')
			if n != nil {
				sb.WriteString(string(n.ID))
			}
		}
		for _, e := range t.Edges {
			sb.WriteByte('|')
			if e != nil {
				sb.WriteString(string(e.ID))
			}
		}
	case []Value:
		sb.WriteString("l:")
		sb.WriteString(strconv.Itoa(len(t)))
		for _, e := range t {
			sb.WriteByte('[')
			writeIdentity(sb, e)
			sb.WriteByte(']')
		}
	case map[string]any:
		sb.WriteString("m:")
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteByte('{')
			sb.WriteString(k)
			sb.WriteByte('=')
			writeIdentity(sb, t[k])
			sb.WriteByte('}')
		}
	default:
		sb.WriteString(fmt.Sprintf("x:%v", t))
	}
}

// rowKey concatenates the identity keys of the given cells. It backs
// DISTINCT, grouping and argument dedup, where nulls compare equal.
func rowKey(vals []Value) string {
	var sb strings.Builder
	for _, v := range vals {
		writeIdentity(&sb, v)
		sb.WriteByte(0x1f)
	}
	return sb.String()
}

// joinKey encodes join-key cells for hash matching. ok is false when any
// cell is null; null never matches anything in a join, including another
// null.
func joinKey(vals []Value) (key string, ok bool) {
	var sb strings.Builder
	for _, v := range vals {
		if v == nil {
			return "", false
		}
		writeIdentity(&sb, v)
		sb.WriteByte(0x1f)
	}
	return sb.String(), true
}
