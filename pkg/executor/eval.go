package executor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/orneryd/vegvisir/pkg/cypher"
	"github.com/orneryd/vegvisir/pkg/storage"
)

// evalEnv carries the bindings an expression evaluates against: the
// current row keyed by column name, plus the query parameters.
type evalEnv struct {
	idx    map[string]int
	row    []Value
	params map[string]Value
}

func newEvalEnv(cols []string, params map[string]Value) *evalEnv {
	return &evalEnv{idx: colIndex(cols), params: params}
}

func (env *evalEnv) lookup(name string) (Value, error) {
	i, ok := env.idx[name]
	if !ok || env.row == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	return env.row[i], nil
}

// evalExpr evaluates a scalar expression under Cypher semantics: null
// propagates through operators, and AND/OR/XOR follow three-valued logic.
// Aggregate calls are rejected here; they are only legal inside an
// aggregating projection, which evaluates them per group.
func evalExpr(e cypher.Expr, env *evalEnv) (Value, error) {
	switch ex := e.(type) {
	case *cypher.Literal:
		return normalizeValue(ex.Value), nil
	case *cypher.ListLit:
		out := make([]Value, len(ex.Items))
		for i, item := range ex.Items {
			v, err := evalExpr(item, env)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *cypher.Param:
		v, ok := env.params[ex.Name]
		if !ok {
			return nil, fmt.Errorf("%w: $%s", ErrMissingParameter, ex.Name)
		}
		return v, nil
	case *cypher.Var:
		return env.lookup(ex.Name)
	case *cypher.Prop:
		base, err := env.lookup(ex.Var)
		if err != nil {
			return nil, err
		}
		return propertyOf(base, ex.Key)
	case *cypher.Unary:
		v, err := evalExpr(ex.Operand, env)
		if err != nil {
			return nil, err
		}
		return applyUnary(ex.Op, v)
	case *cypher.Binary:
		l, err := evalExpr(ex.LHS, env)
		if err != nil {
			return nil, err
		}
		r, err := evalExpr(ex.RHS, env)
		if err != nil {
			return nil, err
		}
		return applyBinary(ex.Op, l, r)
	case *cypher.FuncCall:
		if cypher.IsAggregate(ex) {
			return nil, fmt.Errorf("%w: aggregate %s() outside an aggregating projection", ErrTypeMismatch, ex.Name)
		}
		return evalScalarFunc(ex, env)
	default:
		return nil, fmt.Errorf("%w: unsupported expression %T", ErrTypeMismatch, e)
	}
}

// propertyOf reads key from a node, edge or map value. Property access on
// null yields null; any other type is an error.
func propertyOf(base Value, key string) (Value, error) {
	switch t := base.(type) {
	case nil:
		return nil, nil
	case *storage.Node:
		return normalizeValue(t.Properties[key]), nil
	case *storage.Edge:
		return normalizeValue(t.Properties[key]), nil
	case map[string]any:
		return normalizeValue(t[key]), nil
	default:
		return nil, fmt.Errorf("%w: cannot access property %q on %T", ErrTypeMismatch, key, base)
	}
}

func applyUnary(op cypher.UnaryOp, v Value) (Value, error) {
	switch op {
	case cypher.OpNot:
		if v == nil {
			return nil, nil
		}
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: NOT expects a boolean, got %T", ErrTypeMismatch, v)
		}
		return !b, nil
	case cypher.OpNeg:
		switch t := v.(type) {
		case nil:
			return nil, nil
		case int64:
			return -t, nil
		case float64:
			return -t, nil
		default:
			return nil, fmt.Errorf("%w: cannot negate %T", ErrTypeMismatch, v)
		}
	case cypher.OpIsNull:
		return v == nil, nil
	case cypher.OpIsNotNull:
		return v != nil, nil
	default:
		return nil, fmt.Errorf("%w: unsupported unary operator", ErrTypeMismatch)
	}
}

func applyBinary(op cypher.BinaryOp, l, r Value) (Value, error) {
	switch op {
	case cypher.OpAnd, cypher.OpOr, cypher.OpXor:
		return applyLogic(op, l, r)
	case cypher.OpEq:
		eq, isNull := valueEquals(l, r)
		if isNull {
			return nil, nil
		}
		return eq, nil
	case cypher.OpNeq:
		eq, isNull := valueEquals(l, r)
		if isNull {
			return nil, nil
		}
		return !eq, nil
	case cypher.OpLt, cypher.OpLe, cypher.OpGt, cypher.OpGe:
		c, ok := compareForOrder(l, r)
		if !ok {
			return nil, nil
		}
		switch op {
		case cypher.OpLt:
			return c < 0, nil
		case cypher.OpLe:
			return c <= 0, nil
		case cypher.OpGt:
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	case cypher.OpAdd:
		return addValues(l, r)
	case cypher.OpSub, cypher.OpMul, cypher.OpDiv, cypher.OpMod:
		return arithValues(op, l, r)
	case cypher.OpIn:
		return inList(l, r)
	default:
		return nil, fmt.Errorf("%w: unsupported operator %s", ErrTypeMismatch, op)
	}
}

// applyLogic implements Kleene logic. AND is false if either side is
// false, null if either side is null otherwise; OR mirrors that; XOR is
// null if either side is null.
func applyLogic(op cypher.BinaryOp, l, r Value) (Value, error) {
	lb, lNull, err := boolOrNull(l, op)
	if err != nil {
		return nil, err
	}
	rb, rNull, err := boolOrNull(r, op)
	if err != nil {
		return nil, err
	}
	switch op {
	case cypher.OpAnd:
		if (!lNull && !lb) || (!rNull && !rb) {
			return false, nil
		}
		if lNull || rNull {
			return nil, nil
		}
		return true, nil
	case cypher.OpOr:
		if (!lNull && lb) || (!rNull && rb) {
			return true, nil
		}
		if lNull || rNull {
			return nil, nil
		}
		return false, nil
	default: // XOR
		if lNull || rNull {
			return nil, nil
		}
		return lb != rb, nil
	}
}

func boolOrNull(v Value, op cypher.BinaryOp) (b, isNull bool, err error) {
	switch t := v.(type) {
	case nil:
		return false, true, nil
	case bool:
		return t, false, nil
	default:
		return false, false, fmt.Errorf("%w: %s expects booleans, got %T", ErrTypeMismatch, op, v)
	}
}

// compareForOrder compares two values for the ordering operators. ok is
// false when the comparison is null: either side null, or the sides are
// of incomparable types.
func compareForOrder(l, r Value) (c int, ok bool) {
	if l == nil || r == nil {
		return 0, false
	}
	rl, rr := typeRank(l), typeRank(r)
	if rl != rr {
		return 0, false
	}
	switch rl {
	case rankNumber, rankString, rankBool, rankList:
		return compareValues(l, r), true
	default:
		return 0, false
	}
}

// addValues implements +: numeric addition, string concatenation (a
// string side stringifies a scalar other side), and list concatenation
// or element append/prepend.
func addValues(l, r Value) (Value, error) {
	if l == nil || r == nil {
		return nil, nil
	}
	if li, lf, lInt, lok := asNumber(l); lok {
		if ri, rf, rInt, rok := asNumber(r); rok {
			if lInt && rInt {
				return li + ri, nil
			}
			return lf + rf, nil
		}
	}
	if ls, ok := l.(string); ok {
		rs, err := stringifyScalar(r)
		if err != nil {
			return nil, err
		}
		return ls + rs, nil
	}
	if rs, ok := r.(string); ok {
		ls, err := stringifyScalar(l)
		if err != nil {
			return nil, err
		}
		return ls + rs, nil
	}
	if ll, ok := l.([]Value); ok {
		if rl, ok := r.([]Value); ok {
			out := make([]Value, 0, len(ll)+len(rl))
			out = append(out, ll...)
			return append(out, rl...), nil
		}
		out := make([]Value, 0, len(ll)+1)
		out = append(out, ll...)
		return append(out, r), nil
	}
	if rl, ok := r.([]Value); ok {
		out := make([]Value, 0, len(rl)+1)
		out = append(out, l)
		return append(out, rl...), nil
	}
	return nil, fmt.Errorf("%w: cannot add %T and %T", ErrTypeMismatch, l, r)
}

func stringifyScalar(v Value) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", fmt.Errorf("%w: cannot concatenate %T with a string", ErrTypeMismatch, v)
	}
}

func arithValues(op cypher.BinaryOp, l, r Value) (Value, error) {
	if l == nil || r == nil {
		return nil, nil
	}
	li, lf, lInt, lok := asNumber(l)
	ri, rf, rInt, rok := asNumber(r)
	if !lok || !rok {
		return nil, fmt.Errorf("%w: %s expects numbers, got %T and %T", ErrTypeMismatch, op, l, r)
	}
	if lInt && rInt {
		switch op {
		case cypher.OpSub:
			return li - ri, nil
		case cypher.OpMul:
			return li * ri, nil
		case cypher.OpDiv:
			if ri == 0 {
				return nil, ErrDivisionByZero
			}
			return li / ri, nil
		default: // OpMod
			if ri == 0 {
				return nil, ErrDivisionByZero
			}
			return li % ri, nil
		}
	}
	switch op {
	case cypher.OpSub:
		return lf - rf, nil
	case cypher.OpMul:
		return lf * rf, nil
	case cypher.OpDiv:
		return lf / rf, nil
	default: // OpMod
		return math.Mod(lf, rf), nil
	}
}

// inList implements x IN list. An empty list yields false even for a
// null needle; otherwise a null needle or a null element that was not
// outweighed by a match yields null.
func inList(l, r Value) (Value, error) {
	if r == nil {
		return nil, nil
	}
	list, ok := r.([]Value)
	if !ok {
		return nil, fmt.Errorf("%w: IN expects a list, got %T", ErrTypeMismatch, r)
	}
	sawNull := false
	for _, e := range list {
		eq, isNull := valueEquals(l, e)
		if isNull {
			sawNull = true
			continue
		}
		if eq {
			return true, nil
		}
	}
	if sawNull {
		return nil, nil
	}
	return false, nil
}

// evalScalarFunc dispatches the non-aggregating built-ins.
func evalScalarFunc(fc *cypher.FuncCall, env *evalEnv) (Value, error) {
	switch fc.Name {
	case "coalesce":
		if len(fc.Args) == 0 {
			return nil, fmt.Errorf("%w: coalesce() expects at least one argument", ErrTypeMismatch)
		}
		for _, arg := range fc.Args {
			v, err := evalExpr(arg, env)
			if err != nil {
				return nil, err
			}
			if v != nil {
				return v, nil
			}
		}
		return nil, nil
	case "id", "labels", "type", "size", "length", "head", "last", "tolower", "toupper", "nodes", "relationships":
		if len(fc.Args) != 1 {
			return nil, fmt.Errorf("%w: %s() expects one argument", ErrTypeMismatch, fc.Name)
		}
		v, err := evalExpr(fc.Args[0], env)
		if err != nil {
			return nil, err
		}
		return applyScalarFunc(fc.Name, v)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, fc.Name)
	}
}

func applyScalarFunc(name string, v Value) (Value, error) {
	if v == nil {
		return nil, nil
	}
	switch name {
	case "id":
		switch t := v.(type) {
		case *storage.Node:
			return string(t.ID), nil
		case *storage.Edge:
			return string(t.ID), nil
		}
	case "labels":
		if n, ok := v.(*storage.Node); ok {
			out := make([]Value, len(n.Labels))
			for i, l := range n.Labels {
				out[i] = l
			}
			return out, nil
		}
	case "type":
		if e, ok := v.(*storage.Edge); ok {
			return e.Type, nil
		}
	case "size":
		switch t := v.(type) {
		case []Value:
			return int64(len(t)), nil
		case string:
			return int64(len([]rune(t))), nil
		}
	case "length":
		if p, ok := v.(*Path); ok {
			return int64(len(p.Edges)), nil
		}
	case "head":
		if l, ok := v.([]Value); ok {
			if len(l) == 0 {
				return nil, nil
			}
			return l[0], nil
		}
	case "last":
		if l, ok := v.([]Value); ok {
			if len(l) == 0 {
				return nil, nil
			}
			return l[len(l)-1], nil
		}
	case "tolower":
		if s, ok := v.(string); ok {
			return strings.ToLower(s), nil
		}
	case "toupper":
		if s, ok := v.(string); ok {
			return strings.ToUpper(s), nil
		}
	case "nodes":
		if p, ok := v.(*Path); ok {
			out := make([]Value, len(p.Nodes))
			for i, n := range p.Nodes {
				out[i] = n
			}
			return out, nil
		}
	case "relationships":
		if p, ok := v.(*Path); ok {
			out := make([]Value, len(p.Edges))
			for i, e := range p.Edges {
				out[i] = e
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %s() cannot be applied to %T", ErrTypeMismatch, name, v)
}
