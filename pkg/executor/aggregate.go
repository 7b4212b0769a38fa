package executor

import (
	"fmt"

	"github.com/orneryd/vegvisir/pkg/cypher"
	"github.com/orneryd/vegvisir/pkg/plan"
)

// execAggregate groups the input by the non-aggregating columns and folds
// the aggregating ones over each group, in first-seen group order. A
// global aggregation (no key columns) always yields exactly one row,
// even over empty input: count 0, sum 0, empty collect, null otherwise.
func (r *run) execAggregate(n *plan.Node, in *Result) (*Result, error) {
	cols := n.Agg.Columns
	isAgg := make([]bool, len(cols))
	hasKeys := false
	for i, c := range cols {
		isAgg[i] = cypher.IsAggregate(c.Expr)
		if !isAgg[i] {
			hasKeys = true
		}
	}

	type aggGroup struct {
		keys []Value
		rows [][]Value
	}
	env := newEvalEnv(in.Columns, r.params)
	groups := make(map[string]*aggGroup)
	var order []string
	for _, row := range in.Rows {
		env.row = row
		keyVals := make([]Value, 0, len(cols))
		for i, c := range cols {
			if isAgg[i] {
				continue
			}
			v, err := evalExpr(c.Expr, env)
			if err != nil {
				return nil, err
			}
			keyVals = append(keyVals, v)
		}
		k := rowKey(keyVals)
		g, ok := groups[k]
		if !ok {
			g = &aggGroup{keys: keyVals}
			groups[k] = g
			order = append(order, k)
		}
		g.rows = append(g.rows, row)
	}
	if !hasKeys && len(order) == 0 {
		k := rowKey(nil)
		groups[k] = &aggGroup{}
		order = append(order, k)
	}

	out := &Result{Columns: n.ColNames()}
	for _, k := range order {
		g := groups[k]
		if len(g.rows) > 0 {
			env.row = g.rows[0]
		} else {
			env.row = nil
		}
		vals := make([]Value, len(cols))
		ki := 0
		for i, c := range cols {
			if !isAgg[i] {
				vals[i] = g.keys[ki]
				ki++
				continue
			}
			v, err := evalAggExpr(c.Expr, g.rows, env)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		out.Rows = append(out.Rows, vals)
	}
	return out, nil
}

// evalAggExpr evaluates an aggregating output column for one group.
// Aggregate calls fold over the group's rows; any surrounding scalar
// expression evaluates once with the group's first row bound.
func evalAggExpr(e cypher.Expr, rows [][]Value, env *evalEnv) (Value, error) {
	if !cypher.IsAggregate(e) {
		return evalExpr(e, env)
	}
	switch ex := e.(type) {
	case *cypher.FuncCall:
		if cypher.IsAggregateFunc(ex.Name) {
			return computeAggregate(ex, rows, env)
		}
		return evalAggScalarCall(ex, rows, env)
	case *cypher.Binary:
		l, err := evalAggExpr(ex.LHS, rows, env)
		if err != nil {
			return nil, err
		}
		r, err := evalAggExpr(ex.RHS, rows, env)
		if err != nil {
			return nil, err
		}
		return applyBinary(ex.Op, l, r)
	case *cypher.Unary:
		v, err := evalAggExpr(ex.Operand, rows, env)
		if err != nil {
			return nil, err
		}
		return applyUnary(ex.Op, v)
	case *cypher.ListLit:
		out := make([]Value, len(ex.Items))
		for i, item := range ex.Items {
			v, err := evalAggExpr(item, rows, env)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		return evalExpr(e, env)
	}
}

// evalAggScalarCall handles a scalar function wrapping an aggregate,
// e.g. size(collect(x)).
func evalAggScalarCall(fc *cypher.FuncCall, rows [][]Value, env *evalEnv) (Value, error) {
	switch fc.Name {
	case "coalesce":
		for _, arg := range fc.Args {
			v, err := evalAggExpr(arg, rows, env)
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
		v, err := evalAggExpr(fc.Args[0], rows, env)
		if err != nil {
			return nil, err
		}
		return applyScalarFunc(fc.Name, v)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, fc.Name)
	}
}

// computeAggregate folds one aggregate call over a group. Null inputs
// are skipped before accumulation, and DISTINCT collapses equal values
// first-occurrence-wise.
func computeAggregate(fc *cypher.FuncCall, rows [][]Value, env *evalEnv) (Value, error) {
	if fc.Star {
		if fc.Name != "count" {
			return nil, fmt.Errorf("%w: %s(*) is not valid", ErrTypeMismatch, fc.Name)
		}
		return int64(len(rows)), nil
	}
	if len(fc.Args) != 1 {
		return nil, fmt.Errorf("%w: %s() expects one argument", ErrTypeMismatch, fc.Name)
	}
	if cypher.IsAggregate(fc.Args[0]) {
		return nil, fmt.Errorf("%w: nested aggregation in %s()", ErrTypeMismatch, fc.Name)
	}

	saved := env.row
	vals := make([]Value, 0, len(rows))
	for _, row := range rows {
		env.row = row
		v, err := evalExpr(fc.Args[0], env)
		if err != nil {
			env.row = saved
			return nil, err
		}
		if v == nil {
			continue
		}
		vals = append(vals, v)
	}
	env.row = saved
	if fc.Distinct {
		vals = distinctValues(vals)
	}

	switch fc.Name {
	case "count":
		return int64(len(vals)), nil
	case "sum":
		return sumValues(vals)
	case "avg":
		return avgValues(vals)
	case "min":
		return extremeValue(vals, -1), nil
	case "max":
		return extremeValue(vals, 1), nil
	case "collect":
		return vals, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, fc.Name)
	}
}

func distinctValues(vals []Value) []Value {
	seen := make(map[string]struct{}, len(vals))
	out := make([]Value, 0, len(vals))
	for _, v := range vals {
		k := identityKey(v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// sumValues stays integral until a float joins the sum.
func sumValues(vals []Value) (Value, error) {
	var si int64
	var sf float64
	isFloat := false
	for _, v := range vals {
		i, f, isInt, ok := asNumber(v)
		if !ok {
			return nil, fmt.Errorf("%w: sum() expects numbers, got %T", ErrTypeMismatch, v)
		}
		if isInt && !isFloat {
			si += i
			continue
		}
		if !isFloat {
			isFloat = true
			sf = float64(si)
		}
		sf += f
	}
	if isFloat {
		return sf, nil
	}
	return si, nil
}

func avgValues(vals []Value) (Value, error) {
	if len(vals) == 0 {
		return nil, nil
	}
	var sum float64
	for _, v := range vals {
		_, f, _, ok := asNumber(v)
		if !ok {
			return nil, fmt.Errorf("%w: avg() expects numbers, got %T", ErrTypeMismatch, v)
		}
		sum += f
	}
	return sum / float64(len(vals)), nil
}

// extremeValue picks the minimum (sign -1) or maximum (sign 1) value
// under the total value order; nil on an empty group.
func extremeValue(vals []Value, sign int) Value {
	var best Value
	for _, v := range vals {
		if best == nil {
			best = v
			continue
		}
		if c := compareValues(v, best); (sign < 0 && c < 0) || (sign > 0 && c > 0) {
			best = v
		}
	}
	return best
}
