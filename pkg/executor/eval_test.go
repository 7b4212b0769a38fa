package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/vegvisir/pkg/cypher"
	"github.com/orneryd/vegvisir/pkg/storage"
)

func lit(v any) *cypher.Literal { return &cypher.Literal{Value: v} }

func bin(op cypher.BinaryOp, l, r cypher.Expr) *cypher.Binary {
	return &cypher.Binary{Op: op, LHS: l, RHS: r}
}

func un(op cypher.UnaryOp, operand cypher.Expr) *cypher.Unary {
	return &cypher.Unary{Op: op, Operand: operand}
}

func evalIn(t *testing.T, expr cypher.Expr, env *evalEnv) Value {
	t.Helper()
	v, err := evalExpr(expr, env)
	require.NoError(t, err)
	return v
}

func TestEvalLogicTernary(t *testing.T) {
	env := newEvalEnv(nil, nil)
	tr, fa, nu := lit(true), lit(false), lit(nil)

	tests := []struct {
		name string
		expr cypher.Expr
		want Value
	}{
		{"true and true", bin(cypher.OpAnd, tr, tr), true},
		{"true and false", bin(cypher.OpAnd, tr, fa), false},
		{"true and null", bin(cypher.OpAnd, tr, nu), nil},
		{"false and null", bin(cypher.OpAnd, fa, nu), false},
		{"null and null", bin(cypher.OpAnd, nu, nu), nil},
		{"false or false", bin(cypher.OpOr, fa, fa), false},
		{"true or null", bin(cypher.OpOr, tr, nu), true},
		{"false or null", bin(cypher.OpOr, fa, nu), nil},
		{"true xor false", bin(cypher.OpXor, tr, fa), true},
		{"true xor true", bin(cypher.OpXor, tr, tr), false},
		{"true xor null", bin(cypher.OpXor, tr, nu), nil},
		{"not true", un(cypher.OpNot, tr), false},
		{"not null", un(cypher.OpNot, nu), nil},
		{"null is null", un(cypher.OpIsNull, nu), true},
		{"1 is not null", un(cypher.OpIsNotNull, lit(1)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evalIn(t, tt.expr, env))
		})
	}

	_, err := evalExpr(bin(cypher.OpAnd, lit(1), tr), env)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	_, err = evalExpr(un(cypher.OpNot, lit(1)), env)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestEvalComparisons(t *testing.T) {
	env := newEvalEnv(nil, nil)

	tests := []struct {
		name string
		expr cypher.Expr
		want Value
	}{
		{"int lt", bin(cypher.OpLt, lit(1), lit(2)), true},
		{"int le equal", bin(cypher.OpLe, lit(2), lit(2)), true},
		{"int gt", bin(cypher.OpGt, lit(1), lit(2)), false},
		{"cross numeric", bin(cypher.OpLt, lit(1), lit(1.5)), true},
		{"string order", bin(cypher.OpLt, lit("a"), lit("b")), true},
		{"bool order", bin(cypher.OpGt, lit(true), lit(false)), true},
		{"null operand", bin(cypher.OpLt, lit(nil), lit(1)), nil},
		{"incomparable types", bin(cypher.OpLt, lit(1), lit("a")), nil},
		{"eq numbers cross type", bin(cypher.OpEq, lit(1), lit(1.0)), true},
		{"eq strings", bin(cypher.OpEq, lit("x"), lit("x")), true},
		{"eq mismatched types", bin(cypher.OpEq, lit("1"), lit(1)), false},
		{"eq null", bin(cypher.OpEq, lit(nil), lit(nil)), nil},
		{"neq", bin(cypher.OpNeq, lit(1), lit(2)), true},
		{"neq null side", bin(cypher.OpNeq, lit(1), lit(nil)), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evalIn(t, tt.expr, env))
		})
	}
}

func TestEvalListEquality(t *testing.T) {
	env := newEvalEnv(nil, nil)
	list := func(items ...any) *cypher.ListLit {
		ll := &cypher.ListLit{}
		for _, it := range items {
			ll.Items = append(ll.Items, lit(it))
		}
		return ll
	}

	assert.Equal(t, true, evalIn(t, bin(cypher.OpEq, list(1, 2), list(1, 2)), env))
	assert.Equal(t, false, evalIn(t, bin(cypher.OpEq, list(1), list(1, 2)), env))
	assert.Equal(t, false, evalIn(t, bin(cypher.OpEq, list(1, 3), list(1, 2)), env))
	assert.Nil(t, evalIn(t, bin(cypher.OpEq, list(1, nil), list(1, 2)), env))
}

func TestEvalArithmetic(t *testing.T) {
	env := newEvalEnv(nil, nil)

	tests := []struct {
		name string
		expr cypher.Expr
		want Value
	}{
		{"int add", bin(cypher.OpAdd, lit(2), lit(3)), int64(5)},
		{"mixed add", bin(cypher.OpAdd, lit(2), lit(3.5)), 5.5},
		{"int div truncates", bin(cypher.OpDiv, lit(7), lit(2)), int64(3)},
		{"float div", bin(cypher.OpDiv, lit(7.0), lit(2)), 3.5},
		{"mod", bin(cypher.OpMod, lit(7), lit(3)), int64(1)},
		{"sub", bin(cypher.OpSub, lit(2), lit(5)), int64(-3)},
		{"mul", bin(cypher.OpMul, lit(4), lit(2.5)), 10.0},
		{"negate", un(cypher.OpNeg, lit(3)), int64(-3)},
		{"negate null", un(cypher.OpNeg, lit(nil)), nil},
		{"null add", bin(cypher.OpAdd, lit(nil), lit(1)), nil},
		{"string concat", bin(cypher.OpAdd, lit("a"), lit("b")), "ab"},
		{"string plus int", bin(cypher.OpAdd, lit("a"), lit(1)), "a1"},
		{"int plus string", bin(cypher.OpAdd, lit(1), lit("a")), "1a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evalIn(t, tt.expr, env))
		})
	}

	_, err := evalExpr(bin(cypher.OpDiv, lit(1), lit(0)), env)
	assert.ErrorIs(t, err, ErrDivisionByZero)
	_, err = evalExpr(bin(cypher.OpMod, lit(1), lit(0)), env)
	assert.ErrorIs(t, err, ErrDivisionByZero)
	_, err = evalExpr(bin(cypher.OpSub, lit("a"), lit(1)), env)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestEvalListConcat(t *testing.T) {
	env := newEvalEnv(nil, nil)
	l1 := &cypher.ListLit{Items: []cypher.Expr{lit(1)}}
	l2 := &cypher.ListLit{Items: []cypher.Expr{lit(2)}}

	assert.Equal(t, []Value{int64(1), int64(2)}, evalIn(t, bin(cypher.OpAdd, l1, l2), env))
	assert.Equal(t, []Value{int64(1), int64(2)}, evalIn(t, bin(cypher.OpAdd, l1, lit(2)), env))
	assert.Equal(t, []Value{int64(1), int64(2)}, evalIn(t, bin(cypher.OpAdd, lit(1), l2), env))
}

func TestEvalIn(t *testing.T) {
	env := newEvalEnv(nil, nil)
	list := func(items ...any) *cypher.ListLit {
		ll := &cypher.ListLit{}
		for _, it := range items {
			ll.Items = append(ll.Items, lit(it))
		}
		return ll
	}

	assert.Equal(t, true, evalIn(t, bin(cypher.OpIn, lit(1), list(1, 2)), env))
	assert.Equal(t, false, evalIn(t, bin(cypher.OpIn, lit(3), list(1, 2)), env))
	assert.Nil(t, evalIn(t, bin(cypher.OpIn, lit(3), list(1, nil)), env))
	assert.Nil(t, evalIn(t, bin(cypher.OpIn, lit(nil), list(1)), env))
	assert.Equal(t, false, evalIn(t, bin(cypher.OpIn, lit(nil), list()), env))
	assert.Nil(t, evalIn(t, bin(cypher.OpIn, lit(1), lit(nil)), env))

	_, err := evalExpr(bin(cypher.OpIn, lit(1), lit(2)), env)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestEvalRowBindings(t *testing.T) {
	alice := &storage.Node{ID: "alice", Labels: []string{"Person"}, Properties: map[string]any{"name": "Alice", "age": 34}}
	env := newEvalEnv([]string{"n"}, nil)
	env.row = []Value{alice}

	assert.Equal(t, alice, evalIn(t, &cypher.Var{Name: "n"}, env))
	assert.Equal(t, "Alice", evalIn(t, &cypher.Prop{Var: "n", Key: "name"}, env))
	assert.Equal(t, int64(34), evalIn(t, &cypher.Prop{Var: "n", Key: "age"}, env))
	assert.Nil(t, evalIn(t, &cypher.Prop{Var: "n", Key: "missing"}, env))

	_, err := evalExpr(&cypher.Var{Name: "m"}, env)
	assert.ErrorIs(t, err, ErrUnknownVariable)

	env.row = []Value{nil}
	assert.Nil(t, evalIn(t, &cypher.Prop{Var: "n", Key: "name"}, env))

	env.row = []Value{int64(1)}
	_, err = evalExpr(&cypher.Prop{Var: "n", Key: "name"}, env)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestEvalParams(t *testing.T) {
	env := newEvalEnv(nil, map[string]Value{"min": int64(30)})

	assert.Equal(t, int64(30), evalIn(t, &cypher.Param{Name: "min"}, env))

	_, err := evalExpr(&cypher.Param{Name: "max"}, env)
	assert.ErrorIs(t, err, ErrMissingParameter)
}

func TestEvalScalarFunctions(t *testing.T) {
	alice := &storage.Node{ID: "alice", Labels: []string{"Person", "Admin"}}
	knows := &storage.Edge{ID: "k1", StartNode: "alice", EndNode: "bob", Type: "KNOWS"}
	env := newEvalEnv([]string{"n", "e"}, nil)
	env.row = []Value{alice, knows}

	call := func(name string, args ...cypher.Expr) *cypher.FuncCall {
		return &cypher.FuncCall{Name: name, Args: args}
	}
	nVar := &cypher.Var{Name: "n"}
	eVar := &cypher.Var{Name: "e"}
	list := &cypher.ListLit{Items: []cypher.Expr{lit(1), lit(2), lit(3)}}

	assert.Equal(t, "alice", evalIn(t, call("id", nVar), env))
	assert.Equal(t, "k1", evalIn(t, call("id", eVar), env))
	assert.Equal(t, []Value{"Person", "Admin"}, evalIn(t, call("labels", nVar), env))
	assert.Equal(t, "KNOWS", evalIn(t, call("type", eVar), env))
	assert.Equal(t, int64(3), evalIn(t, call("size", list), env))
	assert.Equal(t, int64(3), evalIn(t, call("size", lit("abc")), env))
	assert.Nil(t, evalIn(t, call("size", lit(nil)), env))
	assert.Equal(t, int64(1), evalIn(t, call("head", list), env))
	assert.Equal(t, int64(3), evalIn(t, call("last", list), env))
	assert.Equal(t, "abc", evalIn(t, call("tolower", lit("AbC")), env))
	assert.Equal(t, "ABC", evalIn(t, call("toupper", lit("abc")), env))
	assert.Equal(t, int64(1), evalIn(t, call("coalesce", lit(nil), lit(1)), env))
	assert.Nil(t, evalIn(t, call("coalesce", lit(nil), lit(nil)), env))

	_, err := evalExpr(call("shenanigans", nVar), env)
	assert.ErrorIs(t, err, ErrUnknownFunction)
	_, err = evalExpr(call("labels", eVar), env)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	_, err = evalExpr(call("count", nVar), env)
	assert.ErrorIs(t, err, ErrTypeMismatch, "aggregate outside aggregation")
}

func TestCompareValuesTotalOrder(t *testing.T) {
	// Null ranks last so ascending sorts push missing values to the end.
	assert.Equal(t, 1, compareValues(nil, int64(1)))
	assert.Equal(t, -1, compareValues(int64(1), nil))
	assert.Equal(t, 0, compareValues(nil, nil))

	assert.Equal(t, -1, compareValues(int64(1), 1.5))
	assert.Equal(t, 0, compareValues(int64(2), 2.0))
	assert.Equal(t, -1, compareValues(int64(1), "a"), "numbers order before strings")
	assert.Equal(t, -1, compareValues([]Value{int64(1)}, []Value{int64(1), int64(2)}))
}

func TestIdentityKeys(t *testing.T) {
	// Equal numbers collapse onto one key regardless of integer or float
	// representation; null is its own key so grouping treats nulls equal.
	assert.Equal(t, identityKey(int64(1)), identityKey(1.0))
	assert.NotEqual(t, identityKey(int64(1)), identityKey(1.5))
	assert.NotEqual(t, identityKey("1"), identityKey(int64(1)))
	assert.Equal(t, rowKey([]Value{nil}), rowKey([]Value{nil}))

	n1 := &storage.Node{ID: "a"}
	n2 := &storage.Node{ID: "a", Properties: map[string]any{"x": 1}}
	assert.Equal(t, identityKey(n1), identityKey(n2), "nodes key on identity")

	_, ok := joinKey([]Value{int64(1), nil})
	assert.False(t, ok, "null never matches in a join")
	k1, ok := joinKey([]Value{int64(1), "a"})
	require.True(t, ok)
	k2, _ := joinKey([]Value{int64(1), "a"})
	assert.Equal(t, k1, k2)
}
