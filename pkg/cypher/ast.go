// Package cypher implements the query front end for Vegvisir: a scanner and
// recursive-descent parser for the Cypher subset the planner understands.
//
// The package produces a plain AST and performs no semantic analysis; scope
// and binding validation happen in pkg/planner during context lowering.
package cypher

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// StatementKind classifies a parsed statement.
type StatementKind int

const (
	// StatementMatch is a read query: MATCH/OPTIONAL MATCH/UNWIND/WITH
	// clauses terminated by RETURN.
	StatementMatch StatementKind = iota
	// StatementCreate is a write query. It is parsed so callers can reject
	// it cleanly, but the match planner does not accept it.
	StatementCreate
)

// String returns the statement kind name.
func (k StatementKind) String() string {
	switch k {
	case StatementMatch:
		return "MATCH"
	case StatementCreate:
		return "CREATE"
	default:
		return fmt.Sprintf("StatementKind(%d)", int(k))
	}
}

// Statement is the root of a parsed query.
type Statement struct {
	Kind StatementKind

	// Clauses is the ordered clause list of a read query.
	Clauses []Clause

	// CreatePattern holds the pattern of a CREATE statement.
	CreatePattern []*PatternPart
}

// Clause is one top-level clause of a read query. The set is closed: match,
// unwind, with and return.
type Clause interface {
	clauseNode()
}

// MatchClause is MATCH or OPTIONAL MATCH with an optional WHERE.
type MatchClause struct {
	Optional bool
	Pattern  []*PatternPart
	Where    Expr // nil when absent
}

// UnwindClause is UNWIND <list expression> AS <alias>.
type UnwindClause struct {
	Expr  Expr
	Alias string
}

// WithClause is WITH [DISTINCT] items, with optional ORDER BY/SKIP/LIMIT and
// a trailing WHERE applied to the projected rows.
type WithClause struct {
	Distinct bool
	Items    []*ReturnItem
	OrderBy  []*SortItem
	Skip     Expr // nil when absent
	Limit    Expr // nil when absent
	Where    Expr // nil when absent
}

// ReturnClause is RETURN [DISTINCT] items with optional ORDER BY/SKIP/LIMIT.
type ReturnClause struct {
	Distinct bool
	Items    []*ReturnItem
	OrderBy  []*SortItem
	Skip     Expr
	Limit    Expr
}

func (*MatchClause) clauseNode()  {}
func (*UnwindClause) clauseNode() {}
func (*WithClause) clauseNode()   {}
func (*ReturnClause) clauseNode() {}

// ReturnItem is one projection: an expression with its output alias.
// Star marks the `*` projection; it expands during context lowering.
type ReturnItem struct {
	Expr  Expr
	Alias string // explicit AS alias, or the expression text when absent
	Star  bool
}

// SortItem is one ORDER BY key.
type SortItem struct {
	Expr Expr
	Desc bool
}

// Direction is the orientation of a relationship pattern.
type Direction int

const (
	// DirOut is ()-[]->().
	DirOut Direction = iota
	// DirIn is ()<-[]-().
	DirIn
	// DirBoth is ()-[]-().
	DirBoth
)

// String returns a short direction name.
func (d Direction) String() string {
	switch d {
	case DirOut:
		return "out"
	case DirIn:
		return "in"
	case DirBoth:
		return "both"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// PatternPart is one comma-separated path of a MATCH pattern, optionally
// bound to a path variable: p = (a)-[r]->(b). Nodes and Rels alternate;
// len(Nodes) == len(Rels)+1.
type PatternPart struct {
	PathVar string // "" when the path is not bound
	Nodes   []*NodePattern
	Rels    []*RelPattern
}

// NodePattern is (v:Label {key: expr}).
type NodePattern struct {
	Var    string // "" when anonymous
	Labels []string
	Props  []*PropPair
}

// RelPattern is -[v:TYPE*min..max {key: expr}]-> in either direction.
type RelPattern struct {
	Var       string
	Types     []string
	Direction Direction
	Props     []*PropPair

	// VarLength marks *min..max hops. MaxHops is -1 for an open upper
	// bound. Fixed-length relationships have MinHops == MaxHops == 1.
	VarLength bool
	MinHops   int
	MaxHops   int
}

// PropPair is one key: value entry of an inline property map, ordered as
// written so downstream plan rendering stays deterministic.
type PropPair struct {
	Key   string
	Value Expr
}

// Expr is a Cypher expression. The set of implementations is closed.
type Expr interface {
	exprNode()
	// String renders the expression in canonical query-ish syntax. It is
	// used for derived column names and plan explanation.
	String() string
}

// Literal is a constant: int64, float64, string, bool or nil.
type Literal struct {
	Value any
}

// ListLit is a bracketed list literal.
type ListLit struct {
	Items []Expr
}

// Param is $name, resolved against the query parameter map at execution.
type Param struct {
	Name string
}

// Var references a bound variable by name.
type Var struct {
	Name string
}

// Prop is property access on a variable: v.key.
type Prop struct {
	Var string
	Key string
}

// BinaryOp enumerates binary operators.
type BinaryOp int

const (
	OpEq BinaryOp = iota
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpXor
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpIn
)

// String returns the operator's source syntax.
func (op BinaryOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNeq:
		return "<>"
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	case OpXor:
		return "XOR"
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpIn:
		return "IN"
	default:
		return fmt.Sprintf("BinaryOp(%d)", int(op))
	}
}

// Binary applies a binary operator.
type Binary struct {
	Op  BinaryOp
	LHS Expr
	RHS Expr
}

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNeg
	OpIsNull
	OpIsNotNull
)

// Unary applies a unary operator.
type Unary struct {
	Op      UnaryOp
	Operand Expr
}

// FuncCall is a function invocation: count(x), collect(DISTINCT v), id(n).
// Star marks count(*).
type FuncCall struct {
	Name     string // lowercased
	Distinct bool
	Star     bool
	Args     []Expr
}

func (*Literal) exprNode()  {}
func (*ListLit) exprNode()  {}
func (*Param) exprNode()    {}
func (*Var) exprNode()      {}
func (*Prop) exprNode()     {}
func (*Binary) exprNode()   {}
func (*Unary) exprNode()    {}
func (*FuncCall) exprNode() {}

// String renders the literal. Strings are single-quoted; floats keep the
// shortest representation that round-trips.
func (e *Literal) String() string {
	switch v := e.Value.(type) {
	case nil:
		return "null"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "\\'") + "'"
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (e *ListLit) String() string {
	parts := make([]string, len(e.Items))
	for i, it := range e.Items {
		parts[i] = it.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (e *Param) String() string { return "$" + e.Name }

func (e *Var) String() string { return e.Name }

func (e *Prop) String() string { return e.Var + "." + e.Key }

func (e *Binary) String() string {
	return "(" + e.LHS.String() + " " + e.Op.String() + " " + e.RHS.String() + ")"
}

func (e *Unary) String() string {
	switch e.Op {
	case OpNot:
		return "NOT " + e.Operand.String()
	case OpNeg:
		return "-" + e.Operand.String()
	case OpIsNull:
		return e.Operand.String() + " IS NULL"
	case OpIsNotNull:
		return e.Operand.String() + " IS NOT NULL"
	default:
		return e.Operand.String()
	}
}

func (e *FuncCall) String() string {
	if e.Star {
		return e.Name + "(*)"
	}
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = a.String()
	}
	inner := strings.Join(parts, ", ")
	if e.Distinct {
		inner = "DISTINCT " + inner
	}
	return e.Name + "(" + inner + ")"
}

// aggregateFuncs is the closed set of aggregating functions.
var aggregateFuncs = map[string]bool{
	"count":   true,
	"sum":     true,
	"avg":     true,
	"min":     true,
	"max":     true,
	"collect": true,
}

// IsAggregate reports whether expr contains an aggregating function call.
func IsAggregate(expr Expr) bool {
	agg := false
	WalkExpr(expr, func(e Expr) {
		if fc, ok := e.(*FuncCall); ok && aggregateFuncs[fc.Name] {
			agg = true
		}
	})
	return agg
}

// IsAggregateFunc reports whether name (lowercased) is itself an
// aggregating function, as opposed to an expression that merely contains
// one.
func IsAggregateFunc(name string) bool {
	return aggregateFuncs[name]
}

// WalkExpr visits expr and every sub-expression in depth-first order.
func WalkExpr(expr Expr, visit func(Expr)) {
	if expr == nil {
		return
	}
	visit(expr)
	switch e := expr.(type) {
	case *ListLit:
		for _, it := range e.Items {
			WalkExpr(it, visit)
		}
	case *Binary:
		WalkExpr(e.LHS, visit)
		WalkExpr(e.RHS, visit)
	case *Unary:
		WalkExpr(e.Operand, visit)
	case *FuncCall:
		for _, a := range e.Args {
			WalkExpr(a, visit)
		}
	}
}

// CollectVars returns the distinct variable names referenced by expr, both
// as bare variables and as property-access subjects, sorted for determinism.
func CollectVars(expr Expr) []string {
	seen := map[string]bool{}
	WalkExpr(expr, func(e Expr) {
		switch v := e.(type) {
		case *Var:
			seen[v.Name] = true
		case *Prop:
			seen[v.Var] = true
		}
	})
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
