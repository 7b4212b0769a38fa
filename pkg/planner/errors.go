package planner

import "errors"

// Planner errors. All are terminal: the first one aborts the compilation
// and no partial plan escapes.
var (
	// ErrUnsupportedSentence is returned when a statement other than a
	// match sentence reaches the planner.
	ErrUnsupportedSentence = errors.New("only MATCH is accepted for the match planner")

	// ErrUnsupportedClause is returned when a clause context has no
	// generator.
	ErrUnsupportedClause = errors.New("unsupported clause")

	// ErrAliasTypeConflict is returned when a shared alias is bound to
	// different types on the two sides of a join.
	ErrAliasTypeConflict = errors.New("alias binding to different type")

	// ErrEdgeListJoin is returned when a variable-length relationship
	// alias would become a join key.
	ErrEdgeListJoin = errors.New("EdgeList alias cannot be joined on")

	// ErrCrossSegmentFilter is returned when an optional match filter
	// references aliases defined by other clauses.
	ErrCrossSegmentFilter = errors.New("optional match filter may only reference aliases of its own pattern")

	// ErrUndefinedVariable is returned when an expression references an
	// alias that is not in scope.
	ErrUndefinedVariable = errors.New("variable not defined")

	// ErrDuplicateAlias is returned when one pattern binds the same name
	// to incompatible element kinds.
	ErrDuplicateAlias = errors.New("alias declared more than once")

	// ErrInvalidQuery is returned for structurally invalid clause
	// sequences, e.g. a query that does not end with RETURN.
	ErrInvalidQuery = errors.New("invalid query structure")
)
