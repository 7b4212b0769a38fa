package executor

import "errors"

var (
	// ErrMissingParameter is returned when a query references $param and no
	// such parameter was supplied.
	ErrMissingParameter = errors.New("missing query parameter")

	// ErrTypeMismatch is returned when an operator or function is applied
	// to a value of the wrong type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrUnknownFunction is returned for a function call the engine does
	// not implement.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrUnknownVariable is returned when an expression references a
	// column absent from the current row.
	ErrUnknownVariable = errors.New("unknown variable")

	// ErrDivisionByZero is returned for integer division or modulo by
	// zero.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrInvalidPlan is returned when a plan is structurally unsound, e.g.
	// an operator with an unconnected input or an argument whose variable
	// was never materialized.
	ErrInvalidPlan = errors.New("invalid plan")
)
