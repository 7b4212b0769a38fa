package cypher

import "errors"

// Front-end error types
var (
	ErrSyntax     = errors.New("syntax error")
	ErrEmptyQuery = errors.New("empty query")
)
