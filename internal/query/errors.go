package query

import (
	"errors"
	"fmt"
)

var (
	// ErrExecution is matched by every failure to parse or run an expression.
	ErrExecution = errors.New("query execution failed")

	// ErrType is matched by helper functions called with arguments of the wrong shape.
	ErrType = errors.New("query helper type mismatch")
)

// SyntaxError reports an expression that could not be parsed.
type SyntaxError struct {
	Expr string
	Pos  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d in %q: %s", e.Pos, e.Expr, e.Msg)
}

// Is makes syntax errors part of the execution error class.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrExecution
}

// ExecutionError reports a runtime failure while evaluating a parsed expression,
// such as comparing incompatible values or using '@' outside a filter.
type ExecutionError struct {
	Expr string
	Msg  string
}

func (e *ExecutionError) Error() string {
	if e.Expr == "" {
		return "execution error: " + e.Msg
	}
	return fmt.Sprintf("execution error in %q: %s", e.Expr, e.Msg)
}

func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}

// TypeError reports a helper function invoked with an unsupported argument.
type TypeError struct {
	Func string
	Msg  string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Func, e.Msg)
}

func (e *TypeError) Is(target error) bool {
	return target == ErrType
}

func execErrorf(format string, args ...any) error {
	return &ExecutionError{Msg: fmt.Sprintf(format, args...)}
}

func typeErrorf(fn, format string, args ...any) error {
	return &TypeError{Func: fn, Msg: fmt.Sprintf(format, args...)}
}
