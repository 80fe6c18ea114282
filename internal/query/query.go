// Package query evaluates path-query expressions against a read-only tree of
// decoded JSON data.
//
// An expression navigates the tree from the root ($), filters arrays with
// predicates over the current element (@), and combines results with
// comparison, boolean and arithmetic operators and a fixed set of helper
// functions:
//
//	$.BRP.persoon.nationaliteiten[@.omschrijving is Nederlandse]
//	len($.BRP.kinderen) is 0 and is_18($.BRP.persoon.geboortedatum)
//
// Parse failures are reported as *SyntaxError, runtime failures as
// *ExecutionError; both match ErrExecution. Helpers called with arguments of
// the wrong shape return a *TypeError matching ErrType.
package query

import (
	"errors"
	"time"
)

// Clock returns the current time. Helpers that depend on "now" read it
// through the clock so that tests can freeze time.
type Clock func() time.Time

// Option configures a single evaluation.
type Option func(*scope)

// WithClock overrides the clock used by date helpers.
func WithClock(c Clock) Option {
	return func(s *scope) {
		if c != nil {
			s.clock = c
		}
	}
}

// Tree is an immutable evaluation context.
type Tree struct {
	root Value
}

// NewTree normalizes v into the evaluator's value domain. The caller's value
// is not retained.
func NewTree(v any) Tree {
	return Tree{root: normalize(v)}
}

// Root returns the normalized root value.
func (t Tree) Root() Value {
	return t.root
}

// Expr is a parsed expression, safe for concurrent use.
type Expr struct {
	source string
	root   node
}

// Compile parses an expression.
func Compile(expression string) (*Expr, error) {
	root, err := parse(expression)
	if err != nil {
		return nil, err
	}
	return &Expr{source: expression, root: root}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(expression string) *Expr {
	e, err := Compile(expression)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the source text of the expression.
func (e *Expr) String() string {
	return e.source
}

// Eval runs the expression against the tree.
func (e *Expr) Eval(tree Tree, opts ...Option) (Value, error) {
	s := &scope{root: tree.root, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	v, err := e.root.eval(s)
	if err != nil {
		var execErr *ExecutionError
		if errors.As(err, &execErr) && execErr.Expr == "" {
			execErr.Expr = e.source
		}
		return nil, err
	}
	return v, nil
}

// Evaluate compiles and runs an expression in one step.
func Evaluate(tree Tree, expression string, opts ...Option) (Value, error) {
	e, err := Compile(expression)
	if err != nil {
		return nil, err
	}
	return e.Eval(tree, opts...)
}
