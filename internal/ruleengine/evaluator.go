package ruleengine

import (
	"github.com/rafaeljc/tipsengine/internal/query"
)

// Evaluator is implemented by every leaf node strategy.
type Evaluator interface {
	// Eval reports whether the node holds for the tree.
	//
	// Errors matching query.ErrExecution or query.ErrType are treated by the
	// Engine as a non-match; any other error is propagated to the caller.
	Eval(node Node, tree query.Tree) (bool, error)
}

// ExpressionCache stores compiled expressions by source text.
type ExpressionCache interface {
	Get(source string) (*query.Expr, bool)
	Set(source string, expr *query.Expr)
}

// ExpressionEvaluator evaluates "rule" nodes as path-query expressions and
// coerces the result with query.Truthy.
type ExpressionEvaluator struct {
	cache ExpressionCache
	clock query.Clock
}

var _ Evaluator = (*ExpressionEvaluator)(nil)

// NewExpressionEvaluator creates an evaluator. Both cache and clock are
// optional; without a cache every expression is parsed on use.
func NewExpressionEvaluator(cache ExpressionCache, clock query.Clock) *ExpressionEvaluator {
	return &ExpressionEvaluator{cache: cache, clock: clock}
}

func (e *ExpressionEvaluator) Eval(node Node, tree query.Tree) (bool, error) {
	expr, err := e.compile(node.Rule)
	if err != nil {
		return false, err
	}

	v, err := expr.Eval(tree, query.WithClock(e.clock))
	if err != nil {
		return false, err
	}
	return query.Truthy(v), nil
}

func (e *ExpressionEvaluator) compile(source string) (*query.Expr, error) {
	if e.cache != nil {
		if expr, ok := e.cache.Get(source); ok {
			return expr, nil
		}
	}

	expr, err := query.Compile(source)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		e.cache.Set(source, expr)
	}
	return expr, nil
}
