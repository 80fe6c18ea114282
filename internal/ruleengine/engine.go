package ruleengine

import (
	"errors"
	"log/slog"
	"slices"

	"github.com/rafaeljc/tipsengine/internal/query"
)

// Engine resolves rule lists against a data tree.
type Engine struct {
	strategies map[string]Evaluator
	logger     *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithEvaluator registers the strategy for a leaf node type, replacing any
// existing one. The "ref" type is always resolved by the Engine itself.
func WithEvaluator(nodeType string, ev Evaluator) Option {
	return func(e *Engine) {
		e.strategies[nodeType] = ev
	}
}

// New creates an Engine. Expression nodes use an uncached
// ExpressionEvaluator on the wall clock unless overridden with WithEvaluator.
// If logger is nil, it defaults to slog.Default().
func New(logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		logger: logger,
		strategies: map[string]Evaluator{
			NodeTypeExpression: NewExpressionEvaluator(nil, nil),
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply reports whether every node in rules holds. An empty list holds.
//
// Every node is resolved even after a miss, so configuration defects
// anywhere in the reachable graph surface as *UnknownReferenceError or
// *CycleError instead of being hidden by an earlier false.
func (e *Engine) Apply(tree query.Tree, rules RuleList, table Table) (bool, error) {
	r := &resolver{engine: e, tree: tree, table: table}
	return r.all(rules)
}

// resolver holds the per-call resolution stack used for cycle detection.
type resolver struct {
	engine *Engine
	tree   query.Tree
	table  Table
	stack  []string
}

func (r *resolver) all(rules RuleList) (bool, error) {
	result := true
	for _, node := range rules {
		ok, err := r.one(node)
		if err != nil {
			return false, err
		}
		result = result && ok
	}
	return result, nil
}

func (r *resolver) one(node Node) (bool, error) {
	if node.Type == NodeTypeReference {
		return r.reference(node.RefID)
	}

	strategy, exists := r.engine.strategies[node.Type]
	if !exists {
		r.engine.logger.Warn("unknown rule node type treated as non-match",
			slog.String("type", node.Type),
		)
		return false, nil
	}

	match, err := strategy.Eval(node, r.tree)
	switch {
	case err == nil:
		return match, nil
	case errors.Is(err, query.ErrType):
		r.engine.logger.Warn("rule helper misuse treated as non-match",
			slog.String("expression", node.Rule),
			slog.Any("error", err),
		)
		return false, nil
	case errors.Is(err, query.ErrExecution):
		r.engine.logger.Debug("rule expression failed",
			slog.String("expression", node.Rule),
			slog.Any("error", err),
		)
		return false, nil
	default:
		return false, err
	}
}

func (r *resolver) reference(id string) (bool, error) {
	if i := slices.Index(r.stack, id); i >= 0 {
		path := append(slices.Clone(r.stack[i:]), id)
		return false, &CycleError{Path: path}
	}

	entry, ok := r.table[id]
	if !ok {
		return false, &UnknownReferenceError{RefID: id}
	}

	r.stack = append(r.stack, id)
	defer func() { r.stack = r.stack[:len(r.stack)-1] }()

	return r.all(entry.Rules)
}
