package ruleengine

import (
	"fmt"
	"slices"
	"sort"

	"github.com/rafaeljc/tipsengine/internal/query"
)

// CompileTable checks the compound rule table for dangling references,
// reference cycles and expressions that do not compile. It must be called when a table is loaded, before it is
// used for evaluation.
func CompileTable(table Table) error {
	ids := make([]string, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w := &graphWalker{table: table, done: make(map[string]bool, len(table))}
	for _, id := range ids {
		if err := w.visit(id); err != nil {
			return fmt.Errorf("failed to compile compound rule %q: %w", id, err)
		}
	}
	return nil
}

// ValidateRules checks that every reference reachable from rules resolves,
// that none of them closes a cycle and that every expression compiles.
func ValidateRules(rules RuleList, table Table) error {
	w := &graphWalker{table: table, done: make(map[string]bool)}
	return w.visitList(rules)
}

// graphWalker is a depth-first walk over reference nodes. done marks ids
// whose whole subgraph has already been checked.
type graphWalker struct {
	table Table
	stack []string
	done  map[string]bool
}

func (w *graphWalker) visitList(rules RuleList) error {
	for _, node := range rules {
		switch node.Type {
		case NodeTypeExpression:
			if _, err := query.Compile(node.Rule); err != nil {
				return fmt.Errorf("%w %q: %w", ErrInvalidExpression, node.Rule, err)
			}
		case NodeTypeReference:
			if err := w.visit(node.RefID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *graphWalker) visit(id string) error {
	if i := slices.Index(w.stack, id); i >= 0 {
		return &CycleError{Path: append(slices.Clone(w.stack[i:]), id)}
	}
	if w.done[id] {
		return nil
	}

	entry, ok := w.table[id]
	if !ok {
		return &UnknownReferenceError{RefID: id}
	}

	w.stack = append(w.stack, id)
	err := w.visitList(entry.Rules)
	w.stack = w.stack[:len(w.stack)-1]
	if err != nil {
		return err
	}

	w.done[id] = true
	return nil
}
