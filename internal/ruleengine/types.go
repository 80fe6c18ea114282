// Package ruleengine decides whether a tip's rules hold for a citizen's data.
//
// A rule list is a conjunction of nodes. Expression nodes are path-query
// expressions evaluated against the request tree; reference nodes point into
// a table of named compound rules and are resolved recursively with cycle
// detection.
package ruleengine

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Node types as they appear in the "type" discriminator.
const (
	NodeTypeExpression = "rule"
	NodeTypeReference  = "ref"
)

// Node is a single rule. Exactly one of Rule or RefID is meaningful,
// depending on Type.
type Node struct {
	// Type selects the evaluation strategy ("rule" or "ref").
	Type string `json:"type"`

	// Rule is the path-query expression of an expression node.
	Rule string `json:"rule,omitempty"`

	// RefID is the compound rule id targeted by a reference node.
	RefID string `json:"ref_id,omitempty"`
}

// Expression builds an expression node.
func Expression(expr string) Node {
	return Node{Type: NodeTypeExpression, Rule: expr}
}

// Reference builds a reference node.
func Reference(id string) Node {
	return Node{Type: NodeTypeReference, RefID: id}
}

// RuleList is an ordered conjunction of nodes.
type RuleList []Node

// UnmarshalJSON rejects anything that is not an array of node objects so
// that a malformed rules field is reported instead of silently evaluated.
func (l *RuleList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*l = nil
		return nil
	}
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return fmt.Errorf("%w: expected an array of rule nodes", ErrMalformedRules)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRules, err)
	}

	nodes := make(RuleList, 0, len(raw))
	for i, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			return fmt.Errorf("%w: node %d is not an object", ErrMalformedRules, i)
		}
		var n Node
		if err := json.Unmarshal(item, &n); err != nil {
			return fmt.Errorf("%w: node %d: %v", ErrMalformedRules, i, err)
		}
		nodes = append(nodes, n)
	}

	*l = nodes
	return nil
}

// CompoundRule is a named, reusable rule list.
type CompoundRule struct {
	Name  string   `json:"name"`
	Rules RuleList `json:"rules"`

	// Reason is the human readable explanation shown when this rule
	// contributes to a tip. Optional.
	Reason string `json:"reason,omitempty"`
}

// Table maps compound rule ids to their definitions.
type Table map[string]CompoundRule
