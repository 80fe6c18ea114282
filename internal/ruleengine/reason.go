package ruleengine

import (
	"slices"
)

// Reasons derives the explanation of a rule list by walking its references
// depth-first and collecting each compound rule's reason. A compound rule
// that has its own reason contributes it in place of its sub-rules.
// Expression nodes contribute nothing.
func Reasons(rules RuleList, table Table) ([]string, error) {
	c := &reasonCollector{table: table}
	if err := c.collect(rules); err != nil {
		return nil, err
	}
	return c.reasons, nil
}

type reasonCollector struct {
	table   Table
	stack   []string
	reasons []string
}

func (c *reasonCollector) collect(rules RuleList) error {
	for _, node := range rules {
		if node.Type != NodeTypeReference {
			continue
		}

		id := node.RefID
		if i := slices.Index(c.stack, id); i >= 0 {
			return &CycleError{Path: append(slices.Clone(c.stack[i:]), id)}
		}

		entry, ok := c.table[id]
		if !ok {
			return &UnknownReferenceError{RefID: id}
		}
		if entry.Reason != "" {
			c.reasons = append(c.reasons, entry.Reason)
			continue
		}

		c.stack = append(c.stack, id)
		err := c.collect(entry.Rules)
		c.stack = c.stack[:len(c.stack)-1]
		if err != nil {
			return err
		}
	}
	return nil
}
