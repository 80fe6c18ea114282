package ruleengine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownReference is matched when a reference node targets an id
	// missing from the compound rule table.
	ErrUnknownReference = errors.New("unknown compound rule reference")

	// ErrReferenceCycle is matched when reference resolution revisits an id
	// that is still being resolved.
	ErrReferenceCycle = errors.New("compound rule reference cycle")

	// ErrMalformedRules is matched when a rules field does not hold an array
	// of rule nodes.
	ErrMalformedRules = errors.New("malformed rule list")

	// ErrInvalidExpression is matched when an expression node does not
	// compile, for example because it calls an unknown helper.
	ErrInvalidExpression = errors.New("invalid rule expression")
)

// UnknownReferenceError names the missing compound rule.
type UnknownReferenceError struct {
	RefID string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownReference, e.RefID)
}

func (e *UnknownReferenceError) Unwrap() error {
	return ErrUnknownReference
}

// CycleError carries the resolution path that closed the cycle, starting
// and ending with the repeated id.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrReferenceCycle, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrReferenceCycle
}
