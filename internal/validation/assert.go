// Package validation holds constructor guards for mandatory dependencies
// and settings. Violations are wiring bugs, so the guards panic.
package validation

import (
	"cmp"
	"fmt"
)

// AssertNotNil panics with "<name> cannot be nil" when ptr is nil.
//
//	validation.AssertNotNil(engine, "rule engine")
func AssertNotNil[T any](ptr *T, name string) {
	if ptr == nil {
		panic(fmt.Sprintf("%s cannot be nil", name))
	}
}

// AssertPositive panics when v is zero or negative.
func AssertPositive[T cmp.Ordered](v T, name string) {
	var zero T
	if v <= zero {
		panic(fmt.Sprintf("%s must be positive, got %v", name, v))
	}
}
