package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAssertNotNil(t *testing.T) {
	t.Parallel()

	var missing *int
	value := 1

	assert.PanicsWithValue(t, "engine cannot be nil", func() { AssertNotNil(missing, "engine") })
	assert.NotPanics(t, func() { AssertNotNil(&value, "engine") })
}

func TestAssertPositive(t *testing.T) {
	t.Parallel()

	assert.PanicsWithValue(t, "interval must be positive, got 0s", func() { AssertPositive(time.Duration(0), "interval") })
	assert.Panics(t, func() { AssertPositive(-1, "capacity") })
	assert.NotPanics(t, func() { AssertPositive(time.Second, "interval") })
}
