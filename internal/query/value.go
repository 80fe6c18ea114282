package query

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"time"
)

// Value is any value an expression can produce: nil, bool, float64, string,
// []any, map[string]any, time.Time or Delta.
type Value = any

// Delta is a calendar-aware duration. Years, months and days are applied
// with time.AddDate, the remainder with time.Add.
type Delta struct {
	Years    int
	Months   int
	Days     int
	Duration time.Duration
}

// AddTo shifts t forward by the delta.
func (d Delta) AddTo(t time.Time) time.Time {
	return t.AddDate(d.Years, d.Months, d.Days).Add(d.Duration)
}

// SubtractFrom shifts t backward by the delta.
func (d Delta) SubtractFrom(t time.Time) time.Time {
	return d.Negate().AddTo(t)
}

func (d Delta) Negate() Delta {
	return Delta{Years: -d.Years, Months: -d.Months, Days: -d.Days, Duration: -d.Duration}
}

func (d Delta) plus(o Delta) Delta {
	return Delta{
		Years:    d.Years + o.Years,
		Months:   d.Months + o.Months,
		Days:     d.Days + o.Days,
		Duration: d.Duration + o.Duration,
	}
}

// Truthy coerces an evaluation result to a boolean: null, false, zero, the
// empty string and empty collections are false; everything else is true.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	case time.Time:
		return !x.IsZero()
	case Delta:
		return x != Delta{}
	}
	return true
}

// normalize converts an arbitrary decoded value into the evaluator's value
// domain. Integers and json.Number become float64; typed slices and string
// keyed maps are converted element by element.
func normalize(v any) any {
	switch x := v.(type) {
	case nil, bool, float64, string, time.Time, Delta:
		return x
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = normalize(iter.Value().Interface())
		}
		return out
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	}
	return v
}

// sortedKeys returns map keys in lexical order so that wildcard and
// enumeration results are deterministic.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// equal compares two values. Values of different kinds are unequal, except
// that a number compares equal to a string holding the same number.
func equal(a, b Value) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case float64:
		switch y := b.(type) {
		case float64:
			return x == y
		case string:
			return formatNumber(x) == y
		}
		return false
	case string:
		switch y := b.(type) {
		case string:
			return x == y
		case float64:
			return x == formatNumber(y)
		}
		return false
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case Delta:
		y, ok := b.(Delta)
		return ok && x == y
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !equal(xv, yv) {
				return false
			}
		}
		return true
	}
	return false
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func typeName(v Value) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case time.Time:
		return "datetime"
	case Delta:
		return "timedelta"
	}
	return fmt.Sprintf("%T", v)
}
