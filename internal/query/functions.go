package query

import (
	"math"
	"strings"
	"time"
)

// call is the evaluated invocation handed to a builtin.
type call struct {
	name   string
	args   []Value
	kwargs map[string]Value
	clock  Clock
}

type builtin func(c call) (Value, error)

var builtins = map[string]builtin{
	"before_or_on": beforeOrOn,
	"after":        after,
	"is_18":        is18,
	"value_of":     valueOf,
	"object_where": objectWhere,
	"to_datetime":  toDatetime,
	"dateTime":     toDatetime,
	"datetime":     newDatetime,
	"yearsAgo":     yearsAgo,
	"now":          now,
	"today":        today,
	"timeDelta":    timeDelta,
	"timedelta":    timeDelta,
	"len":          length,
}

// deltaUnits lists the keyword arguments accepted by delta-building helpers,
// in positional order for timeDelta.
var deltaUnits = []string{"years", "months", "days", "hours", "minutes", "seconds"}

func (c call) arity(min, max int) error {
	if len(c.args) < min || len(c.args) > max {
		if min == max {
			return typeErrorf(c.name, "takes %d argument(s), got %d", min, len(c.args))
		}
		return typeErrorf(c.name, "takes %d to %d arguments, got %d", min, max, len(c.args))
	}
	return nil
}

// delta builds a Delta from keyword arguments, plus "weeks".
func (c call) delta() (Delta, error) {
	var d Delta
	for key, raw := range c.kwargs {
		n, ok := raw.(float64)
		if !ok {
			return Delta{}, typeErrorf(c.name, "%s must be a number, got %s", key, typeName(raw))
		}
		if err := addUnit(&d, key, n); err != nil {
			return Delta{}, typeErrorf(c.name, "%v", err)
		}
	}
	return d, nil
}

func addUnit(d *Delta, unit string, n float64) error {
	whole := int(n)
	switch unit {
	case "years":
		d.Years += whole
	case "months":
		d.Months += whole
	case "weeks":
		d.Days += 7 * whole
	case "days":
		d.Days += whole
	case "hours":
		d.Duration += time.Duration(n * float64(time.Hour))
	case "minutes":
		d.Duration += time.Duration(n * float64(time.Minute))
	case "seconds":
		d.Duration += time.Duration(n * float64(time.Second))
	default:
		return execErrorf("unexpected keyword argument %q", unit)
	}
	return nil
}

// coerceTime accepts a datetime or an ISO-8601 string.
func (c call) coerceTime(v Value) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		t, err := ParseTime(x)
		if err != nil {
			return time.Time{}, typeErrorf(c.name, "%v", err)
		}
		return t, nil
	}
	return time.Time{}, typeErrorf(c.name, "expected a date, got %s", typeName(v))
}

// beforeOrOn reports whether the date lies on or before now minus the delta
// given as keyword arguments. A null date is never before anything.
func beforeOrOn(c call) (Value, error) {
	if err := c.arity(1, 1); err != nil {
		return nil, err
	}
	if c.args[0] == nil {
		return false, nil
	}
	t, err := c.coerceTime(c.args[0])
	if err != nil {
		return nil, err
	}
	d, err := c.delta()
	if err != nil {
		return nil, err
	}
	limit := d.SubtractFrom(c.clock())
	return !t.After(limit), nil
}

func after(c call) (Value, error) {
	if err := c.arity(1, 1); err != nil {
		return nil, err
	}
	if c.args[0] == nil {
		return false, nil
	}
	v, err := beforeOrOn(c)
	if err != nil {
		return nil, err
	}
	return !v.(bool), nil
}

func is18(c call) (Value, error) {
	if err := c.arity(1, 1); err != nil {
		return nil, err
	}
	return beforeOrOn(call{name: c.name, args: c.args, kwargs: map[string]Value{"years": float64(18)}, clock: c.clock})
}

// valueOf walks a dot separated path through nested objects and returns the
// default when any segment is missing.
func valueOf(c call) (Value, error) {
	if err := c.arity(2, 3); err != nil {
		return nil, err
	}
	path, ok := c.args[1].(string)
	if !ok {
		return nil, typeErrorf(c.name, "path must be a string, got %s", typeName(c.args[1]))
	}
	var fallback Value
	if len(c.args) == 3 {
		fallback = c.args[2]
	}

	current := c.args[0]
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return fallback, nil
		}
		next, ok := m[part]
		if !ok {
			return fallback, nil
		}
		current = next
	}
	return current, nil
}

// objectWhere returns the first object in the array whose fields equal
// every entry of the query object, or null.
func objectWhere(c call) (Value, error) {
	if err := c.arity(2, 2); err != nil {
		return nil, err
	}
	q, ok := c.args[1].(map[string]any)
	if !ok {
		return nil, typeErrorf(c.name, "query must be an object, got %s", typeName(c.args[1]))
	}

	var list []any
	switch x := c.args[0].(type) {
	case nil:
		return nil, nil
	case []any:
		list = x
	default:
		return nil, typeErrorf(c.name, "expected an array, got %s", typeName(c.args[0]))
	}

	for _, elem := range list {
		obj, ok := elem.(map[string]any)
		if !ok {
			continue
		}
		if matches(obj, q) {
			return obj, nil
		}
	}
	return nil, nil
}

func matches(obj, q map[string]any) bool {
	for k, want := range q {
		got, ok := obj[k]
		if !ok || !equal(got, want) {
			return false
		}
	}
	return true
}

func toDatetime(c call) (Value, error) {
	if err := c.arity(1, 1); err != nil {
		return nil, err
	}
	s, ok := c.args[0].(string)
	if !ok {
		return nil, typeErrorf(c.name, "expected a string, got %s", typeName(c.args[0]))
	}
	t, err := ParseTime(s)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// newDatetime builds a UTC datetime from year, month, day and optional
// hour, minute and second.
func newDatetime(c call) (Value, error) {
	if err := c.arity(3, 6); err != nil {
		return nil, err
	}
	parts := [6]int{0, 1, 1, 0, 0, 0}
	for i, a := range c.args {
		n, ok := a.(float64)
		if !ok || n != math.Trunc(n) {
			return nil, typeErrorf(c.name, "argument %d must be an integer, got %s", i+1, typeName(a))
		}
		parts[i] = int(n)
	}
	return time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], 0, time.UTC), nil
}

// yearsAgo counts the whole years elapsed between the date and today.
func yearsAgo(c call) (Value, error) {
	if err := c.arity(1, 1); err != nil {
		return nil, err
	}
	t, err := c.coerceTime(c.args[0])
	if err != nil {
		return nil, err
	}
	today := c.clock()
	years := today.Year() - t.Year()
	if today.Month() < t.Month() || (today.Month() == t.Month() && today.Day() < t.Day()) {
		years--
	}
	return float64(years), nil
}

func now(c call) (Value, error) {
	if err := c.arity(0, 0); err != nil {
		return nil, err
	}
	return c.clock(), nil
}

func today(c call) (Value, error) {
	if err := c.arity(0, 0); err != nil {
		return nil, err
	}
	t := c.clock()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()), nil
}

// timeDelta accepts (years, months, days, hours, minutes, seconds)
// positionally, as keywords, or mixed.
func timeDelta(c call) (Value, error) {
	if err := c.arity(0, len(deltaUnits)); err != nil {
		return nil, err
	}
	d, err := c.delta()
	if err != nil {
		return nil, err
	}
	for i, a := range c.args {
		n, ok := a.(float64)
		if !ok {
			return nil, typeErrorf(c.name, "%s must be a number, got %s", deltaUnits[i], typeName(a))
		}
		if err := addUnit(&d, deltaUnits[i], n); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func length(c call) (Value, error) {
	if err := c.arity(1, 1); err != nil {
		return nil, err
	}
	switch x := c.args[0].(type) {
	case nil:
		return float64(0), nil
	case []any:
		return float64(len(x)), nil
	case map[string]any:
		return float64(len(x)), nil
	case string:
		return float64(len([]rune(x))), nil
	}
	return nil, typeErrorf(c.name, "object of type %s has no length", typeName(c.args[0]))
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime parses ISO-8601 dates and datetimes. Values without a zone are
// taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, execErrorf("invalid ISO-8601 value %q", s)
}
