package query

import (
	"math"
	"strings"
	"time"
)

type node interface {
	eval(s *scope) (Value, error)
}

// scope carries the evaluation state. current is only meaningful while a
// filter predicate is being evaluated.
type scope struct {
	root       Value
	current    Value
	hasCurrent bool
	clock      Clock
}

func (s *scope) withCurrent(v Value) *scope {
	c := *s
	c.current = v
	c.hasCurrent = true
	return &c
}

type literalNode struct {
	value Value
	// bare marks an unquoted identifier used as a string literal.
	bare bool
}

func (n *literalNode) eval(*scope) (Value, error) { return n.value, nil }

type rootNode struct{}

func (n *rootNode) eval(s *scope) (Value, error) { return s.root, nil }

type currentNode struct{}

func (n *currentNode) eval(s *scope) (Value, error) {
	if !s.hasCurrent {
		return nil, execErrorf("'@' used outside of a filter")
	}
	return s.current, nil
}

type nameNode struct {
	target node
	name   string
}

func (n *nameNode) eval(s *scope) (Value, error) {
	target, err := n.target.eval(s)
	if err != nil {
		return nil, err
	}
	return selectName(target, n.name), nil
}

// selectName looks a key up in an object. Over an array it maps the lookup
// across object elements, flattening array results one level and dropping
// missing entries.
func selectName(target Value, name string) Value {
	switch t := target.(type) {
	case map[string]any:
		return t[name]
	case []any:
		out := make([]any, 0, len(t))
		for _, elem := range t {
			m, ok := elem.(map[string]any)
			if !ok {
				continue
			}
			v, ok := m[name]
			if !ok || v == nil {
				continue
			}
			if list, ok := v.([]any); ok {
				out = append(out, list...)
				continue
			}
			out = append(out, v)
		}
		return out
	}
	return nil
}

type wildcardNode struct {
	target node
}

func (n *wildcardNode) eval(s *scope) (Value, error) {
	target, err := n.target.eval(s)
	if err != nil {
		return nil, err
	}
	switch t := target.(type) {
	case map[string]any:
		out := make([]any, 0, len(t))
		for _, k := range sortedKeys(t) {
			out = append(out, t[k])
		}
		return out, nil
	case []any:
		return t, nil
	}
	return []any{}, nil
}

type indexNode struct {
	target node
	index  int
}

func (n *indexNode) eval(s *scope) (Value, error) {
	target, err := n.target.eval(s)
	if err != nil {
		return nil, err
	}
	list, ok := target.([]any)
	if !ok {
		return nil, nil
	}
	i := n.index
	if i < 0 {
		i += len(list)
	}
	if i < 0 || i >= len(list) {
		return nil, nil
	}
	return list[i], nil
}

// badSelectorNode is a "[...]" literal that selects neither an index, a key
// nor a filter. It fails when evaluated.
type badSelectorNode struct {
	msg string
}

func (n *badSelectorNode) eval(*scope) (Value, error) {
	return nil, execErrorf("invalid selector: %s", n.msg)
}

type filterNode struct {
	target    node
	predicate node
}

// eval always yields an array. An object target is filtered as a
// single-element array; any other target yields an empty array.
func (n *filterNode) eval(s *scope) (Value, error) {
	target, err := n.target.eval(s)
	if err != nil {
		return nil, err
	}

	var elems []any
	switch t := target.(type) {
	case []any:
		elems = t
	case map[string]any:
		elems = []any{t}
	default:
		return []any{}, nil
	}

	out := make([]any, 0, len(elems))
	for _, elem := range elems {
		v, err := n.predicate.eval(s.withCurrent(elem))
		if err != nil {
			return nil, err
		}
		if Truthy(v) {
			out = append(out, elem)
		}
	}
	return out, nil
}

type listNode struct {
	items []node
}

func (n *listNode) eval(s *scope) (Value, error) {
	out := make([]any, 0, len(n.items))
	for _, item := range n.items {
		v, err := item.eval(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

type objectNode struct {
	keys   []string
	values []node
}

func (n *objectNode) eval(s *scope) (Value, error) {
	out := make(map[string]any, len(n.keys))
	for i, key := range n.keys {
		v, err := n.values[i].eval(s)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

type notNode struct {
	operand node
}

func (n *notNode) eval(s *scope) (Value, error) {
	v, err := n.operand.eval(s)
	if err != nil {
		return nil, err
	}
	return !Truthy(v), nil
}

type andNode struct {
	left, right node
}

func (n *andNode) eval(s *scope) (Value, error) {
	l, err := n.left.eval(s)
	if err != nil {
		return nil, err
	}
	if !Truthy(l) {
		return false, nil
	}
	r, err := n.right.eval(s)
	if err != nil {
		return nil, err
	}
	return Truthy(r), nil
}

type orNode struct {
	left, right node
}

func (n *orNode) eval(s *scope) (Value, error) {
	l, err := n.left.eval(s)
	if err != nil {
		return nil, err
	}
	if Truthy(l) {
		return true, nil
	}
	r, err := n.right.eval(s)
	if err != nil {
		return nil, err
	}
	return Truthy(r), nil
}

type compareOp int

const (
	opEq compareOp = iota
	opNeq
	opLt
	opGt
	opLe
	opGe
	opIn
	opNotIn
)

type compareNode struct {
	op          compareOp
	left, right node
}

func (n *compareNode) eval(s *scope) (Value, error) {
	l, err := n.left.eval(s)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(s)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case opEq:
		return equal(l, r), nil
	case opNeq:
		return !equal(l, r), nil
	case opIn:
		return contains(r, l)
	case opNotIn:
		found, err := contains(r, l)
		if err != nil {
			return nil, err
		}
		return !found, nil
	}
	return order(n.op, l, r)
}

// contains implements "needle in haystack".
func contains(haystack, needle Value) (bool, error) {
	switch h := haystack.(type) {
	case nil:
		return false, nil
	case []any:
		for _, e := range h {
			if equal(e, needle) {
				return true, nil
			}
		}
		return false, nil
	case map[string]any:
		key, ok := needle.(string)
		if !ok {
			return false, nil
		}
		_, found := h[key]
		return found, nil
	case string:
		sub, ok := needle.(string)
		if !ok {
			return false, execErrorf("cannot search %s in string", typeName(needle))
		}
		return strings.Contains(h, sub), nil
	}
	return false, execErrorf("'in' requires an array, object or string, got %s", typeName(haystack))
}

// order evaluates <, >, <= and >=. A null operand never satisfies an
// ordering; other mismatched kinds are an execution error.
func order(op compareOp, l, r Value) (Value, error) {
	if l == nil || r == nil {
		return false, nil
	}

	var cmp int
	switch x := l.(type) {
	case float64:
		y, ok := r.(float64)
		if !ok {
			return nil, mismatch(l, r)
		}
		cmp = compareFloat(x, y)
	case string:
		y, ok := r.(string)
		if !ok {
			return nil, mismatch(l, r)
		}
		cmp = strings.Compare(x, y)
	case time.Time:
		y, ok := r.(time.Time)
		if !ok {
			return nil, mismatch(l, r)
		}
		cmp = x.Compare(y)
	default:
		return nil, mismatch(l, r)
	}

	switch op {
	case opLt:
		return cmp < 0, nil
	case opGt:
		return cmp > 0, nil
	case opLe:
		return cmp <= 0, nil
	default:
		return cmp >= 0, nil
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func mismatch(l, r Value) error {
	return execErrorf("cannot compare %s with %s", typeName(l), typeName(r))
}

type arithOp int

const (
	opAdd arithOp = iota
	opSub
	opMul
	opDiv
	opMod
)

var arithSymbols = map[arithOp]string{opAdd: "+", opSub: "-", opMul: "*", opDiv: "/", opMod: "%"}

type arithNode struct {
	op          arithOp
	left, right node
}

func (n *arithNode) eval(s *scope) (Value, error) {
	l, err := n.left.eval(s)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(s)
	if err != nil {
		return nil, err
	}
	return arithmetic(n.op, l, r)
}

func arithmetic(op arithOp, l, r Value) (Value, error) {
	switch x := l.(type) {
	case float64:
		if y, ok := r.(float64); ok {
			return numeric(op, x, y)
		}
	case string:
		if y, ok := r.(string); ok && op == opAdd {
			return x + y, nil
		}
	case []any:
		if y, ok := r.([]any); ok && op == opAdd {
			out := make([]any, 0, len(x)+len(y))
			return append(append(out, x...), y...), nil
		}
	case time.Time:
		switch y := r.(type) {
		case Delta:
			if op == opAdd {
				return y.AddTo(x), nil
			}
			if op == opSub {
				return y.SubtractFrom(x), nil
			}
		case time.Time:
			if op == opSub {
				return Delta{Duration: x.Sub(y)}, nil
			}
		}
	case Delta:
		switch y := r.(type) {
		case Delta:
			if op == opAdd {
				return x.plus(y), nil
			}
			if op == opSub {
				return x.plus(y.Negate()), nil
			}
		case time.Time:
			if op == opAdd {
				return x.AddTo(y), nil
			}
		}
	}
	return nil, execErrorf("unsupported operands for %s: %s and %s", arithSymbols[op], typeName(l), typeName(r))
}

func numeric(op arithOp, x, y float64) (Value, error) {
	switch op {
	case opAdd:
		return x + y, nil
	case opSub:
		return x - y, nil
	case opMul:
		return x * y, nil
	case opDiv:
		if y == 0 {
			return nil, execErrorf("division by zero")
		}
		return x / y, nil
	default:
		if y == 0 {
			return nil, execErrorf("modulo by zero")
		}
		return math.Mod(x, y), nil
	}
}

type negNode struct {
	operand node
}

func (n *negNode) eval(s *scope) (Value, error) {
	v, err := n.operand.eval(s)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case float64:
		return -x, nil
	case Delta:
		return x.Negate(), nil
	}
	return nil, execErrorf("cannot negate %s", typeName(v))
}

type kwarg struct {
	name  string
	value node
}

type callNode struct {
	name   string
	args   []node
	kwargs []kwarg
}

func (n *callNode) eval(s *scope) (Value, error) {
	fn, ok := builtins[n.name]
	if !ok {
		return nil, execErrorf("unknown function %s", n.name)
	}

	args := make([]Value, 0, len(n.args))
	for _, a := range n.args {
		v, err := a.eval(s)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	var kwargs map[string]Value
	if len(n.kwargs) > 0 {
		kwargs = make(map[string]Value, len(n.kwargs))
		for _, kw := range n.kwargs {
			v, err := kw.value.eval(s)
			if err != nil {
				return nil, err
			}
			kwargs[kw.name] = v
		}
	}

	return fn(call{name: n.name, args: args, kwargs: kwargs, clock: s.clock})
}
