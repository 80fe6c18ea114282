package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// parser is a recursive-descent parser. Precedence from lowest to highest:
// or, and, not, comparison, additive, multiplicative, unary minus, postfix.
type parser struct {
	src    string
	tokens []token
	pos    int
}

func parse(src string) (node, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{src: src, tokens: tokens}
	if p.peek().kind == tokEOF {
		return nil, p.errorf("empty expression")
	}

	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf("unexpected %s", describe(tok))
	}
	return root, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) peekAt(offset int) token {
	if p.pos+offset >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+offset]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind tokenKind) (token, error) {
	tok := p.next()
	if tok.kind != kind {
		return tok, &SyntaxError{Expr: p.src, Pos: tok.pos, Msg: "expected " + kind.String() + ", got " + describe(tok)}
	}
	return tok, nil
}

func (p *parser) isKeyword(word string) bool {
	tok := p.peek()
	return tok.kind == tokIdent && strings.EqualFold(tok.text, word)
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Expr: p.src, Pos: p.peek().pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &orNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &andNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.isKeyword("not") {
		p.next()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	for {
		op, ok := p.comparisonOperator()
		if !ok {
			return left, nil
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &compareNode{op: op, left: left, right: right}
	}
}

// comparisonOperator consumes a comparison operator if one is next.
func (p *parser) comparisonOperator() (compareOp, bool) {
	tok := p.peek()
	switch tok.kind {
	case tokEq:
		p.next()
		return opEq, true
	case tokNeq:
		p.next()
		return opNeq, true
	case tokLt:
		p.next()
		return opLt, true
	case tokGt:
		p.next()
		return opGt, true
	case tokLe:
		p.next()
		return opLe, true
	case tokGe:
		p.next()
		return opGe, true
	}

	switch {
	case p.isKeyword("is"):
		p.next()
		if p.isKeyword("not") {
			p.next()
			return opNeq, true
		}
		return opEq, true
	case p.isKeyword("in"):
		p.next()
		return opIn, true
	case p.isKeyword("not"):
		if nxt := p.peekAt(1); nxt.kind == tokIdent && strings.EqualFold(nxt.text, "in") {
			p.next()
			p.next()
			return opNotIn, true
		}
	}
	return 0, false
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op arithOp
		switch p.peek().kind {
		case tokPlus:
			op = opAdd
		case tokMinus:
			op = opSub
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &arithNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op arithOp
		switch p.peek().kind {
		case tokStar:
			op = opMul
		case tokSlash:
			op = opDiv
		case tokPercent:
			op = opMod
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &arithNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokMinus {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if lit, ok := operand.(*literalNode); ok {
			if n, ok := lit.value.(float64); ok {
				return &literalNode{value: -n}, nil
			}
		}
		return &negNode{operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, error) {
	target, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch p.peek().kind {
		case tokDot:
			p.next()
			tok := p.next()
			switch tok.kind {
			case tokIdent, tokString:
				target = &nameNode{target: target, name: tok.text}
			case tokStar:
				target = &wildcardNode{target: target}
			default:
				return nil, &SyntaxError{Expr: p.src, Pos: tok.pos, Msg: "expected name after '.', got " + describe(tok)}
			}

		case tokLBracket:
			p.next()
			selector, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRBracket); err != nil {
				return nil, err
			}
			target = newSelector(target, selector)

		default:
			return target, nil
		}
	}
}

// newSelector decides between index, key and filter semantics for "[...]".
func newSelector(target, selector node) node {
	if lit, ok := selector.(*literalNode); ok {
		switch v := lit.value.(type) {
		case float64:
			if v != math.Trunc(v) {
				return &badSelectorNode{msg: fmt.Sprintf("index %s is not an integer", formatNumber(v))}
			}
			return &indexNode{target: target, index: int(v)}
		case string:
			if !lit.bare {
				return &nameNode{target: target, name: v}
			}
		case bool, nil:
			return &badSelectorNode{msg: fmt.Sprintf("%s is not a valid selector", typeName(v))}
		}
	}
	return &filterNode{target: target, predicate: selector}
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.next()

	switch tok.kind {
	case tokDollar:
		return &rootNode{}, nil

	case tokAt:
		return &currentNode{}, nil

	case tokNumber:
		n, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, &SyntaxError{Expr: p.src, Pos: tok.pos, Msg: "invalid number " + tok.text}
		}
		return &literalNode{value: n}, nil

	case tokString:
		return &literalNode{value: tok.text}, nil

	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.parseCall(tok)
		}
		switch strings.ToLower(tok.text) {
		case "true":
			return &literalNode{value: true}, nil
		case "false":
			return &literalNode{value: false}, nil
		case "null", "none":
			return &literalNode{value: nil}, nil
		}
		return &literalNode{value: tok.text, bare: true}, nil

	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return inner, nil

	case tokLBracket:
		return p.parseList()

	case tokLBrace:
		return p.parseObject()
	}

	return nil, &SyntaxError{Expr: p.src, Pos: tok.pos, Msg: "unexpected " + describe(tok)}
}

func (p *parser) parseCall(name token) (node, error) {
	if _, ok := builtins[name.text]; !ok {
		return nil, &SyntaxError{Expr: p.src, Pos: name.pos, Msg: "unknown function " + name.text}
	}
	p.next() // (
	call := &callNode{name: name.text}

	for p.peek().kind != tokRParen {
		if len(call.args) > 0 || len(call.kwargs) > 0 {
			if _, err := p.expect(tokComma); err != nil {
				return nil, err
			}
		}

		if p.peek().kind == tokIdent && p.peekAt(1).kind == tokEq {
			key := p.next().text
			p.next() // =
			value, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			call.kwargs = append(call.kwargs, kwarg{name: key, value: value})
			continue
		}

		if len(call.kwargs) > 0 {
			return nil, p.errorf("positional argument follows keyword argument")
		}
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		call.args = append(call.args, arg)
	}

	p.next() // )
	return call, nil
}

func (p *parser) parseList() (node, error) {
	list := &listNode{}
	for p.peek().kind != tokRBracket {
		if len(list.items) > 0 {
			if _, err := p.expect(tokComma); err != nil {
				return nil, err
			}
		}
		item, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		list.items = append(list.items, item)
	}
	p.next()
	return list, nil
}

func (p *parser) parseObject() (node, error) {
	obj := &objectNode{}
	for p.peek().kind != tokRBrace {
		if len(obj.keys) > 0 {
			if _, err := p.expect(tokComma); err != nil {
				return nil, err
			}
		}

		key := p.next()
		if key.kind != tokString && key.kind != tokIdent {
			return nil, &SyntaxError{Expr: p.src, Pos: key.pos, Msg: "expected object key, got " + describe(key)}
		}
		if _, err := p.expect(tokColon); err != nil {
			return nil, err
		}
		value, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		obj.keys = append(obj.keys, key.text)
		obj.values = append(obj.values, value)
	}
	p.next()
	return obj, nil
}

func describe(tok token) string {
	if tok.kind == tokEOF {
		return tok.kind.String()
	}
	return strconv.Quote(tok.text)
}
