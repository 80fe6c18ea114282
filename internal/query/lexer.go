package query

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokDollar
	tokAt
	tokDot
	tokStar
	tokLBracket
	tokRBracket
	tokLParen
	tokRParen
	tokLBrace
	tokRBrace
	tokComma
	tokColon
	tokEq
	tokNeq
	tokLt
	tokGt
	tokLe
	tokGe
	tokPlus
	tokMinus
	tokSlash
	tokPercent
)

var tokenNames = map[tokenKind]string{
	tokEOF:      "end of expression",
	tokIdent:    "identifier",
	tokString:   "string",
	tokNumber:   "number",
	tokDollar:   "'$'",
	tokAt:       "'@'",
	tokDot:      "'.'",
	tokStar:     "'*'",
	tokLBracket: "'['",
	tokRBracket: "']'",
	tokLParen:   "'('",
	tokRParen:   "')'",
	tokLBrace:   "'{'",
	tokRBrace:   "'}'",
	tokComma:    "','",
	tokColon:    "':'",
	tokEq:       "'='",
	tokNeq:      "'!='",
	tokLt:       "'<'",
	tokGt:       "'>'",
	tokLe:       "'<='",
	tokGe:       "'>='",
	tokPlus:     "'+'",
	tokMinus:    "'-'",
	tokSlash:    "'/'",
	tokPercent:  "'%'",
}

func (k tokenKind) String() string {
	return tokenNames[k]
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lex splits an expression into tokens. The returned slice always ends
// with a tokEOF token.
func lex(src string) ([]token, error) {
	var tokens []token
	i := 0

	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])

		switch {
		case unicode.IsSpace(r):
			i += size
			continue

		case r == '\'' || r == '"':
			text, next, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokString, text: text, pos: i})
			i = next
			continue

		case isDigit(r):
			start := i
			for i < len(src) && isDigit(rune(src[i])) {
				i++
			}
			// A fraction needs a digit after the dot so that "1.foo" stays navigable.
			if i+1 < len(src) && src[i] == '.' && isDigit(rune(src[i+1])) {
				i++
				for i < len(src) && isDigit(rune(src[i])) {
					i++
				}
			}
			tokens = append(tokens, token{kind: tokNumber, text: src[start:i], pos: start})
			continue

		case isIdentStart(r):
			start := i
			for i < len(src) {
				r, size := utf8.DecodeRuneInString(src[i:])
				if !isIdentPart(r) {
					break
				}
				i += size
			}
			tokens = append(tokens, token{kind: tokIdent, text: src[start:i], pos: start})
			continue
		}

		kind, width := lexOperator(src[i:])
		if width == 0 {
			return nil, &SyntaxError{Expr: src, Pos: i, Msg: "unexpected character " + string(r)}
		}
		tokens = append(tokens, token{kind: kind, text: src[i : i+width], pos: i})
		i += width
	}

	return append(tokens, token{kind: tokEOF, pos: len(src)}), nil
}

func lexOperator(s string) (tokenKind, int) {
	if len(s) >= 2 {
		switch s[:2] {
		case "==":
			return tokEq, 2
		case "!=":
			return tokNeq, 2
		case "<=":
			return tokLe, 2
		case ">=":
			return tokGe, 2
		}
	}

	switch s[0] {
	case '$':
		return tokDollar, 1
	case '@':
		return tokAt, 1
	case '.':
		return tokDot, 1
	case '*':
		return tokStar, 1
	case '[':
		return tokLBracket, 1
	case ']':
		return tokRBracket, 1
	case '(':
		return tokLParen, 1
	case ')':
		return tokRParen, 1
	case '{':
		return tokLBrace, 1
	case '}':
		return tokRBrace, 1
	case ',':
		return tokComma, 1
	case ':':
		return tokColon, 1
	case '=':
		return tokEq, 1
	case '<':
		return tokLt, 1
	case '>':
		return tokGt, 1
	case '+':
		return tokPlus, 1
	case '-':
		return tokMinus, 1
	case '/':
		return tokSlash, 1
	case '%':
		return tokPercent, 1
	}
	return tokEOF, 0
}

// lexString reads a quoted string starting at src[start] and returns its
// unescaped content and the index just past the closing quote.
func lexString(src string, start int) (string, int, error) {
	quote := src[start]
	var b strings.Builder

	for i := start + 1; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '\\' && i+1 < len(src):
			i++
			switch src[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(src[i])
			}
		case c == quote:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
		}
	}

	return "", 0, &SyntaxError{Expr: src, Pos: start, Msg: "unterminated string"}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
