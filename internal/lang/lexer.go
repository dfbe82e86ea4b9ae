package lang

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokLParen
	tokRParen
	tokComma
	tokDot
	tokArrow
	tokSemicolon
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of line"
	case tokIdent:
		return "identifier"
	case tokNumber:
		return "number"
	case tokString:
		return "string"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	case tokDot:
		return "'.'"
	case tokArrow:
		return "'=>'"
	case tokSemicolon:
		return "';'"
	}
	return "token"
}

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

func tokenize(src string) ([]token, error) {
	var out []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			i = len(src)
		case c == '(':
			out = append(out, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			out = append(out, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == ',':
			out = append(out, token{kind: tokComma, text: ",", pos: i})
			i++
		case c == ';':
			out = append(out, token{kind: tokSemicolon, text: ";", pos: i})
			i++
		case c == '=' && i+1 < len(src) && src[i+1] == '>':
			out = append(out, token{kind: tokArrow, text: "=>", pos: i})
			i += 2
		case c == '.' && !(i+1 < len(src) && isDigit(src[i+1])):
			out = append(out, token{kind: tokDot, text: ".", pos: i})
			i++
		case c == '"' || c == '\'' || c == '`':
			end := strings.IndexByte(src[i+1:], c)
			if end < 0 {
				return nil, fmt.Errorf("unterminated string at column %d", i+1)
			}
			out = append(out, token{kind: tokString, text: src[i+1 : i+1+end], pos: i})
			i += end + 2
		case isDigit(c) || c == '.' || (c == '-' && i+1 < len(src) && (isDigit(src[i+1]) || src[i+1] == '.')):
			start := i
			i++
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				i++
			}
			v, err := strconv.ParseFloat(src[start:i], 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %q at column %d", src[start:i], start+1)
			}
			out = append(out, token{kind: tokNumber, text: src[start:i], num: v, pos: start})
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			out = append(out, token{kind: tokIdent, text: src[start:i], pos: start})
		default:
			return nil, fmt.Errorf("unexpected character %q at column %d", c, i+1)
		}
	}
	out = append(out, token{kind: tokEOF, pos: len(src)})
	return out, nil
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || c == '$' || (c|0x20 >= 'a' && c|0x20 <= 'z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }

// StripComment removes a trailing // comment that is not inside a string.
func StripComment(src string) string {
	var quote byte
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			return src[:i]
		}
	}
	return src
}
