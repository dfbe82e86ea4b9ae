package lang

import (
	"fmt"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// ParseLine parses one statement. A blank or comment-only line yields a
// nil node and no error.
func ParseLine(src string) (Node, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, syntaxError(err.Error())
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return nil, nil
	}
	node, err := p.expr()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokSemicolon {
		p.next()
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %s after expression", describe(t))
	}
	return node, nil
}

// IsBlank reports whether a line holds nothing but whitespace or a comment.
func IsBlank(src string) bool {
	s := strings.TrimSpace(src)
	return s == "" || strings.HasPrefix(s, "//")
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, p.errorf(t, "expected %s, found %s", kind, describe(t))
	}
	return t, nil
}

func (p *parser) expr() (Node, error) {
	t := p.peek()
	if t.kind == tokIdent && p.peekAt(1).kind == tokArrow {
		p.next()
		p.next()
		body, err := p.expr()
		if err != nil {
			return nil, err
		}
		return &Lambda{Param: t.text, Body: body, At: t.pos}, nil
	}
	if t.kind == tokLParen && p.peekAt(1).kind == tokIdent && p.peekAt(2).kind == tokRParen && p.peekAt(3).kind == tokArrow {
		param := p.peekAt(1).text
		p.pos += 4
		body, err := p.expr()
		if err != nil {
			return nil, err
		}
		return &Lambda{Param: param, Body: body, At: t.pos}, nil
	}
	return p.chain()
}

func (p *parser) chain() (Node, error) {
	node, err := p.primary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokDot {
		p.next()
		name, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		args, err := p.args()
		if err != nil {
			return nil, err
		}
		node = &Method{Recv: node, Name: name.text, Args: args, At: name.pos}
	}
	return node, nil
}

func (p *parser) primary() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return &Number{Value: t.num, At: t.pos}, nil
	case tokString:
		return &String{Value: t.text, At: t.pos}, nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			args, err := p.args()
			if err != nil {
				return nil, err
			}
			return &Call{Name: t.text, Args: args, At: t.pos}, nil
		}
		return &Ident{Name: t.text, At: t.pos}, nil
	case tokLParen:
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return nil, p.errorf(t, "unexpected %s", describe(t))
}

func (p *parser) args() ([]Node, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	var args []Node
	if p.peek().kind == tokRParen {
		p.next()
		return args, nil
	}
	for {
		arg, err := p.expr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		t := p.next()
		switch t.kind {
		case tokComma:
			continue
		case tokRParen:
			return args, nil
		default:
			return nil, p.errorf(t, "expected ',' or ')', found %s", describe(t))
		}
	}
}

func (p *parser) errorf(t token, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return syntaxError(fmt.Sprintf("%s at column %d", msg, t.pos+1))
}

func syntaxError(msg string) error {
	return fault.New(msg,
		fmsg.WithDesc("syntax error", "Syntax error: "+msg),
		ftag.With(ftag.InvalidArgument),
	)
}

func describe(t token) string {
	switch t.kind {
	case tokEOF:
		return "end of line"
	case tokIdent, tokNumber:
		return fmt.Sprintf("%q", t.text)
	case tokString:
		return "string"
	}
	return t.kind.String()
}
