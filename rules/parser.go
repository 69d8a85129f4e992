package rules

import (
	"fmt"

	"github.com/ftahirops/dxagent/model"
)

// ParseError describes a syntax error in a rule expression.
type ParseError struct {
	Expr string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("rules: parse %q: %v", e.Expr, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// parser is a recursive-descent parser over the token stream produced by
// lexer, implementing the grammar:
//
//	expr     := or_expr
//	or_expr  := and_expr ('or' and_expr)*
//	and_expr := not_expr ('and' not_expr)*
//	not_expr := 'not' not_expr | cmp
//	cmp      := term (cmpop term)?
//	term     := NUMBER | STRING | IDENT ('.' IDENT)* call?
type parser struct {
	lex *lexer
	tok token
	err error
}

// Parse compiles a rule expression string into a model.Expr. It does not
// validate identifiers against a registry — callers needing load-time
// whitelisting should use Compile, which does.
func Parse(src string) (model.Expr, error) {
	n, _, err := parse(src)
	if err != nil {
		return nil, err
	}
	return exprNode{n: n}, nil
}

// Compile parses src and rejects the rule unless every identifier it
// references is present in allowed (the owner class's registered metric
// names). This is the load-time whitelist: identifiers are never resolved
// or validated at evaluation time.
func Compile(src string, allowed map[string]struct{}) (model.Expr, error) {
	n, idents, err := parse(src)
	if err != nil {
		return nil, err
	}
	for name := range idents {
		if _, ok := allowed[name]; !ok {
			return nil, &ParseError{Expr: src, Err: fmt.Errorf("unknown identifier %q", name)}
		}
	}
	return exprNode{n: n}, nil
}

func parse(src string) (node, map[string]struct{}, error) {
	p := &parser{lex: newLexer(src)}
	p.advance()
	n, err := p.parseOr()
	if err != nil {
		return nil, nil, &ParseError{Expr: src, Err: err}
	}
	if p.tok.kind != tokEOF {
		return nil, nil, &ParseError{Expr: src, Err: fmt.Errorf("unexpected trailing input")}
	}
	idents := make(map[string]struct{})
	n.idents(idents)
	return n, idents, nil
}

func (p *parser) advance() {
	if p.err != nil {
		return
	}
	tok, err := p.lex.next()
	if err != nil {
		p.err = err
		return
	}
	p.tok = tok
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.err == nil && p.tok.kind == tokOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &orNode{left: left, right: right}
	}
	if p.err != nil {
		return nil, p.err
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.err == nil && p.tok.kind == tokAnd {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &andNode{left: left, right: right}
	}
	if p.err != nil {
		return nil, p.err
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.tok.kind == tokNot {
		p.advance()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{x: x}, nil
	}
	return p.parseCmp()
}

func (p *parser) parseCmp() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	op, ok := cmpOp(p.tok.kind)
	if !ok {
		return left, nil
	}
	p.advance()
	right, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	return &compareNode{op: op, left: left, right: right}, nil
}

func cmpOp(k tokenKind) (compareOp, bool) {
	switch k {
	case tokLt:
		return opLt, true
	case tokLe:
		return opLe, true
	case tokGt:
		return opGt, true
	case tokGe:
		return opGe, true
	case tokEq:
		return opEq, true
	case tokNe:
		return opNe, true
	case tokIn:
		return opIn, true
	}
	return 0, false
}

func (p *parser) parseTerm() (node, error) {
	if p.err != nil {
		return nil, p.err
	}
	switch p.tok.kind {
	case tokNumber:
		v := p.tok.num
		p.advance()
		return &literalNode{v: value{k: kindNum, n: v}}, nil
	case tokString:
		s := p.tok.text
		p.advance()
		return &literalNode{v: value{k: kindStr, s: s}}, nil
	case tokIdent:
		return p.parseIdentTerm()
	}
	return nil, fmt.Errorf("expected a value, got token kind %d", p.tok.kind)
}

func (p *parser) parseIdentTerm() (node, error) {
	name := p.tok.text
	p.advance()
	for p.tok.kind == tokDot {
		p.advance()
		if p.tok.kind != tokIdent {
			return nil, fmt.Errorf("expected identifier after '.'")
		}
		next := p.tok.text
		p.advance()
		if p.tok.kind == tokLParen {
			// Trailing call: the preceding identifier is the method.
			p.advance()
			if p.tok.kind != tokRParen {
				return nil, fmt.Errorf("method %q takes no arguments", next)
			}
			p.advance()
			return &identNode{name: name, method: next}, nil
		}
		name = name + "." + next
	}
	return &identNode{name: name}, nil
}
