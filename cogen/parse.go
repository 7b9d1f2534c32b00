package cogen

import (
	"errors"
	"fmt"
	"strings"
)

// Keywords with parser-level meaning.
const (
	KeywordIf   = "if"
	KeywordElif = "elif"
	KeywordElse = "else"
	KeywordFor  = "for"
)

// Parse dedents src and parses it into a [Program].
//
// Errors are returned as *[SourceError] wrapping one of the package's
// sentinel errors.
func Parse(src string) (*Program, error) {
	text, width := Dedent(src)

	prog, err := ParseTokens(Tokenize(text))
	if err != nil {
		var se *SourceError
		if errors.As(err, &se) {
			se.Text = sourceLine(src, se.Pos.Line)
			if strings.TrimSpace(se.Text) != "" {
				se.Pos.Column += width
			}
		}

		return nil, err
	}

	prog.Source, prog.Dedent = src, width

	return prog, nil
}

// ParseTokens parses the tokens produced by t without dedenting. The
// returned Program has no Source.
func ParseTokens(t *Tokenizer) (*Program, error) {
	p := &parser{tok: t}

	nodes, term, err := p.nodes("")
	if err == nil && term.Kind != TokenEOF {
		err = p.fail(
			ErrBlockNesting.Wrap(fmt.Errorf("unexpected %%%s", term.Keyword)),
			term.Pos,
		)
	}

	if err != nil {
		return nil, err
	}

	return &Program{Nodes: nodes}, nil
}

type parser struct {
	tok    *Tokenizer
	peeked *Token
}

// ctrl is a control line with its optional arguments.
type ctrl struct {
	Token
	args    string
	argsPos Pos
}

func (p *parser) next() Token {
	if t := p.peeked; t != nil {
		p.peeked = nil

		return *t
	}

	return p.tok.Next()
}

func (p *parser) peek() Token {
	if p.peeked == nil {
		t := p.tok.Next()
		p.peeked = &t
	}

	return *p.peeked
}

func (p *parser) fail(err error, pos Pos) error {
	return &SourceError{Err: err, Pos: pos}
}

func (p *parser) control(t Token) ctrl {
	c := ctrl{Token: t}

	if a := p.peek(); a.Kind == TokenArgs {
		p.next()
		c.args, c.argsPos = a.Text, a.Pos
	}

	if p.peek().Kind == TokenNewline {
		p.next()
	}

	return c
}

func isTerminator(keyword string) bool {
	return strings.HasPrefix(keyword, "/") ||
		keyword == KeywordElif ||
		keyword == KeywordElse
}

// nodes parses a sequence of nodes whose indentation is at least indent. It
// stops at end of input or at a terminating control line (a close tag or a
// conditional branch), which it returns.
func (p *parser) nodes(indent string) ([]Node, ctrl, error) {
	var nodes []Node

	for {
		t := p.next()

		switch t.Kind {
		case TokenEOF:
			return nodes, ctrl{Token: t}, nil

		case TokenNewline:
			nodes = append(nodes, &Line{Pos: t.Pos})

		case TokenCtrl:
			c := p.control(t)
			if isTerminator(c.Keyword) {
				return nodes, c, nil
			}

			if len(c.Prefix) < len(indent) {
				return nil, c, p.fail(ErrIndentation, c.Pos)
			}

			n, err := p.block(c)
			if err != nil {
				return nil, c, err
			}

			nodes = append(nodes, n)

		default:
			line := p.line(t)
			if !line.Blank() && len(line.Prefix) < len(indent) {
				return nil, ctrl{Token: t}, p.fail(ErrIndentation, line.Pos)
			}

			nodes = append(nodes, line)
		}
	}
}

// line collects the fragments of one text line starting with first.
func (p *parser) line(first Token) *Line {
	line := &Line{Pos: first.Pos}

	for t := first; ; t = p.next() {
		switch t.Kind {
		case TokenLiteral:
			line.Parts = append(line.Parts, &Literal{Text: t.Text, Pos: t.Pos})

			continue

		case TokenExpr:
			line.Parts = append(line.Parts, &Expr{Source: t.Text, Pos: t.Pos})

			continue

		case TokenNewline:
		default:
			p.peeked = &t
		}

		break
	}

	if len(line.Parts) > 0 {
		if lit, ok := line.Parts[0].(*Literal); ok {
			rest := strings.TrimLeft(lit.Text, " \t")
			line.Prefix = lit.Text[:len(lit.Text)-len(rest)]

			if rest == "" {
				line.Parts = line.Parts[1:]
			} else {
				line.Parts[0] = &Literal{Text: rest, Pos: lit.Pos}
			}
		}
	}

	return line
}

func (p *parser) block(c ctrl) (Node, error) {
	if c.Keyword == KeywordIf {
		return p.conditional(c)
	}

	if c.Keyword == KeywordFor && c.args == "" {
		return nil, p.fail(ErrMissingArgs.Wrap(fmt.Errorf("%%%s", c.Keyword)), c.Pos)
	}

	blk := &Block{
		Prefix:  c.Prefix,
		Keyword: c.Keyword,
		Args:    c.args,
		ArgsPos: c.argsPos,
		Pos:     c.Pos,
	}

	body, term, err := p.nodes(c.Prefix)
	if err != nil {
		return nil, err
	}

	blk.Body = body

	return blk, p.closes(blk, term)
}

// closes verifies that term is the close tag of blk.
func (p *parser) closes(blk *Block, term ctrl) error {
	switch {
	case term.Kind == TokenEOF:
		return p.fail(ErrUnclosedBlock.Wrap(fmt.Errorf("%%%s", blk.Keyword)), blk.Pos)

	case term.Keyword != "/"+blk.Keyword:
		return p.fail(
			ErrBlockNesting.Wrap(fmt.Errorf(
				"expected %%/%s, found %%%s", blk.Keyword, term.Keyword,
			)),
			term.Pos,
		)

	case term.args != "":
		return p.fail(ErrCloseTagArgs, term.argsPos)

	case term.Prefix != blk.Prefix:
		return p.fail(ErrIndentation, term.Pos)
	}

	return nil
}

func (p *parser) conditional(c ctrl) (Node, error) {
	if c.args == "" {
		return nil, p.fail(ErrMissingArgs.Wrap(fmt.Errorf("%%%s", c.Keyword)), c.Pos)
	}

	cond := &Conditional{Pos: c.Pos}
	branch := c
	hasElse := false

	for {
		body, term, err := p.nodes(c.Prefix)
		if err != nil {
			return nil, err
		}

		cond.Branches = append(cond.Branches, &Block{
			Prefix:  branch.Prefix,
			Keyword: branch.Keyword,
			Args:    branch.args,
			ArgsPos: branch.argsPos,
			Body:    body,
			Pos:     branch.Pos,
		})

		branches := term.Keyword == "/"+KeywordIf ||
			term.Keyword == KeywordElif ||
			term.Keyword == KeywordElse

		if term.Kind != TokenEOF && branches && term.Prefix != c.Prefix {
			return nil, p.fail(ErrBranchIndentation, term.Pos)
		}

		switch {
		case term.Kind == TokenEOF:
			return nil, p.fail(ErrUnclosedBlock.Wrap(fmt.Errorf("%%%s", c.Keyword)), c.Pos)

		case term.Keyword == "/"+KeywordIf:
			if term.args != "" {
				return nil, p.fail(ErrCloseTagArgs, term.argsPos)
			}

			return cond, nil

		case term.Keyword == KeywordElif && !hasElse:
			if term.args == "" {
				return nil, p.fail(ErrMissingArgs.Wrap(fmt.Errorf("%%%s", term.Keyword)), term.Pos)
			}

		case term.Keyword == KeywordElse && !hasElse:
			if term.args != "" {
				return nil, p.fail(ErrBranchArgs, term.argsPos)
			}

			hasElse = true

		default:
			return nil, p.fail(
				ErrBlockNesting.Wrap(fmt.Errorf(
					"expected %%/%s, found %%%s", c.Keyword, term.Keyword,
				)),
				term.Pos,
			)
		}

		branch = term
	}
}
