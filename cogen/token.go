package cogen

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Pos is a location in template source. Line and Column are 1-based; Column
// counts runes.
type Pos struct {
	Offset int
	Line   int
	Column int
}

func (p Pos) String() string {
	return strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Column)
}

// TokenKind identifies the variant of a [Token].
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenLiteral
	TokenExpr
	TokenCtrl
	TokenArgs
	TokenNewline
)

func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "EOF"
	case TokenLiteral:
		return "literal"
	case TokenExpr:
		return "expression"
	case TokenCtrl:
		return "control"
	case TokenArgs:
		return "arguments"
	case TokenNewline:
		return "newline"
	default:
		return "TokenKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Token is one lexical element of a template.
//
// Text holds the literal text, the trimmed expression source, or the raw
// control arguments. Prefix and Keyword are set only on control tokens.
type Token struct {
	Kind    TokenKind
	Text    string
	Prefix  string
	Keyword string
	Pos     Pos
}

// Marker starts a control line.
const Marker = '%'

var (
	ctrlLine   = regexp.MustCompile(`^([ \t]*)%[ \t]*([^%\[\^\s]+)[ \t]*(.*?)\s*$`)
	escapeLine = regexp.MustCompile(`^[ \t]*%%`)
	interpSpan = regexp.MustCompile(`<<(.*?)>>`)
)

// Tokenizer lazily splits a template into tokens.
//
// After the end of input, Next keeps returning a [TokenEOF] token.
type Tokenizer struct {
	src     string
	off     int
	line    int
	leadIn  bool
	pending []Token
	eof     Token
}

// Tokenize returns a Tokenizer over src.
func Tokenize(src string) *Tokenizer {
	return &Tokenizer{src: src, leadIn: true}
}

// Next returns the next token.
func (t *Tokenizer) Next() Token {
	for len(t.pending) == 0 {
		if !t.scanLine() {
			return t.eof
		}
	}

	tok := t.pending[0]
	t.pending = t.pending[1:]

	return tok
}

// All drains the tokenizer, including the final [TokenEOF].
func (t *Tokenizer) All() []Token {
	var toks []Token

	for {
		tok := t.Next()
		toks = append(toks, tok)

		if tok.Kind == TokenEOF {
			return toks
		}
	}
}

// scanLine tokenizes one source line into t.pending. It returns false at the
// end of input.
func (t *Tokenizer) scanLine() bool {
	if t.off >= len(t.src) {
		if t.eof.Pos.Line == 0 {
			t.eof = Token{Kind: TokenEOF, Pos: Pos{Offset: len(t.src), Line: t.line + 1, Column: 1}}
			if t.off > 0 && !strings.HasSuffix(t.src, "\n") {
				t.eof.Pos.Line = t.line
			}
		}

		return false
	}

	start := t.off
	text := t.src[start:]
	newline := false

	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
		newline = true
		t.off += i + 1
	} else {
		t.off = len(t.src)
	}

	t.line++

	at := func(byteCol int) Pos {
		return Pos{
			Offset: start + byteCol,
			Line:   t.line,
			Column: utf8.RuneCountInString(text[:byteCol]) + 1,
		}
	}

	if t.leadIn {
		if strings.TrimSpace(text) == "" {
			return true
		}

		t.leadIn = false
	}

	switch m := ctrlLine.FindStringSubmatchIndex(text); {
	case escapeLine.MatchString(text):
		i := strings.IndexByte(text, Marker)
		t.scanText(text[:i]+text[i+1:], func(c int) Pos {
			if c >= i {
				c++
			}

			return at(c)
		})

	case m != nil:
		prefix, keyword, args := text[m[2]:m[3]], text[m[4]:m[5]], text[m[6]:m[7]]

		t.pending = append(t.pending, Token{
			Kind:    TokenCtrl,
			Prefix:  prefix,
			Keyword: keyword,
			Pos:     at(m[4]),
		})

		if args != "" {
			t.pending = append(t.pending, Token{
				Kind: TokenArgs,
				Text: args,
				Pos:  at(m[6]),
			})
		}

	default:
		t.scanText(text, at)
	}

	if newline {
		t.pending = append(t.pending, Token{Kind: TokenNewline, Pos: at(len(text))})
	}

	return true
}

// scanText splits a non-control line into literal and expression tokens.
func (t *Tokenizer) scanText(text string, at func(int) Pos) {
	last := 0

	for _, m := range interpSpan.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			t.pending = append(t.pending, Token{
				Kind: TokenLiteral,
				Text: text[last:m[0]],
				Pos:  at(last),
			})
		}

		t.pending = append(t.pending, Token{
			Kind: TokenExpr,
			Text: strings.TrimSpace(text[m[2]:m[3]]),
			Pos:  at(m[0]),
		})

		last = m[1]
	}

	if last < len(text) {
		t.pending = append(t.pending, Token{
			Kind: TokenLiteral,
			Text: text[last:],
			Pos:  at(last),
		})
	}
}
