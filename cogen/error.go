package cogen

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/ardnew/ghostwriter/pkg"
)

// Predefined errors (sentinel values).
var (
	ErrCloseTagArgs       = pkg.NewError("close tag cannot take arguments")
	ErrBlockNesting       = pkg.NewError("mismatched block nesting")
	ErrUnclosedBlock      = pkg.NewError("unclosed block")
	ErrIndentation        = pkg.NewError("line's indentation is less than its enclosing block")
	ErrBranchIndentation  = pkg.NewError("all condition blocks must share the same indentation")
	ErrMissingArgs        = pkg.NewError("block requires arguments")
	ErrBranchArgs         = pkg.NewError("else branch cannot take arguments")
	ErrLoopHeader         = pkg.NewError("invalid loop header")
	ErrReservedName       = pkg.NewError("loop variable names must not begin with an upper-case letter")
	ErrDestructure        = pkg.NewError("cannot destructure loop element")
	ErrNotIterable        = pkg.NewError("value is not iterable")
	ErrUnknownBlock       = pkg.NewError("unknown block")
	ErrExprSyntax         = pkg.NewError("invalid expression")
	ErrExprEvaluate       = pkg.NewError("expression evaluation failed")
	ErrUnbound            = pkg.NewError("unbound identifier")
	ErrNotComponent       = pkg.NewError("value is not a component")
	ErrUnknownComponent   = pkg.NewError("unknown component")
	ErrBodyArgs           = pkg.NewError("body block cannot take arguments")
	ErrComponentName      = pkg.NewError("component names must begin with an upper-case letter")
	ErrComponentArgs      = pkg.NewError("invalid component arguments")
	ErrIndentUnderflow    = pkg.NewError("indentation stack underflow")
	ErrUnbalancedIndent   = pkg.NewError("indentation stack not restored")
	ErrTemplateCompile    = pkg.NewError("template compilation failed")
	ErrComponentRendering = pkg.NewError("component rendering failed")
)

// SourceError locates an error within template source.
//
// It unwraps to the underlying error so that sentinels still match with
// [errors.Is].
type SourceError struct {
	Err  error
	Pos  Pos
	Text string // offending source line, if known
}

func sourceLine(src string, line int) string {
	if line <= 0 {
		return ""
	}

	for n := 1; ; n++ {
		i := strings.IndexByte(src, '\n')
		if n == line {
			if i < 0 {
				return src
			}

			return src[:i]
		}

		if i < 0 {
			return ""
		}

		src = src[i+1:]
	}
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	var buf strings.Builder

	buf.WriteString("line ")
	buf.WriteString(strconv.Itoa(e.Pos.Line))
	buf.WriteString(", column ")
	buf.WriteString(strconv.Itoa(e.Pos.Column))
	buf.WriteString(": ")
	buf.WriteString(e.Err.Error())

	if e.Text != "" {
		num := strconv.Itoa(e.Pos.Line)

		buf.WriteString("\n  ")
		buf.WriteString(num)
		buf.WriteString(" | ")
		buf.WriteString(e.Text)
		buf.WriteString("\n")
		// 2 leading spaces + " | "
		buf.WriteString(strings.Repeat(" ", len(num)+5+max(e.Pos.Column-1, 0)))
		buf.WriteString("^")
	}

	return buf.String()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SourceError) Unwrap() error { return e.Err }

// LogValue implements slog.LogValuer.
func (e *SourceError) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("error", e.Err),
		slog.Int("line", e.Pos.Line),
		slog.Int("column", e.Pos.Column),
	)
}
