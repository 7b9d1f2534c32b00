package cogen

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ardnew/ghostwriter/pkg"
)

// Frame is the state of one template being interpreted: its scope, the
// indentation origin of its source, and the blocks it may invoke.
type Frame struct {
	ctx      context.Context
	engine   *Engine
	w        *LineWriter
	scope    *Scope
	registry *Registry
	origin   string
	blocks   map[string]BlockHandler
	prog     *Program
}

// Context returns the context the frame renders under.
func (f *Frame) Context() context.Context { return f.ctx }

// Engine returns the rendering engine.
func (f *Frame) Engine() *Engine { return f.engine }

// Writer returns the output line writer.
func (f *Frame) Writer() *LineWriter { return f.w }

// Scope returns the frame's variable scope.
func (f *Frame) Scope() *Scope { return f.scope }

// Eval evaluates an expression in the frame's scope.
func (f *Frame) Eval(src string) (any, error) {
	return f.engine.evalIn(src, f.registry, f.scope)
}

// With returns a copy of f whose scope is a child holding vars.
func (f *Frame) With(vars map[string]any) *Frame {
	c := *f
	c.scope = f.scope.Child(vars)

	return &c
}

// Exec renders nodes in the frame. Block handlers use it to render their
// body.
func (f *Frame) Exec(nodes []Node) error {
	return f.exec(nodes)
}

// rel returns prefix relative to the frame's indentation origin.
func (f *Frame) rel(prefix string) string {
	if strings.HasPrefix(prefix, f.origin) {
		return prefix[len(f.origin):]
	}

	if len(prefix) > len(f.origin) {
		return prefix[len(f.origin):]
	}

	return ""
}

// fail locates err at pos in the frame's source. Errors already located are
// returned unchanged.
func (f *Frame) fail(err error, pos Pos) error {
	if _, ok := err.(*SourceError); ok {
		return err
	}

	if off, ok := exprOffset(err); ok {
		pos.Offset += off
		pos.Column += off
	}

	se := &SourceError{Err: err, Pos: pos}

	if f.prog != nil {
		se.Text = sourceLine(f.prog.Source, pos.Line)
		se.Pos.Column += f.prog.Dedent
	}

	return se
}

// exprOffset returns the offset of an expression syntax error, stopping at
// errors already located in other source.
func exprOffset(err error) (int, bool) {
	for err != nil {
		switch e := err.(type) {
		case *SourceError:
			return 0, false
		case *pkg.Error:
			if v, ok := e.Attr("offset"); ok {
				return int(v.Int64()), true
			}
		}

		err = errors.Unwrap(err)
	}

	return 0, false
}

// run renders nodes and verifies every indentation pushed was popped.
func (f *Frame) run(nodes []Node) error {
	depth := f.w.Depth()

	if err := f.exec(nodes); err != nil {
		f.w.Discard()

		return err
	}

	if f.w.Depth() != depth {
		return ErrUnbalancedIndent.Wrap(
			fmt.Errorf("depth %d, want %d", f.w.Depth(), depth),
		)
	}

	return nil
}

func (f *Frame) exec(nodes []Node) error {
	for _, n := range nodes {
		var err error

		switch n := n.(type) {
		case *Line:
			err = f.line(n)
		case *Conditional:
			err = f.conditional(n)
		case *Block:
			if n.Keyword == KeywordFor {
				err = f.loop(n)
			} else {
				err = f.block(n)
			}
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func (f *Frame) line(l *Line) error {
	if l.Blank() {
		return f.w.Blank()
	}

	for _, part := range l.Parts {
		switch p := part.(type) {
		case *Literal:
			_, _ = f.w.WriteString(p.Text)

		case *Expr:
			v, err := f.Eval(p.Source)
			if err != nil {
				pos := p.Pos
				pos.Column += 2 // "<<"
				pos.Offset += 2

				return f.fail(err, pos)
			}

			_, _ = f.w.WriteString(str(v))
		}
	}

	return f.w.Flush(f.rel(l.Prefix))
}

func (f *Frame) conditional(c *Conditional) error {
	for _, br := range c.Branches {
		if br.Keyword == KeywordElse {
			return f.With(nil).exec(br.Body)
		}

		v, err := f.Eval(br.Args)
		if err != nil {
			return f.fail(err, br.ArgsPos)
		}

		if Truthy(v) {
			return f.With(nil).exec(br.Body)
		}
	}

	return nil
}

var loopHeader = regexp.MustCompile(
	`^\s*([\pL_][\pL\pN_]*(?:\s*,\s*[\pL_][\pL\pN_]*)*)\s+in\s+(.+?)\s*$`,
)

// ParseLoopHeader splits "a, b in expr" into its variable names and
// iterable expression.
func ParseLoopHeader(args string) ([]string, string, error) {
	m := loopHeader.FindStringSubmatch(args)
	if m == nil {
		return nil, "", ErrLoopHeader.Wrap(fmt.Errorf("%q", args))
	}

	names := strings.Split(m[1], ",")
	for i, name := range names {
		names[i] = strings.TrimSpace(name)

		if r, _ := utf8.DecodeRuneInString(names[i]); unicode.IsUpper(r) {
			return nil, "", ErrReservedName.Wrap(fmt.Errorf("%q", names[i]))
		}

		if slices.Contains(names[:i], names[i]) {
			return nil, "", ErrLoopHeader.Wrap(fmt.Errorf("duplicate name %q", names[i]))
		}
	}

	return names, m[2], nil
}

func (f *Frame) loop(blk *Block) error {
	names, src, err := ParseLoopHeader(blk.Args)
	if err != nil {
		return f.fail(err, blk.ArgsPos)
	}

	v, err := f.Eval(src)
	if err != nil {
		pos := blk.ArgsPos
		if i := strings.LastIndex(blk.Args, src); i > 0 {
			pos.Column += utf8.RuneCountInString(blk.Args[:i])
			pos.Offset += i
		}

		return f.fail(err, pos)
	}

	var seq iter.Seq[any]
	if len(names) == 2 {
		seq, err = Pairs(v)
	} else {
		seq, err = Elements(v)
	}

	if err != nil {
		return f.fail(err, blk.ArgsPos)
	}

	for elem := range seq {
		if err := f.ctx.Err(); err != nil {
			return err
		}

		vars := make(map[string]any, len(names))

		if len(names) == 1 {
			vars[names[0]] = elem
		} else {
			vals, err := Destructure(elem, len(names))
			if err != nil {
				return f.fail(err, blk.ArgsPos)
			}

			for i, name := range names {
				vars[name] = vals[i]
			}
		}

		if err := f.With(vars).exec(blk.Body); err != nil {
			return err
		}
	}

	return nil
}

func (f *Frame) block(blk *Block) error {
	h, ok := f.blocks[blk.Keyword]
	if !ok {
		return f.fail(
			ErrUnknownBlock.Wrap(suggest(blk.Keyword, slices.Sorted(maps.Keys(f.blocks)))),
			blk.Pos,
		)
	}

	if err := f.ctx.Err(); err != nil {
		return err
	}

	if err := h(f, blk); err != nil {
		return f.fail(err, blk.Pos)
	}

	return nil
}
