package cogen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"unicode"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"

	"github.com/ardnew/ghostwriter/log"
)

// Block keywords handled by every [Engine].
const (
	KeywordRender = "r"
	KeywordBody   = "body"
)

// BlockHandler renders a named block. The handler receives the frame the
// block appears in and the parsed block with its raw arguments and
// unconsumed body.
type BlockHandler func(f *Frame, blk *Block) error

// Engine renders templates and components.
//
// An Engine is safe for concurrent use once constructed.
type Engine struct {
	registry *Registry
	cache    *Cache
	eval     *evaluator
	blocks   map[string]BlockHandler
	globals  map[string]any
	size     int
}

// Option configures an [Engine].
type Option func(*Engine)

// WithRegistry sets the registry used to resolve component names.
func WithRegistry(r *Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithCache sets the template cache.
func WithCache(c *Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithBlock registers a handler for "%name" blocks.
func WithBlock(name string, h BlockHandler) Option {
	return func(e *Engine) { e.blocks[name] = h }
}

// WithGlobals adds bindings visible to every expression, shadowing builtins.
func WithGlobals(vars map[string]any) Option {
	return func(e *Engine) { maps.Copy(e.globals, vars) }
}

// WithProgramCacheSize sets how many compiled expressions are retained.
func WithProgramCacheSize(n int) Option {
	return func(e *Engine) { e.size = n }
}

// NewEngine returns an Engine configured by opts.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		blocks:  map[string]BlockHandler{KeywordRender: renderBlock},
		globals: Builtins(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.registry == nil {
		e.registry = NewRegistry(nil)
	}

	if e.cache == nil {
		e.cache = NewCache()
	}

	e.eval = newEvaluator(e.size)

	return e
}

// Registry returns the engine's component registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Compile parses src through the template cache.
func (e *Engine) Compile(src string) (*Program, error) {
	return e.cache.Load(src)
}

// Eval evaluates a single expression in scope.
func (e *Engine) Eval(src string, scope *Scope) (any, error) {
	return e.evalIn(src, e.registry, scope)
}

func (e *Engine) evalIn(src string, reg *Registry, scope *Scope) (any, error) {
	var failed error

	m := maps.Clone(e.globals)

	for name, f := range reg.Bindings() {
		m[name] = Factory(func(args ...any) (Component, error) {
			c, err := f.(Factory)(args...)
			if err != nil && failed == nil {
				failed = err
			}

			return c, err
		})
	}

	maps.Copy(m, scope.Flatten())

	v, err := e.eval.eval(src, m)
	if err != nil && failed != nil {
		return nil, ErrExprEvaluate.With(slog.String("expr", src)).Wrap(failed)
	}

	return v, err
}

// Interpret renders prog in scope to w.
func (e *Engine) Interpret(
	ctx context.Context,
	prog *Program,
	scope *Scope,
	w *LineWriter,
) error {
	if ctx == nil {
		ctx = context.Background()
	}

	f := &Frame{
		ctx:      ctx,
		engine:   e,
		w:        w,
		scope:    scope,
		registry: e.registry,
		blocks:   e.blocks,
		prog:     prog,
	}

	return f.run(prog.Nodes)
}

// RenderString compiles and renders src in scope, writing each line to w
// behind prefix.
func (e *Engine) RenderString(
	ctx context.Context,
	src string,
	scope *Scope,
	w io.Writer,
	prefix string,
) error {
	prog, err := e.Compile(src)
	if err != nil {
		return ErrTemplateCompile.Wrap(err)
	}

	return e.Interpret(ctx, prog, scope, NewLineWriter(w, prefix))
}

// Render renders component c, writing each line to w behind prefix.
func (e *Engine) Render(
	ctx context.Context,
	c Component,
	w io.Writer,
	prefix string,
) error {
	if ctx == nil {
		ctx = context.Background()
	}

	return e.component(ctx, c, NewLineWriter(w, prefix), nil)
}

// body is the content nested in the "%r" block that invoked a component.
type body struct {
	frame  *Frame
	nodes  []Node
	origin string
}

func (e *Engine) component(
	ctx context.Context,
	c Component,
	w *LineWriter,
	content *body,
) error {
	name := componentName(c)

	log.FromContext(ctx).TraceContext(ctx, "render component",
		slog.String("component", name),
		slog.Int("depth", w.Depth()),
	)

	prog, err := e.Compile(c.Template())
	if err != nil {
		return ErrTemplateCompile.With(slog.String("component", name)).Wrap(err)
	}

	reg := e.registry
	if s, ok := c.(Scoped); ok && s.Registry() != nil {
		reg = s.Registry()
	}

	blocks := maps.Clone(e.blocks)
	blocks[KeywordBody] = bodyBlock(content)

	f := &Frame{
		ctx:      ctx,
		engine:   e,
		w:        w,
		scope:    NewScope(componentFields(c)),
		registry: reg,
		blocks:   blocks,
		prog:     prog,
	}

	if err := f.run(prog.Nodes); err != nil {
		return ErrComponentRendering.With(slog.String("component", name)).Wrap(err)
	}

	return nil
}

// renderBlock handles "%r expr": it evaluates expr to a component and
// renders it at the block's indentation, passing the block's body to the
// component's "%body" placeholder.
func renderBlock(f *Frame, blk *Block) error {
	if blk.Args == "" {
		return f.fail(ErrMissingArgs.Wrap(fmt.Errorf("%%%s", blk.Keyword)), blk.Pos)
	}

	v, err := f.Eval(blk.Args)
	if err != nil {
		return f.fail(unknownComponent(f.registry, err), blk.ArgsPos)
	}

	c, ok := v.(Component)
	if !ok || c == nil {
		return f.fail(
			ErrNotComponent.With(slog.String("expr", blk.Args)).
				Wrap(fmt.Errorf("%s is %T", blk.Args, v)),
			blk.ArgsPos,
		)
	}

	f.w.Indent(f.rel(blk.Prefix))

	err = f.engine.component(f.ctx, c, f.w, &body{
		frame:  f,
		nodes:  blk.Body,
		origin: blk.Prefix,
	})
	if err != nil {
		return f.fail(err, blk.Pos)
	}

	return f.w.Dedent()
}

// unknownComponent converts an unbound upper-case identifier into
// [ErrUnknownComponent], suggesting the closest registered name.
func unknownComponent(reg *Registry, err error) error {
	var pe interface{ Attr(string) (slog.Value, bool) }
	if !errors.Is(err, ErrUnbound) || !errors.As(err, &pe) {
		return err
	}

	v, ok := pe.Attr("name")
	if !ok {
		return err
	}

	name := v.String()
	if r, _ := utf8.DecodeRuneInString(name); !unicode.IsUpper(r) {
		return err
	}

	return ErrUnknownComponent.With(slog.String("name", name)).
		Wrap(suggest(name, reg.Names()))
}

// suggest returns an error naming name and its closest match in choices.
func suggest(name string, choices []string) error {
	if m := fuzzy.Find(name, choices); len(m) > 0 {
		return fmt.Errorf("%s (did you mean %s?)", name, m[0].Str)
	}

	return errors.New(name)
}

// bodyBlock returns the "%body" handler for a component invoked with
// content. Only the first "%body" renders; the block's own nodes render when
// the invocation has no content.
func bodyBlock(content *body) BlockHandler {
	used := false

	return func(f *Frame, blk *Block) error {
		if blk.Args != "" {
			return f.fail(ErrBodyArgs, blk.ArgsPos)
		}

		if used {
			return nil
		}

		used = true

		if content == nil || len(content.nodes) == 0 {
			return f.run(blk.Body)
		}

		f.w.Indent(f.rel(blk.Prefix))

		bf := *content.frame
		bf.w = f.w
		bf.origin = content.origin

		if err := bf.run(content.nodes); err != nil {
			return err
		}

		return f.w.Dedent()
	}
}
