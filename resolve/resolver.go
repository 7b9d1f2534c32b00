package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/ardnew/ghostwriter/cogen"
	"github.com/ardnew/ghostwriter/log"
	"github.com/ardnew/ghostwriter/pkg"
	"github.com/ardnew/ghostwriter/snippet"
)

// Func writes the content of one snippet to w. Every line it writes should
// begin with sc.Prefix.
type Func func(ctx context.Context, sc *snippet.Context, w io.Writer) error

// Option configures a [Resolver].
type Option func(*Resolver)

// WithComponents sets the registry that module components are chained over.
func WithComponents(reg *cogen.Registry) Option {
	return func(r *Resolver) {
		if reg != nil {
			r.components = reg
		}
	}
}

// WithEngine sets the engine used by [Resolver.Resolve].
func WithEngine(e *cogen.Engine) Option {
	return func(r *Resolver) { r.engine = e }
}

// Resolver finds the generator of a snippet by its dotted name.
// A Resolver is safe for concurrent use.
type Resolver struct {
	paths      []string
	components *cogen.Registry
	engine     *cogen.Engine

	mu      sync.RWMutex
	entries map[string]any
	post    map[string]PostProcessor
	modules map[string]*load
}

type load struct {
	once sync.Once
	mod  *Module
	err  error
}

// NewResolver returns a resolver loading modules from searchPaths, in order.
func NewResolver(searchPaths []string, opts ...Option) *Resolver {
	r := &Resolver{
		paths:   slices.Clone(searchPaths),
		entries: make(map[string]any),
		post:    make(map[string]PostProcessor),
		modules: make(map[string]*load),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.components == nil {
		r.components = cogen.NewRegistry(nil)
	}

	if r.engine == nil {
		r.engine = cogen.NewEngine(cogen.WithRegistry(r.components))
	}

	return r
}

// SearchPaths returns the directories searched for modules.
func (r *Resolver) SearchPaths() []string { return slices.Clone(r.paths) }

// Components returns the registry shared by every module.
func (r *Resolver) Components() *cogen.Registry { return r.components }

// Register binds a qualified snippet name to v, which may be a [Func], a
// function with one of the signatures
//
//	func(context.Context, *snippet.Context, io.Writer) error
//	func(*snippet.Context, io.Writer) error
//	func(*snippet.Context) (string, error)
//	func() string
//
// or a [cogen.Component] rendered at the tag's indentation. Values of any
// other type are accepted here and reported with [ErrSignature] on use.
func (r *Resolver) Register(name string, v any) error {
	if _, _, err := split(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[name] = v

	return nil
}

// RegisterComponent adds a component available to every module template.
func (r *Resolver) RegisterComponent(name string, f cogen.Factory) error {
	return r.components.Register(name, f)
}

// Names returns the registered snippet names, sorted.
func (r *Resolver) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.entries))
}

// Resolve returns the generator of the named snippet.
func (r *Resolver) Resolve(name string) (Func, error) {
	return r.resolve(name, r.engine)
}

// Expander returns a [snippet.Expander] rendering templates with engine.
// A nil engine uses the resolver's own.
func (r *Resolver) Expander(engine *cogen.Engine) snippet.Expander {
	if engine == nil {
		engine = r.engine
	}

	return &expander{r: r, engine: engine}
}

type expander struct {
	r      *Resolver
	engine *cogen.Engine
}

func (x *expander) Expand(ctx context.Context, sc *snippet.Context, w io.Writer) (err error) {
	attrs := []slog.Attr{
		slog.String("snippet", sc.Name),
		slog.String("file", sc.File),
		slog.Int("line", sc.Line),
	}

	f, err := x.r.resolve(sc.Name, x.engine)
	if err != nil {
		return annotate(err, attrs)
	}

	defer func() {
		if p := recover(); p != nil {
			err = ErrExpansion.With(attrs...).Wrap(fmt.Errorf("panic: %v", p))
		}
	}()

	log.FromContext(ctx).Trace("expanding", attrs...)

	if err := f(ctx, sc, w); err != nil {
		return ErrExpansion.With(attrs...).Wrap(err)
	}

	return nil
}

func (r *Resolver) resolve(name string, engine *cogen.Engine) (Func, error) {
	mod, attr, err := split(name)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	v, ok := r.entries[name]
	r.mu.RUnlock()

	if ok {
		return adapt(name, v, engine)
	}

	m, err := r.Module(mod)
	if err != nil {
		if registered := r.siblings(mod); len(registered) > 0 && isNotFound(err) {
			return nil, notFound(name, attr, registered)
		}

		return nil, err
	}

	if s, ok := m.Snippets[attr]; ok {
		return m.render(s, engine), nil
	}

	return nil, notFound(name, attr, append(m.SnippetNames(), r.siblings(mod)...))
}

// siblings returns the entries of registered names within module mod.
func (r *Resolver) siblings(mod string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string

	for name := range r.entries {
		if m, a, _ := split(name); m == mod {
			names = append(names, a)
		}
	}

	slices.Sort(names)

	return names
}

func notFound(name, attr string, choices []string) error {
	e := withSuggestion(ErrAttrNotFound, attr, choices).With(slog.String("snippet", name))

	if s, ok := suggestion(attr, choices); ok {
		return e.Wrap(fmt.Errorf("%s (did you mean %q?)", name, s))
	}

	return e.Wrap(errors.New(name))
}

// split separates a qualified name into its module and entry.
func split(name string) (string, string, error) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return "", "", ErrUnqualified.With(slog.String("snippet", name)).
			Wrap(fmt.Errorf("%q has no module", name))
	}

	return name[:i], name[i+1:], nil
}

// adapt converts a registered value into a [Func].
func adapt(name string, v any, engine *cogen.Engine) (Func, error) {
	switch f := v.(type) {
	case Func:
		return f, nil

	case func(context.Context, *snippet.Context, io.Writer) error:
		return f, nil

	case func(*snippet.Context, io.Writer) error:
		return func(_ context.Context, sc *snippet.Context, w io.Writer) error {
			return f(sc, w)
		}, nil

	case func(*snippet.Context) (string, error):
		return func(_ context.Context, sc *snippet.Context, w io.Writer) error {
			s, err := f(sc)
			if err != nil {
				return err
			}

			return writeLines(w, sc.Prefix, s)
		}, nil

	case func() string:
		return func(_ context.Context, sc *snippet.Context, w io.Writer) error {
			return writeLines(w, sc.Prefix, f())
		}, nil

	case cogen.Component:
		return func(ctx context.Context, sc *snippet.Context, w io.Writer) error {
			return engine.Render(ctx, f, w, sc.Prefix)
		}, nil

	default:
		return nil, ErrSignature.With(slog.String("snippet", name)).
			Wrap(fmt.Errorf("%s is %T", name, v))
	}
}

// writeLines writes each line of s to w behind prefix.
func writeLines(w io.Writer, prefix, s string) error {
	lw := cogen.NewLineWriter(w, prefix)

	for line := range strings.Lines(s) {
		_, _ = lw.WriteString(strings.TrimRight(line, "\r\n"))

		if err := lw.Flush(""); err != nil {
			return err
		}
	}

	return nil
}

func annotate(err error, attrs []slog.Attr) error {
	var e *pkg.Error
	if errors.As(err, &e) {
		return e.With(attrs...)
	}

	return err
}

func isNotFound(err error) bool { return errors.Is(err, ErrModuleNotFound) }
