package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/ardnew/ghostwriter/cogen"
	"github.com/ardnew/ghostwriter/snippet"
)

// Extensions are the module file extensions, in lookup order.
var Extensions = []string{".yml", ".yaml", ".hcl"}

// Snippet is a template snippet declared by a module.
type Snippet struct {
	Template string         `yaml:"template"`
	Data     map[string]any `yaml:"data"`
}

// Component is a template component declared by a module.
type Component struct {
	Template string         `yaml:"template"`
	Params   []string       `yaml:"params"`
	Defaults map[string]any `yaml:"defaults"`
}

// Module is a parsed module file.
type Module struct {
	Name       string
	Path       string
	Snippets   map[string]Snippet
	Components map[string]Component

	registry *cogen.Registry
}

type yamlModule struct {
	Snippets   map[string]Snippet   `yaml:"snippets"`
	Components map[string]Component `yaml:"components"`
}

// SnippetNames returns the names of m's snippets, sorted.
func (m *Module) SnippetNames() []string {
	return slices.Sorted(maps.Keys(m.Snippets))
}

// Registry returns the registry holding m's components.
func (m *Module) Registry() *cogen.Registry { return m.registry }

// Module returns the module with the dotted name mod, loading it on first
// use. Each module is loaded at most once per resolver.
func (r *Resolver) Module(mod string) (*Module, error) {
	r.mu.Lock()

	l, ok := r.modules[mod]
	if !ok {
		l = &load{}
		r.modules[mod] = l
	}

	r.mu.Unlock()

	l.once.Do(func() {
		path, err := r.locate(mod)
		if err != nil {
			l.err = err

			return
		}

		l.mod, l.err = r.loadModule(mod, path)
	})

	return l.mod, l.err
}

// Reload discards every loaded module so that the next lookup reads its file
// again.
func (r *Resolver) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.modules)
}

// locate returns the first module file for mod on the search paths.
func (r *Resolver) locate(mod string) (string, error) {
	rel := filepath.Join(strings.Split(mod, ".")...)

	for _, dir := range r.paths {
		for _, ext := range Extensions {
			path := filepath.Join(dir, rel+ext)

			if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
				return path, nil
			}
		}
	}

	return "", ErrModuleNotFound.With(slog.String("module", mod)).
		Wrap(fmt.Errorf("no %s{%s} in %s",
			rel, strings.Join(Extensions, ","), strings.Join(r.paths, ", ")))
}

func (r *Resolver) loadModule(mod, path string) (*Module, error) {
	invalid := ErrModuleInvalid.With(
		slog.String("module", mod),
		slog.String("path", path),
	)

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, invalid.Wrap(err)
	}

	var doc yamlModule

	if filepath.Ext(path) == ".hcl" {
		doc, err = decodeHCL(path, src)
	} else {
		doc, err = decodeYAML(src)
	}

	if err != nil {
		return nil, invalid.Wrap(err)
	}

	m := &Module{
		Name:       mod,
		Path:       path,
		Snippets:   doc.Snippets,
		Components: doc.Components,
		registry:   cogen.NewRegistry(r.components),
	}

	if m.Snippets == nil {
		m.Snippets = make(map[string]Snippet)
	}

	for _, name := range slices.Sorted(maps.Keys(doc.Components)) {
		c := doc.Components[name]

		f := cogen.DataFactory(name, c.Template, c.Params, c.Defaults, m.registry)
		if err := m.registry.Register(name, f); err != nil {
			return nil, invalid.Wrap(err)
		}
	}

	return m, nil
}

func decodeYAML(src []byte) (yamlModule, error) {
	var doc yamlModule

	err := yaml.UnmarshalWithOptions(src, &doc, yaml.DisallowUnknownField())
	if err != nil {
		return doc, errors.New(yaml.FormatError(err, false, true))
	}

	return doc, nil
}

// render returns a [Func] rendering s with its data in the root scope.
func (m *Module) render(s Snippet, engine *cogen.Engine) Func {
	return func(ctx context.Context, sc *snippet.Context, w io.Writer) error {
		values := maps.Clone(s.Data)
		if values == nil {
			values = make(map[string]any)
		}

		values["snippet"] = map[string]any{
			"name":   sc.Name,
			"module": m.Name,
			"file":   sc.File,
			"line":   sc.Line,
			"prefix": sc.Prefix,
		}

		c := &cogen.DataComponent{
			Name:   sc.Name,
			Source: s.Template,
			Values: values,
			Scope:  m.registry,
		}

		return engine.Render(ctx, c, w, sc.Prefix)
	}
}
