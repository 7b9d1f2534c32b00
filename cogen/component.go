package cogen

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"
)

// Component is a renderable unit with a template.
type Component interface {
	Template() string
}

// Fielder is implemented by components that choose the variables bound while
// their template renders. Other components bind their exported struct
// fields.
type Fielder interface {
	Fields() map[string]any
}

// Scoped is implemented by components whose template resolves sibling
// component names against a specific [Registry].
type Scoped interface {
	Registry() *Registry
}

// Factory constructs a component from positional arguments. A trailing
// map[string]any argument carries keyword arguments.
type Factory func(args ...any) (Component, error)

// Registry maps component names to factories. Lookups fall back to the
// parent registry.
type Registry struct {
	mu        sync.RWMutex
	parent    *Registry
	factories map[string]Factory
}

// NewRegistry returns an empty Registry nested in parent, which may be nil.
func NewRegistry(parent *Registry) *Registry {
	return &Registry{parent: parent, factories: make(map[string]Factory)}
}

// ValidComponentName reports whether name is an identifier beginning with
// an upper-case letter.
func ValidComponentName(name string) bool {
	r, n := utf8.DecodeRuneInString(name)
	if n == 0 || !unicode.IsUpper(r) {
		return false
	}

	return strings.IndexFunc(name, func(r rune) bool {
		return r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) < 0
}

// Register adds a factory under name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) error {
	if !ValidComponentName(name) {
		return ErrComponentName.Wrap(errors.New(name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[name] = f

	return nil
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	for ; r != nil; r = r.parent {
		r.mu.RLock()
		f, ok := r.factories[name]
		r.mu.RUnlock()

		if ok {
			return f, true
		}
	}

	return nil, false
}

// Names returns the sorted names visible through r.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.Bindings()))
}

// Bindings returns the factories visible through r keyed by name, suitable
// for an expression environment.
func (r *Registry) Bindings() map[string]any {
	var chain []*Registry
	for ; r != nil; r = r.parent {
		chain = append(chain, r)
	}

	m := make(map[string]any)

	for _, c := range slices.Backward(chain) {
		c.mu.RLock()
		for name, f := range c.factories {
			m[name] = f
		}
		c.mu.RUnlock()
	}

	return m
}

// splitArgs separates a trailing keyword map from positional arguments.
func splitArgs(args []any) ([]any, map[string]any) {
	if n := len(args); n > 0 {
		if kw, ok := args[n-1].(map[string]any); ok {
			return args[:n-1], kw
		}
	}

	return args, nil
}

// StructFactory returns a Factory that copies proto and assigns arguments to
// its exported fields. Positional arguments fill fields in declaration
// order; keyword arguments match field names case-insensitively or by
// mapstructure tag. Fields not given an argument keep proto's value.
//
// Either T or *T must implement [Component].
func StructFactory[T any](proto T) Factory {
	return func(args ...any) (Component, error) {
		v := proto

		if err := bindStruct(&v, args); err != nil {
			return nil, err
		}

		if c, ok := any(&v).(Component); ok {
			return c, nil
		}

		if c, ok := any(v).(Component); ok {
			return c, nil
		}

		return nil, ErrNotComponent.Wrap(fmt.Errorf("%T", v))
	}
}

func bindStruct(ptr any, args []any) error {
	t := reflect.TypeOf(ptr).Elem()
	if t.Kind() != reflect.Struct {
		return ErrComponentArgs.Wrap(fmt.Errorf("%s is not a struct", t))
	}

	var names []string

	for f := range structFields(t) {
		names = append(names, f.name)
	}

	pos, kw := splitArgs(args)
	if len(pos) > len(names) {
		return ErrComponentArgs.Wrap(fmt.Errorf(
			"%s takes at most %d positional arguments, got %d",
			t.Name(), len(names), len(pos),
		))
	}

	input := make(map[string]any, len(pos)+len(kw))
	for i, a := range pos {
		input[names[i]] = a
	}

	for k, a := range kw {
		if _, dup := input[k]; dup {
			return ErrComponentArgs.Wrap(fmt.Errorf("multiple values for %q", k))
		}

		input[k] = a
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           ptr,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return ErrComponentArgs.Wrap(err)
	}

	if err := dec.Decode(input); err != nil {
		return ErrComponentArgs.Wrap(err)
	}

	return nil
}

type structField struct {
	index int
	name  string
}

// structFields yields the exported fields of t with their binding names: the
// mapstructure tag name, or else the field name with a lower-case initial.
func structFields(t reflect.Type) func(func(structField) bool) {
	return func(yield func(structField) bool) {
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() || f.Anonymous {
				continue
			}

			name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
			if name == "-" {
				continue
			}

			if name == "" {
				r, n := utf8.DecodeRuneInString(f.Name)
				name = string(unicode.ToLower(r)) + f.Name[n:]
			}

			if !yield(structField{index: i, name: name}) {
				return
			}
		}
	}
}

// componentFields returns the variables bound while c renders.
func componentFields(c Component) map[string]any {
	m := map[string]any{"self": c}

	if f, ok := c.(Fielder); ok {
		maps.Copy(m, f.Fields())

		return m
	}

	v := reflect.ValueOf(c)
	for v.Kind() == reflect.Pointer && !v.IsNil() {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return m
	}

	for f := range structFields(v.Type()) {
		m[f.name] = v.Field(f.index).Interface()
	}

	return m
}

// componentName returns a display name for c.
func componentName(c Component) string {
	if d, ok := c.(*DataComponent); ok && d.Name != "" {
		return d.Name
	}

	t := reflect.TypeOf(c)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return t.Name()
}

// DataComponent is a component defined by data rather than a Go type: a
// template plus the values bound while it renders.
type DataComponent struct {
	Name   string
	Source string
	Values map[string]any
	Scope  *Registry
}

// Template implements [Component].
func (d *DataComponent) Template() string { return d.Source }

// Fields implements [Fielder].
func (d *DataComponent) Fields() map[string]any { return maps.Clone(d.Values) }

// Registry implements [Scoped].
func (d *DataComponent) Registry() *Registry { return d.Scope }

// DataFactory returns a Factory of [DataComponent] values. Positional
// arguments bind params in order; keyword arguments bind params by name.
// Params without an argument take their value from defaults, and a param
// with neither is an error.
func DataFactory(
	name, template string,
	params []string,
	defaults map[string]any,
	reg *Registry,
) Factory {
	return func(args ...any) (Component, error) {
		pos, kw := splitArgs(args)
		if len(pos) > len(params) {
			return nil, ErrComponentArgs.Wrap(fmt.Errorf(
				"%s takes at most %d positional arguments, got %d",
				name, len(params), len(pos),
			))
		}

		values := maps.Clone(defaults)
		if values == nil {
			values = make(map[string]any, len(params))
		}

		for i, a := range pos {
			values[params[i]] = a
		}

		for k, a := range kw {
			if !slices.Contains(params, k) {
				if _, ok := defaults[k]; !ok {
					return nil, ErrComponentArgs.Wrap(
						fmt.Errorf("%s has no parameter %q", name, k),
					)
				}
			}

			if i := slices.Index(params, k); i >= 0 && i < len(pos) {
				return nil, ErrComponentArgs.Wrap(fmt.Errorf("multiple values for %q", k))
			}

			values[k] = a
		}

		for _, p := range params {
			if _, ok := values[p]; !ok {
				return nil, ErrComponentArgs.Wrap(
					fmt.Errorf("%s missing argument %q", name, p),
				)
			}
		}

		return &DataComponent{
			Name:   name,
			Source: template,
			Values: values,
			Scope:  reg,
		}, nil
	}
}
