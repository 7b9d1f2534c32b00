package cogen

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"reflect"
	"slices"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/file"
	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru"

	"github.com/ardnew/ghostwriter/pkg"
)

// DefaultProgramCacheSize is the number of compiled expressions retained by
// an [Engine].
const DefaultProgramCacheSize = 512

// compiled is a cached expression program with the free identifiers it
// references.
type compiled struct {
	program  *vm.Program
	idents   []string
	elements bool
}

// evaluator compiles and runs expressions, caching programs by source.
type evaluator struct {
	programs *lru.Cache
}

func newEvaluator(size int) *evaluator {
	if size <= 0 {
		size = DefaultProgramCacheSize
	}

	c, err := lru.New(size)
	if err != nil {
		panic(err) // only fails for non-positive sizes
	}

	return &evaluator{programs: c}
}

// patcher rewrites the constants None, True and False and records free
// identifiers. Names bound by the declarations that comprehensions compile
// to are not free.
type patcher struct {
	idents   []string
	declared []string
}

// Visit implements ast.Visitor.
func (p *patcher) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		switch n.Value {
		case "None":
			ast.Patch(node, &ast.NilNode{})
		case "True":
			ast.Patch(node, &ast.BoolNode{Value: true})
		case "False":
			ast.Patch(node, &ast.BoolNode{Value: false})
		default:
			if !slices.Contains(p.idents, n.Value) {
				p.idents = append(p.idents, n.Value)
			}
		}

	case *ast.VariableDeclaratorNode:
		p.declared = append(p.declared, n.Name)
	}
}

func (p *patcher) free() []string {
	return slices.DeleteFunc(p.idents, func(id string) bool {
		return slices.Contains(p.declared, id)
	})
}

func (e *evaluator) compile(src string) (*compiled, error) {
	if c, ok := e.programs.Get(src); ok {
		return c.(*compiled), nil
	}

	rewritten, elements, err := rewrite(src)
	if err != nil {
		return nil, exprSyntax(src, err)
	}

	var p patcher

	program, err := expr.Compile(rewritten, expr.Patch(&p))
	if err != nil {
		var fe *file.Error
		if rewritten != src && errors.As(err, &fe) {
			err = errors.New(fe.Message)
		}

		return nil, exprSyntax(src, err)
	}

	c := &compiled{program: program, idents: p.free(), elements: elements}
	e.programs.Add(src, c)

	return c, nil
}

// Offset returns the byte offset recorded on an expression syntax error.
func Offset(err error) (int, bool) {
	for err != nil {
		var pe *pkg.Error
		if !errors.As(err, &pe) {
			break
		}

		if v, ok := pe.Attr("offset"); ok {
			return int(v.Int64()), true
		}

		err = pe.Unwrap()
	}

	return 0, false
}

func exprSyntax(src string, err error) error {
	offset, msg := 0, err.Error()

	var fe *file.Error
	if errors.As(err, &fe) {
		offset, msg = max(fe.Column, 0), fe.Message
	}

	return ErrExprSyntax.With(
		slog.String("expr", src),
		slog.Int("offset", offset),
	).Wrap(errors.New(msg))
}

// eval runs src against env. Identifiers missing from env are reported as
// [ErrUnbound] before the program runs.
func (e *evaluator) eval(src string, env map[string]any) (result any, err error) {
	c, err := e.compile(src)
	if err != nil {
		return nil, err
	}

	if c.elements {
		env = maps.Clone(env)
		env[elementsFunc] = collectElements
	}

	for _, id := range c.idents {
		if _, ok := env[id]; !ok {
			return nil, ErrUnbound.With(
				slog.String("name", id),
				slog.String("expr", src),
			).Wrap(errors.New(id))
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = ErrExprEvaluate.With(slog.String("expr", src)).
				Wrap(fmt.Errorf("%v", r))
		}
	}()

	out, err := vm.Run(c.program, env)
	if err != nil {
		return nil, ErrExprEvaluate.With(slog.String("expr", src)).Wrap(err)
	}

	return out, nil
}

// Truthy reports whether v is considered true by conditional blocks: nil,
// false, numeric zero and empty strings, slices and maps are false.
func Truthy(v any) bool {
	if v == nil {
		return false
	}

	if b, ok := v.(bool); ok {
		return b
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface, reflect.Func:
		return !rv.IsNil()
	}

	return true
}

// Elements returns the elements of an iterable value: slices, arrays,
// strings (by rune), maps (by key, sorted) and iter.Seq[any].
func Elements(v any) (iter.Seq[any], error) {
	switch s := v.(type) {
	case nil:
		return func(func(any) bool) {}, nil
	case iter.Seq[any]:
		return s, nil
	case string:
		return func(yield func(any) bool) {
			for _, r := range s {
				if !yield(string(r)) {
					return
				}
			}
		}, nil
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return func(yield func(any) bool) {
			for i := range rv.Len() {
				if !yield(rv.Index(i).Interface()) {
					return
				}
			}
		}, nil

	case reflect.Map:
		keys := sortedKeys(rv)

		return func(yield func(any) bool) {
			for _, k := range keys {
				if !yield(k.Interface()) {
					return
				}
			}
		}, nil
	}

	return nil, ErrNotIterable.Wrap(fmt.Errorf("%T", v))
}

func collectElements(v any) ([]any, error) {
	seq, err := Elements(v)
	if err != nil {
		return nil, err
	}

	return slices.Collect(seq), nil
}

// Pairs is like [Elements] but yields map entries as two-element
// [key, value] slices.
func Pairs(v any) (iter.Seq[any], error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return Elements(v)
	}

	keys := sortedKeys(rv)

	return func(yield func(any) bool) {
		for _, k := range keys {
			if !yield([]any{k.Interface(), rv.MapIndex(k).Interface()}) {
				return
			}
		}
	}, nil
}

func sortedKeys(rv reflect.Value) []reflect.Value {
	keys := rv.MapKeys()

	slices.SortFunc(keys, compareKeys)

	return keys
}

// keyClass groups the kinds whose values compare by value. Numbers of any
// kind compare with each other and sort before strings; other kinds sort
// last, by their printed form.
func keyClass(v reflect.Value) int {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return 0
	case reflect.String:
		return 1
	default:
		return 2
	}
}

func compareKeys(a, b reflect.Value) int {
	for a.Kind() == reflect.Interface && !a.IsNil() {
		a = a.Elem()
	}

	for b.Kind() == reflect.Interface && !b.IsNil() {
		b = b.Elem()
	}

	ca, cb := keyClass(a), keyClass(b)
	if ca != cb {
		return cmp.Compare(ca, cb)
	}

	switch ca {
	case 0:
		if c := compareNumbers(a, b); c != 0 {
			return c
		}
	case 1:
		return cmp.Compare(a.String(), b.String())
	}

	return cmp.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
}

func compareNumbers(a, b reflect.Value) int {
	switch {
	case a.CanInt() && b.CanInt():
		return cmp.Compare(a.Int(), b.Int())
	case a.CanUint() && b.CanUint():
		return cmp.Compare(a.Uint(), b.Uint())
	}

	return cmp.Compare(toFloat(a), toFloat(b))
}

func toFloat(v reflect.Value) float64 {
	switch {
	case v.CanInt():
		return float64(v.Int())
	case v.CanUint():
		return float64(v.Uint())
	default:
		return v.Float()
	}
}

// Destructure splits v into exactly n values.
func Destructure(v any, n int) ([]any, error) {
	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Len() != n {
			return nil, ErrDestructure.Wrap(
				fmt.Errorf("want %d values, got %d", n, rv.Len()),
			)
		}

		out := make([]any, n)
		for i := range n {
			out[i] = rv.Index(i).Interface()
		}

		return out, nil
	}

	return nil, ErrDestructure.Wrap(fmt.Errorf("%T is not a sequence", v))
}
