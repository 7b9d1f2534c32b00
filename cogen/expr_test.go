package cogen

import (
	"errors"
	"iter"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTruthy(t *testing.T) {
	t.Parallel()

	var nilPtr *int

	tests := []struct {
		v    any
		want bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{0, false},
		{uint8(3), true},
		{0.0, false},
		{"", false},
		{"x", true},
		{[]any{}, false},
		{[]int{1}, true},
		{map[string]any{}, false},
		{nilPtr, false},
		{struct{}{}, true},
	}

	for _, tt := range tests {
		if got := Truthy(tt.v); got != tt.want {
			t.Errorf("Truthy(%#v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestElements(t *testing.T) {
	t.Parallel()

	var seq iter.Seq[any] = func(yield func(any) bool) {
		_ = yield(1) && yield(2)
	}

	tests := []struct {
		name string
		v    any
		want []any
	}{
		{"slice", []string{"a", "b"}, []any{"a", "b"}},
		{"array", [2]int{1, 2}, []any{1, 2}},
		{"string", "hé", []any{"h", "é"}},
		{"map", map[string]int{"b": 1, "a": 2}, []any{"a", "b"}},
		{"int_keys", map[int]int{10: 0, 2: 0, 1: 0}, []any{1, 2, 10}},
		{"uint_keys", map[uint8]bool{20: true, 3: true}, []any{uint8(3), uint8(20)}},
		{"mixed_keys", map[any]int{"b": 0, 10: 0, 2.5: 0, "a": 0, -1: 0}, []any{-1, 2.5, 10, "a", "b"}},
		{"seq", seq, []any{1, 2}},
		{"nil", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			it, err := Elements(tt.v)
			if err != nil {
				t.Fatal(err)
			}

			if diff := cmp.Diff(tt.want, slices.Collect(it)); diff != "" {
				t.Errorf("Elements() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := Elements(3.5); !errors.Is(err, ErrNotIterable) {
		t.Errorf("Elements(3.5) error = %v", err)
	}
}

func TestParseLoopHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		args    string
		names   []string
		expr    string
		wantErr error
	}{
		{"x in xs", []string{"x"}, "xs", nil},
		{" k ,v in  items(m) ", []string{"k", "v"}, "items(m)", nil},
		{"x in a in b", []string{"x"}, "a in b", nil},
		{"Item in xs", nil, "", ErrReservedName},
		{"x, x in xs", nil, "", ErrLoopHeader},
		{"in xs", nil, "", ErrLoopHeader},
		{"x xs", nil, "", ErrLoopHeader},
	}

	for _, tt := range tests {
		names, expr, err := ParseLoopHeader(tt.args)
		if !errors.Is(err, tt.wantErr) && (err != nil || tt.wantErr != nil) {
			t.Errorf("ParseLoopHeader(%q) error = %v, want %v", tt.args, err, tt.wantErr)

			continue
		}

		if diff := cmp.Diff(tt.names, names); diff != "" || expr != tt.expr {
			t.Errorf("ParseLoopHeader(%q) = %v, %q; want %v, %q",
				tt.args, names, expr, tt.names, tt.expr)
		}
	}
}

func TestEvaluatorCache(t *testing.T) {
	t.Parallel()

	e := newEvaluator(2)

	for _, src := range []string{"a + 1", "a + 1", "a * 2"} {
		v, err := e.eval(src, map[string]any{"a": 3})
		if err != nil {
			t.Fatal(err)
		}

		if v != 4 && v != 6 {
			t.Errorf("eval(%q) = %v", src, v)
		}
	}

	if n := e.programs.Len(); n != 2 {
		t.Errorf("cached programs = %d, want 2", n)
	}
}

func TestExprSyntaxOffset(t *testing.T) {
	t.Parallel()

	_, err := newEvaluator(0).compile("a +")
	if !errors.Is(err, ErrExprSyntax) {
		t.Fatalf("compile() error = %v, want %v", err, ErrExprSyntax)
	}

	if _, ok := Offset(err); !ok {
		t.Error("Offset() not recorded")
	}
}

func TestScope(t *testing.T) {
	t.Parallel()

	root := NewScope(map[string]any{"a": 1, "b": 2})
	child := root.Child(map[string]any{"b": 3, "c": 4})

	if v, _ := child.Lookup("b"); v != 3 {
		t.Errorf("Lookup(b) = %v, want 3", v)
	}

	if v, _ := child.Lookup("a"); v != 1 {
		t.Errorf("Lookup(a) = %v, want 1", v)
	}

	if _, ok := root.Lookup("c"); ok {
		t.Error("root sees child binding")
	}

	want := map[string]any{"a": 1, "b": 3, "c": 4}
	if diff := cmp.Diff(want, child.Flatten()); diff != "" {
		t.Errorf("Flatten() mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"a", "b", "c"}, child.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}

	var nilScope *Scope
	if _, ok := nilScope.Lookup("a"); ok || len(nilScope.Flatten()) != 0 {
		t.Error("nil scope is not empty")
	}
}

func TestBuiltins(t *testing.T) {
	t.Parallel()

	e := NewEngine()

	tests := []struct {
		src  string
		want any
	}{
		{"range(2, 8, 3)", []any{2, 5}},
		{"range(3, 0, -1)", []any{3, 2, 1}},
		{"indent('a\\nb\\n\\nc', '  ')", "a\n  b\n\n  c"},
		{"path.cat('a', 'b')", "a/b"},
		{"path.ext('x.go')", ".go"},
		{"env('GHOSTWRITER_UNSET_VARIABLE', 'fallback')", "fallback"},
	}

	for _, tt := range tests {
		got, err := e.Eval(tt.src, nil)
		if err != nil {
			t.Errorf("Eval(%q) error = %v", tt.src, err)

			continue
		}

		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Eval(%q) mismatch (-want +got):\n%s", tt.src, diff)
		}
	}

	if v, err := e.Eval("mung.prefix('/usr/bin', '/opt/bin')", nil); err != nil ||
		!strings.Contains(v.(string), "/opt/bin") {
		t.Errorf("mung.prefix = %v, %v", v, err)
	}

	if _, err := e.Eval("range(1, 2, 0)", nil); !errors.Is(err, ErrExprEvaluate) {
		t.Errorf("range step 0 error = %v", err)
	}
}

func TestScopeSet(t *testing.T) {
	t.Parallel()

	root := NewScope(map[string]any{"a": 1})
	child := root.Child(nil)

	child.Set("a", 2)
	child.Set("b", 3)

	if v, _ := root.Lookup("a"); v != 2 {
		t.Errorf("root a = %v, want 2", v)
	}

	if _, ok := root.Lookup("b"); ok {
		t.Error("Set defined b in the root")
	}

	child.Define("a", 4)

	if v, _ := root.Lookup("a"); v != 2 {
		t.Errorf("Define changed root a to %v", v)
	}
}
