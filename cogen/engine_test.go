package cogen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type greeting struct {
	Name  string
	Punct string
}

func (greeting) Template() string { return "Hello, <<name>><<punct>>" }

type list struct {
	Items []string
}

func (list) Template() string {
	return `
		%for item in items
		- <<item>>
		%/for
	`
}

type wrapper struct {
	Tag string
}

func (wrapper) Template() string {
	return "<<tag>> {\n    %body\n    %/body\n}"
}

type leaky struct{}

func (leaky) Template() string { return "<<thing>>" }

type twice struct{}

func (twice) Template() string { return "%body\n%/body\n%body\n%/body" }

type fallback struct{}

func (fallback) Template() string { return "%body\ndefault\n%/body" }

type badBody struct{}

func (badBody) Template() string { return "%body x\n%/body" }

func testEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()

	reg := NewRegistry(nil)

	for name, f := range map[string]Factory{
		"Greeting": StructFactory(greeting{Punct: "."}),
		"List":     StructFactory(list{}),
		"Wrapper":  StructFactory(wrapper{}),
		"Leaky":    StructFactory(leaky{}),
		"Twice":    StructFactory(twice{}),
		"Fallback": StructFactory(fallback{}),
		"BadBody":  StructFactory(badBody{}),
	} {
		if err := reg.Register(name, f); err != nil {
			t.Fatal(err)
		}
	}

	return NewEngine(append([]Option{WithRegistry(reg)}, opts...)...)
}

func render(t *testing.T, e *Engine, src string, vars map[string]any) (string, error) {
	t.Helper()

	var buf strings.Builder
	err := e.RenderString(context.Background(), src, NewScope(vars), &buf, "")

	return buf.String(), err
}

const conditional = `
%if thing == 'foo'
foo won!
%elif thing == 'bar'
bar won!
%else
nobody won!
%/if
`

func TestRenderString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		vars map[string]any
		want string
	}{
		{"if_branch", conditional, map[string]any{"thing": "foo"}, "foo won!\n"},
		{"elif_branch", conditional, map[string]any{"thing": "bar"}, "bar won!\n"},
		{"else_branch", conditional, map[string]any{"thing": "baz"}, "nobody won!\n"},
		{
			name: "loop_destructuring",
			src:  "%for name, age in people\n<<name>> is <<age>> years old\n%/for",
			vars: map[string]any{"people": []any{
				[]any{"Janet", 38},
				[]any{"Peter", 12},
			}},
			want: "Janet is 38 years old\nPeter is 12 years old\n",
		},
		{
			name: "loop_prefix_does_not_indent",
			src:  "   %for x in range(0,2)\n   line <<x>>\n   %/for",
			want: "line 0\nline 1\n",
		},
		{
			name: "nested_relative_indentation",
			src:  "%for x in [1, 2]\n    %if x == 2\n    two\n    %/if\n%/for",
			want: "    two\n",
		},
		{
			name: "empty_loop",
			src:  "before\n%for x in []\n<<x>>\n%/for\nafter",
			want: "before\nafter\n",
		},
		{
			name: "no_branch_matches",
			src:  "%if False\nx\n%/if",
			want: "",
		},
		{
			name: "blank_lines",
			src:  "a\n\nb",
			want: "a\n\nb\n",
		},
		{
			name: "escaped_marker",
			src:  "%% not control",
			want: "% not control\n",
		},
		{
			name: "map_pairs_sorted",
			src:  "%for k, v in m\n<<k>>=<<v>>\n%/for",
			vars: map[string]any{"m": map[string]any{"b": 2, "a": 1}},
			want: "a=1\nb=2\n",
		},
		{
			name: "map_keys",
			src:  "%for k in m\n<<k>>\n%/for",
			vars: map[string]any{"m": map[string]int{"y": 1, "x": 2}},
			want: "x\ny\n",
		},
		{
			name: "none_alias",
			src:  "<<x == None>> <<True && !False>>",
			vars: map[string]any{"x": nil},
			want: "true true\n",
		},
		{
			name: "builtins",
			src:  "<<title('hello world')>> <<str(range(3))>> <<repr('q')>>",
			want: "Hello World [0 1 2] \"q\"\n",
		},
		{
			name: "inline_literals",
			src:  "x <<'y'>> z",
			want: "x y z\n",
		},
		{
			name: "empty_interpolation_line",
			src:  "  <<s>>\nnext",
			vars: map[string]any{"s": ""},
			want: "\nnext\n",
		},
		{
			name: "struct_component",
			src:  "%r Greeting('Ann')\n%/r",
			want: "Hello, Ann.\n",
		},
		{
			name: "keyword_arguments",
			src:  "%r Greeting('Ann', {punct: '!'})\n%/r",
			want: "Hello, Ann!\n",
		},
		{
			name: "keyword_arguments_assigned",
			src:  "%r Greeting('Ann', punct='!')\n%/r",
			want: "Hello, Ann!\n",
		},
		{
			name: "list_comprehension",
			src:  "<<join([str(n * 2) for n in range(3)], ',')>>",
			want: "0,2,4\n",
		},
		{
			name: "comprehension_map_keys",
			src:  "<<join([k for k in m], ',')>>",
			vars: map[string]any{"m": map[string]any{"b": 1, "a": 2}},
			want: "a,b\n",
		},
		{
			name: "comprehension_filtered_items",
			src:  "<<join([k for k, v in items(m) if v > 1], ',')>>",
			vars: map[string]any{"m": map[string]any{"a": 1, "b": 2, "c": 3}},
			want: "b,c\n",
		},
		{
			name: "dict_comprehension",
			src:  "<<len({k: 1 for k in ['a', 'b', 'a']})>>",
			want: "2\n",
		},
		{
			name: "generator_argument",
			src:  "<<sum(n for n in [1, 2, 3])>>",
			want: "6\n",
		},
		{
			name: "component_indentation",
			src:  "root:\n  %r List(['a', 'b'])\n  %/r",
			want: "root:\n  - a\n  - b\n",
		},
		{
			name: "component_body",
			src:  "%r Wrapper('func')\nreturn 1\n%/r",
			want: "func {\n    return 1\n}\n",
		},
		{
			name: "component_body_additive",
			src:  "%r Wrapper('func')\n    return 1\n%/r",
			want: "func {\n        return 1\n}\n",
		},
		{
			name: "component_from_scope",
			src:  "%r g\n%/r",
			vars: map[string]any{"g": greeting{Name: "Bo", Punct: "?"}},
			want: "Hello, Bo?\n",
		},
		{
			name: "body_renders_once",
			src:  "%r Twice()\nx\n%/r",
			want: "x\n",
		},
		{
			name: "body_default",
			src:  "%r Fallback()\n%/r",
			want: "default\n",
		},
	}

	e := testEngine(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := render(t, e, tt.src, tt.vars)
			if err != nil {
				t.Fatalf("RenderString() error = %v", err)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("RenderString() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRenderStringErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		vars map[string]any
		want error
	}{
		{"unbound", "<<missing>>", nil, ErrUnbound},
		{"syntax", "<<1 +>>", nil, ErrExprSyntax},
		{"variable_declaration", "<<let y = 1; y>>", nil, ErrExprSyntax},
		{"reserved_loop_name", "%for X in [1]\n%/for", nil, ErrReservedName},
		{"bad_loop_header", "%for x of [1]\n%/for", nil, ErrLoopHeader},
		{"destructure_length", "%for a, b in [[1]]\n%/for", nil, ErrDestructure},
		{"not_iterable", "%for x in 5\n%/for", nil, ErrNotIterable},
		{"unknown_block", "%foo\n%/foo", nil, ErrUnknownBlock},
		{"not_component", "%r 5\n%/r", nil, ErrNotComponent},
		{"unknown_component", "%r Greting()\n%/r", nil, ErrUnknownComponent},
		{"component_isolation", "%r Leaky()\n%/r", map[string]any{"thing": "x"}, ErrUnbound},
		{"body_args", "%r BadBody()\n%/r", nil, ErrBodyArgs},
		{"component_args", "%r Greeting('a', 'b', 'c')\n%/r", nil, ErrComponentArgs},
		{"component_keyword", "%r Greeting({color: 'red'})\n%/r", nil, ErrComponentArgs},
		{"parse", "%for x in xs", nil, ErrUnclosedBlock},
		{"runtime_error", "<<1 / nope()>>", map[string]any{"nope": func() (int, error) {
			return 0, errors.New("nope")
		}}, ErrExprEvaluate},
	}

	e := testEngine(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := render(t, e, tt.src, tt.vars)
			if !errors.Is(err, tt.want) {
				t.Errorf("RenderString(%q) error = %v, want %v", tt.src, err, tt.want)
			}
		})
	}
}

func TestUnknownComponentSuggestion(t *testing.T) {
	t.Parallel()

	_, err := render(t, testEngine(t), "%r Greting()\n%/r", nil)
	if err == nil || !strings.Contains(err.Error(), "did you mean Greeting?") {
		t.Errorf("error = %v, want suggestion", err)
	}
}

func TestRuntimeErrorPosition(t *testing.T) {
	t.Parallel()

	_, err := render(t, testEngine(t), "ok\n  x <<missing>>", nil)

	var se *SourceError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *SourceError", err)
	}

	if se.Pos.Line != 2 || se.Pos.Column != 7 {
		t.Errorf("position = %v, want 2:7", se.Pos)
	}
}

func TestRenderPrefix(t *testing.T) {
	t.Parallel()

	var buf strings.Builder

	e := testEngine(t)
	if err := e.RenderString(context.Background(), "a\n  b\n\nc", nil, &buf, "\t"); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff("\ta\n\t  b\n\n\tc\n", buf.String()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	var buf strings.Builder

	e := testEngine(t)
	if err := e.Render(context.Background(), list{Items: []string{"x"}}, &buf, "// "); err != nil {
		t.Fatal(err)
	}

	if got := buf.String(); got != "// - x\n" {
		t.Errorf("Render() = %q", got)
	}
}

func TestCustomBlock(t *testing.T) {
	t.Parallel()

	repeat := func(f *Frame, blk *Block) error {
		v, err := f.Eval(blk.Args)
		if err != nil {
			return err
		}

		n, _ := v.(int)
		for i := range n {
			if err := f.With(map[string]any{"i": i}).Exec(blk.Body); err != nil {
				return err
			}
		}

		return nil
	}

	e := NewEngine(WithBlock("repeat", repeat))

	got, err := render(t, e, "%repeat 2\n<<i>>\n%/repeat", nil)
	if err != nil {
		t.Fatal(err)
	}

	if got != "0\n1\n" {
		t.Errorf("got %q", got)
	}
}

func TestRenderCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf strings.Builder

	err := NewEngine().RenderString(ctx, "%for x in range(3)\n<<x>>\n%/for", nil, &buf, "")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestEngineGlobals(t *testing.T) {
	t.Parallel()

	e := NewEngine(WithGlobals(map[string]any{"project": "gw"}))

	v, err := e.Eval("project + '!'", NewScope(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}

	if v != "gw!" {
		t.Errorf("Eval() = %v", v)
	}
}
