package resolve

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ardnew/ghostwriter/cogen"
	"github.com/ardnew/ghostwriter/pkg"
	"github.com/ardnew/ghostwriter/snippet"
)

type hello struct{ Name string }

func (hello) Template() string { return "hi <<name>>" }

func expand(t *testing.T, exp snippet.Expander, name, prefix string) (string, error) {
	t.Helper()

	var sb strings.Builder

	sc := &snippet.Context{File: "test.go", Line: 7, Name: name, Prefix: prefix}
	err := exp.Expand(t.Context(), sc, &sb)

	return sb.String(), err
}

func TestResolveRegistered(t *testing.T) {
	t.Parallel()

	errBad := errors.New("bad")

	tests := []struct {
		name    string
		value   any
		want    string
		wantErr error
	}{
		{
			name: "func",
			value: Func(func(_ context.Context, sc *snippet.Context, w io.Writer) error {
				_, err := io.WriteString(w, sc.Prefix+"func\n")

				return err
			}),
			want: "  func\n",
		},
		{
			name: "plain_func",
			value: func(_ context.Context, sc *snippet.Context, w io.Writer) error {
				_, err := io.WriteString(w, sc.Prefix+sc.Name+"\n")

				return err
			},
			want: "  pkg.plain_func\n",
		},
		{
			name: "writer",
			value: func(sc *snippet.Context, w io.Writer) error {
				_, err := io.WriteString(w, sc.Prefix+"writer\n")

				return err
			},
			want: "  writer\n",
		},
		{
			name: "string_error",
			value: func(*snippet.Context) (string, error) {
				return "one\n\ntwo", nil
			},
			want: "  one\n\n  two\n",
		},
		{
			name: "string_error_fails",
			value: func(*snippet.Context) (string, error) {
				return "", errBad
			},
			wantErr: errBad,
		},
		{
			name:  "string",
			value: func() string { return "hello\n" },
			want:  "  hello\n",
		},
		{
			name:  "component",
			value: hello{Name: "Ann"},
			want:  "  hi Ann\n",
		},
		{
			name:    "unsupported",
			value:   42,
			wantErr: ErrSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewResolver(nil)

			name := "pkg." + tt.name
			if err := r.Register(name, tt.value); err != nil {
				t.Fatal(err)
			}

			got, err := expand(t, r.Expander(nil), name, "  ")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expand() error = %v, want %v", err, tt.wantErr)
				}

				return
			}

			if err != nil {
				t.Fatalf("Expand() error = %v", err)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Expand() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveErrors(t *testing.T) {
	t.Parallel()

	r := NewResolver([]string{t.TempDir()})

	if err := r.Register("reg.alpha", func() string { return "" }); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		snippet    string
		want       error
		suggestion string
	}{
		{name: "unqualified", snippet: "nodot", want: ErrUnqualified},
		{name: "trailing_dot", snippet: "mod.", want: ErrUnqualified},
		{name: "missing_module", snippet: "missing.thing", want: ErrModuleNotFound},
		{name: "registered_sibling", snippet: "reg.alpa", want: ErrAttrNotFound, suggestion: "alpha"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := r.Resolve(tt.snippet)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Resolve(%q) error = %v, want %v", tt.snippet, err, tt.want)
			}

			if tt.suggestion != "" && !strings.Contains(err.Error(), tt.suggestion) {
				t.Errorf("Resolve(%q) error = %v, want suggestion %q", tt.snippet, err, tt.suggestion)
			}
		})
	}

	if err := r.Register("nodot", nil); !errors.Is(err, ErrUnqualified) {
		t.Errorf("Register() error = %v, want %v", err, ErrUnqualified)
	}
}

func TestExpanderErrors(t *testing.T) {
	t.Parallel()

	errFail := errors.New("fail")

	r := NewResolver(nil)

	for name, v := range map[string]any{
		"x.panics": func() string { panic("oops") },
		"x.fails": func(*snippet.Context, io.Writer) error {
			return errFail
		},
	} {
		if err := r.Register(name, v); err != nil {
			t.Fatal(err)
		}
	}

	_, err := expand(t, r.Expander(nil), "x.panics", "")
	if !errors.Is(err, ErrExpansion) || !strings.Contains(err.Error(), "oops") {
		t.Errorf("Expand(x.panics) error = %v, want %v with panic value", err, ErrExpansion)
	}

	_, err = expand(t, r.Expander(nil), "x.fails", "")
	if !errors.Is(err, ErrExpansion) || !errors.Is(err, errFail) {
		t.Errorf("Expand(x.fails) error = %v, want %v wrapping %v", err, ErrExpansion, errFail)
	}

	_, err = expand(t, r.Expander(nil), "y.none", "")

	var pe *pkg.Error
	if !errors.As(err, &pe) {
		t.Fatalf("Expand(y.none) error = %v, want *pkg.Error", err)
	}

	for key, want := range map[string]slog.Value{
		"snippet": slog.StringValue("y.none"),
		"file":    slog.StringValue("test.go"),
		"line":    slog.IntValue(7),
	} {
		if got, ok := pe.Attr(key); !ok || !got.Equal(want) {
			t.Errorf("Expand(y.none) attr %q = %v, want %v", key, got, want)
		}
	}
}

func TestNames(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil)

	for _, name := range []string{"b.two", "a.one", "b.one"} {
		if err := r.Register(name, func() string { return "" }); err != nil {
			t.Fatal(err)
		}
	}

	if diff := cmp.Diff([]string{"a.one", "b.one", "b.two"}, r.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveWithEngine(t *testing.T) {
	t.Parallel()

	reg := cogen.NewRegistry(nil)
	engine := cogen.NewEngine(cogen.WithRegistry(reg))
	r := NewResolver(nil, WithComponents(reg), WithEngine(engine))

	if r.Components() != reg {
		t.Error("Components() did not return the configured registry")
	}

	if err := r.Register("c.hello", hello{Name: "Bo"}); err != nil {
		t.Fatal(err)
	}

	f, err := r.Resolve("c.hello")
	if err != nil {
		t.Fatal(err)
	}

	var sb strings.Builder
	if err := f(t.Context(), &snippet.Context{Name: "c.hello"}, &sb); err != nil {
		t.Fatal(err)
	}

	if got, want := sb.String(), "hi Bo\n"; got != want {
		t.Errorf("Resolve() output = %q, want %q", got, want)
	}
}
