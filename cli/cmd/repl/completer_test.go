package repl

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ardnew/ghostwriter/cogen"
)

func TestWordBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		cursor    int
		wantWord  string
		wantStart int
		wantEnd   int
	}{
		{"simple", "foo", 3, "foo", 0, 3},
		{"dot_separated", "bar.baz", 7, "baz", 4, 7},
		{"after_plus", "a + fo", 6, "fo", 4, 6},
		{"after_minus", "a-fo", 4, "fo", 2, 4},
		{"after_paren", "double(fo", 9, "fo", 7, 9},
		{"after_comma", "add(a, fo", 9, "fo", 7, 9},
		{"in_ternary", "x ? fo", 6, "fo", 4, 6},
		{"in_template", "<<na", 4, "na", 2, 4},
		{"empty_at_boundary", "a + ", 4, "", 4, 4},
		{"mid_word", "foobar", 3, "foobar", 0, 6},
		{"at_start", "foo", 0, "foo", 0, 3},
		{"between_operators", "a+b", 2, "b", 2, 3},
		{"cursor_past_end", "foo", 10, "foo", 0, 3},
		{"empty_after_dot", "config.", 7, "", 7, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			word, start, end := wordBounds(tt.input, tt.cursor)
			if word != tt.wantWord || start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("wordBounds(%q, %d) = (%q, %d, %d), want (%q, %d, %d)",
					tt.input, tt.cursor, word, start, end,
					tt.wantWord, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestParentPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		wordStart int
		want      string
	}{
		{"top_level", "fo", 0, ""},
		{"simple_chain", "bar.baz.", 8, "bar.baz"},
		{"after_operator", "foo + bar.baz.", 14, "bar.baz"},
		{"after_paren", "(bar.baz.", 9, "bar.baz"},
		{"no_chain", "a + ", 4, ""},
		{"deep_chain", "a.b.c.", 6, "a.b.c"},
		{"after_equals", "x == a.b.", 9, "a.b"},
		{"not_member", "foo ba", 4, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := parentPath(tt.input, tt.wordStart); got != tt.want {
				t.Errorf("parentPath(%q, %d) = %q, want %q",
					tt.input, tt.wordStart, got, tt.want)
			}
		})
	}
}

type member struct {
	Name   string
	Port   int
	hidden bool
}

func (member) Addr() string { return "" }

func TestMemberNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		v    any
		want []string
	}{
		{name: "nil", v: nil, want: nil},
		{name: "map", v: map[string]any{"b": 1, "a": 2}, want: []string{"a", "b"}},
		{name: "int_keys", v: map[int]string{1: "x"}, want: nil},
		{name: "struct", v: member{}, want: []string{"Addr", "Name", "Port"}},
		{name: "pointer", v: &member{}, want: []string{"Addr", "Name", "Port"}},
		{name: "scalar", v: 3, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if diff := cmp.Diff(tt.want, memberNames(tt.v)); diff != "" {
				t.Errorf("memberNames mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func newCompleter() completer {
	return completer{
		engine: cogen.NewEngine(),
		scope: cogen.NewScope(map[string]any{
			"server": map[string]any{"host": "localhost", "port": 8080},
			"names":  []any{"a", "b"},
		}),
	}
}

func matchStrings(t *testing.T, c completer, input string, mode inputMode) []string {
	t.Helper()

	matches, _, _ := c.complete(input, len(input), mode)

	var got []string
	for _, m := range matches {
		got = append(got, m.Str)
	}

	return got
}

func TestComplete(t *testing.T) {
	t.Parallel()

	c := newCompleter()

	t.Run("top_level", func(t *testing.T) {
		t.Parallel()

		got := matchStrings(t, c, "serv", modeEval)
		if len(got) == 0 || got[0] != "server" {
			t.Errorf("complete(serv) = %v, want server first", got)
		}
	})

	t.Run("builtins", func(t *testing.T) {
		t.Parallel()

		if got := c.topLevel(); !slices.Contains(got, "len") || !slices.Contains(got, "names") {
			t.Errorf("topLevel() = %v, want len and names", got)
		}
	})

	t.Run("members", func(t *testing.T) {
		t.Parallel()

		want := []string{"host", "port"}
		if diff := cmp.Diff(want, matchStrings(t, c, "server.", modeEval)); diff != "" {
			t.Errorf("complete(server.) mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		if got := matchStrings(t, c, "", modeEval); got != nil {
			t.Errorf("complete(\"\") = %v, want nil", got)
		}
	})

	t.Run("unknown_parent", func(t *testing.T) {
		t.Parallel()

		if got := matchStrings(t, c, "nope.", modeEval); got != nil {
			t.Errorf("complete(nope.) = %v, want nil", got)
		}
	})

	t.Run("command", func(t *testing.T) {
		t.Parallel()

		want := []string{"list"}
		if diff := cmp.Diff(want, matchStrings(t, c, "lis", modeCtrl)); diff != "" {
			t.Errorf("complete(lis) mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("command_argument", func(t *testing.T) {
		t.Parallel()

		if got := matchStrings(t, c, "set he", modeCtrl); got != nil {
			t.Errorf("complete(set he) = %v, want nil", got)
		}
	})
}
