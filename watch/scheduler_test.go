package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/radovskyb/watcher"

	"github.com/ardnew/ghostwriter/resolve"
	"github.com/ardnew/ghostwriter/snippet"
)

const greetRegion = "// <@@begin: gen.greet@@>\nold\n// <@@/gen.greet@@>\n"

func newResolver(t *testing.T, paths ...string) *resolve.Resolver {
	t.Helper()

	r := resolve.NewResolver(paths)

	err := r.Register("gen.greet", func(*snippet.Context) (string, error) {
		return "hello", nil
	})
	if err != nil {
		t.Fatal(err)
	}

	return r
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	return string(b)
}

func TestCompile(t *testing.T) {
	t.Parallel()

	for _, procs := range []int{1, 3} {
		t.Run(map[int]string{1: "single", 3: "pool"}[procs], func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			writeTree(t, root, map[string]string{
				"a.go":       greetRegion,
				"b.go":       "// <@@begin: gen.nope@@>\nkept\n// <@@/gen.nope@@>\n",
				"c.go":       "// <@@begin: gen.greet@@>\nunterminated\n",
				"d.txt":      greetRegion,
				"e.go":       "package e\n",
				"sub/f.html": "<!-- <@@begin: gen.greet@@> -->\n<!-- <@@/gen.greet@@> -->\n",
			})

			var (
				mu   sync.Mutex
				post [][]string
			)

			filter, err := NewFilter([]string{`\.go$`, `\.html$`}, nil, nil, snippet.DefaultTempSuffix)
			if err != nil {
				t.Fatal(err)
			}

			s, err := NewScheduler(Config{
				Root:      root,
				Filter:    filter,
				Processes: procs,
				PostProcess: func(_ context.Context, files []string) error {
					mu.Lock()
					defer mu.Unlock()

					post = append(post, files)

					return nil
				},
			}, newResolver(t))
			if err != nil {
				t.Fatalf("NewScheduler() error = %v", err)
			}

			sum, err := s.Compile(t.Context())
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}

			want := Summary{
				Files:         5,
				Replaced:      2,
				Failed:        1,
				Snippets:      3,
				SnippetErrors: 1,
				Rewritten: []string{
					filepath.Join(root, "a.go"),
					filepath.Join(root, "sub", "f.html"),
				},
			}

			opts := cmp.Options{
				cmpopts.IgnoreUnexported(Summary{}),
				cmpopts.IgnoreFields(Summary{}, "Duration"),
			}

			if diff := cmp.Diff(want, sum, opts...); diff != "" {
				t.Errorf("Compile() summary mismatch (-want +got):\n%s", diff)
			}

			if got, want := readFile(t, filepath.Join(root, "a.go")),
				"// <@@begin: gen.greet@@>\nhello\n// <@@/gen.greet@@>\n"; got != want {
				t.Errorf("a.go = %q, want %q", got, want)
			}

			if got := readFile(t, filepath.Join(root, "c.go")); got != "// <@@begin: gen.greet@@>\nunterminated\n" {
				t.Errorf("c.go changed to %q", got)
			}

			if got := readFile(t, filepath.Join(root, "d.txt")); got != greetRegion {
				t.Errorf("d.txt changed to %q", got)
			}

			mu.Lock()
			if diff := cmp.Diff([][]string{want.Rewritten}, post); diff != "" {
				t.Errorf("post-processed files mismatch (-want +got):\n%s", diff)
			}
			mu.Unlock()

			// A second pass has nothing to do.
			sum, err = s.Compile(t.Context())
			if err != nil {
				t.Fatalf("second Compile() error = %v", err)
			}

			mu.Lock()
			defer mu.Unlock()

			if sum.Replaced != 0 || len(post) != 1 {
				t.Errorf("second Compile() replaced %d, post-processed %d times", sum.Replaced, len(post))
			}
		})
	}
}

func TestCompileMissingRoot(t *testing.T) {
	t.Parallel()

	filter, err := NewFilter([]string{`.`}, nil, nil, "")
	if err != nil {
		t.Fatal(err)
	}

	s, err := NewScheduler(Config{
		Root:   filepath.Join(t.TempDir(), "absent"),
		Filter: filter,
	}, newResolver(t))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Compile(t.Context()); err == nil {
		t.Error("Compile() of a missing root should fail")
	}
}

func TestNewSchedulerInvalid(t *testing.T) {
	t.Parallel()

	if _, err := NewScheduler(Config{}, newResolver(t)); err == nil {
		t.Error("NewScheduler() without a filter should fail")
	}

	filter, err := NewFilter(nil, nil, nil, "")
	if err != nil {
		t.Fatal(err)
	}

	_, err = NewScheduler(Config{
		Filter: filter,
		Tags:   snippet.Tags{Open: "%%", Close: "%%"},
	}, newResolver(t))
	if err == nil {
		t.Error("NewScheduler() with equal tags should fail")
	}
}

func TestDebounce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		unit, min time.Duration
		last      time.Duration
		want      time.Duration
	}{
		{unit: time.Second, last: 0, want: time.Second},
		{unit: time.Second, last: 10 * time.Millisecond, want: time.Second},
		{unit: time.Second, last: 1200 * time.Millisecond, want: 2 * time.Second},
		{unit: time.Second, last: 3 * time.Second, want: 3 * time.Second},
		{unit: 100 * time.Millisecond, min: 250 * time.Millisecond, last: 120 * time.Millisecond, want: 250 * time.Millisecond},
		{unit: 100 * time.Millisecond, min: 250 * time.Millisecond, last: 310 * time.Millisecond, want: 400 * time.Millisecond},
	}

	filter, err := NewFilter(nil, nil, nil, "")
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range tests {
		s, err := NewScheduler(Config{
			Filter:       filter,
			DebounceUnit: tt.unit,
			MinDebounce:  tt.min,
		}, newResolver(t))
		if err != nil {
			t.Fatal(err)
		}

		if got := s.debounce(tt.last); got != tt.want {
			t.Errorf("debounce(%v) with unit %v = %v, want %v", tt.last, tt.unit, got, tt.want)
		}
	}
}

func TestSchedulerChanged(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.go":      "package a\n",
		"b.go":      "package a\n",
		"notes.txt": "text\n",
		"dir/x.go":  "",
	})

	filter, err := NewFilter([]string{`\.go$`}, nil, nil, snippet.DefaultTempSuffix)
	if err != nil {
		t.Fatal(err)
	}

	s, err := NewScheduler(Config{Root: root, Filter: filter}, newResolver(t))
	if err != nil {
		t.Fatal(err)
	}

	event := func(op watcher.Op, rel, oldRel string) watcher.Event {
		path := filepath.Join(root, rel)

		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}

		ev := watcher.Event{Op: op, Path: path, FileInfo: info}
		if oldRel != "" {
			ev.OldPath = filepath.Join(root, oldRel)
		}

		return ev
	}

	a := filepath.Join(root, "a.go")

	steps := []struct {
		name string
		ev   watcher.Event
		want bool
	}{
		{name: "first_write", ev: event(watcher.Write, "a.go", ""), want: true},
		{name: "same_content", ev: event(watcher.Write, "a.go", ""), want: false},
		{name: "ignored_file", ev: event(watcher.Write, "notes.txt", ""), want: false},
		{name: "directory", ev: event(watcher.Create, "dir", ""), want: false},
		{name: "move_same_content", ev: event(watcher.Move, "b.go", "a.go"), want: false},
		{name: "create_new", ev: event(watcher.Create, "dir/x.go", ""), want: true},
	}

	for _, step := range steps {
		if got := s.changed(step.ev); got != step.want {
			t.Errorf("%s: changed() = %v, want %v", step.name, got, step.want)
		}
	}

	if _, ok := s.Checksums().Sum(a); ok {
		t.Error("moved file should leave no entry for its old path")
	}

	s.changed(watcher.Event{Op: watcher.Remove, Path: filepath.Join(root, "b.go")})

	if got := s.Checksums().Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)

	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}

		time.Sleep(10 * time.Millisecond)
	}
}

func TestWatch(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	search := t.TempDir()

	module := filepath.Join(search, "gen", "text.yml")
	writeTree(t, search, map[string]string{
		"gen/text.yml": "snippets:\n  msg:\n    template: first\n",
	})
	writeTree(t, root, map[string]string{
		"a.go": "// <@@begin: gen.text.msg@@>\n// <@@/gen.text.msg@@>\n",
	})

	filter, err := NewFilter([]string{`\.go$`}, nil, nil, snippet.DefaultTempSuffix)
	if err != nil {
		t.Fatal(err)
	}

	s, err := NewScheduler(Config{
		Root:         root,
		SearchPaths:  []string{search},
		Filter:       filter,
		PollInterval: 20 * time.Millisecond,
		DebounceUnit: 10 * time.Millisecond,
	}, newResolver(t, search))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	done := make(chan error, 1)

	go func() { done <- s.Watch(ctx) }()

	a := filepath.Join(root, "a.go")
	contains := func(s string) func() bool {
		return func() bool {
			b, err := os.ReadFile(a)

			return err == nil && strings.Contains(string(b), s)
		}
	}

	waitFor(t, "initial pass", contains("first"))

	// Give the watchers time to take their first listing.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(module, []byte("snippets:\n  msg:\n    template: the second version\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "module change", contains("the second version"))

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch() did not return after cancellation")
	}
}

func TestWatchProjectEdits(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.go": greetRegion,
		"b.go": "package b\n",
	})

	filter, err := NewFilter([]string{`\.go$`}, nil, nil, snippet.DefaultTempSuffix)
	if err != nil {
		t.Fatal(err)
	}

	s, err := NewScheduler(Config{
		Root:         root,
		Filter:       filter,
		Processes:    2,
		PollInterval: 20 * time.Millisecond,
		DebounceUnit: 10 * time.Millisecond,
	}, newResolver(t))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	done := make(chan error, 1)

	go func() { done <- s.Watch(ctx) }()

	a := filepath.Join(root, "a.go")
	passes := func(n int64) func() bool {
		return func() bool { return s.Passes() >= n }
	}

	waitFor(t, "initial pass", passes(1))
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(a, []byte("// edited\n"+greetRegion), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "pass after edit", passes(2))

	// The scheduler's own rewrite of a.go must not start another pass.
	time.Sleep(300 * time.Millisecond)

	if got := s.Passes(); got != 2 {
		t.Fatalf("passes after edit = %d, want 2", got)
	}

	if got, want := readFile(t, a), "// edited\n// <@@begin: gen.greet@@>\nhello\n// <@@/gen.greet@@>\n"; got != want {
		t.Errorf("a.go = %q, want %q", got, want)
	}

	for _, name := range []string{"a.go", "b.go"} {
		path := filepath.Join(root, name)
		if err := os.WriteFile(path, []byte(readFile(t, path)), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	time.Sleep(300 * time.Millisecond)

	if got := s.Passes(); got != 2 {
		t.Errorf("passes after identical rewrites = %d, want 2", got)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch() did not return after cancellation")
	}
}

func TestWatchProjectIgnoresExcludedDirs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":           "",
		".git/objects/x.go": "",
		"build/out.go":      "",
		"pkg/testdata/t.go": "",
		"pkg/a/b.go":        "",
	})

	s, err := NewScheduler(Config{Root: root, Filter: newFilter(t)}, newResolver(t))
	if err != nil {
		t.Fatal(err)
	}

	w, err := s.watchProject(t.Context())
	if err != nil {
		t.Fatalf("watchProject() error = %v", err)
	}
	defer w.Close()

	for path := range w.WatchedFiles() {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			t.Fatal(err)
		}

		for _, dir := range []string{".git", "build", filepath.Join("pkg", "testdata")} {
			if rel == dir || strings.HasPrefix(rel, dir+string(filepath.Separator)) {
				t.Errorf("excluded path %s is watched", rel)
			}
		}
	}

	if _, ok := w.WatchedFiles()[filepath.Join(root, "pkg", "a", "b.go")]; !ok {
		t.Error("pkg/a/b.go is not watched")
	}
}
