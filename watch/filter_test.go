package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newFilter(t *testing.T) *Filter {
	t.Helper()

	f, err := NewFilter(
		[]string{`\.go$`, `\.html$`},
		[]string{`_gen\.go$`},
		[]string{`^build$`, `(^|/)testdata$`},
		".gw.tmp",
	)
	if err != nil {
		t.Fatalf("NewFilter() error = %v", err)
	}

	return f
}

func TestFilterMatchPath(t *testing.T) {
	t.Parallel()

	f := newFilter(t)

	tests := []struct {
		path string
		want bool
	}{
		{path: "main.go", want: true},
		{path: "web/index.html", want: true},
		{path: "README.md", want: false},
		{path: "api_gen.go", want: false},
		{path: "main.go.gw.tmp", want: false},
		{path: "build/main.go", want: false},
		{path: "cmd/build/main.go", want: true},
		{path: "pkg/testdata/x.go", want: false},
		{path: ".git/hooks/x.go", want: false},
		{path: "a/node_modules/b/x.go", want: false},
		{path: "", want: false},
		{path: ".", want: false},
		{path: "../outside.go", want: false},
		{path: filepath.Join("deep", "er", "file.go"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			if got := f.MatchPath(tt.path); got != tt.want {
				t.Errorf("MatchPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestFilterMatchDir(t *testing.T) {
	t.Parallel()

	f := newFilter(t)

	for dir, want := range map[string]bool{
		"src":          true,
		".git":         false,
		"x/.venv":      false,
		"build":        false,
		"sub/build":    true,
		"sub/testdata": false,
	} {
		if got := f.MatchDir(dir); got != want {
			t.Errorf("MatchDir(%q) = %v, want %v", dir, got, want)
		}
	}
}

func TestNewFilterInvalid(t *testing.T) {
	t.Parallel()

	_, err := NewFilter([]string{`ok`}, []string{`(`}, nil, "")
	if !errors.Is(err, ErrPattern) {
		t.Fatalf("NewFilter() error = %v, want %v", err, ErrPattern)
	}
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}

		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestWalk(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":           "",
		"api_gen.go":        "",
		"notes.txt":         "",
		"web/index.html":    "",
		"build/out.go":      "",
		".git/config.go":    "",
		"pkg/a/b.go":        "",
		"pkg/testdata/t.go": "",
		"x.go.gw.tmp":       "",
	})

	got, err := Walk(t.Context(), root, newFilter(t))
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	want := []string{
		filepath.Join(root, "main.go"),
		filepath.Join(root, "pkg", "a", "b.go"),
		filepath.Join(root, "web", "index.html"),
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Walk() mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkCanceled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{"main.go": ""})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if _, err := Walk(ctx, root, newFilter(t)); !errors.Is(err, context.Canceled) {
		t.Fatalf("Walk() error = %v, want %v", err, context.Canceled)
	}
}

func TestWalkUnreadableDir(t *testing.T) {
	t.Parallel()

	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.go":        "",
		"locked/b.go": "",
		"z/c.go":      "",
	})

	locked := filepath.Join(root, "locked")
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	got, err := Walk(t.Context(), root, newFilter(t))
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	want := []string{
		filepath.Join(root, "a.go"),
		filepath.Join(root, "z", "c.go"),
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Walk() mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkMissingRoot(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "missing")

	if _, err := Walk(t.Context(), root, newFilter(t)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Walk() error = %v, want %v", err, os.ErrNotExist)
	}
}

func TestExcludedDirs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":             "",
		".git/objects/x":      "",
		"build/sub/out.go":    "",
		"node_modules/m/i.js": "",
		"pkg/testdata/t.go":   "",
		"pkg/a/b.go":          "",
	})

	got, err := ExcludedDirs(t.Context(), root, newFilter(t))
	if err != nil {
		t.Fatalf("ExcludedDirs() error = %v", err)
	}

	want := []string{
		filepath.Join(root, ".git"),
		filepath.Join(root, "build"),
		filepath.Join(root, "node_modules"),
		filepath.Join(root, "pkg", "testdata"),
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ExcludedDirs() mismatch (-want +got):\n%s", diff)
	}
}
