package watch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zeebo/xxh3"
)

func TestChecksums(t *testing.T) {
	t.Parallel()

	c := NewChecksums()

	if !c.Observe("/a", 1) {
		t.Error("Observe(/a) on empty table should report new")
	}

	if c.Observe("/a", 1) {
		t.Error("second Observe(/a) should not report new")
	}

	if c.Modified("/a", 1) {
		t.Error("Modified(/a) with unchanged sum should be false")
	}

	if !c.Modified("/a", 2) {
		t.Error("Modified(/a) with new sum should be true")
	}

	if !c.Modified("/b", 7) {
		t.Error("Modified(/b) for unknown path should be true")
	}

	if got, _ := c.Sum("/a"); got != 2 {
		t.Errorf("Sum(/a) = %d, want 2", got)
	}

	// Moving a file without changing it is not a real change.
	if c.Moved("/a", "/c", 2) {
		t.Error("Moved(/a, /c) with same content should be false")
	}

	if _, ok := c.Sum("/a"); ok {
		t.Error("Moved should remove the source entry")
	}

	// Moving over a known file compares against the destination's sum.
	if !c.Moved("/c", "/b", 2) {
		t.Error("Moved(/c, /b) over different content should be true")
	}

	if c.Moved("/b", "/d", 2) {
		t.Error("Moved(/b, /d) with same content should be false")
	}

	if !c.Moved("/missing", "/e", 9) {
		t.Error("Moved from unknown path should be true")
	}

	c.Deleted("/d")
	c.Deleted("/e")

	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

// A path reported repeatedly with unchanged content only triggers once.
func TestChecksumsRepeatedWrites(t *testing.T) {
	t.Parallel()

	c := NewChecksums()
	triggers := 0

	for _, sum := range []uint64{5, 5, 5, 6, 6, 5} {
		if c.Modified("/f", sum) {
			triggers++
		}
	}

	if triggers != 3 {
		t.Errorf("triggers = %d, want 3", triggers)
	}
}

func TestHash(t *testing.T) {
	t.Parallel()

	content := []byte("package main\n\nfunc main() {}\n")
	path := filepath.Join(t.TempDir(), "main.go")

	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Hash(path)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if want := xxh3.Hash(content); got != want {
		t.Errorf("Hash() = %#x, want %#x", got, want)
	}

	if _, err := Hash(path + ".missing"); err == nil {
		t.Error("Hash() of a missing file should fail")
	}
}
