package watch

import (
	"io"
	"os"

	"github.com/klauspost/readahead"
	"github.com/zeebo/xxh3"
)

// Checksums maps absolute file paths to content hashes. It decides whether
// a reported change is real, that is, whether the content differs from what
// was last recorded.
//
// A Checksums is owned by one goroutine and is not safe for concurrent use.
type Checksums struct {
	sums map[string]uint64
}

// NewChecksums returns an empty table.
func NewChecksums() *Checksums {
	return &Checksums{sums: make(map[string]uint64)}
}

// Observe records sum for path and reports whether path was new.
func (c *Checksums) Observe(path string, sum uint64) bool {
	_, ok := c.sums[path]
	c.sums[path] = sum

	return !ok
}

// Modified records sum for path and reports whether it is a real change:
// path was unknown or its recorded sum differs.
func (c *Checksums) Modified(path string, sum uint64) bool {
	old, ok := c.sums[path]
	if ok && old == sum {
		return false
	}

	c.sums[path] = sum

	return true
}

// Deleted removes path from the table.
func (c *Checksums) Deleted(path string) { delete(c.sums, path) }

// Moved transfers the entry of from to to with sum, reporting whether the
// content at to is a real change.
func (c *Checksums) Moved(from, to string, sum uint64) bool {
	old, ok := c.sums[from]
	delete(c.sums, from)

	if prev, known := c.sums[to]; known {
		old, ok = prev, true
	}

	c.sums[to] = sum

	return !ok || old != sum
}

// Sum returns the recorded sum of path.
func (c *Checksums) Sum(path string) (uint64, bool) {
	sum, ok := c.sums[path]

	return sum, ok
}

// Len returns the number of recorded paths.
func (c *Checksums) Len() int { return len(c.sums) }

// Hash returns the xxh3 hash of the content of the file at path.
func Hash(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	ra := readahead.NewReader(f)
	defer ra.Close()

	h := xxh3.New()
	if _, err := io.Copy(h, ra); err != nil {
		return 0, err
	}

	return h.Sum64(), nil
}
