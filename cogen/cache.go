package cogen

import (
	"sync"

	"github.com/zeebo/xxh3"
)

// Cache holds parsed component templates keyed by a hash of their source.
//
// Each distinct template is parsed at most once, even under concurrent
// access. Parse failures are cached too.
type Cache struct {
	entries sync.Map // uint64 -> *cacheEntry
}

type cacheEntry struct {
	once   sync.Once
	source string
	prog   *Program
	err    error
}

// NewCache returns an empty Cache.
func NewCache() *Cache { return &Cache{} }

// Load returns the parsed form of src.
func (c *Cache) Load(src string) (*Program, error) {
	key := xxh3.HashString(src)

	v, _ := c.entries.LoadOrStore(key, &cacheEntry{source: src})
	e := v.(*cacheEntry)

	if e.source != src {
		return Parse(src)
	}

	e.once.Do(func() { e.prog, e.err = Parse(src) })

	return e.prog, e.err
}

// Len returns the number of cached templates.
func (c *Cache) Len() int {
	n := 0

	c.entries.Range(func(any, any) bool {
		n++

		return true
	})

	return n
}
