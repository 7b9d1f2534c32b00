package cogen

import (
	"maps"
	"slices"
)

// Scope is a chain of variable bindings. Lookups search the innermost scope
// first. The nil *Scope is an empty scope.
type Scope struct {
	parent *Scope
	vars   map[string]any
}

// NewScope returns a root scope holding a copy of vars.
func NewScope(vars map[string]any) *Scope {
	return (*Scope)(nil).Child(vars)
}

// Child returns a scope nested in s holding a copy of vars.
func (s *Scope) Child(vars map[string]any) *Scope {
	c := &Scope{parent: s, vars: make(map[string]any, len(vars))}
	maps.Copy(c.vars, vars)

	return c
}

// Parent returns the enclosing scope, or nil for a root scope.
func (s *Scope) Parent() *Scope {
	if s == nil {
		return nil
	}

	return s.parent
}

// Define binds name in s itself.
func (s *Scope) Define(name string, value any) {
	s.vars[name] = value
}

// Set rebinds name in the innermost scope that already binds it, or defines
// it in s.
func (s *Scope) Set(name string, value any) {
	for c := s; c != nil; c = c.parent {
		if _, ok := c.vars[name]; ok {
			c.vars[name] = value

			return
		}
	}

	s.Define(name, value)
}

// Lookup returns the innermost binding of name.
func (s *Scope) Lookup(name string) (any, bool) {
	for ; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}

	return nil, false
}

// Flatten merges the chain into a single map with inner bindings shadowing
// outer ones.
func (s *Scope) Flatten() map[string]any {
	var chain []*Scope
	for ; s != nil; s = s.parent {
		chain = append(chain, s)
	}

	m := make(map[string]any)
	for _, c := range slices.Backward(chain) {
		maps.Copy(m, c.vars)
	}

	return m
}

// Names returns every bound name in sorted order.
func (s *Scope) Names() []string {
	return slices.Sorted(maps.Keys(s.Flatten()))
}
