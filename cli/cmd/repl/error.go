package repl

import "github.com/ardnew/ghostwriter/pkg"

// Sentinel errors.
var (
	ErrOutOfBounds = pkg.NewError("index out of range")
	ErrNoEngine    = pkg.NewError("no template engine")
	ErrCommand     = pkg.NewError("invalid command")
)
