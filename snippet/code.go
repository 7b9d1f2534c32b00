package snippet

import (
	"strconv"

	"github.com/ardnew/ghostwriter/pkg"
)

// Code classifies the outcome of parsing one file.
type Code int

// Result codes.
const (
	OK Code = iota
	ReadError
	WriteError
	ExpectedOpen
	ExpectedClose
	NamesMismatch
	NestedOpen
	Canceled
)

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case ReadError:
		return "read error"
	case WriteError:
		return "write error"
	case ExpectedOpen:
		return "expected open tag"
	case ExpectedClose:
		return "expected close tag"
	case NamesMismatch:
		return "snippet names mismatch"
	case NestedOpen:
		return "nested open tag"
	case Canceled:
		return "canceled"
	default:
		return "Code(" + strconv.Itoa(int(c)) + ")"
	}
}

// Structural reports whether c is a tag-structure error.
func (c Code) Structural() bool {
	return c >= ExpectedOpen && c <= NestedOpen
}

// Predefined errors (sentinel values).
var (
	ErrTags          = pkg.NewError("invalid snippet tags")
	ErrRead          = pkg.NewError("failed to read input")
	ErrWrite         = pkg.NewError("failed to write output")
	ErrExpectedOpen  = pkg.NewError("close tag without open tag")
	ErrExpectedClose = pkg.NewError("open tag not closed before end of file")
	ErrNamesMismatch = pkg.NewError("close tag names a different snippet")
	ErrNestedOpen    = pkg.NewError("open tag inside open snippet")
	ErrCanceled      = pkg.NewError("parse canceled")
)

var codeErrors = map[Code]*pkg.Error{
	ReadError:     ErrRead,
	WriteError:    ErrWrite,
	ExpectedOpen:  ErrExpectedOpen,
	ExpectedClose: ErrExpectedClose,
	NamesMismatch: ErrNamesMismatch,
	NestedOpen:    ErrNestedOpen,
	Canceled:      ErrCanceled,
}
