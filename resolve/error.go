package resolve

import (
	"log/slog"

	"github.com/sahilm/fuzzy"

	"github.com/ardnew/ghostwriter/pkg"
)

// Predefined errors (sentinel values).
var (
	ErrUnqualified     = pkg.NewError("unqualified snippet name")
	ErrModuleNotFound  = pkg.NewError("snippet module not found")
	ErrModuleInvalid   = pkg.NewError("invalid snippet module")
	ErrAttrNotFound    = pkg.NewError("snippet not found in module")
	ErrSignature       = pkg.NewError("snippet has an unsupported signature")
	ErrExpansion       = pkg.NewError("snippet expansion failed")
	ErrPostProcess     = pkg.NewError("post-processing failed")
	ErrUnknownPostProc = pkg.NewError("unknown post-processor")
)

// suggestion returns the closest of choices to name, if any.
func suggestion(name string, choices []string) (string, bool) {
	matches := fuzzy.Find(name, choices)
	if len(matches) == 0 {
		return "", false
	}

	return matches[0].Str, true
}

// withSuggestion attaches a "suggestion" attribute to e when one exists.
func withSuggestion(e *pkg.Error, name string, choices []string) *pkg.Error {
	if s, ok := suggestion(name, choices); ok {
		return e.With(slog.String("suggestion", s))
	}

	return e
}
