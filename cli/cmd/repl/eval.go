package repl

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/ardnew/ghostwriter/cogen"
)

// isTemplate reports whether input is a one-line template rather than an
// expression: it contains an inline expression or starts a control line.
func isTemplate(input string) bool {
	return strings.Contains(input, "<<") ||
		strings.HasPrefix(strings.TrimSpace(input), "%")
}

// Evaluate evaluates input in scope and returns the text to display.
//
// Templates are rendered and their output returned without the trailing
// newline. Expressions are evaluated and their result formatted with
// [Format].
func Evaluate(
	ctx context.Context,
	engine *cogen.Engine,
	scope *cogen.Scope,
	input string,
) (string, error) {
	if engine == nil {
		return "", ErrNoEngine
	}

	if isTemplate(input) {
		var buf bytes.Buffer
		if err := engine.RenderString(ctx, input, scope, &buf, ""); err != nil {
			return "", err
		}

		return strings.TrimSuffix(buf.String(), "\n"), nil
	}

	v, err := engine.Eval(input, scope)
	if err != nil {
		return "", err
	}

	return Format(v), nil
}

// Format renders an expression result for display. Strings are quoted,
// collections are rendered as YAML and everything else uses its default
// format.
func Format(v any) string {
	if v == nil {
		return "nil"
	}

	switch v := v.(type) {
	case string:
		return strconv.Quote(v)
	case fmt.Stringer:
		return v.String()
	}

	switch reflect.Indirect(reflect.ValueOf(v)).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		out, err := yaml.MarshalWithOptions(v, yaml.Flow(true))
		if err == nil {
			return strings.TrimSpace(string(out))
		}
	}

	return fmt.Sprint(v)
}

// preview returns Format(v) shortened to at most n runes.
func preview(v any, n int) string {
	s := Format(v)

	if r := []rune(s); len(r) > n {
		return string(r[:n-3]) + "..."
	}

	return s
}
