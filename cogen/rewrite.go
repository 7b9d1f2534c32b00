package cogen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// elementsFunc is the environment name of the function comprehensions
// iterate through. It converts any iterable accepted by [Elements] to a
// slice.
const elementsFunc = "__elements"

var (
	errLetDeclaration = errors.New("variable declarations are not permitted")
	errPositionalArg  = errors.New("positional argument follows keyword argument")
	errForClauses     = errors.New("comprehensions take a single for clause")
	errComprehension  = errors.New("malformed comprehension")
)

// rewrite translates the call and comprehension forms expr does not parse
// into equivalent expr source:
//
//	f(a, k=v)            f(a, {"k": v})
//	[e for x in xs]      map(__elements(xs), {let x = #; e})
//	[e for x in xs if c] map(filter(__elements(xs), {let x = #; c}), {let x = #; e})
//	{k: v for x in xs}   fromPairs(map(__elements(xs), {let x = #; [k, v]}))
//	f(e for x in xs)     f(map(__elements(xs), {let x = #; e}))
//
// Several names bind the elements of each item: "for k, v in items(m)".
// The returned flag reports whether the result calls [elementsFunc].
func rewrite(src string) (string, bool, error) {
	if _, ok := findWord(src, "let"); ok {
		return "", false, errLetDeclaration
	}

	var rw rewriter

	out, err := rw.seq(src)
	if err != nil {
		return "", false, err
	}

	return out, rw.elements, nil
}

type rewriter struct {
	elements bool
}

// seq rewrites every bracketed group of s.
func (rw *rewriter) seq(s string) (string, error) {
	var sb strings.Builder

	for i := 0; i < len(s); {
		switch c := s[i]; c {
		case '"', '\'', '`':
			end := skipString(s, i)
			sb.WriteString(s[i:end])
			i = end

		case '(', '[', '{':
			end, err := matchBracket(s, i)
			if err != nil {
				return "", err
			}

			group, err := rw.group(s[:i], c, s[i+1:end])
			if err != nil {
				return "", err
			}

			sb.WriteString(group)
			i = end + 1

		default:
			sb.WriteByte(c)
			i++
		}
	}

	return sb.String(), nil
}

// group rewrites one bracketed group whose contents are inner and whose
// preceding source is before.
func (rw *rewriter) group(before string, open byte, inner string) (string, error) {
	call := followsOperand(before)

	switch {
	case open == '(' && call:
		args, err := rw.args(inner)
		if err != nil {
			return "", err
		}

		return "(" + args + ")", nil

	case open == '[' && !call, open == '(':
		if _, ok := findWord(inner, "for"); ok {
			return rw.comprehension(inner, false)
		}

	case open == '{':
		if _, ok := findWord(inner, "for"); ok {
			return rw.comprehension(inner, true)
		}
	}

	body, err := rw.seq(inner)
	if err != nil {
		return "", err
	}

	return string(open) + body + string(closing(open)), nil
}

// args rewrites a call's argument list, collecting keyword arguments into a
// trailing map.
func (rw *rewriter) args(inner string) (string, error) {
	parts := splitTop(inner, ',')

	plain := true

	for _, arg := range parts {
		_, _, kw := keywordArg(arg)
		_, gen := findWord(arg, "for")
		plain = plain && !kw && !gen
	}

	if plain {
		return rw.seq(inner)
	}

	var (
		pos []string
		kw  []string
	)

	for _, arg := range parts {
		if strings.TrimSpace(arg) == "" {
			continue
		}

		if name, value, ok := keywordArg(arg); ok {
			v, err := rw.value(value)
			if err != nil {
				return "", err
			}

			kw = append(kw, strconv.Quote(name)+": "+strings.TrimSpace(v))

			continue
		}

		if len(kw) > 0 {
			return "", errPositionalArg
		}

		v, err := rw.value(arg)
		if err != nil {
			return "", err
		}

		pos = append(pos, strings.TrimSpace(v))
	}

	if len(kw) > 0 {
		pos = append(pos, "{"+strings.Join(kw, ", ")+"}")
	}

	return strings.Join(pos, ", "), nil
}

// value rewrites one argument, which may be a bare generator expression.
func (rw *rewriter) value(arg string) (string, error) {
	if _, ok := findWord(arg, "for"); ok {
		return rw.comprehension(arg, false)
	}

	return rw.seq(arg)
}

func (rw *rewriter) comprehension(inner string, dict bool) (string, error) {
	forAt, _ := findWord(inner, "for")
	elem, rest := inner[:forAt], inner[forAt+len("for"):]

	inAt, ok := findWord(rest, "in")
	if !ok {
		return "", errComprehension
	}

	names, err := bindingNames(rest[:inAt])
	if err != nil {
		return "", err
	}

	iter, cond := rest[inAt+len("in"):], ""
	if ifAt, ok := findWord(iter, "if"); ok {
		iter, cond = iter[:ifAt], iter[ifAt+len("if"):]
	}

	if _, ok := findWord(iter, "for"); ok {
		return "", errForClauses
	}

	if _, ok := findWord(cond, "for"); ok {
		return "", errForClauses
	}

	if strings.TrimSpace(elem) == "" || strings.TrimSpace(iter) == "" {
		return "", errComprehension
	}

	if dict {
		parts := splitTop(elem, ':')
		if len(parts) != 2 {
			return "", errComprehension
		}

		elem = "[" + strings.TrimSpace(parts[0]) + ", " + strings.TrimSpace(parts[1]) + "]"
	}

	elemSrc, err := rw.seq(elem)
	if err != nil {
		return "", err
	}

	iterSrc, err := rw.seq(iter)
	if err != nil {
		return "", err
	}

	rw.elements = true

	bind := bindings(names)
	seq := elementsFunc + "(" + strings.TrimSpace(iterSrc) + ")"

	if strings.TrimSpace(cond) != "" {
		condSrc, err := rw.seq(cond)
		if err != nil {
			return "", err
		}

		seq = "filter(" + seq + ", {" + bind + strings.TrimSpace(condSrc) + "})"
	}

	out := "map(" + seq + ", {" + bind + strings.TrimSpace(elemSrc) + "})"
	if dict {
		out = "fromPairs(" + out + ")"
	}

	return out, nil
}

func bindingNames(s string) ([]string, error) {
	var names []string

	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if !isIdent(name) {
			return nil, fmt.Errorf("%w: invalid binding %q", errComprehension, name)
		}

		names = append(names, name)
	}

	return names, nil
}

func bindings(names []string) string {
	if len(names) == 1 {
		return "let " + names[0] + " = #; "
	}

	var sb strings.Builder
	for i, name := range names {
		fmt.Fprintf(&sb, "let %s = #[%d]; ", name, i)
	}

	return sb.String()
}

// keywordArg splits "name = value", rejecting comparisons.
func keywordArg(arg string) (string, string, bool) {
	s := strings.TrimLeftFunc(arg, unicode.IsSpace)

	n := identLen(s)
	if n == 0 {
		return "", "", false
	}

	rest := strings.TrimLeftFunc(s[n:], unicode.IsSpace)
	if !strings.HasPrefix(rest, "=") || strings.HasPrefix(rest, "==") {
		return "", "", false
	}

	return s[:n], rest[1:], true
}

// followsOperand reports whether a bracket after before applies to an
// operand (a call or index) rather than opening a literal or group.
func followsOperand(before string) bool {
	s := strings.TrimRightFunc(before, unicode.IsSpace)
	if s == "" {
		return false
	}

	r, _ := utf8.DecodeLastRuneInString(s)

	switch {
	case r == ')' || r == ']' || r == '"' || r == '\'' || r == '`':
		return true
	case isIdentRune(r):
		start := len(s)
		for start > 0 {
			r, size := utf8.DecodeLastRuneInString(s[:start])
			if !isIdentRune(r) {
				break
			}

			start -= size
		}

		return !operatorWords[s[start:]]
	}

	return false
}

var operatorWords = map[string]bool{
	"and": true, "or": true, "not": true, "in": true, "if": true,
	"else": true, "contains": true, "matches": true, "startsWith": true,
	"endsWith": true,
}

// findWord returns the offset of the first occurrence of word in s that is
// outside strings and brackets and not part of a longer identifier.
func findWord(s, word string) (int, bool) {
	depth := 0

	for i := 0; i < len(s); {
		switch c := s[i]; c {
		case '"', '\'', '`':
			i = skipString(s, i)

			continue
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		default:
			if depth == 0 && strings.HasPrefix(s[i:], word) &&
				!identBefore(s, i) && !identAt(s, i+len(word)) &&
				!(i > 0 && s[i-1] == '.') {
				return i, true
			}
		}

		i++
	}

	return 0, false
}

// splitTop splits s at each sep outside strings and brackets.
func splitTop(s string, sep byte) []string {
	var (
		parts []string
		depth int
		start int
	)

	for i := 0; i < len(s); {
		switch c := s[i]; {
		case c == '"' || c == '\'' || c == '`':
			i = skipString(s, i)

			continue
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}

		i++
	}

	return append(parts, s[start:])
}

// skipString returns the offset just past the string literal opening at i,
// or len(s) if it is unterminated.
func skipString(s string, i int) int {
	quote := s[i]

	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			if quote != '`' {
				j++
			}
		case quote:
			return j + 1
		}
	}

	return len(s)
}

// matchBracket returns the offset of the bracket closing the one at i.
func matchBracket(s string, i int) (int, error) {
	var stack []byte

	for j := i; j < len(s); {
		switch c := s[j]; c {
		case '"', '\'', '`':
			j = skipString(s, j)

			continue
		case '(', '[', '{':
			stack = append(stack, closing(c))
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, fmt.Errorf("unexpected %q", c)
			}

			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return j, nil
			}
		}

		j++
	}

	return 0, fmt.Errorf("unclosed %q", s[i])
}

func closing(open byte) byte {
	switch open {
	case '(':
		return ')'
	case '[':
		return ']'
	default:
		return '}'
	}
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func identBefore(s string, i int) bool {
	if i == 0 {
		return false
	}

	r, _ := utf8.DecodeLastRuneInString(s[:i])

	return isIdentRune(r)
}

func identAt(s string, i int) bool {
	if i >= len(s) {
		return false
	}

	r, _ := utf8.DecodeRuneInString(s[i:])

	return isIdentRune(r)
}

// identLen returns the length of the identifier prefix of s.
func identLen(s string) int {
	n := 0

	for i, r := range s {
		if !isIdentRune(r) || (i == 0 && unicode.IsDigit(r)) {
			break
		}

		n = i + utf8.RuneLen(r)
	}

	return n
}

func isIdent(s string) bool {
	return s != "" && identLen(s) == len(s)
}
