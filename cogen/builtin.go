package cogen

// This file defines the built-in environment available to every template
// expression. The environment is lazily initialized once per process and
// cloned on every access so callers may mutate the returned map.
//
// Built-in names can be shadowed by scope bindings.

import (
	"fmt"
	"maps"
	"os"
	"os/user"
	"path/filepath"
	"reflect"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/ardnew/mung"
)

var builtinCache = sync.OnceValue(func() map[string]any {
	return map[string]any{
		// System information.
		"target":   getTarget(),
		"platform": getPlatform(),
		"hostname": getHostname(),
		"user":     getUser(),
		"cwd":      getCwd,
		"env":      getEnv,

		// Conversion and formatting.
		"range":  rangeFunc,
		"str":    str,
		"repr":   repr,
		"title":  title,
		"indent": indent,
		"quote":  strconv.Quote,
		"items":  items,

		// Filesystem functions.
		"file": map[string]any{
			"exists":    fileExists,
			"isDir":     fileIsDir,
			"isRegular": fileIsRegular,
			"isSymlink": fileIsSymlink,
		},

		// Path manipulation functions.
		"path": map[string]any{
			"abs":  pathAbs,
			"base": filepath.Base,
			"cat":  pathCat,
			"dir":  filepath.Dir,
			"ext":  filepath.Ext,
			"rel":  pathRel,
		},

		// PATH-like string manipulation via mung.
		"mung": map[string]any{
			"prefix":   mungPrefix,
			"prefixif": mungPrefixIf,
		},
	}
})

// Builtins returns a copy of the built-in expression environment.
func Builtins() map[string]any {
	return maps.Clone(builtinCache())
}

// target contains string identifiers for a target operating system and
// instruction set architecture.
type target struct {
	OS   string
	Arch string
}

// getTarget returns the host target using GNU GCC/LLVM naming conventions.
func getTarget() target {
	t := getPlatform()

	switch t.Arch {
	case "386":
		t.Arch = "i386"
	case "amd64":
		t.Arch = "x86_64"
	case "arm64":
		if t.OS != "darwin" {
			t.Arch = "aarch64"
		}
	case "mipsle":
		t.Arch = "mipsel"
	}

	return t
}

// getPlatform returns the host target using Go conventions.
func getPlatform() target {
	var (
		o, a string
		ok   bool
	)

	if o, ok = os.LookupEnv("GOHOSTOS"); !ok {
		if o, ok = os.LookupEnv("GOOS"); !ok {
			o = runtime.GOOS
		}
	}

	if a, ok = os.LookupEnv("GOHOSTARCH"); !ok {
		if a, ok = os.LookupEnv("GOARCH"); !ok {
			a = runtime.GOARCH
		}
	}

	return target{OS: o, Arch: a}
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return ""
	}

	return hostname
}

func getUser() string {
	u, err := user.Current()
	if err != nil {
		return os.Getenv("USER")
	}

	return u.Username
}

func getCwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return pathAbs(".")
	}

	return cwd
}

// getEnv returns the value of the environment variable key, or the first
// fallback if it is unset.
func getEnv(key string, fallback ...string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}

	if len(fallback) > 0 {
		return fallback[0]
	}

	return ""
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("non-integer value: %v", n)
		}

		return int(n), nil
	}

	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return int(rv.Int()), nil
	case rv.CanUint():
		return int(rv.Uint()), nil
	}

	return 0, fmt.Errorf("non-integer value: %v (%T)", v, v)
}

// rangeFunc mirrors the three forms range(stop), range(start, stop) and
// range(start, stop, step).
func rangeFunc(args ...any) ([]any, error) {
	n := make([]int, len(args))

	for i, a := range args {
		v, err := toInt(a)
		if err != nil {
			return nil, err
		}

		n[i] = v
	}

	var start, stop, step int

	switch len(n) {
	case 1:
		stop, step = n[0], 1
	case 2:
		start, stop, step = n[0], n[1], 1
	case 3:
		start, stop, step = n[0], n[1], n[2]
	default:
		return nil, fmt.Errorf("range expects 1 to 3 arguments, got %d", len(n))
	}

	if step == 0 {
		return nil, fmt.Errorf("range step must not be zero")
	}

	var out []any
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		out = append(out, i)
	}

	return out, nil
}

// str formats v the way it is written into rendered output.
func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}

	return fmt.Sprint(v)
}

func repr(v any) string {
	switch s := v.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(s)
	}

	return fmt.Sprintf("%#v", v)
}

// title upper-cases the first letter of each space-separated word.
func title(s string) string {
	words := strings.Split(s, " ")

	for i, w := range words {
		r, n := utf8.DecodeRuneInString(w)
		if n > 0 {
			words[i] = string(unicode.ToUpper(r)) + w[n:]
		}
	}

	return strings.Join(words, " ")
}

// indent prefixes every non-empty line of s after the first with prefix.
// items returns the [key, value] pairs of a map sorted by key, or the
// elements of any other iterable.
func items(v any) ([]any, error) {
	seq, err := Pairs(v)
	if err != nil {
		return nil, err
	}

	return slices.Collect(seq), nil
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")

	for i := 1; i < len(lines); i++ {
		if lines[i] != "" {
			lines[i] = prefix + lines[i]
		}
	}

	return strings.Join(lines, "\n")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)

	return !os.IsNotExist(err)
}

func fileIsDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return info.IsDir()
}

func fileIsRegular(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return info.Mode().IsRegular()
}

func fileIsSymlink(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}

	return info.Mode()&os.ModeSymlink != 0
}

func pathAbs(path string) string {
	p, err := filepath.Abs(path)
	if err != nil {
		return path
	}

	return p
}

func pathCat(elem ...string) string {
	return filepath.Join(elem...)
}

func pathRel(from, to string) string {
	p, err := filepath.Rel(pathAbs(from), pathAbs(to))
	if err != nil {
		return pathCat(from, to)
	}

	return p
}

// mungPrefix prepends prefix items to the PATH-like list key.
func mungPrefix(key string, prefix ...string) string {
	return mung.Make(
		mung.WithSubjectItems(key),
		mung.WithDelim(string(os.PathListSeparator)),
		mung.WithPrefixItems(prefix...),
	).String()
}

// mungPrefixIf is [mungPrefix] keeping only items that exist on disk.
func mungPrefixIf(key string, prefix ...string) string {
	return mung.Make(
		mung.WithSubjectItems(key),
		mung.WithDelim(string(os.PathListSeparator)),
		mung.WithPrefixItems(prefix...),
		mung.WithFilter(fileExists),
	).String()
}
