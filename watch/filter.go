package watch

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/ardnew/ghostwriter/pkg"
)

// DefaultIgnoredDirs are directory names never descended into.
var DefaultIgnoredDirs = []string{
	".git", ".hg", ".svn", "node_modules", "__pycache__", ".venv", "venv",
}

// ErrPattern indicates a pattern that does not compile.
var ErrPattern = pkg.NewError("invalid pattern")

// Filter classifies paths relative to a project root.
//
// Patterns are unanchored regular expressions matched against slash
// separated relative paths.
type Filter struct {
	include    []*regexp.Regexp
	ignore     []*regexp.Regexp
	ignoreDirs []*regexp.Regexp
	suffix     string
}

// NewFilter compiles the include, ignore and ignore-directory patterns.
// Files ending in tempSuffix never match.
func NewFilter(include, ignore, ignoreDirs []string, tempSuffix string) (*Filter, error) {
	var (
		f   = &Filter{suffix: tempSuffix}
		err error
	)

	if f.include, err = compile("include", include); err != nil {
		return nil, err
	}

	if f.ignore, err = compile("ignore", ignore); err != nil {
		return nil, err
	}

	if f.ignoreDirs, err = compile("ignore_dir", ignoreDirs); err != nil {
		return nil, err
	}

	return f, nil
}

func compile(kind string, patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))

	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, ErrPattern.Wrap(fmt.Errorf("%s[%d]: %w", kind, i, err))
		}

		res = append(res, re)
	}

	return res, nil
}

func anyMatch(res []*regexp.Regexp, s string) bool {
	return slices.ContainsFunc(res, func(re *regexp.Regexp) bool {
		return re.MatchString(s)
	})
}

// MatchFile reports whether the file at rel is a compile candidate.
func (f *Filter) MatchFile(rel string) bool {
	rel = filepath.ToSlash(rel)

	if f.suffix != "" && strings.HasSuffix(rel, f.suffix) {
		return false
	}

	return anyMatch(f.include, rel) && !anyMatch(f.ignore, rel)
}

// MatchDir reports whether the directory at rel is descended into.
func (f *Filter) MatchDir(rel string) bool {
	rel = filepath.ToSlash(rel)

	if slices.Contains(DefaultIgnoredDirs, path.Base(rel)) {
		return false
	}

	return !anyMatch(f.ignoreDirs, rel)
}

// MatchPath reports whether the file at rel is a candidate and every
// directory above it is descended into.
func (f *Filter) MatchPath(rel string) bool {
	rel = filepath.ToSlash(rel)
	if rel == "" || rel == "." || strings.HasPrefix(rel, "../") {
		return false
	}

	for dir := path.Dir(rel); dir != "."; dir = path.Dir(dir) {
		if !f.MatchDir(dir) {
			return false
		}
	}

	return f.MatchFile(rel)
}
