package snippet

import (
	"errors"
	"regexp"
	"strings"
)

// Default tag delimiters.
const (
	DefaultOpen  = "<@@"
	DefaultClose = "@@>"
)

// Tags are the delimiters surrounding snippet tags.
type Tags struct {
	Open  string
	Close string
}

// DefaultTags returns the default delimiters.
func DefaultTags() Tags { return Tags{Open: DefaultOpen, Close: DefaultClose} }

// Validate reports whether both delimiters are usable.
func (t Tags) Validate() error {
	switch {
	case strings.TrimSpace(t.Open) == "":
		return ErrTags.Wrap(errors.New("open delimiter is empty"))
	case strings.TrimSpace(t.Close) == "":
		return ErrTags.Wrap(errors.New("close delimiter is empty"))
	case t.Open == t.Close:
		return ErrTags.Wrap(errors.New("open and close delimiters are equal"))
	}

	return nil
}

// Begin returns the begin tag for name.
func (t Tags) Begin(name string) string { return t.Open + "begin: " + name + t.Close }

// End returns the end tag for name.
func (t Tags) End(name string) string { return t.Open + "/" + name + t.Close }

// Out returns the out tag.
func (t Tags) Out() string { return t.Open + "out" + t.Close }

const qualifiedName = `([\pL_][\pL\pN_]*(?:\.[\pL_][\pL\pN_]*)*)`

type matcher struct {
	begin *regexp.Regexp
	end   *regexp.Regexp
	out   *regexp.Regexp
}

func (t Tags) matcher() matcher {
	o, c := regexp.QuoteMeta(t.Open), regexp.QuoteMeta(t.Close)

	return matcher{
		begin: regexp.MustCompile(o + `begin:\s*` + qualifiedName + `\s*` + c),
		end:   regexp.MustCompile(o + `/\s*` + qualifiedName + `\s*` + c),
		out:   regexp.MustCompile(o + `\s*out\s*` + c),
	}
}

func match(re *regexp.Regexp, line string) (string, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}

	return m[1], true
}

// indentation returns the leading whitespace of line.
func indentation(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
