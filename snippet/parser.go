package snippet

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/readahead"
	"github.com/zeebo/xxh3"

	"github.com/ardnew/ghostwriter/log"
)

// DefaultTempSuffix is appended to the destination path to name the
// temporary output file.
const DefaultTempSuffix = ".gw.tmp"

// Context describes the snippet being expanded.
type Context struct {
	File   string
	Line   int
	Name   string
	Prefix string
	Tags   Tags
}

// Expander generates the content of one snippet.
type Expander interface {
	Expand(ctx context.Context, sc *Context, w io.Writer) error
}

// ExpanderFunc adapts a function to the [Expander] interface.
type ExpanderFunc func(ctx context.Context, sc *Context, w io.Writer) error

// Expand calls f(ctx, sc, w).
func (f ExpanderFunc) Expand(ctx context.Context, sc *Context, w io.Writer) error {
	return f(ctx, sc, w)
}

// Digest identifies stream content.
type Digest struct {
	Sum  uint64
	Size int64
}

// ReplaceFunc decides whether generated output replaces the original.
type ReplaceFunc func(original, generated Digest) bool

// Differs reports whether the two digests identify different content.
func Differs(original, generated Digest) bool { return original != generated }

// Result records the expansion of one snippet.
type Result struct {
	Name string
	Line int
	Err  error
}

// Report is the outcome of parsing one file.
type Report struct {
	Code     Code
	File     string
	Line     int
	Err      error
	Snippets []Result
	Replaced bool

	original  Digest
	generated Digest
}

// Failed returns the number of snippets whose expansion failed.
func (r Report) Failed() int {
	n := 0

	for _, s := range r.Snippets {
		if s.Err != nil {
			n++
		}
	}

	return n
}

// Errors returns the file error followed by every snippet error.
func (r Report) Errors() []error {
	var errs []error

	if r.Err != nil {
		errs = append(errs, r.Err)
	}

	for _, s := range r.Snippets {
		if s.Err != nil {
			errs = append(errs, s.Err)
		}
	}

	return errs
}

// Option configures a [Parser].
type Option func(*Parser)

// WithTempSuffix sets the suffix of the temporary output file.
func WithTempSuffix(suffix string) Option {
	return func(p *Parser) {
		if suffix != "" {
			p.suffix = suffix
		}
	}
}

// WithReplacePredicate sets the function deciding whether a rewritten file
// replaces its original. The default is [Differs].
func WithReplacePredicate(f ReplaceFunc) Option {
	return func(p *Parser) {
		if f != nil {
			p.replace = f
		}
	}
}

// Parser rewrites the snippet regions of files.
// A Parser is safe for concurrent use.
type Parser struct {
	tags    Tags
	match   matcher
	suffix  string
	replace ReplaceFunc
}

// NewParser returns a parser recognizing tags.
func NewParser(tags Tags, opts ...Option) (*Parser, error) {
	if err := tags.Validate(); err != nil {
		return nil, err
	}

	p := &Parser{
		tags:    tags,
		match:   tags.matcher(),
		suffix:  DefaultTempSuffix,
		replace: Differs,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Tags returns the delimiters recognized by p.
func (p *Parser) Tags() Tags { return p.tags }

// TempSuffix returns the suffix of temporary output files.
func (p *Parser) TempSuffix() string { return p.suffix }

// Parse rewrites src into dst. An empty dst means src.
//
// Output is written to a temporary file beside dst, which is renamed over
// dst only when the pass completed without structural errors and the
// replace predicate accepts the new content.
func (p *Parser) Parse(ctx context.Context, exp Expander, src, dst string) Report {
	if dst == "" {
		dst = src
	}

	fail := func(code Code, err error) Report {
		return Report{
			Code: code,
			File: src,
			Err:  codeErrors[code].With(slog.String("file", src)).Wrap(err),
		}
	}

	in, err := os.Open(src)
	if err != nil {
		return fail(ReadError, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fail(ReadError, err)
	}

	ra := readahead.NewReader(in)
	defer ra.Close()

	tmp := p.TempPath(dst)

	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return fail(WriteError, err)
	}

	discard := func() {
		_ = out.Close()
		_ = os.Remove(tmp)
	}

	rep := p.Transform(ctx, exp, src, ra, out)
	if rep.Code != OK {
		discard()

		return rep
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)

		return fail(WriteError, err)
	}

	if dst == src && !p.replace(rep.original, rep.generated) {
		_ = os.Remove(tmp)

		log.FromContext(ctx).Trace("unchanged", slog.String("file", src))

		return rep
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)

		return fail(WriteError, err)
	}

	rep.Replaced = true

	log.FromContext(ctx).Debug("rewrote",
		slog.String("file", dst),
		slog.Int("snippets", len(rep.Snippets)),
	)

	return rep
}

// Transform copies r to w, replacing the content of every snippet region
// with the output of exp. Name identifies r in errors and in the
// [Context] passed to exp.
func (p *Parser) Transform(
	ctx context.Context,
	exp Expander,
	name string,
	r io.Reader,
	w io.Writer,
) Report {
	if ctx == nil {
		ctx = context.Background()
	}

	t := transform{
		Parser: p,
		ctx:    ctx,
		exp:    exp,
		rep:    Report{File: name},
		in:     bufio.NewReader(r),
		inHash: xxh3.New(),
		outH:   xxh3.New(),
	}

	bw := bufio.NewWriter(w)
	t.out = io.MultiWriter(bw, t.outH)

	t.run()

	if t.rep.Code == OK {
		if err := bw.Flush(); err != nil {
			t.fail(WriteError, t.line, err)
		}
	}

	t.rep.original = Digest{Sum: t.inHash.Sum64(), Size: t.inSize}
	t.rep.generated = Digest{Sum: t.outH.Sum64(), Size: t.outSize}

	return t.rep
}

type transform struct {
	*Parser

	ctx context.Context
	exp Expander
	rep Report

	in      *bufio.Reader
	out     io.Writer
	inHash  *xxh3.Hasher
	outH    *xxh3.Hasher
	inSize  int64
	outSize int64
	line    int

	// open region
	name   string
	begin  string
	start  int
	region []string
}

func (t *transform) fail(code Code, line int, err error) {
	if t.rep.Code != OK {
		return
	}

	e := codeErrors[code].With(
		slog.String("file", t.rep.File),
		slog.Int("line", line),
	)
	if err != nil {
		e = e.Wrap(err)
	}

	t.rep.Code = code
	t.rep.Line = line
	t.rep.Err = e
}

func (t *transform) read() (string, bool) {
	s, err := t.in.ReadString('\n')
	if len(s) > 0 {
		t.line++
		t.inSize += int64(len(s))
		_, _ = t.inHash.WriteString(s)
	}

	switch {
	case err == nil:
		return s, true
	case errors.Is(err, io.EOF):
		return s, len(s) > 0
	default:
		t.fail(ReadError, t.line, err)

		return "", false
	}
}

func (t *transform) write(s string) bool {
	n, err := io.WriteString(t.out, s)
	t.outSize += int64(n)

	if err != nil {
		t.fail(WriteError, t.line, err)

		return false
	}

	return true
}

func (t *transform) run() {
	for t.rep.Code == OK {
		s, ok := t.read()
		if !ok {
			break
		}

		if t.name == "" {
			t.outside(s)
		} else {
			t.inside(s)
		}
	}

	if t.rep.Code == OK && t.name != "" {
		t.fail(ExpectedClose, t.start, errors.New(t.tags.Begin(t.name)))
	}
}

func (t *transform) outside(s string) {
	if name, ok := match(t.match.end, s); ok {
		t.fail(ExpectedOpen, t.line, errors.New(t.tags.End(name)))

		return
	}

	if name, ok := match(t.match.begin, s); ok {
		t.name, t.begin, t.start, t.region = name, s, t.line, nil
	}

	t.write(s)
}

func (t *transform) inside(s string) {
	if name, ok := match(t.match.begin, s); ok {
		t.fail(NestedOpen, t.line, errors.New(t.tags.Begin(name)))

		return
	}

	name, ok := match(t.match.end, s)
	if !ok {
		t.region = append(t.region, s)

		return
	}

	if name != t.name {
		t.fail(NamesMismatch, t.line,
			errors.New(t.tags.End(name)+" closes "+t.tags.Begin(t.name)))

		return
	}

	if err := t.ctx.Err(); err != nil {
		t.fail(Canceled, t.start, err)

		return
	}

	t.expand()

	if t.rep.Code == OK {
		t.write(s)
	}

	t.name, t.begin, t.region = "", "", nil
}

// expand writes the region of the open snippet.
func (t *transform) expand() {
	keep := 0

	for i, s := range t.region {
		if t.match.out.MatchString(s) {
			keep = i + 1

			break
		}
	}

	for _, s := range t.region[:keep] {
		if !t.write(s) {
			return
		}
	}

	sc := &Context{
		File:   t.rep.File,
		Line:   t.start,
		Name:   t.name,
		Prefix: indentation(t.begin),
		Tags:   t.tags,
	}

	var buf bytes.Buffer

	err := t.exp.Expand(t.ctx, sc, &buf)
	t.rep.Snippets = append(t.rep.Snippets, Result{
		Name: t.name,
		Line: t.start,
		Err:  err,
	})

	if err != nil {
		log.FromContext(t.ctx).Warn("snippet expansion failed",
			slog.String("file", t.rep.File),
			slog.Int("line", t.start),
			slog.String("snippet", t.name),
			slog.Any("error", err),
		)

		for _, s := range t.region[keep:] {
			if !t.write(s) {
				return
			}
		}

		return
	}

	t.write(terminate(buf.String(), lineEnding(t.begin)))
}

// terminate ensures s ends on a line boundary using eol, and converts bare
// newlines to eol. Empty output becomes a single blank line.
func terminate(s, eol string) string {
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}

	if eol != "\n" {
		s = strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\n", eol)
	}

	return s
}

func lineEnding(s string) string {
	if strings.HasSuffix(s, "\r\n") {
		return "\r\n"
	}

	return "\n"
}

// TempPath returns the temporary output path used for dst.
func (p *Parser) TempPath(dst string) string {
	return filepath.Clean(dst) + p.suffix
}
