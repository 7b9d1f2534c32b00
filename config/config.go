package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/ardnew/ghostwriter/log"
	"github.com/ardnew/ghostwriter/pkg"
	"github.com/ardnew/ghostwriter/snippet"
)

// FileName is the name of the project configuration file.
const FileName = pkg.Name + ".conf.yml"

// Configuration errors.
var (
	ErrNotFound = pkg.NewError("configuration file not found")
	ErrRead     = pkg.NewError("failed to read configuration file")
	ErrDecode   = pkg.NewError("failed to decode configuration file")
	ErrInvalid  = pkg.NewError("invalid configuration")
)

var dottedName = regexp.MustCompile(`^[\pL_][\pL\pN_]*(\.[\pL_][\pL\pN_]*)+$`)

// Parser configures how project files are found and compiled.
type Parser struct {
	Open              string   `yaml:"open"`
	Close             string   `yaml:"close"`
	Processes         int      `yaml:"processes"`
	TempFileSuffix    string   `yaml:"temp_file_suffix"`
	IncludePatterns   []string `yaml:"include_patterns"`
	IgnorePatterns    []string `yaml:"ignore_patterns"`
	IgnoreDirPatterns []string `yaml:"ignore_dir_patterns"`
	SearchPaths       []string `yaml:"search_paths"`
	PostProcessFn     string   `yaml:"post_process_fn,omitempty"`
	PostProcessCmd    string   `yaml:"post_process_cmd,omitempty"`
}

// Logging configures the default logger.
type Logging struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	DateFmt string `yaml:"datefmt"`
}

// Options returns the logger options selected by l.
func (l Logging) Options() []log.Option {
	var opts []log.Option

	if lv, ok := log.LookupLevel(l.Level); ok {
		opts = append(opts, log.WithLevel(lv))
	}

	if f, ok := log.LookupFormat(l.Format); ok {
		opts = append(opts, log.WithFormat(f))
	}

	if l.DateFmt != "" {
		opts = append(opts, log.WithTimeLayout(l.DateFmt))
	}

	return opts
}

// Config is the project configuration record.
type Config struct {
	Parser  Parser  `yaml:"parser"`
	Logging Logging `yaml:"logging"`

	// Path is the file the configuration was loaded from.
	Path string `yaml:"-"`
}

// Processes returns the default worker count: the number of logical CPUs.
func Processes() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}

	return runtime.NumCPU()
}

// Default returns a configuration with every optional field set to its
// default value.
func Default() *Config {
	return &Config{
		Parser: Parser{
			Open:           snippet.DefaultOpen,
			Close:          snippet.DefaultClose,
			Processes:      Processes(),
			TempFileSuffix: snippet.DefaultTempSuffix,
		},
		Logging: Logging{
			Level:   log.DefaultLevel.String(),
			Format:  log.DefaultFormat.String(),
			DateFmt: "RFC3339",
		},
	}
}

// Find returns the path of the configuration file in dir or the nearest of
// its parents.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", ErrNotFound.Wrap(err)
	}

	for start := dir; ; {
		path := filepath.Join(dir, FileName)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound.With(slog.String("dir", start)).
				Wrap(fmt.Errorf("no %s in %s or its parents", FileName, start))
		}

		dir = parent
	}
}

// Load reads and decodes the configuration file at path over the defaults.
// Unknown fields are rejected. The result is not validated.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrRead.With(slog.String("file", path)).Wrap(err)
	}

	c := Default()

	if err := yaml.UnmarshalWithOptions(src, c, yaml.DisallowUnknownField()); err != nil {
		return nil, ErrDecode.With(slog.String("file", path)).
			Wrap(errors.New(yaml.FormatError(err, false, true)))
	}

	c.Path = path

	return c, nil
}

// FieldError is the failure of one configuration field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Reason }

// Validate checks every field and reports all failures at once. Relative
// search paths are resolved against base.
func (c *Config) Validate(base string) error {
	var errs []error

	fail := func(field, format string, args ...any) {
		errs = append(errs, &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	p := c.Parser

	tags := snippet.Tags{Open: p.Open, Close: p.Close}
	if err := tags.Validate(); err != nil {
		switch {
		case strings.TrimSpace(p.Open) == "":
			fail("parser.open", "must not be empty")
		case strings.TrimSpace(p.Close) == "":
			fail("parser.close", "must not be empty")
		default:
			fail("parser.close", "must differ from parser.open")
		}
	}

	if p.Processes < 1 {
		fail("parser.processes", "must be a positive integer, got %d", p.Processes)
	}

	if !strings.HasPrefix(p.TempFileSuffix, ".") || len(p.TempFileSuffix) < 2 {
		fail("parser.temp_file_suffix", "must start with '.' and name an extension, got %q", p.TempFileSuffix)
	}

	if len(p.IncludePatterns) == 0 {
		fail("parser.include_patterns", "at least one pattern is required")
	}

	for _, list := range []struct {
		field    string
		patterns []string
	}{
		{"parser.include_patterns", p.IncludePatterns},
		{"parser.ignore_patterns", p.IgnorePatterns},
		{"parser.ignore_dir_patterns", p.IgnoreDirPatterns},
	} {
		for i, pat := range list.patterns {
			if _, err := regexp.Compile(pat); err != nil {
				fail(fmt.Sprintf("%s[%d]", list.field, i), "%v", err)
			}
		}
	}

	if len(p.SearchPaths) == 0 {
		fail("parser.search_paths", "at least one directory is required")
	}

	for i, dir := range c.SearchPaths(base) {
		info, err := os.Stat(dir)

		switch {
		case err != nil:
			fail(fmt.Sprintf("parser.search_paths[%d]", i), "path %q does not exist", dir)
		case !info.IsDir():
			fail(fmt.Sprintf("parser.search_paths[%d]", i), "path %q is not a directory", dir)
		}
	}

	if p.PostProcessFn != "" && !dottedName.MatchString(p.PostProcessFn) {
		fail("parser.post_process_fn", "must be a dotted name such as module.function, got %q", p.PostProcessFn)
	}

	if _, ok := log.LookupLevel(c.Logging.Level); !ok {
		fail("logging.level", "unknown level %q", c.Logging.Level)
	}

	if _, ok := log.LookupFormat(c.Logging.Format); !ok {
		fail("logging.format", "unknown format %q", c.Logging.Format)
	}

	if len(errs) == 0 {
		return nil
	}

	attrs := []slog.Attr{slog.Int("failures", len(errs))}
	if c.Path != "" {
		attrs = append(attrs, slog.String("file", c.Path))
	}

	return ErrInvalid.With(attrs...).Wrap(errors.Join(errs...))
}

// SearchPaths returns the search paths, with relative entries resolved
// against base.
func (c *Config) SearchPaths(base string) []string {
	paths := make([]string, len(c.Parser.SearchPaths))

	for i, dir := range c.Parser.SearchPaths {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(base, dir)
		}

		paths[i] = filepath.Clean(dir)
	}

	return paths
}

// Tags returns the snippet tag delimiters.
func (c *Config) Tags() snippet.Tags {
	return snippet.Tags{Open: c.Parser.Open, Close: c.Parser.Close}
}
