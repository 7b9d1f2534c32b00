package config

import (
	"context"
	"io"
	"strings"

	"github.com/ardnew/ghostwriter/cogen"
	"github.com/ardnew/ghostwriter/snippet"
)

// Init holds the values of a new configuration file. It is a cogen
// component whose template renders the file.
type Init struct {
	Open              string   `mapstructure:"open"`
	Close             string   `mapstructure:"close"`
	Processes         int      `mapstructure:"processes"`
	TempFileSuffix    string   `mapstructure:"temp_file_suffix"`
	IncludePatterns   []string `mapstructure:"include_patterns"`
	IgnorePatterns    []string `mapstructure:"ignore_patterns"`
	IgnoreDirPatterns []string `mapstructure:"ignore_dir_patterns"`
	SearchPaths       []string `mapstructure:"search_paths"`
	Logging           Logging  `mapstructure:"logging"`
}

// DefaultInit returns the values written by "ghostwriter init".
func DefaultInit() Init {
	d := Default()

	return Init{
		Open:              d.Parser.Open,
		Close:             d.Parser.Close,
		Processes:         d.Parser.Processes,
		TempFileSuffix:    d.Parser.TempFileSuffix,
		IncludePatterns:   []string{`\.go$`},
		IgnorePatterns:    []string{`(^|/)zz_generated\.`},
		IgnoreDirPatterns: []string{`(^|/)vendor$`, `(^|/)testdata$`},
		SearchPaths:       []string{"snippets"},
		Logging:           d.Logging,
	}
}

// Template implements [cogen.Component].
func (Init) Template() string {
	return `
		# Generated by ghostwriter init.
		parser:
		  # Snippet tags. A region starts at a line containing
		  # <<q(open + "begin: module.name" + close)>> and ends at a line containing
		  # <<q(open + "/module.name" + close)>>.
		  open: <<q(open)>>
		  close: <<q(close)>>
		  processes: <<processes>>
		  temp_file_suffix: <<q(temp_file_suffix)>>

		  # include_patterns, ignore_patterns and ignore_dir_patterns are Go
		  # regular expressions matched against slash-separated paths relative
		  # to this file.
		  include_patterns:
		  %for p in include_patterns
		    - <<q(p)>>
		  %/for
		  ignore_patterns:
		  %for p in ignore_patterns
		    - <<q(p)>>
		  %/for
		  ignore_dir_patterns:
		  %for p in ignore_dir_patterns
		    - <<q(p)>>
		  %/for

		  # Directories holding snippet modules. The snippet "foo.bar.baz" is
		  # the entry "baz" of the module file foo/bar.yml (or .yaml, .hcl).
		  search_paths:
		  %for p in search_paths
		    - <<q(p)>>
		  %/for

		logging:
		  # One of trace, debug, info, warn, error.
		  level: <<q(logging.Level)>>
		  # One of text, json.
		  format: <<q(logging.Format)>>
		  datefmt: <<q(logging.DateFmt)>>
		`
}

// Write renders the configuration file described by in to w.
func (in Init) Write(ctx context.Context, w io.Writer) error {
	e := cogen.NewEngine(cogen.WithGlobals(map[string]any{"q": quote}))

	return e.Render(ctx, in, w, "")
}

// quote returns s as a single-quoted YAML scalar.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Tags returns the snippet tag delimiters of in.
func (in Init) Tags() snippet.Tags {
	return snippet.Tags{Open: in.Open, Close: in.Close}
}
