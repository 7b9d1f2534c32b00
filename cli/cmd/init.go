package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ardnew/ghostwriter/config"
	"github.com/ardnew/ghostwriter/log"
	"github.com/ardnew/ghostwriter/pkg"
)

// ExampleModule is the snippet module written by init into the first search
// path. Its snippet is named "example.hello".
const ExampleModule = `# Snippets in this file are named example.<name>. With the default tags, a
# region such as
#
#   // <@@begin: example.hello@@>
#   // <@@/example.hello@@>
#
# in a project file is filled in by "ghostwriter compile".
snippets:
  hello:
    data:
      names: [world]
    template: |
      %for n in names
      %r Greeting(n)
      %/r
      %/for

components:
  Greeting:
    params: [name]
    defaults:
      punct: '!'
    template: |
      // Hello, <<name>><<punct>>
`

const exampleModuleFile = "example.yml"

// Init writes a configuration file and an initial search path.
type Init struct {
	Force     bool   `help:"Overwrite an existing configuration file" short:"f"`
	Dir       string `default:"."                                     help:"Project directory" type:"path"`
	Open      string `help:"Snippet open tag (default: <@@)"`
	Close     string `help:"Snippet close tag (default: @@>)"`
	Processes int    `help:"Worker count (default: logical CPU count)" short:"j"`
}

// Run executes the init command.
func (i *Init) Run(ctx context.Context) error {
	path := filepath.Join(i.Dir, config.FileName)

	_, err := os.Stat(path)
	if err == nil && !i.Force {
		return ErrWriteConfig.
			With(slog.String("file", path), slog.Bool("exists", true)).
			Wrap(ErrFileExists)
	}

	in := config.DefaultInit()

	if i.Open != "" {
		in.Open = i.Open
	}

	if i.Close != "" {
		in.Close = i.Close
	}

	if i.Processes > 0 {
		in.Processes = i.Processes
	}

	if err := in.Tags().Validate(); err != nil {
		return ErrWriteConfig.With(slog.String("file", path)).Wrap(err)
	}

	var buf bytes.Buffer
	if err := in.Write(ctx, &buf); err != nil {
		return ErrWriteConfig.With(slog.String("file", path)).Wrap(err)
	}

	if err := os.MkdirAll(i.Dir, pkg.DirMode); err != nil {
		return ErrWriteConfig.With(slog.String("dir", i.Dir)).Wrap(err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return ErrWriteConfig.With(slog.String("file", path)).Wrap(err)
	}

	log.InfoContext(ctx, "initialized configuration file", slog.String("path", path))

	return i.writeSearchPath(ctx, in.SearchPaths[0])
}

// writeSearchPath creates the search path dir with an example module unless
// the directory already exists.
func (i *Init) writeSearchPath(ctx context.Context, dir string) error {
	dir = filepath.Join(i.Dir, dir)

	if _, err := os.Stat(dir); err == nil {
		log.DebugContext(ctx, "search path exists", slog.String("dir", dir))

		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ErrWriteConfig.With(slog.String("dir", dir)).Wrap(err)
	}

	path := filepath.Join(dir, exampleModuleFile)
	if err := os.WriteFile(path, []byte(ExampleModule), 0o644); err != nil {
		return ErrWriteConfig.With(slog.String("file", path)).Wrap(err)
	}

	log.InfoContext(ctx, "created search path",
		slog.String("dir", dir),
		slog.String("example", path),
	)

	return nil
}
