package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ardnew/ghostwriter/config"
	"github.com/ardnew/ghostwriter/log"
	"github.com/ardnew/ghostwriter/pkg"
	"github.com/ardnew/ghostwriter/resolve"
	"github.com/ardnew/ghostwriter/watch"
)

// GofmtPostProcessor is the name of the built-in post-processor that formats
// rewritten Go files.
const GofmtPostProcessor = pkg.Name + ".gofmt"

// Compile expands every snippet region in the project.
type Compile struct {
	Config    string `help:"Project configuration file (default: nearest ghostwriter.conf.yml)" short:"c" type:"existingfile"`
	Watch     bool   `help:"Recompile whenever snippets or project files change"            short:"w" negatable:""`
	Processes int    `help:"Worker count (overrides parser.processes)"                      short:"j"`
}

// Run executes the compile command.
func (c *Compile) Run(ctx context.Context) error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}

	applyLogging(ctx, cfg.Logging)

	if c.Processes > 0 {
		cfg.Parser.Processes = c.Processes
	}

	s, err := newScheduler(ctx, cfg)
	if err != nil {
		return err
	}

	if c.Watch {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		return s.Watch(ctx)
	}

	sum, err := s.Compile(ctx)
	if err != nil {
		return ErrCompile.Wrap(err)
	}

	if sum.Failed > 0 || sum.SnippetErrors > 0 {
		return ErrCompile.With(
			slog.Int("failed_files", sum.Failed),
			slog.Int("failed_snippets", sum.SnippetErrors),
		)
	}

	return nil
}

// loadConfig loads and validates the configuration at path, or at the
// nearest configuration file above the working directory.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		found, err := config.Find(".")
		if err != nil {
			return nil, ErrConfig.Wrap(err)
		}

		path = found
	}

	path, err := filepath.Abs(path)
	if err != nil {
		return nil, ErrConfig.Wrap(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, ErrConfig.Wrap(err)
	}

	if err := cfg.Validate(filepath.Dir(path)); err != nil {
		return nil, ErrConfig.Wrap(err)
	}

	return cfg, nil
}

// newScheduler assembles the resolver, post-processing and file filter
// described by cfg. The project root is the directory of the configuration
// file.
func newScheduler(ctx context.Context, cfg *config.Config) (*watch.Scheduler, error) {
	root := filepath.Dir(cfg.Path)
	paths := cfg.SearchPaths(root)

	r := resolve.NewResolver(paths)

	if err := r.RegisterPostProcessor(GofmtPostProcessor, resolve.Gofmt); err != nil {
		return nil, ErrSetup.Wrap(err)
	}

	for _, setup := range setupFrom(ctx) {
		if err := setup(r); err != nil {
			return nil, ErrSetup.Wrap(err)
		}
	}

	post, err := postProcessor(r, cfg.Parser)
	if err != nil {
		return nil, ErrConfig.Wrap(err)
	}

	filter, err := watch.NewFilter(
		cfg.Parser.IncludePatterns,
		cfg.Parser.IgnorePatterns,
		cfg.Parser.IgnoreDirPatterns,
		cfg.Parser.TempFileSuffix,
	)
	if err != nil {
		return nil, ErrConfig.Wrap(err)
	}

	s, err := watch.NewScheduler(watch.Config{
		Root:        root,
		SearchPaths: paths,
		Filter:      filter,
		Tags:        cfg.Tags(),
		TempSuffix:  cfg.Parser.TempFileSuffix,
		Processes:   cfg.Parser.Processes,
		PostProcess: post,
	}, r)
	if err != nil {
		return nil, ErrConfig.Wrap(err)
	}

	log.DebugContext(ctx, "compile configured",
		slog.String("root", root),
		slog.Any("search_paths", paths),
		slog.Int("processes", cfg.Parser.Processes),
	)

	return s, nil
}

// postProcessor returns the post-processing configured by p: the registered
// function, then the command. It is nil when neither is set.
func postProcessor(r *resolve.Resolver, p config.Parser) (resolve.PostProcessor, error) {
	var chain []resolve.PostProcessor

	if p.PostProcessFn != "" {
		fn, err := r.PostProcessor(p.PostProcessFn)
		if err != nil {
			return nil, err
		}

		chain = append(chain, fn)
	}

	if p.PostProcessCmd != "" {
		fn, err := resolve.Command(p.PostProcessCmd)
		if err != nil {
			return nil, err
		}

		chain = append(chain, fn)
	}

	if len(chain) == 0 {
		return nil, nil
	}

	return resolve.Chain(chain...), nil
}
