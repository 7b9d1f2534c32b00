package resolve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/format"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/shlex"

	"github.com/ardnew/ghostwriter/log"
)

// PostProcessor runs once after a compile pass with the files it rewrote.
type PostProcessor func(ctx context.Context, files []string) error

// RegisterPostProcessor binds a dotted name to p.
func (r *Resolver) RegisterPostProcessor(name string, p PostProcessor) error {
	if _, _, err := split(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.post[name] = p

	return nil
}

// PostProcessor returns the post-processor registered under name.
func (r *Resolver) PostProcessor(name string) (PostProcessor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.post[name]; ok {
		return p, nil
	}

	names := slices.Sorted(maps.Keys(r.post))
	e := ErrUnknownPostProc.With(slog.String("name", name))

	if s, ok := suggestion(name, names); ok {
		return nil, e.Wrap(fmt.Errorf("%s (did you mean %q?)", name, s))
	}

	return nil, e.Wrap(errors.New(name))
}

// Command returns a post-processor running the shell-style command line
// with the rewritten files appended as arguments. It is skipped when no
// file was rewritten.
func Command(line string) (PostProcessor, error) {
	argv, err := shlex.Split(line)
	if err != nil {
		return nil, ErrPostProcess.With(slog.String("command", line)).Wrap(err)
	}

	if len(argv) == 0 {
		return nil, ErrPostProcess.Wrap(errors.New("empty command"))
	}

	return func(ctx context.Context, files []string) error {
		if len(files) == 0 {
			return nil
		}

		cmd := exec.CommandContext(ctx, argv[0], append(argv[1:len(argv):len(argv)], files...)...)

		var out bytes.Buffer

		cmd.Stdout = &out
		cmd.Stderr = &out

		log.FromContext(ctx).Debug("post-processing",
			slog.String("command", strings.Join(cmd.Args, " ")),
			slog.Int("files", len(files)),
		)

		if err := cmd.Run(); err != nil {
			return ErrPostProcess.With(
				slog.String("command", line),
				slog.String("output", strings.TrimSpace(out.String())),
			).Wrap(err)
		}

		return nil
	}, nil
}

// Chain returns a post-processor running each non-nil p in order, stopping
// at the first error.
func Chain(ps ...PostProcessor) PostProcessor {
	return func(ctx context.Context, files []string) error {
		for _, p := range ps {
			if p == nil {
				continue
			}

			if err := p(ctx, files); err != nil {
				return err
			}
		}

		return nil
	}
}

// Gofmt is a post-processor formatting the rewritten Go files in place.
// Files that do not parse are reported and left unchanged.
func Gofmt(ctx context.Context, files []string) error {
	var errs []error

	for _, path := range files {
		if filepath.Ext(path) != ".go" {
			continue
		}

		if err := gofmtFile(path); err != nil {
			errs = append(errs, ErrPostProcess.With(slog.String("file", path)).Wrap(err))

			continue
		}

		log.FromContext(ctx).Trace("formatted", slog.String("file", path))
	}

	return errors.Join(errs...)
}

func gofmtFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	out, err := format.Source(src)
	if err != nil || bytes.Equal(src, out) {
		return err
	}

	return os.WriteFile(path, out, info.Mode().Perm())
}
