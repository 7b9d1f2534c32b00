package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"

	"github.com/ardnew/ghostwriter/config"
	"github.com/ardnew/ghostwriter/log"
	"github.com/ardnew/ghostwriter/resolve"
)

// ContextKey is used to store a [kong.Context] value in [context.Context].
type contextKey struct{}

// WithContext returns a new context.Context containing the given kong.Context.
func WithContext(ctx context.Context, ktx *kong.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ktx)
}

func kongContextFrom(ctx context.Context) *kong.Context {
	ktx, ok := ctx.Value(contextKey{}).(*kong.Context)
	if !ok || ktx == nil {
		return nil
	}

	return ktx
}

type (
	setupKey   struct{}
	loggingKey struct{}
)

// Setup registers Go snippets, components or post-processors with the
// resolver of a compile before any file is processed.
type Setup func(r *resolve.Resolver) error

// WithSetup returns a context whose compile runs fns, in order, on its
// resolver.
func WithSetup(ctx context.Context, fns ...Setup) context.Context {
	prev := setupFrom(ctx)

	return context.WithValue(ctx, setupKey{}, append(prev[:len(prev):len(prev)], fns...))
}

func setupFrom(ctx context.Context) []Setup {
	fns, _ := ctx.Value(setupKey{}).([]Setup)

	return fns
}

// WithLogging returns a context carrying apply, which configures the default
// logger from a project configuration's logging section.
func WithLogging(ctx context.Context, apply func(config.Logging)) context.Context {
	return context.WithValue(ctx, loggingKey{}, apply)
}

func applyLogging(ctx context.Context, l config.Logging) {
	if apply, ok := ctx.Value(loggingKey{}).(func(config.Logging)); ok && apply != nil {
		apply(l)

		return
	}

	log.Config(l.Options()...)
}

// readData decodes the YAML mapping in the file at path. An empty path
// yields an empty mapping.
func readData(path string) (map[string]any, error) {
	data := make(map[string]any)

	if path == "" {
		return data, nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrData.With(slog.String("file", path)).Wrap(err)
	}

	if err := yaml.Unmarshal(src, &data); err != nil {
		return nil, ErrData.With(slog.String("file", path)).
			Wrap(errors.New(yaml.FormatError(err, false, true)))
	}

	if data == nil {
		data = make(map[string]any)
	}

	return data, nil
}
