package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/ardnew/ghostwriter/log"
)

// Walk returns the absolute paths of every file below root selected by
// filter, in lexical order. Entries below root that cannot be read are logged
// and skipped; only an unreadable root fails the walk.
func Walk(ctx context.Context, root string, filter *Filter) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var files []string

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}

			log.WarnContext(ctx, "skipping unreadable path",
				slog.String("path", path),
				slog.Any("error", err),
			)

			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			if rel != "." && !filter.MatchDir(rel) {
				return filepath.SkipDir
			}
		case d.Type().IsRegular() && filter.MatchFile(rel):
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// ExcludedDirs returns the absolute paths of the outermost directories below
// root that filter does not descend into.
func ExcludedDirs(ctx context.Context, root string, filter *Filter) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var dirs []string

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil && path == root:
			return err
		case err != nil:
			return filepath.SkipDir
		case ctx.Err() != nil:
			return ctx.Err()
		case !d.IsDir() || path == root:
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if !filter.MatchDir(rel) {
			dirs = append(dirs, path)

			return filepath.SkipDir
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return dirs, nil
}
