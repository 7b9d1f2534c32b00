package cmd

import (
	"context"
	"path/filepath"

	"github.com/ardnew/ghostwriter/cli/cmd/repl"
	"github.com/ardnew/ghostwriter/cogen"
	"github.com/ardnew/ghostwriter/pkg"
)

// Repl starts an interactive evaluator.
type Repl struct {
	Data string `help:"YAML file whose mapping seeds the session variables" short:"d" type:"existingfile"`
}

// Run executes the repl command.
func (r *Repl) Run(ctx context.Context) error {
	data, err := readData(r.Data)
	if err != nil {
		return err
	}

	return repl.Run(ctx, repl.Config{
		Engine:      cogen.NewEngine(),
		Scope:       cogen.NewScope(data),
		HistoryPath: filepath.Join(cacheDir(ctx), repl.HistoryFile),
	})
}

// cacheDir returns the cache directory named by the kong variables, or the
// default cache directory outside of a kong command.
func cacheDir(ctx context.Context) string {
	if ktx := kongContextFrom(ctx); ktx != nil {
		if dir, ok := ktx.Model.Vars()[CacheIdentifier]; ok && dir != "" {
			return dir
		}
	}

	return pkg.CacheDir()
}
