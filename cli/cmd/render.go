package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/ardnew/ghostwriter/cogen"
	"github.com/ardnew/ghostwriter/log"
)

// Render renders one template file to stdout.
type Render struct {
	Template string `arg:""                                       help:"Template file" type:"existingfile"`
	Data     string `help:"YAML file whose mapping is the root scope" short:"d"     type:"existingfile"`
	Prefix   string `help:"Prefix written before every output line"`

	out io.Writer
}

// Run executes the render command.
func (r *Render) Run(ctx context.Context) error {
	src, err := os.ReadFile(r.Template)
	if err != nil {
		return ErrRender.With(slog.String("file", r.Template)).Wrap(err)
	}

	data, err := readData(r.Data)
	if err != nil {
		return err
	}

	log.DebugContext(ctx, "render",
		slog.String("template", r.Template),
		slog.String("data", r.Data),
		slog.Int("vars", len(data)),
	)

	out := r.out
	if out == nil {
		out = os.Stdout
	}

	engine := cogen.NewEngine()

	err = engine.RenderString(ctx, string(src), cogen.NewScope(data), out, r.Prefix)
	if err != nil {
		return ErrRender.With(slog.String("file", r.Template)).Wrap(err)
	}

	return nil
}
