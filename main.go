package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/ardnew/ghostwriter/cli"
	"github.com/ardnew/ghostwriter/cli/cmd"
	"github.com/ardnew/ghostwriter/log"
)

func main() {
	err := cli.Run(context.Background(), os.Exit, os.Args[1:]...)
	if err == nil {
		return
	}

	log.Error("ghostwriter failed", slog.Any("error", err))

	if errors.Is(err, cmd.ErrConfig) {
		os.Exit(2)
	}

	os.Exit(1)
}
