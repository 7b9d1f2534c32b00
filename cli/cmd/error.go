package cmd

import "github.com/ardnew/ghostwriter/pkg"

var (
	ErrWriteConfig = pkg.NewError("write configuration file")
	ErrFileExists  = pkg.NewError("file exists (use --force to overwrite)")
	ErrConfig      = pkg.NewError("configuration error")
	ErrSetup       = pkg.NewError("resolver setup failed")
	ErrData        = pkg.NewError("read data file")
	ErrRender      = pkg.NewError("render template")
	ErrCompile     = pkg.NewError("compile failed")
)
