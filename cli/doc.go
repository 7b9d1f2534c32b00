// Package cli contains the command line interface for ghostwriter.
//
// # Usage
//
//	ghostwriter [flags] <command> [args]
//
// Commands:
//   - init: write ghostwriter.conf.yml and an example snippet module
//   - compile (default): expand every snippet region in the project, once or
//     continuously with --watch
//   - render: render one template file to stdout
//   - repl: evaluate expressions and one-line templates interactively
//
// # User Defaults
//
// Flag defaults are read from config.yml in the user configuration
// directory (for example ~/.config/ghostwriter/config.yml). Keys name flags
// with hyphens or underscores, and nested mappings join their keys with
// hyphens:
//
//	log:
//	  level: debug
//	  pretty: false
//
// Command-line flags override the file.
//
// # Logging Options
//
//   - --log-level: Set minimum log level (trace, debug, info, warn, error)
//   - --log-format: Set log output format (text, json)
//   - --log-time-layout: Set timestamp format (RFC3339, Kitchen, etc.)
//   - --[no-]log-caller: Include caller information in log output
//   - --[no-]log-pretty: Colorize log output
//
// The logging section of a project configuration applies once compile has
// loaded it; flags given on the command line still take precedence.
//
// # Profiling Options
//
// Profiling is only available when built with the pprof build tag:
//
//	go build -tags pprof -o ghostwriter .
//
//   - --pprof-mode: Enable profiling (allocs, block, clock, cpu, goroutine,
//     heap, mem, mutex, thread, trace)
//   - --pprof-dir: Set profile output directory (default:
//     ~/.cache/ghostwriter/pprof)
//
// # Examples
//
//	# Compile the project containing the working directory
//	ghostwriter compile
//
//	# Recompile on every change, with debug logging
//	ghostwriter --log-level=debug compile --watch
//
//	# Try out a template
//	ghostwriter render --data values.yml table.tmpl
package cli
