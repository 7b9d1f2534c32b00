// Package cmd implements the ghostwriter subcommands: init, compile, render
// and repl.
package cmd

var (
	// CacheIdentifier is the kong variable identifier containing the path to
	// the runtime cache directory.
	CacheIdentifier = "cache"

	// ConfigIdentifier is the kong variable identifier containing the path to
	// the user defaults file.
	ConfigIdentifier = "config"
)
