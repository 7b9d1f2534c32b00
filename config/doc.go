// Package config loads and validates ghostwriter.conf.yml, the project
// configuration found by walking up from the working directory with [Find].
//
// The parser section selects which files are compiled, the snippet-tag
// delimiters, the snippet search paths and an optional post-processor. The
// logging section sets the default logger once a project is loaded.
// [Init] is the cogen component rendering the commented file written by the
// init command.
package config
