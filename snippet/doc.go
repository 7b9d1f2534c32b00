// Package snippet rewrites the tagged regions of source files.
//
// A region starts at a line containing the begin tag and ends at a line
// containing the matching end tag. With the default [Tags]:
//
//	// <@@begin: pkg.module.snippet@@>
//	...generated content...
//	// <@@/pkg.module.snippet@@>
//
// The tags may appear anywhere on their lines, so they can sit inside any
// comment syntax. An optional out tag ("<@@out@@>") inside a region keeps
// the lines before it and places the generated content after it.
//
// Every other line is copied byte for byte. Output goes to a temporary file
// that replaces the original only when parsing succeeded and the content
// changed.
package snippet
