package cogen

import (
	"io"
	"strings"
)

// LineWriter assembles output lines from buffered fragments and writes each
// one behind the concatenation of an indentation stack.
//
// The bottom of the stack is the base prefix given to [NewLineWriter] and
// cannot be popped.
type LineWriter struct {
	w     io.Writer
	stack []string
	buf   strings.Builder
	lines int
}

// NewLineWriter returns a LineWriter writing to w with base indentation.
func NewLineWriter(w io.Writer, base string) *LineWriter {
	return &LineWriter{w: w, stack: []string{base}}
}

// Indent pushes prefix onto the indentation stack.
func (lw *LineWriter) Indent(prefix string) {
	lw.stack = append(lw.stack, prefix)
}

// Dedent pops the most recent [LineWriter.Indent].
func (lw *LineWriter) Dedent() error {
	if len(lw.stack) <= 1 {
		return ErrIndentUnderflow
	}

	lw.stack = lw.stack[:len(lw.stack)-1]

	return nil
}

// Depth returns the number of prefixes pushed above the base.
func (lw *LineWriter) Depth() int { return len(lw.stack) - 1 }

// Prefix returns the current indentation.
func (lw *LineWriter) Prefix() string { return strings.Join(lw.stack, "") }

// Lines returns the number of lines written.
func (lw *LineWriter) Lines() int { return lw.lines }

// WriteString buffers s as part of the current line.
func (lw *LineWriter) WriteString(s string) (int, error) {
	return lw.buf.WriteString(s)
}

// Flush writes the buffered line behind the current indentation and prefix.
// A line with no buffered content is written as a bare newline.
func (lw *LineWriter) Flush(prefix string) error {
	line := lw.buf.String()
	lw.buf.Reset()

	if line == "" {
		return lw.Blank()
	}

	lw.lines++
	_, err := io.WriteString(lw.w, lw.Prefix()+prefix+line+"\n")

	return err
}

// Blank writes an empty line.
func (lw *LineWriter) Blank() error {
	lw.lines++
	_, err := io.WriteString(lw.w, "\n")

	return err
}

// Discard drops any buffered fragments.
func (lw *LineWriter) Discard() { lw.buf.Reset() }
