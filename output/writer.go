// Package output writes the formatted bibliography, wrapping long lines.
package output

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/mitchellh/go-wordwrap"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("bibtex.output")

// DefaultMaxPrintLine is the column at which pending text is wrapped.
const DefaultMaxPrintLine = 79

const continuation = "  "

// ---------------------------------------------------------------------------
// Writer
// ---------------------------------------------------------------------------

// Writer accumulates text for the current line. A line is written as soon
// as it is complete, either because newline was requested or because the
// pending text grew past the wrap column.
type Writer struct {
	w       io.Writer
	max     int
	pending []byte
	indent  int // continuation indent at the start of pending
	lines   int
	err     error
}

// NewWriter wraps w. A maxLine too small to hold a continuation indent
// selects DefaultMaxPrintLine.
func NewWriter(w io.Writer, maxLine int) *Writer {
	if maxLine <= len(continuation) {
		maxLine = DefaultMaxPrintLine
	}
	return &Writer{w: w, max: maxLine}
}

// Write appends text to the pending line, emitting every line that can be
// broken off at whitespace.
func (w *Writer) Write(p []byte) error {
	if w.err != nil {
		return w.err
	}
	w.pending = append(w.pending, p...)
	for len(w.pending) > w.max {
		body := widen(w.pending[w.indent:])
		wrapped := wordwrap.WrapString(body, uint(w.max-w.indent))
		first, rest, ok := strings.Cut(wrapped, "\n")
		if !ok || strings.TrimSpace(first) == "" {
			// A single word longer than the line; wait for whitespace.
			break
		}
		line := append([]byte(nil), w.pending[:w.indent]...)
		if err := w.emit(narrow(line, first)); err != nil {
			return err
		}
		w.pending = narrow(append(w.pending[:0], continuation...), strings.TrimLeft(rest, " \t\n"))
		w.indent = len(continuation)
	}
	return nil
}

// Newline finishes the pending line. An empty pending line produces a
// blank line; one holding only whitespace produces nothing.
func (w *Writer) Newline() error {
	if w.err != nil {
		return w.err
	}
	if len(w.pending) == 0 {
		return w.emit(nil)
	}
	line := bytes.TrimRight(w.pending, " \t")
	w.pending = w.pending[:0]
	w.indent = 0
	if len(line) == 0 {
		return nil
	}
	return w.emit(line)
}

// Flush writes any pending text as a final line.
func (w *Writer) Flush() error {
	if len(w.pending) == 0 {
		return w.err
	}
	return w.Newline()
}

// Lines returns how many lines have been written.
func (w *Writer) Lines() int {
	return w.lines
}

// Err returns the first write error.
func (w *Writer) Err() error {
	return w.err
}

// ---------------------------------------------------------------------------
// Byte-preserving wrapping
// ---------------------------------------------------------------------------

// Output text is bytes, not necessarily UTF-8. Before wrapping, every byte
// at or above 0x80 becomes its own rune in a private-use block, so each
// byte counts as one column and none is re-encoded or seen as a space.
const rawBase = 0xE000

func widen(p []byte) string {
	var sb strings.Builder
	sb.Grow(len(p))
	for _, c := range p {
		if c < utf8.RuneSelf {
			sb.WriteByte(c)
		} else {
			sb.WriteRune(rawBase + rune(c))
		}
	}
	return sb.String()
}

// narrow appends the bytes s was widened from to dst.
func narrow(dst []byte, s string) []byte {
	for _, r := range s {
		if r >= rawBase {
			dst = append(dst, byte(r-rawBase))
		} else {
			dst = append(dst, byte(r))
		}
	}
	return dst
}

func (w *Writer) emit(line []byte) error {
	line = bytes.TrimRight(line, " \t")
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	if _, err := w.w.Write(buf); err != nil {
		log.Errorf("write failed: %s", err.Error())
		w.err = err
		return err
	}
	w.lines++
	return nil
}
