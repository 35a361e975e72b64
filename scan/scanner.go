// Package scan provides the byte-level scanning primitives shared by the
// aux, database and style-program grammars, plus the character tables.
package scan

import (
	"io"

	"github.com/chazu/bibtex/buffer"
)

// ScanResult describes what ended an identifier scan.
type ScanResult int

const (
	IDNull ScanResult = iota
	SpecifiedCharAdjacent
	OtherCharAdjacent
	WhiteAdjacent
)

// ---------------------------------------------------------------------------
// Scanner: a two-pointer cursor over the current line
// ---------------------------------------------------------------------------

// Scanner scans the line held in a buffer. Ptr1 marks the start of the
// current token and Ptr2 the scan position; Token returns the bytes
// between them.
type Scanner struct {
	buf  *buffer.Buffer
	in   *Input
	Ptr1 int
	Ptr2 int
}

// New creates a scanner working in buf.
func New(buf *buffer.Buffer) *Scanner {
	return &Scanner{buf: buf}
}

// Reset attaches a new input and empties the line.
func (s *Scanner) Reset(r io.Reader) {
	s.in = NewInput(r)
	s.buf.Reset()
	s.Ptr1, s.Ptr2 = 0, 0
}

// Use switches to another input without touching the current line.
func (s *Scanner) Use(in *Input) {
	s.in = in
}

// SetLine replaces the current line, for scanning text that does not come
// from an input.
func (s *Scanner) SetLine(b []byte) error {
	s.Ptr1, s.Ptr2 = 0, 0
	return s.buf.SetBytes(b)
}

// ReadLine loads the next input line. It returns false at end of input.
func (s *Scanner) ReadLine() (bool, error) {
	s.Ptr1, s.Ptr2 = 0, 0
	if s.in == nil {
		return false, nil
	}
	return s.in.ReadLine(s.buf)
}

// LineNum returns the current line number.
func (s *Scanner) LineNum() int {
	if s.in == nil {
		return 0
	}
	return s.in.Line()
}

// Line returns the whole current line.
func (s *Scanner) Line() []byte { return s.buf.Bytes() }

// Len returns the current line length.
func (s *Scanner) Len() int { return s.buf.Len() }

// AtEnd reports whether the scan position is at end of line.
func (s *Scanner) AtEnd() bool { return s.Ptr2 >= s.buf.Len() }

// Char returns the byte at the scan position, or 0 at end of line.
func (s *Scanner) Char() byte {
	if s.AtEnd() {
		return 0
	}
	return s.buf.At(s.Ptr2)
}

// Advance moves the scan position one byte forward.
func (s *Scanner) Advance() {
	if !s.AtEnd() {
		s.Ptr2++
	}
}

// Token returns the bytes between Ptr1 and Ptr2.
func (s *Scanner) Token() []byte {
	return s.buf.Slice(s.Ptr1, s.Ptr2)
}

// Rest returns the bytes from the scan position to end of line.
func (s *Scanner) Rest() []byte {
	return s.buf.Slice(s.Ptr2, s.buf.Len())
}

// Mark starts a new token at the scan position.
func (s *Scanner) Mark() { s.Ptr1 = s.Ptr2 }

func (s *Scanner) scanUntil(stop func(byte) bool) bool {
	s.Ptr1 = s.Ptr2
	for !s.AtEnd() && !stop(s.buf.At(s.Ptr2)) {
		s.Ptr2++
	}
	return !s.AtEnd()
}

// Scan1 scans up to c. It reports whether c was found on this line.
func (s *Scanner) Scan1(c byte) bool {
	return s.scanUntil(func(b byte) bool { return b == c })
}

// Scan1White scans up to c or whitespace.
func (s *Scanner) Scan1White(c byte) bool {
	return s.scanUntil(func(b byte) bool { return b == c || IsWhite(b) })
}

// Scan2 scans up to c1 or c2.
func (s *Scanner) Scan2(c1, c2 byte) bool {
	return s.scanUntil(func(b byte) bool { return b == c1 || b == c2 })
}

// Scan2White scans up to c1, c2 or whitespace.
func (s *Scanner) Scan2White(c1, c2 byte) bool {
	return s.scanUntil(func(b byte) bool { return b == c1 || b == c2 || IsWhite(b) })
}

// Scan3 scans up to c1, c2 or c3.
func (s *Scanner) Scan3(c1, c2, c3 byte) bool {
	return s.scanUntil(func(b byte) bool { return b == c1 || b == c2 || b == c3 })
}

// ScanAlpha scans a run of letters and reports whether it is non-empty.
func (s *Scanner) ScanAlpha() bool {
	s.scanUntil(func(b byte) bool { return !IsAlpha(b) })
	return s.Ptr2 > s.Ptr1
}

// ScanWhite skips whitespace on the current line and reports whether
// anything is left.
func (s *Scanner) ScanWhite() bool {
	for !s.AtEnd() && IsWhite(s.buf.At(s.Ptr2)) {
		s.Ptr2++
	}
	return !s.AtEnd()
}

// EatWhite skips whitespace across lines. When comment is non-zero the
// rest of a line starting at that byte is skipped too. It returns false at
// end of input.
func (s *Scanner) EatWhite(comment byte) (bool, error) {
	for {
		if s.ScanWhite() && (comment == 0 || s.Char() != comment) {
			return true, nil
		}
		ok, err := s.ReadLine()
		if err != nil || !ok {
			return false, err
		}
	}
}

// ScanIdentifier scans an identifier and classifies the byte after it.
// Identifiers may not start with a digit.
func (s *Scanner) ScanIdentifier(c1, c2, c3 byte) ScanResult {
	s.Ptr1 = s.Ptr2
	if !IsNumeric(s.Char()) {
		for !s.AtEnd() && IsIDChar(s.buf.At(s.Ptr2)) {
			s.Ptr2++
		}
	}
	if s.Ptr2 == s.Ptr1 {
		return IDNull
	}
	if s.AtEnd() || IsWhite(s.Char()) {
		return WhiteAdjacent
	}
	if c := s.Char(); c == c1 || c == c2 || c == c3 {
		return SpecifiedCharAdjacent
	}
	return OtherCharAdjacent
}

// ScanNonnegInteger scans a run of digits.
func (s *Scanner) ScanNonnegInteger() (int, bool) {
	s.Ptr1 = s.Ptr2
	v := 0
	for !s.AtEnd() && IsNumeric(s.buf.At(s.Ptr2)) {
		v = v*10 + int(s.buf.At(s.Ptr2)-'0')
		s.Ptr2++
	}
	return v, s.Ptr2 > s.Ptr1
}

// ScanInteger scans an optionally negative integer.
func (s *Scanner) ScanInteger() (int, bool) {
	start := s.Ptr2
	neg := false
	if s.Char() == '-' {
		neg = true
		s.Ptr2++
	}
	v, ok := s.ScanNonnegInteger()
	s.Ptr1 = start
	if !ok {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}
