package scan

import (
	"strings"
	"testing"

	"github.com/chazu/bibtex/buffer"
)

func newScanner(src string) *Scanner {
	s := New(buffer.New(8, 0))
	s.Reset(strings.NewReader(src))
	return s
}

func TestReadLineStripsTrailingWhite(t *testing.T) {
	s := newScanner("first  \t\r\nsecond\nlast")
	var lines []string
	for {
		ok, err := s.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine: %v", err)
		}
		if !ok {
			break
		}
		lines = append(lines, string(s.Line()))
	}
	want := []string{"first", "second", "last"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Errorf("lines = %q, want %q", lines, want)
	}
	if s.LineNum() != 3 {
		t.Errorf("LineNum = %d, want 3", s.LineNum())
	}
}

func TestReadLineLongerThanBuffer(t *testing.T) {
	long := strings.Repeat("x", 10000)
	s := newScanner(long + "\n")
	ok, err := s.ReadLine()
	if !ok || err != nil {
		t.Fatalf("ReadLine = %v, %v", ok, err)
	}
	if s.Len() != len(long) {
		t.Errorf("line length = %d, want %d", s.Len(), len(long))
	}
}

func TestScanPrimitives(t *testing.T) {
	s := newScanner(`\citation{a,b}`)
	s.ReadLine()

	if !s.Scan1('{') {
		t.Fatal("Scan1 did not find {")
	}
	if string(s.Token()) != `\citation` {
		t.Errorf("Token = %q", s.Token())
	}
	s.Advance()
	if !s.Scan2(',', '}') || string(s.Token()) != "a" {
		t.Errorf("Scan2 token = %q", s.Token())
	}
	s.Advance()
	if !s.Scan1White('}') || string(s.Token()) != "b" {
		t.Errorf("Scan1White token = %q", s.Token())
	}
	s.Advance()
	if s.Scan1('x') {
		t.Error("Scan1 found a missing byte")
	}
}

func TestScanIdentifier(t *testing.T) {
	tests := []struct {
		line string
		want ScanResult
		tok  string
	}{
		{"author = x", WhiteAdjacent, "author"},
		{"author=x", SpecifiedCharAdjacent, "author"},
		{"author", WhiteAdjacent, "author"},
		{"author{", OtherCharAdjacent, "author"},
		{"2020", IDNull, ""},
		{"{x", IDNull, ""},
		{"add.period$ ", WhiteAdjacent, "add.period$"},
	}
	for _, tt := range tests {
		s := newScanner(tt.line)
		s.ReadLine()
		got := s.ScanIdentifier('=', '#', ',')
		if got != tt.want || string(s.Token()) != tt.tok {
			t.Errorf("ScanIdentifier(%q) = %v %q, want %v %q", tt.line, got, s.Token(), tt.want, tt.tok)
		}
	}
}

func TestScanIntegers(t *testing.T) {
	s := newScanner("#-42 17x")
	s.ReadLine()
	s.Advance()
	v, ok := s.ScanInteger()
	if !ok || v != -42 {
		t.Errorf("ScanInteger = %d, %v", v, ok)
	}
	s.ScanWhite()
	v, ok = s.ScanNonnegInteger()
	if !ok || v != 17 {
		t.Errorf("ScanNonnegInteger = %d, %v", v, ok)
	}
	if s.Char() != 'x' {
		t.Errorf("stopped at %q", s.Char())
	}
}

func TestEatWhiteSkipsCommentsAndBlankLines(t *testing.T) {
	s := newScanner("\n   % a comment\n\n  ENTRY")
	ok, err := s.EatWhite('%')
	if !ok || err != nil {
		t.Fatalf("EatWhite = %v, %v", ok, err)
	}
	if string(s.Rest()) != "ENTRY" {
		t.Errorf("Rest = %q", s.Rest())
	}

	s = newScanner("  \n\t")
	if ok, _ := s.EatWhite(0); ok {
		t.Error("EatWhite at end of input should return false")
	}
}

func TestCharTables(t *testing.T) {
	if !IsAlpha('q') || !IsNumeric('7') || !IsWhite('\t') {
		t.Error("basic classes wrong")
	}
	if Lex['~'] != SepChar || Lex['-'] != SepChar {
		t.Error("tie and hyphen should be separators")
	}
	if IsIDChar('{') || IsIDChar('%') || !IsIDChar('$') || !IsIDChar('.') {
		t.Error("identifier legality wrong")
	}
	if CharWidth['W'] != 1028 || CharWidth['0'] != 500 {
		t.Errorf("widths: W=%d 0=%d", CharWidth['W'], CharWidth['0'])
	}
	if w, ok := ControlSeqWidth([]byte("OE")); !ok || w != 1014 {
		t.Errorf("ControlSeqWidth(OE) = %d, %v", w, ok)
	}
}
