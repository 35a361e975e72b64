package output

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestWriteAndNewline(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb, 0)
	w.Write([]byte("hello"))
	w.Write([]byte(" world   "))
	w.Newline()
	w.Newline()
	w.Write([]byte("   "))
	w.Newline()
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if got, want := sb.String(), "hello world\n\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if w.Lines() != 2 {
		t.Errorf("lines = %d", w.Lines())
	}
}

func TestWrapIndentsContinuation(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb, 20)
	w.Write([]byte("aaaa bbbb cccc dddd eeee ffff"))
	if got := sb.String(); got != "aaaa bbbb cccc dddd\n" {
		t.Errorf("completed line not flushed early: %q", got)
	}
	w.Newline()
	if got, want := sb.String(), "aaaa bbbb cccc dddd\n  eeee ffff\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestLongWordIsNotSplit(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb, 10)
	w.Write([]byte("abcdefghijklmnop"))
	if w.Lines() != 0 {
		t.Fatalf("unbreakable text was emitted early")
	}
	w.Write([]byte(" x"))
	w.Flush()
	if got, want := sb.String(), "abcdefghijklmnop\n  x\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestFlushEmptyWritesNothing(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb, 0)
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if sb.Len() != 0 {
		t.Errorf("output = %q", sb.String())
	}
}

func TestWrapKeepsNonUTF8Bytes(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb, 0)
	for i := 0; i < 30; i++ {
		w.Write([]byte("caf\xe9 "))
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	out := sb.String()
	if strings.ContainsRune(out, utf8.RuneError) {
		t.Fatalf("output was re-encoded: %q", out)
	}
	if n := strings.Count(out, "caf\xe9"); n != 30 {
		t.Errorf("found %d words, want 30: %q", n, out)
	}
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	for _, line := range lines {
		if len(line) > DefaultMaxPrintLine {
			t.Errorf("line of %d bytes: %q", len(line), line)
		}
	}
	if !strings.HasPrefix(lines[1], "  caf\xe9") {
		t.Errorf("continuation = %q", lines[1])
	}
}

func TestHighBytesAreNotBreakPoints(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb, 10)
	w.Write([]byte("aaaa\xa0bbbb\x85cccc dd"))
	w.Flush()
	if got, want := sb.String(), "aaaa\xa0bbbb\x85cccc\n  dd\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}
