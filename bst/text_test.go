package bst

import (
	"math"
	"testing"
)

func TestSubstring(t *testing.T) {
	tests := []struct {
		s             string
		start, length int
		want          string
	}{
		{"abcdef", 1, 3, "abc"},
		{"abcdef", 4, 10, "def"},
		{"abcdef", -1, 2, "ef"},
		{"abcdef", -3, 10, "abcd"},
		{"abcdef", 0, 2, ""},
		{"abcdef", 7, 1, ""},
		{"abcdef", 2, 0, ""},
		{"abcdef", -6, 1, "a"},
		{"abcdef", -7, 1, ""},
		{"Hello", 2, math.MaxInt, "ello"},
		{"Hello", -1, math.MaxInt, "Hello"},
		{"Hello", math.MaxInt, 2, ""},
		{"Hello", math.MinInt, 2, ""},
		{"Hello", math.MinInt, math.MaxInt, ""},
		{"", -1, math.MaxInt, ""},
	}
	for _, tt := range tests {
		if got := string(substring([]byte(tt.s), tt.start, tt.length)); got != tt.want {
			t.Errorf("substring(%q, %d, %d) = %q, want %q", tt.s, tt.start, tt.length, got, tt.want)
		}
	}
}

func TestTextLengthAndPrefix(t *testing.T) {
	s := []byte(`{\"O}sterreich {Ab}c`)
	if n := textLength(s); n != 14 {
		t.Errorf("textLength = %d, want 14", n)
	}
	if got := string(textPrefix(s, 2)); got != `{\"O}s` {
		t.Errorf("textPrefix 2 = %q", got)
	}
	if got := string(textPrefix([]byte("x {Abc}"), 3)); got != "x {A}" {
		t.Errorf("textPrefix closes braces: %q", got)
	}
	if got := textPrefix(s, 0); len(got) != 0 {
		t.Errorf("textPrefix 0 = %q", got)
	}
}

func TestAddPeriod(t *testing.T) {
	tests := map[string]string{
		"":           "",
		"Knuth":      "Knuth.",
		"Done.":      "Done.",
		"Why?":       "Why?",
		"{The Book}": "{The Book}.",
		"{Wow!}":     "{Wow!}",
		"}}":         "}}",
	}
	for in, want := range tests {
		if got := string(addPeriod([]byte(in))); got != want {
			t.Errorf("addPeriod(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestChangeCase(t *testing.T) {
	tests := []struct {
		s    string
		mode byte
		want string
	}{
		{"The {TeX} Book: A Guide", 't', "The {TeX} book: A guide"},
		{"the TeXbook", 'u', "THE TEXBOOK"},
		{"ABC {DEF}", 'l', "abc {DEF}"},
		{`{\AE}sop and {\ss}`, 'l', `{\ae}sop and {\ss}`},
		{`stra{\ss}e {\i}`, 'u', `STRA{SS}E {I}`},
		{`{\"O}sterreich`, 't', `{\"O}sterreich`},
	}
	for _, tt := range tests {
		if got := string(changeCase([]byte(tt.s), tt.mode)); got != tt.want {
			t.Errorf("changeCase(%q, %c) = %q, want %q", tt.s, tt.mode, got, tt.want)
		}
	}
}

func TestPurify(t *testing.T) {
	tests := map[string]string{
		`Jean-Paul~Sartre`:    "Jean Paul Sartre",
		`{\"O}sterreich!`:     "Osterreich",
		`{\ss}e {\AE}r`:       "sse AEr",
		`The {\em Big} Book.`: "The Big Book",
	}
	for in, want := range tests {
		if got := string(purify([]byte(in))); got != want {
			t.Errorf("purify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWidth(t *testing.T) {
	if w := width([]byte("ab")); w != 1056 {
		t.Errorf("width(ab) = %d, want 1056", w)
	}
	if w := width([]byte(`{\ss}`)); w != 500 {
		t.Errorf(`width({\ss}) = %d, want 500`, w)
	}
	if w := width([]byte(`{\"o}`)); w != 500 {
		t.Errorf(`width({\"o}) = %d, want 500`, w)
	}
}
