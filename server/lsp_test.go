package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

const style = `ENTRY { author title } { len } { label }
INTEGERS { count }

FUNCTION { output.title }
{ title write$ newline$ }

FUNCTION { article }
{ 'output.title 'skip$ title empty$ if$
  output.title
}

READ
ITERATE { article }
`

// ---------------------------------------------------------------------------
// Text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		text string
		line protocol.UInteger
		col  protocol.UInteger
		want string
	}{
		{"title wri", 0, 9, "wri"},
		{"{ 'output.ti", 0, 12, "output.ti"},
		{"a\nb\nformat.na", 2, 9, "format.na"},
		{"hello", 0, 0, ""},
		{"x := ", 0, 4, ":="},
		{"single line", 5, 0, ""},
		{"short", 0, 99, "short"},
	}
	for _, tt := range tests {
		got := extractPrefix(tt.text, protocol.Position{Line: tt.line, Character: tt.col})
		if got != tt.want {
			t.Errorf("extractPrefix(%q, %d:%d) = %q, want %q", tt.text, tt.line, tt.col, got, tt.want)
		}
	}
}

func TestExtractWord(t *testing.T) {
	text := "{ title empty$ 'skip$ if$ }"
	tests := []struct {
		col  protocol.UInteger
		want string
	}{
		{3, "title"},
		{10, "empty$"},
		{17, "skip$"},
		{0, ""},
	}
	for _, tt := range tests {
		got := extractWord(text, protocol.Position{Line: 0, Character: tt.col})
		if got != tt.want {
			t.Errorf("extractWord at %d = %q, want %q", tt.col, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Analysis
// ---------------------------------------------------------------------------

func TestAnalyzeCleanDocument(t *testing.T) {
	doc := analyze("test.bst", style)
	if doc.prog == nil {
		t.Fatal("no program")
	}
	if diags := diagnostics(doc); len(diags) != 0 {
		t.Errorf("diagnostics = %+v", diags)
	}
}

func TestDiagnostics(t *testing.T) {
	doc := analyze("test.bst", "FUNCTION { f }\n{ nosuch$ }\nREAD\n")
	diags := diagnostics(doc)
	if len(diags) != 2 {
		t.Fatalf("diagnostics = %+v", diags)
	}
	d := diags[0]
	if !strings.Contains(d.Message, "unknown function") {
		t.Errorf("message = %q", d.Message)
	}
	want := protocol.Range{
		Start: protocol.Position{Line: 1, Character: 2},
		End:   protocol.Position{Line: 1, Character: 9},
	}
	if d.Range != want {
		t.Errorf("range = %+v, want %+v", d.Range, want)
	}
	if *d.Severity != protocol.DiagnosticSeverityError || *d.Source != lspName {
		t.Errorf("severity = %v, source = %v", *d.Severity, *d.Source)
	}
	if !strings.Contains(diags[1].Message, "entry command") {
		t.Errorf("second message = %q", diags[1].Message)
	}
}

func TestCompletion(t *testing.T) {
	doc := analyze("test.bst", style)

	labels := func(prefix string) []string {
		var out []string
		for _, item := range complete(doc, prefix) {
			out = append(out, item.Label)
		}
		return out
	}

	if got := strings.Join(labels("output."), ","); got != "output.title" {
		t.Errorf("output. -> %s", got)
	}
	if got := strings.Join(labels("wr"), ","); got != "write$" {
		t.Errorf("wr -> %s", got)
	}
	if got := strings.Join(labels("IT"), ","); got != "ITERATE" {
		t.Errorf("IT -> %s", got)
	}
	got := labels("t")
	for _, want := range []string{"text.length$", "text.prefix$", "title", "top$", "type$"} {
		found := false
		for _, l := range got {
			if l == want {
				found = true
			}
		}
		if !found {
			t.Errorf("t -> %v, missing %s", got, want)
		}
	}

	for _, item := range complete(doc, "len") {
		if item.Label == "len" && *item.Detail != "integer entry variable" {
			t.Errorf("len detail = %q", *item.Detail)
		}
	}
}

func TestHover(t *testing.T) {
	doc := analyze("test.bst", style)

	h := hover(doc, "substring$")
	if h == nil {
		t.Fatal("no hover for a built-in")
	}
	if v := h.Contents.(protocol.MarkupContent).Value; !strings.Contains(v, "start len substring$") {
		t.Errorf("built-in hover = %q", v)
	}

	h = hover(doc, "Output.Title")
	if h == nil {
		t.Fatal("no hover for a user function")
	}
	v := h.Contents.(protocol.MarkupContent).Value
	if !strings.Contains(v, "wizard-defined function") || !strings.Contains(v, "line 4") {
		t.Errorf("function hover = %q", v)
	}

	if hover(doc, "nothing.here") != nil {
		t.Error("hover for an unknown name")
	}
}

func TestReferences(t *testing.T) {
	got := references(style, "OUTPUT.TITLE")
	want := []protocol.Range{
		{Start: protocol.Position{Line: 3, Character: 11}, End: protocol.Position{Line: 3, Character: 23}},
		{Start: protocol.Position{Line: 7, Character: 3}, End: protocol.Position{Line: 7, Character: 15}},
		{Start: protocol.Position{Line: 8, Character: 2}, End: protocol.Position{Line: 8, Character: 14}},
	}
	if len(got) != len(want) {
		t.Fatalf("references = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("reference %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
