package bib

import (
	"strings"
	"testing"

	"github.com/chazu/bibtex/buffer"
	"github.com/chazu/bibtex/history"
	"github.com/chazu/bibtex/pool"
)

func newReader(t *testing.T) (*Reader, *pool.Table, *history.Tracker) {
	t.Helper()
	tab := pool.NewTable(pool.NewPool(0, 0), 1009)
	h := history.New()
	r, err := NewReader(tab, h, buffer.New(32, 0), buffer.New(32, 0))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	return r, tab, h
}

func field(t *testing.T, tab *pool.Table, e *Entry, name string) string {
	t.Helper()
	loc, ok := tab.LookupString(name, pool.FieldName)
	if !ok {
		return "<no such field name>"
	}
	v, ok := e.Field(loc)
	if !ok {
		return "<missing>"
	}
	return tab.Pool().String(v)
}

const sample = `Junk before the first command.
@string{ jan = "January" }
@STRING(pub = {Addison} # "-" # {Wesley})
@comment{ ignored }
@preamble{ "\newcommand{\x}{y}" }

@Book{Knuth84,
  author = "Donald   E.
            Knuth",
  title  = {The {\TeX}book},
  month  = jan,
  publisher = pub,
  year   = 1984,
  Title = "dup",
}
@misc(other, note = undefinedmacro # " x", crossref = "Knuth84")
@book{knuth84, title = "second"}
`

func TestReadEntries(t *testing.T) {
	r, tab, h := newReader(t)
	res, err := r.Read("refs.bib", strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(res.Entries))
	}
	k := res.Entries[0]
	if tab.Name(k.Key) != "Knuth84" || tab.Name(k.Type) != "book" {
		t.Errorf("first entry = %s/%s", tab.Name(k.Type), tab.Name(k.Key))
	}
	if k.Line != 7 {
		t.Errorf("first entry line = %d, want 7", k.Line)
	}
	want := map[string]string{
		"author":    "Donald E. Knuth",
		"title":     `The {\TeX}book`,
		"month":     "January",
		"publisher": "Addison-Wesley",
		"year":      "1984",
	}
	for name, v := range want {
		if got := field(t, tab, k, name); got != v {
			t.Errorf("%s = %q, want %q", name, got, v)
		}
	}
	if len(k.Fields()) != 5 {
		t.Errorf("got %d fields, want 5", len(k.Fields()))
	}

	o := res.Entries[1]
	if got := field(t, tab, o, "note"); got != "x" {
		t.Errorf("note = %q, want %q", got, "x")
	}
	if o.Crossref == pool.NoStr || tab.Pool().String(o.Crossref) != "Knuth84" {
		t.Errorf("crossref not recorded")
	}

	if len(res.Preambles) != 1 || tab.Pool().String(res.Preambles[0]) != `\newcommand{\x}{y}` {
		t.Errorf("preambles = %v", res.Preambles)
	}
	// duplicate field, undefined macro, repeated entry
	if h.Warnings() != 3 || h.Errors() != 0 {
		t.Errorf("warnings=%d errors=%d, messages %v", h.Warnings(), h.Errors(), h.Messages())
	}
	if len(res.Messages) != 3 {
		t.Errorf("file captured %d messages, want 3", len(res.Messages))
	}
	if v, ok := r.Macro([]byte("JAN")); !ok || string(v) != "January" {
		t.Errorf("macro jan = %q, %v", v, ok)
	}
	if len(res.Macros) != 2 {
		t.Errorf("file defined %d macros, want 2", len(res.Macros))
	}
}

func TestReadSkipsMalformedCommand(t *testing.T) {
	r, tab, h := newReader(t)
	src := "@book{bad, title = }\n@misc{fine, note = \"ok\"}\n@book{trunc, title = {open\n"
	res, err := r.Read("x.bib", strings.NewReader(src))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(res.Entries) != 1 || tab.Name(res.Entries[0].Key) != "fine" {
		t.Fatalf("entries = %d", len(res.Entries))
	}
	if h.Errors() != 2 {
		t.Errorf("errors = %d, want 2: %v", h.Errors(), h.Messages())
	}
	if h.Level() != history.ErrorIssued {
		t.Errorf("level = %v", h.Level())
	}
}

func TestMacrosPersistAcrossFiles(t *testing.T) {
	r, tab, _ := newReader(t)
	if _, err := r.Read("a.bib", strings.NewReader(`@string{ieee = "IEEE"}`)); err != nil {
		t.Fatal(err)
	}
	res, err := r.Read("b.bib", strings.NewReader(`@article{k, journal = ieee # " Trans."}`))
	if err != nil {
		t.Fatal(err)
	}
	if got := field(t, tab, res.Entries[0], "journal"); got != "IEEE Trans." {
		t.Errorf("journal = %q", got)
	}
	env := r.MacroEnv()
	if len(env) != 1 || env[0].Name != "ieee" || env[0].Value != "IEEE" {
		t.Errorf("env = %v", env)
	}
}

func TestDatabaseMergeFirstWins(t *testing.T) {
	r, tab, h := newReader(t)
	db := NewDatabase(tab)
	for _, f := range []struct{ name, src string }{
		{"a.bib", `@book{Key, title = "first"}`},
		{"b.bib", `@book{key, title = "second"} @book{other, title = "o"}`},
	} {
		res, err := r.Read(f.name, strings.NewReader(f.src))
		if err != nil {
			t.Fatal(err)
		}
		db.Merge(res, h)
	}
	if db.Len() != 2 {
		t.Fatalf("db has %d entries", db.Len())
	}
	e, i, ok := db.Lookup([]byte("KEY"))
	if !ok || i != 0 || field(t, tab, e, "title") != "first" {
		t.Errorf("lookup KEY = %v %d %v", e, i, ok)
	}
	if h.Warnings() != 1 {
		t.Errorf("warnings = %d", h.Warnings())
	}
}

func TestSnapshotRestore(t *testing.T) {
	r, tab, _ := newReader(t)
	res, err := r.Read("refs.bib", strings.NewReader(sample))
	if err != nil {
		t.Fatal(err)
	}
	snap := r.Capture(res)

	r2, tab2, h2 := newReader(t)
	got, err := r2.Restore(snap)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(got.Entries) != len(res.Entries) {
		t.Fatalf("restored %d entries", len(got.Entries))
	}
	for i, e := range got.Entries {
		orig := res.Entries[i]
		if tab2.Name(e.Key) != tab.Name(orig.Key) || e.Line != orig.Line || e.File != "refs.bib" {
			t.Errorf("entry %d = %s line %d", i, tab2.Name(e.Key), e.Line)
		}
		for _, f := range orig.Fields() {
			name := tab.Name(f.Name)
			if field(t, tab2, e, name) != tab.Pool().String(f.Value) {
				t.Errorf("entry %d field %s differs", i, name)
			}
		}
	}
	if got.Entries[1].Crossref == pool.NoStr {
		t.Errorf("crossref lost on restore")
	}
	if v, ok := r2.Macro([]byte("pub")); !ok || string(v) != "Addison-Wesley" {
		t.Errorf("macro pub = %q", v)
	}
	if h2.Warnings() != 3 {
		t.Errorf("replayed %d warnings, want 3", h2.Warnings())
	}
}
