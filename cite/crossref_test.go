package cite

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/bibtex/bib"
	"github.com/chazu/bibtex/buffer"
	"github.com/chazu/bibtex/history"
	"github.com/chazu/bibtex/pool"
)

type fixture struct {
	table *pool.Table
	hist  *history.Tracker
	db    *bib.Database
	list  *List
}

// newFixture cites keys (before the database is read, as the aux file
// would) and loads src.
func newFixture(t *testing.T, src string, keys ...string) *fixture {
	t.Helper()
	tab := pool.NewTable(pool.NewPool(0, 0), 1009)
	h := history.New()
	list := NewList(tab)
	for _, k := range keys {
		if k == "*" {
			list.All = true
			continue
		}
		if _, _, err := list.Add([]byte(k)); err != nil {
			t.Fatal(err)
		}
	}
	r, err := bib.NewReader(tab, h, buffer.New(64, 0), buffer.New(64, 0))
	if err != nil {
		t.Fatal(err)
	}
	res, err := r.Read("test.bib", strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	db := bib.NewDatabase(tab)
	db.Merge(res, h)
	return &fixture{table: tab, hist: h, db: db, list: list}
}

func (f *fixture) keys(res *Resolution) []string {
	var out []string
	for _, e := range res.Entries {
		out = append(out, f.table.Name(e.Key))
	}
	return out
}

func (f *fixture) field(e *bib.Entry, name string) (string, bool) {
	loc, ok := f.table.LookupString(name, pool.FieldName)
	if !ok {
		return "", false
	}
	v, ok := e.Field(loc)
	if !ok {
		return "", false
	}
	return f.table.Pool().String(v), true
}

const threshold = `
@inproceedings{a1, title = "A1", crossref = "p1"}
@inproceedings{b1, title = "B1", crossref = "p2"}
@inproceedings{b2, title = "B2", crossref = "p2"}
@proceedings{p1, title = "Proc One", year = "1999"}
@proceedings{p2, title = "Proc Two", year = "2001"}
@book{plain, title = "Plain"}
`

func TestWildcardThreshold(t *testing.T) {
	f := newFixture(t, threshold, "*")
	res, err := Resolve(f.db, f.list, f.table, f.hist, Options{MinCrossrefs: 2})
	if err != nil {
		t.Fatal(err)
	}
	got := strings.Join(f.keys(res), ",")
	// p1 is named once (min-1) and dropped; p2 is named twice (min) and kept.
	if got != "a1,b1,b2,p2,plain" {
		t.Errorf("entries = %s", got)
	}
	if res.Counts[res.Entries[3].LowerKey] != 2 {
		t.Errorf("p2 count = %d", res.Counts[res.Entries[3].LowerKey])
	}
	a1 := res.Entries[0]
	if _, ok := f.field(a1, "crossref"); ok {
		t.Errorf("a1 keeps crossref although p1 is not output")
	}
	if v, _ := f.field(a1, "year"); v != "1999" {
		t.Errorf("a1 year = %q, want inherited 1999", v)
	}
	b1 := res.Entries[1]
	if v, ok := f.field(b1, "crossref"); !ok || v != "p2" {
		t.Errorf("b1 crossref = %q %v", v, ok)
	}
	if v, _ := f.field(b1, "title"); v != "B1" {
		t.Errorf("b1 title overwritten: %q", v)
	}
	if f.hist.Level() != history.Spotless {
		t.Errorf("level = %v: %v", f.hist.Level(), f.hist.Messages())
	}
}

func TestExplicitCitationsAppendParents(t *testing.T) {
	f := newFixture(t, threshold, "b2", "a1", "B1")
	res, err := Resolve(f.db, f.list, f.table, f.hist, Options{MinCrossrefs: 2})
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(f.keys(res), ","); got != "b2,a1,b1,p2" {
		t.Errorf("entries = %s", got)
	}
}

func TestExplicitlyCitedParentAlwaysOutput(t *testing.T) {
	f := newFixture(t, threshold, "a1", "p1")
	res, err := Resolve(f.db, f.list, f.table, f.hist, Options{MinCrossrefs: 5})
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(f.keys(res), ","); got != "a1,p1" {
		t.Errorf("entries = %s", got)
	}
	if _, ok := f.field(res.Entries[0], "crossref"); !ok {
		t.Errorf("crossref hidden although parent is output")
	}
}

func TestUndefinedKeysWarn(t *testing.T) {
	f := newFixture(t, `@book{x, title = "X", crossref = "nowhere"}`, "missing", "x")
	res, err := Resolve(f.db, f.list, f.table, f.hist, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(f.keys(res), ","); got != "x" {
		t.Errorf("entries = %s", got)
	}
	if f.hist.Warnings() != 2 || f.hist.Level() != history.WarningIssued {
		t.Errorf("warnings = %d: %v", f.hist.Warnings(), f.hist.Messages())
	}
}

func TestCrossrefCycleIsFatal(t *testing.T) {
	src := `@book{a, crossref = "b"}
@book{b, crossref = "a"}`
	f := newFixture(t, src, "a")
	_, err := Resolve(f.db, f.list, f.table, f.hist, Options{})
	if !errors.Is(err, ErrCrossrefCycle) {
		t.Fatalf("err = %v, want ErrCrossrefCycle", err)
	}
	if f.hist.Level() != history.FatalError {
		t.Errorf("level = %v", f.hist.Level())
	}
}

func TestCrossrefChainTooDeep(t *testing.T) {
	var b strings.Builder
	b.WriteString("@book{e0, crossref = \"e1\"}\n")
	b.WriteString("@book{e1, crossref = \"e2\"}\n")
	b.WriteString("@book{e2, crossref = \"e3\"}\n")
	b.WriteString("@book{e3, title = \"end\"}\n")
	f := newFixture(t, b.String(), "e0")
	if _, err := Resolve(f.db, f.list, f.table, f.hist, Options{MaxDepth: 2}); !errors.Is(err, ErrCrossrefCycle) {
		t.Fatalf("err = %v", err)
	}

	f = newFixture(t, b.String(), "e0")
	res, err := Resolve(f.db, f.list, f.table, f.hist, Options{MaxDepth: 3, MinCrossrefs: 1})
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := f.field(res.Entries[0], "title"); v != "end" {
		t.Errorf("e0 title = %q, want inherited through the chain", v)
	}
}
