package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/chazu/bibtex/bib"
	"github.com/chazu/bibtex/cite"
	"github.com/chazu/bibtex/history"
)

const plainStyle = `
ENTRY { author title year } {} {}
FUNCTION { article } { author " " * title * " " * year * write$ newline$ }
FUNCTION { default.type } { cite$ write$ newline$ }
READ
ITERATE { call.type$ }
`

func files(aux, bibSrc string) fstest.MapFS {
	return fstest.MapFS{
		"main.aux":  {Data: []byte(aux)},
		"refs.bib":  {Data: []byte(bibSrc)},
		"plain.bst": {Data: []byte(plainStyle)},
	}
}

func auxFor(keys string) string {
	return fmt.Sprintf("\\citation{%s}\n\\bibdata{refs}\n\\bibstyle{plain}\n", keys)
}

func TestSingleCitation(t *testing.T) {
	host := NewMemHost(files(auxFor("k1"), "@article{k1, author={A}, title={T}, year={2020}}\n"))
	e := New(host, Config{})
	outcome, err := e.Process(context.Background(), "main")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome != Spotless {
		t.Errorf("outcome = %v: %v", outcome, e.Report().Messages)
	}
	out, ok := host.Output("main.bbl")
	if !ok {
		t.Fatalf("no output written; have %v", host.Outputs())
	}
	if out != "A T 2020\n" {
		t.Errorf("output = %q", out)
	}
	r := e.Report()
	if r.Entries != 1 || r.Lines != 1 || r.Cited != 1 || r.Style != "plain.bst" {
		t.Errorf("report = %+v", r)
	}
}

func TestUndefinedCitationWarns(t *testing.T) {
	src := "@article{k1, author={A}, title={T}, year={2020}}\n@misc{k2,}\n"
	host := NewMemHost(files(auxFor("k1,nokey,k2"), src))
	e := New(host, Config{})
	outcome, err := e.Process(context.Background(), "main.aux")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome != Warnings {
		t.Errorf("outcome = %v: %v", outcome, e.Report().Messages)
	}
	out, _ := host.Output("main.bbl")
	if out != "A T 2020\nk2\n" {
		t.Errorf("output = %q", out)
	}
}

func TestCrossrefCycleIsFatal(t *testing.T) {
	src := "@misc{a, crossref={b}}\n@misc{b, crossref={a}}\n"
	host := NewMemHost(files(auxFor("a"), src))
	e := New(host, Config{})
	_, err := e.Process(context.Background(), "main")
	if !errors.Is(err, ErrFatal) {
		t.Fatalf("err = %v, want ErrFatal", err)
	}
	if !errors.Is(err, cite.ErrCrossrefCycle) {
		t.Errorf("err = %v, want it to wrap the cycle", err)
	}
	if e.Report().Level != history.FatalError {
		t.Errorf("level = %v", e.Report().Level)
	}
	if out, _ := host.Output("main.bbl"); out != "" {
		t.Errorf("output = %q", out)
	}
}

func TestMissingStyleIsFatal(t *testing.T) {
	fs := files("\\citation{k1}\n\\bibdata{refs}\n", "")
	host := NewMemHost(fs)
	_, err := New(host, Config{}).Process(context.Background(), "main")
	if !errors.Is(err, ErrFatal) {
		t.Fatalf("err = %v, want ErrFatal", err)
	}

	fs = files("\\citation{k1}\n\\bibdata{refs}\n\\bibstyle{nosuch}\n", "")
	_, err = New(NewMemHost(fs), Config{}).Process(context.Background(), "main")
	if !errors.Is(err, ErrFatal) {
		t.Fatalf("err = %v, want ErrFatal", err)
	}
	if !strings.Contains(err.Error(), "nosuch.bst") {
		t.Errorf("err = %v, want it to name the style", err)
	}
}

func TestMissingAuxIsFatal(t *testing.T) {
	_, err := New(NewMemHost(fstest.MapFS{}), Config{}).Process(context.Background(), "nothere")
	if !errors.Is(err, ErrFatal) {
		t.Fatalf("err = %v, want ErrFatal", err)
	}
}

func TestMissingDatabaseIsAnError(t *testing.T) {
	fs := files("\\citation{k1}\n\\bibdata{refs,gone}\n\\bibstyle{plain}\n",
		"@article{k1, author={A}, title={T}, year={2020}}\n")
	host := NewMemHost(fs)
	outcome, err := New(host, Config{}).Process(context.Background(), "main")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome != Errors {
		t.Errorf("outcome = %v", outcome)
	}
	if out, _ := host.Output("main.bbl"); out != "A T 2020\n" {
		t.Errorf("output = %q", out)
	}
}

func TestCancelledRunIsAborted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := New(NewMemHost(files(auxFor("k1"), "")), Config{})
	_, err := e.Process(ctx, "main")
	if !errors.Is(err, ErrAborted) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if e.Report().Level != history.Aborted {
		t.Errorf("level = %v", e.Report().Level)
	}
}

func TestMaxErrors(t *testing.T) {
	fs := files("\\citation{k1}\n\\bibdata{a,b,c}\n\\bibstyle{plain}\n", "")
	_, err := New(NewMemHost(fs), Config{MaxErrors: 2}).Process(context.Background(), "main")
	if !errors.Is(err, ErrFatal) {
		t.Fatalf("err = %v, want ErrFatal", err)
	}
}

func TestRunsAreIndependent(t *testing.T) {
	host := NewMemHost(files(auxFor("*"), "@article{k1, author={A}, title={T}, year={2020}}\n"))
	e := New(host, Config{})
	for i := 0; i < 2; i++ {
		outcome, err := e.Process(context.Background(), "main")
		if err != nil || outcome != Spotless {
			t.Fatalf("run %d: %v %v %v", i, outcome, err, e.Report().Messages)
		}
		if out, _ := host.Output("main.bbl"); out != "A T 2020\n" {
			t.Errorf("run %d: output = %q", i, out)
		}
	}
}

type mapCache struct {
	snaps map[string]*bib.Snapshot
	gets  int
}

func (c *mapCache) key(name string, data []byte, env []bib.MacroDef) string {
	return fmt.Sprintf("%s|%s|%v", name, data, env)
}

func (c *mapCache) Get(name string, data []byte, env []bib.MacroDef) (*bib.Snapshot, error) {
	c.gets++
	return c.snaps[c.key(name, data, env)], nil
}

func (c *mapCache) Put(name string, data []byte, env []bib.MacroDef, s *bib.Snapshot) error {
	c.snaps[c.key(name, data, env)] = s
	return nil
}

func TestCacheReplaysDatabase(t *testing.T) {
	src := `@string{pub = "P"}
@article{k1, author={A}, title=pub, year={2020}}
@article{k2, author={B}, title=nomacro, year={2021}}
`
	host := NewMemHost(files(auxFor("k1,k2"), src))
	e := New(host, Config{})
	cache := &mapCache{snaps: map[string]*bib.Snapshot{}}
	e.UseCache(cache)

	var outputs []string
	var warnings []int
	for i := 0; i < 2; i++ {
		if _, err := e.Process(context.Background(), "main"); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		out, _ := host.Output("main.bbl")
		outputs = append(outputs, out)
		warnings = append(warnings, e.Report().Warnings)
	}
	if outputs[0] != "A P 2020\nB  2021\n" || outputs[1] != outputs[0] {
		t.Errorf("outputs = %q", outputs)
	}
	if warnings[0] != 1 || warnings[1] != 1 {
		t.Errorf("warnings = %v, want the undefined macro reported on both runs", warnings)
	}
	if e.Report().CacheHits != 1 || cache.gets != 2 {
		t.Errorf("hits = %d, gets = %d", e.Report().CacheHits, cache.gets)
	}
}

func TestOutputName(t *testing.T) {
	for in, want := range map[string]string{
		"paper.aux":     "paper.bbl",
		"dir/paper.aux": "dir/paper.bbl",
	} {
		if got := OutputName(in); got != want {
			t.Errorf("OutputName(%q) = %q, want %q", in, got, want)
		}
	}
}
