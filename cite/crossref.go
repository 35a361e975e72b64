package cite

import (
	"errors"

	"github.com/tliron/commonlog"

	"github.com/chazu/bibtex/bib"
	"github.com/chazu/bibtex/history"
	"github.com/chazu/bibtex/pool"
)

var log = commonlog.GetLogger("bibtex.cite")

// ErrCrossrefCycle is returned when a cross-reference chain loops or runs
// deeper than the configured limit.
var ErrCrossrefCycle = errors.New("cite: cross-reference cycle")

const (
	DefaultMinCrossrefs = 2
	DefaultMaxDepth     = 8
)

// Options tunes cross-reference handling.
type Options struct {
	// MinCrossrefs is how many in-scope children a parent needs before it
	// is cited on its own.
	MinCrossrefs int
	// MaxDepth bounds the length of a crossref chain.
	MaxDepth int
}

func (o Options) withDefaults() Options {
	if o.MinCrossrefs <= 0 {
		o.MinCrossrefs = DefaultMinCrossrefs
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	return o
}

// Resolution is the final set of entries handed to the style program.
type Resolution struct {
	Entries []*bib.Entry
	// Counts maps a parent's LowerCite location to the number of in-scope
	// entries naming it in their crossref field.
	Counts map[pool.Loc]int
}

// ---------------------------------------------------------------------------
// Resolver
// ---------------------------------------------------------------------------

type resolver struct {
	db       *bib.Database
	table    *pool.Table
	hist     *history.Tracker
	opts     Options
	crossref pool.Loc

	parents  map[*bib.Entry]*bib.Entry
	warned   map[*bib.Entry]bool
	inherit  map[*bib.Entry]bool
	included map[*bib.Entry]bool
}

// Resolve turns the citation list into the ordered entries to format.
//
// Cited keys come first in citation order; with the wildcard every other
// database entry follows in database order. An entry that is only a
// crossref parent, named by at least one but fewer than MinCrossrefs
// in-scope entries, is left out of the wildcard expansion. Without the
// wildcard, parents named at least MinCrossrefs times are appended.
// Children inherit the fields they lack from their parent, and a child
// whose parent is not output loses its crossref field.
func Resolve(db *bib.Database, list *List, t *pool.Table, h *history.Tracker, opts Options) (*Resolution, error) {
	r := &resolver{
		db:       db,
		table:    t,
		hist:     h,
		opts:     opts.withDefaults(),
		crossref: pool.NoLoc,
		parents:  make(map[*bib.Entry]*bib.Entry),
		warned:   make(map[*bib.Entry]bool),
		inherit:  make(map[*bib.Entry]bool),
		included: make(map[*bib.Entry]bool),
	}
	if loc, ok := t.LookupString(bib.CrossrefField, pool.FieldName); ok {
		r.crossref = loc
	}

	cited := r.citedEntries(list)
	scope := cited
	if list.All {
		scope = r.withRest(cited)
	}

	for _, e := range scope {
		if err := r.checkChain(e); err != nil {
			return nil, err
		}
	}

	counts := make(map[pool.Loc]int)
	for _, e := range scope {
		if p := r.parent(e, true); p != nil {
			counts[p.LowerKey]++
		}
	}

	explicit := make(map[*bib.Entry]bool, len(cited))
	for _, e := range cited {
		explicit[e] = true
	}
	var out []*bib.Entry
	add := func(e *bib.Entry) {
		if !r.included[e] {
			r.included[e] = true
			out = append(out, e)
		}
	}
	if list.All {
		for _, e := range scope {
			n := counts[e.LowerKey]
			if !explicit[e] && n > 0 && n < r.opts.MinCrossrefs {
				log.Debugf("leaving out %s, named by %d crossrefs", t.Name(e.Key), n)
				continue
			}
			add(e)
		}
	} else {
		for _, e := range cited {
			add(e)
		}
		for _, e := range cited {
			p := r.parent(e, false)
			if p != nil && counts[p.LowerKey] >= r.opts.MinCrossrefs {
				add(p)
			}
		}
	}

	for _, e := range out {
		r.inheritFrom(e)
	}
	for _, e := range out {
		if e.Crossref == pool.NoStr {
			continue
		}
		if p := r.parent(e, false); p == nil || !r.included[p] {
			e.RemoveField(r.crossref)
		}
	}
	log.Infof("resolved %d entries (%d cited)", len(out), len(cited))
	return &Resolution{Entries: out, Counts: counts}, nil
}

func (r *resolver) citedEntries(list *List) []*bib.Entry {
	var out []*bib.Entry
	for _, loc := range list.Keys() {
		e, _, ok := r.db.Lookup(r.table.Text(loc))
		if !ok {
			r.hist.Warn("I didn't find a database entry for %q", r.table.Name(loc))
			continue
		}
		out = append(out, e)
	}
	return out
}

func (r *resolver) withRest(cited []*bib.Entry) []*bib.Entry {
	seen := make(map[*bib.Entry]bool, len(cited))
	out := append([]*bib.Entry(nil), cited...)
	for _, e := range cited {
		seen[e] = true
	}
	for _, e := range r.db.Entries {
		if !seen[e] {
			out = append(out, e)
		}
	}
	return out
}

// parent returns the entry named by e's crossref field, or nil.
func (r *resolver) parent(e *bib.Entry, warn bool) *bib.Entry {
	if e.Crossref == pool.NoStr {
		return nil
	}
	if p, ok := r.parents[e]; ok {
		return p
	}
	key := r.table.Pool().Bytes(e.Crossref)
	p, _, ok := r.db.Lookup(key)
	if !ok {
		if warn && !r.warned[e] {
			r.warned[e] = true
			r.hist.Warn("A bad cross reference---entry %q refers to entry %q, which doesn't exist",
				r.table.Name(e.Key), string(key))
		}
		return nil
	}
	r.parents[e] = p
	return p
}

func (r *resolver) checkChain(e *bib.Entry) error {
	seen := map[*bib.Entry]bool{e: true}
	depth := 0
	for cur := r.parent(e, false); cur != nil; cur = r.parent(cur, false) {
		depth++
		if seen[cur] || depth > r.opts.MaxDepth {
			r.hist.Fatal("Cross-reference cycle starting at entry %q (%d links)", r.table.Name(e.Key), depth)
			return ErrCrossrefCycle
		}
		seen[cur] = true
	}
	return nil
}

// inheritFrom copies the parent's fields that e lacks, resolving the
// parent's own parent first.
func (r *resolver) inheritFrom(e *bib.Entry) {
	if r.inherit[e] {
		return
	}
	r.inherit[e] = true
	p := r.parent(e, false)
	if p == nil {
		return
	}
	r.inheritFrom(p)
	for _, f := range p.Fields() {
		if f.Name == r.crossref {
			continue
		}
		e.SetField(f.Name, f.Value)
	}
}
