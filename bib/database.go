package bib

import (
	"github.com/chazu/bibtex/history"
	"github.com/chazu/bibtex/pool"
	"github.com/chazu/bibtex/scan"
)

// Database is every entry read from the declared files, in read order.
type Database struct {
	table     *pool.Table
	Entries   []*Entry
	Preambles []pool.StrNum
	byKey     map[pool.Loc]int // LowerCite loc -> entry index
}

// NewDatabase creates an empty database.
func NewDatabase(t *pool.Table) *Database {
	return &Database{table: t, byKey: make(map[pool.Loc]int)}
}

// Lookup finds an entry by key, ignoring case.
func (d *Database) Lookup(key []byte) (*Entry, int, bool) {
	lc, ok := d.table.Lookup(scan.Lowered(key), pool.LowerCite)
	if !ok {
		return nil, -1, false
	}
	i, ok := d.byKey[lc]
	if !ok {
		return nil, -1, false
	}
	return d.Entries[i], i, true
}

// LookupLoc finds an entry by its LowerCite location.
func (d *Database) LookupLoc(lc pool.Loc) (*Entry, int, bool) {
	i, ok := d.byKey[lc]
	if !ok {
		return nil, -1, false
	}
	return d.Entries[i], i, true
}

// Merge adds the entries and preambles of one parsed file. An entry whose
// key is already present is dropped with a warning; the first one wins.
func (d *Database) Merge(f *FileResult, h *history.Tracker) {
	for _, e := range f.Entries {
		if prev, _, dup := d.LookupLoc(e.LowerKey); dup {
			h.Warn("Repeated entry---line %d of file %s: %s (first seen in %s)",
				e.Line, e.File, d.table.Name(e.Key), prev.File)
			continue
		}
		d.byKey[e.LowerKey] = len(d.Entries)
		d.Entries = append(d.Entries, e)
	}
	d.Preambles = append(d.Preambles, f.Preambles...)
}

// Len returns the number of entries.
func (d *Database) Len() int {
	return len(d.Entries)
}
