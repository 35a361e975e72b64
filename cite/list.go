package cite

import (
	"github.com/chazu/bibtex/pool"
	"github.com/chazu/bibtex/scan"
)

// AddResult reports what Add did with a key.
type AddResult int

const (
	Added AddResult = iota
	Duplicate
	CaseMismatch
)

// ---------------------------------------------------------------------------
// List: the citations requested by the aux file
// ---------------------------------------------------------------------------

// List is the ordered, deduplicated set of cite keys an aux file asks for.
// Keys are interned with the Cite ilk as written and with the LowerCite
// ilk lower-cased; two keys differing only in case are a mismatch.
type List struct {
	table *pool.Table
	keys  []pool.Loc

	// All is set by the wildcard citation.
	All bool
}

// NewList creates an empty list interning into t.
func NewList(t *pool.Table) *List {
	return &List{table: t}
}

// Add records key. On CaseMismatch the returned Loc is the key that was
// cited first.
func (l *List) Add(key []byte) (AddResult, pool.Loc, error) {
	loc, existed, err := l.table.Intern(key, pool.Cite)
	if err != nil {
		return Added, pool.NoLoc, err
	}
	if existed {
		return Duplicate, loc, nil
	}
	lc, existed, err := l.table.Intern(scan.Lowered(key), pool.LowerCite)
	if err != nil {
		return Added, pool.NoLoc, err
	}
	if existed {
		return CaseMismatch, pool.Loc(l.table.Info(lc)), nil
	}
	l.table.SetInfo(lc, int32(loc))
	l.table.SetInfo(loc, int32(len(l.keys)))
	l.keys = append(l.keys, loc)
	return Added, loc, nil
}

// Index returns the position of a cited key in the list.
func (l *List) Index(loc pool.Loc) int {
	return int(l.table.Info(loc))
}

// Keys returns the cited keys in first-occurrence order.
func (l *List) Keys() []pool.Loc {
	return l.keys
}

// Len returns the number of distinct keys cited.
func (l *List) Len() int {
	return len(l.keys)
}

// Empty reports whether nothing at all was cited.
func (l *List) Empty() bool {
	return len(l.keys) == 0 && !l.All
}

// Find returns the cited key matching key case-insensitively.
func (l *List) Find(key []byte) (pool.Loc, bool) {
	lc, ok := l.table.Lookup(scan.Lowered(key), pool.LowerCite)
	if !ok {
		return pool.NoLoc, false
	}
	info := l.table.Info(lc)
	if info < 0 {
		return pool.NoLoc, false
	}
	loc := pool.Loc(info)
	if l.table.Ilk(loc) != pool.Cite {
		return pool.NoLoc, false
	}
	return loc, true
}
