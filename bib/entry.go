// Package bib reads bibliography database files into entries whose names
// and values are interned in the run's string pool.
package bib

import (
	"github.com/chazu/bibtex/pool"
)

// Field is one field = value pair of an entry.
type Field struct {
	Name  pool.Loc    // FieldName ilk, lower-cased
	Value pool.StrNum // interned text
}

// ---------------------------------------------------------------------------
// Entry
// ---------------------------------------------------------------------------

// Entry is a parsed database entry.
type Entry struct {
	Key      pool.Loc    // Cite ilk, spelled as in the database
	LowerKey pool.Loc    // LowerCite ilk
	Type     pool.Loc    // Text ilk, lower-cased entry type
	Crossref pool.StrNum // value of the crossref field, or pool.NoStr
	File     string
	Line     int

	fields []Field
	index  map[pool.Loc]int
}

func newEntry() *Entry {
	return &Entry{Crossref: pool.NoStr, index: make(map[pool.Loc]int)}
}

// Field returns the value of the named field.
func (e *Entry) Field(name pool.Loc) (pool.StrNum, bool) {
	i, ok := e.index[name]
	if !ok {
		return pool.NoStr, false
	}
	return e.fields[i].Value, true
}

// HasField reports whether the named field is present.
func (e *Entry) HasField(name pool.Loc) bool {
	_, ok := e.index[name]
	return ok
}

// SetField adds a field. It returns false, leaving the entry unchanged,
// if the field is already present.
func (e *Entry) SetField(name pool.Loc, value pool.StrNum) bool {
	if _, ok := e.index[name]; ok {
		return false
	}
	e.index[name] = len(e.fields)
	e.fields = append(e.fields, Field{Name: name, Value: value})
	return true
}

// RemoveField deletes a field if present.
func (e *Entry) RemoveField(name pool.Loc) {
	i, ok := e.index[name]
	if !ok {
		return
	}
	e.fields = append(e.fields[:i], e.fields[i+1:]...)
	delete(e.index, name)
	for j := i; j < len(e.fields); j++ {
		e.index[e.fields[j].Name] = j
	}
}

// Fields returns the fields in database order.
func (e *Entry) Fields() []Field {
	return e.fields
}
