package bib

import (
	"github.com/chazu/bibtex/history"
	"github.com/chazu/bibtex/pool"
	"github.com/chazu/bibtex/scan"
)

// Snapshot is a pool-independent copy of a FileResult, suitable for
// storing between runs. Database text is kept as bytes since .bib files
// need not be UTF-8.
type Snapshot struct {
	Name      string            `cbor:"1,keyasint"`
	Entries   []EntrySnapshot   `cbor:"2,keyasint,omitempty"`
	Preambles [][]byte          `cbor:"3,keyasint,omitempty"`
	Macros    []MacroSnapshot   `cbor:"4,keyasint,omitempty"`
	Messages  []MessageSnapshot `cbor:"5,keyasint,omitempty"`
}

// EntrySnapshot is one entry of a Snapshot.
type EntrySnapshot struct {
	Type   []byte          `cbor:"1,keyasint"`
	Key    []byte          `cbor:"2,keyasint"`
	Line   int             `cbor:"3,keyasint"`
	Fields []FieldSnapshot `cbor:"4,keyasint,omitempty"`
}

// FieldSnapshot is one field of an EntrySnapshot.
type FieldSnapshot struct {
	Name  []byte `cbor:"1,keyasint"`
	Value []byte `cbor:"2,keyasint"`
}

// MacroSnapshot is a macro defined by the file.
type MacroSnapshot struct {
	Name  []byte `cbor:"1,keyasint"`
	Value []byte `cbor:"2,keyasint"`
}

// MessageSnapshot is a diagnostic recorded while the file was scanned.
type MessageSnapshot struct {
	Level int    `cbor:"1,keyasint"`
	Text  []byte `cbor:"2,keyasint"`
}

// Capture copies f out of the pool.
func (r *Reader) Capture(f *FileResult) *Snapshot {
	p := r.table.Pool()
	s := &Snapshot{Name: f.Name}
	for _, e := range f.Entries {
		es := EntrySnapshot{
			Type: clone(r.table.Text(e.Type)),
			Key:  clone(r.table.Text(e.Key)),
			Line: e.Line,
		}
		for _, fld := range e.Fields() {
			es.Fields = append(es.Fields, FieldSnapshot{
				Name:  clone(r.table.Text(fld.Name)),
				Value: clone(p.Bytes(fld.Value)),
			})
		}
		s.Entries = append(s.Entries, es)
	}
	for _, pre := range f.Preambles {
		s.Preambles = append(s.Preambles, clone(p.Bytes(pre)))
	}
	for _, m := range f.Macros {
		s.Macros = append(s.Macros, MacroSnapshot{
			Name:  clone(r.table.Text(m)),
			Value: clone(p.Bytes(pool.StrNum(r.table.Info(m)))),
		})
	}
	for _, m := range f.Messages {
		s.Messages = append(s.Messages, MessageSnapshot{Level: int(m.Level), Text: []byte(m.Text)})
	}
	return s
}

// Restore rebuilds a FileResult from a snapshot as if the file had just
// been read: macros are defined and diagnostics are replayed.
func (r *Reader) Restore(s *Snapshot) (*FileResult, error) {
	res := &FileResult{Name: s.Name}
	for _, m := range s.Macros {
		if err := r.DefineMacro(m.Name, m.Value); err != nil {
			return nil, err
		}
		loc, _ := r.table.Lookup(scan.Lowered(m.Name), pool.Macro)
		res.Macros = append(res.Macros, loc)
	}
	for _, pre := range s.Preambles {
		loc, _, err := r.table.Intern(pre, pool.Text)
		if err != nil {
			return nil, err
		}
		res.Preambles = append(res.Preambles, r.table.Str(loc))
	}
	for _, es := range s.Entries {
		e, err := r.restoreEntry(s.Name, es)
		if err != nil {
			return nil, err
		}
		res.Entries = append(res.Entries, e)
	}
	for _, m := range s.Messages {
		msg := history.Message{Level: history.Level(m.Level), Text: string(m.Text)}
		r.hist.Replay(msg)
		res.Messages = append(res.Messages, msg)
	}
	return res, nil
}

func (r *Reader) restoreEntry(file string, es EntrySnapshot) (*Entry, error) {
	e := newEntry()
	e.File = file
	e.Line = es.Line
	var err error
	if e.Type, _, err = r.table.Intern(es.Type, pool.Text); err != nil {
		return nil, err
	}
	if e.Key, _, err = r.table.Intern(es.Key, pool.Cite); err != nil {
		return nil, err
	}
	lc, existed, err := r.table.Intern(scan.Lowered(es.Key), pool.LowerCite)
	if err != nil {
		return nil, err
	}
	if !existed {
		r.table.SetInfo(lc, -1)
	}
	e.LowerKey = lc
	for _, f := range es.Fields {
		name, _, err := r.table.Intern(f.Name, pool.FieldName)
		if err != nil {
			return nil, err
		}
		v, _, err := r.table.Intern(f.Value, pool.Text)
		if err != nil {
			return nil, err
		}
		e.SetField(name, r.table.Str(v))
		if name == r.crossref {
			e.Crossref = r.table.Str(v)
		}
	}
	return e, nil
}


// clone copies b out of pool storage. The result is never nil.
func clone(b []byte) []byte {
	return append([]byte{}, b...)
}
