package bib

import (
	"errors"
	"fmt"
	"io"

	"github.com/tliron/commonlog"

	"github.com/chazu/bibtex/buffer"
	"github.com/chazu/bibtex/history"
	"github.com/chazu/bibtex/pool"
	"github.com/chazu/bibtex/scan"
)

var log = commonlog.GetLogger("bibtex.bib")

// errSkip abandons the current construct after a recoverable error.
var errSkip = errors.New("bib: construct skipped")

// CrossrefField is the name of the cross-reference field.
const CrossrefField = "crossref"

// FileResult is what one database file contributed.
type FileResult struct {
	Name      string
	Entries   []*Entry
	Preambles []pool.StrNum
	Macros    []pool.Loc // macros defined by the file, in order
	Messages  []history.Message
}

// MacroDef is a macro name and its value.
type MacroDef struct {
	Name  string `cbor:"1,keyasint"`
	Value string `cbor:"2,keyasint"`
}

// ---------------------------------------------------------------------------
// Reader
// ---------------------------------------------------------------------------

// Reader scans database files. Macros defined by @string commands persist
// across files for the life of the Reader.
type Reader struct {
	table *pool.Table
	hist  *history.Tracker
	s     *scan.Scanner
	sv    *buffer.Buffer

	macros   []pool.Loc
	crossref pool.Loc

	file     string
	res      *FileResult
	seen     map[pool.Loc]bool
	outer    byte // right delimiter of the current command
	cmdStart int  // line where the current command began
}

// NewReader creates a reader scanning lines in line and assembling values
// in sv.
func NewReader(t *pool.Table, h *history.Tracker, line, sv *buffer.Buffer) (*Reader, error) {
	cr, _, err := t.InternString(CrossrefField, pool.FieldName)
	if err != nil {
		return nil, err
	}
	for _, c := range []string{"comment", "preamble", "string"} {
		if _, _, err := t.InternString(c, pool.BibCommand); err != nil {
			return nil, err
		}
	}
	return &Reader{
		table:    t,
		hist:     h,
		s:        scan.New(line),
		sv:       sv,
		crossref: cr,
	}, nil
}

// DefineMacro defines or redefines a macro. Names are case-insensitive.
func (r *Reader) DefineMacro(name, value []byte) error {
	loc, _, err := r.table.Intern(scan.Lowered(name), pool.Macro)
	if err != nil {
		return err
	}
	v, _, err := r.table.Intern(value, pool.Text)
	if err != nil {
		return err
	}
	r.table.SetInfo(loc, int32(r.table.Str(v)))
	r.macros = append(r.macros, loc)
	if r.res != nil {
		r.res.Macros = append(r.res.Macros, loc)
	}
	return nil
}

// Macro returns the value of a macro.
func (r *Reader) Macro(name []byte) ([]byte, bool) {
	loc, ok := r.table.Lookup(scan.Lowered(name), pool.Macro)
	if !ok {
		return nil, false
	}
	return r.table.Pool().Bytes(pool.StrNum(r.table.Info(loc))), true
}

// MacroEnv returns the current value of every defined macro, in order of
// first definition.
func (r *Reader) MacroEnv() []MacroDef {
	seen := make(map[pool.Loc]bool, len(r.macros))
	var out []MacroDef
	for _, loc := range r.macros {
		if seen[loc] {
			continue
		}
		seen[loc] = true
		out = append(out, MacroDef{
			Name:  r.table.Name(loc),
			Value: r.table.Pool().String(pool.StrNum(r.table.Info(loc))),
		})
	}
	return out
}

// Read parses one database file. Syntax problems are recorded in the
// tracker and the offending construct is skipped; only resource
// exhaustion and I/O failures are returned.
func (r *Reader) Read(name string, src io.Reader) (*FileResult, error) {
	log.Infof("reading database file %s", name)
	r.file = name
	r.res = &FileResult{Name: name}
	r.seen = make(map[pool.Loc]bool)
	r.s.Reset(src)
	firstMsg := len(r.hist.Messages())
	defer func() {
		r.res.Messages = append([]history.Message(nil), r.hist.Messages()[firstMsg:]...)
		r.res = nil
	}()

	for {
		found := r.s.Scan1('@')
		if !found {
			ok, err := r.s.ReadLine()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			continue
		}
		r.cmdStart = r.s.LineNum()
		r.s.Advance()
		err := r.command()
		if errors.Is(err, errSkip) {
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	log.Debugf("%s: %d entries, %d preambles", name, len(r.res.Entries), len(r.res.Preambles))
	return r.res, nil
}

func (r *Reader) errorf(format string, args ...any) error {
	r.hist.Error("%s---line %d of file %s\nI'm skipping whatever remains of this command",
		fmt.Sprintf(format, args...), r.s.LineNum(), r.file)
	return errSkip
}

func (r *Reader) eatWhite() error {
	ok, err := r.s.EatWhite(0)
	if err != nil {
		return err
	}
	if !ok {
		return r.errorf("Illegal end of database file")
	}
	return nil
}

func (r *Reader) expect(c byte, what string) error {
	if r.s.Char() != c {
		return r.errorf("I was expecting %s", what)
	}
	r.s.Advance()
	return nil
}

func (r *Reader) identifier(what string, c1, c2, c3 byte) ([]byte, error) {
	switch r.s.ScanIdentifier(c1, c2, c3) {
	case scan.WhiteAdjacent, scan.SpecifiedCharAdjacent:
		return scan.Lowered(r.s.Token()), nil
	default:
		return nil, r.errorf("%s is missing or malformed", what)
	}
}

func (r *Reader) command() error {
	if err := r.eatWhite(); err != nil {
		return err
	}
	cmd, err := r.identifier("an entry type", '{', '(', '(')
	if err != nil {
		return err
	}
	if loc, ok := r.table.Lookup(cmd, pool.BibCommand); ok {
		switch r.table.Name(loc) {
		case "comment":
			return nil
		case "preamble":
			return r.preamble()
		case "string":
			return r.macro()
		}
	}
	return r.entry(cmd)
}

func (r *Reader) openDelim() error {
	if err := r.eatWhite(); err != nil {
		return err
	}
	switch r.s.Char() {
	case '{':
		r.outer = '}'
	case '(':
		r.outer = ')'
	default:
		return r.errorf("I was expecting a `{' or a `('")
	}
	r.s.Advance()
	return r.eatWhite()
}

func (r *Reader) closeDelim() error {
	if err := r.eatWhite(); err != nil {
		return err
	}
	return r.expect(r.outer, fmt.Sprintf("a `%c'", r.outer))
}

func (r *Reader) preamble() error {
	if err := r.openDelim(); err != nil {
		return err
	}
	v, err := r.value()
	if err != nil {
		return err
	}
	if err := r.closeDelim(); err != nil {
		return err
	}
	r.res.Preambles = append(r.res.Preambles, v)
	return nil
}

func (r *Reader) macro() error {
	if err := r.openDelim(); err != nil {
		return err
	}
	name, err := r.identifier("a string name", '=', '=', '=')
	if err != nil {
		return err
	}
	if err := r.eatWhite(); err != nil {
		return err
	}
	if err := r.expect('=', "an \"=\""); err != nil {
		return err
	}
	if err := r.eatWhite(); err != nil {
		return err
	}
	v, err := r.value()
	if err != nil {
		return err
	}
	if err := r.closeDelim(); err != nil {
		return err
	}
	return r.DefineMacro(name, r.table.Pool().Bytes(v))
}

func (r *Reader) entry(typ []byte) error {
	e := newEntry()
	e.File = r.file
	e.Line = r.cmdStart
	tloc, _, err := r.table.Intern(typ, pool.Text)
	if err != nil {
		return err
	}
	e.Type = tloc

	if err := r.openDelim(); err != nil {
		return err
	}
	if r.outer == ')' {
		r.s.Scan1White(',')
	} else {
		r.s.Scan2White(',', '}')
	}
	key := r.s.Token()
	if e.Key, _, err = r.table.Intern(key, pool.Cite); err != nil {
		return err
	}
	lc, existed, err := r.table.Intern(scan.Lowered(key), pool.LowerCite)
	if err != nil {
		return err
	}
	if !existed {
		r.table.SetInfo(lc, -1)
	}
	e.LowerKey = lc
	dup := r.seen[lc]

	for {
		if err := r.eatWhite(); err != nil {
			return err
		}
		if r.s.Char() == r.outer {
			r.s.Advance()
			break
		}
		if err := r.expect(',', fmt.Sprintf("a `,' or a `%c'", r.outer)); err != nil {
			return err
		}
		if err := r.eatWhite(); err != nil {
			return err
		}
		if r.s.Char() == r.outer {
			r.s.Advance()
			break
		}
		name, err := r.identifier("a field name", '=', '=', '=')
		if err != nil {
			return err
		}
		if err := r.eatWhite(); err != nil {
			return err
		}
		if err := r.expect('=', "an \"=\""); err != nil {
			return err
		}
		if err := r.eatWhite(); err != nil {
			return err
		}
		v, err := r.value()
		if err != nil {
			return err
		}
		floc, _, err := r.table.Intern(name, pool.FieldName)
		if err != nil {
			return err
		}
		if !e.SetField(floc, v) {
			r.hist.Warn("I'm ignoring %s's extra %q field---line %d of file %s",
				r.table.Name(e.Key), name, r.s.LineNum(), r.file)
			continue
		}
		if floc == r.crossref {
			e.Crossref = v
		}
	}

	if dup {
		r.hist.Warn("Repeated entry---line %d of file %s: %s", e.Line, r.file, r.table.Name(e.Key))
		return nil
	}
	r.seen[lc] = true
	r.res.Entries = append(r.res.Entries, e)
	return nil
}

// value scans a field value: tokens joined by '#', with macros expanded
// and whitespace runs compressed. The result is interned as text.
func (r *Reader) value() (pool.StrNum, error) {
	r.sv.Reset()
	for {
		if err := r.token(); err != nil {
			return pool.NoStr, err
		}
		if err := r.eatWhite(); err != nil {
			return pool.NoStr, err
		}
		if r.s.Char() != '#' {
			break
		}
		r.s.Advance()
		if err := r.eatWhite(); err != nil {
			return pool.NoStr, err
		}
	}
	n := r.sv.Len()
	if n > 0 && r.sv.At(n-1) == ' ' {
		r.sv.Truncate(n - 1)
	}
	loc, _, err := r.table.Intern(r.sv.Bytes(), pool.Text)
	if err != nil {
		return pool.NoStr, err
	}
	return r.table.Str(loc), nil
}

func (r *Reader) token() error {
	switch c := r.s.Char(); {
	case c == '{':
		return r.balanced('}')
	case c == '"':
		return r.balanced('"')
	case scan.IsNumeric(c):
		r.s.ScanNonnegInteger()
		return r.sv.Append(r.s.Token())
	default:
		name, err := r.identifier("a field part", ',', r.outer, '#')
		if err != nil {
			return err
		}
		v, ok := r.Macro(name)
		if !ok {
			r.hist.Warn("string name %q is undefined---line %d of file %s", name, r.s.LineNum(), r.file)
			return nil
		}
		for _, b := range v {
			if err := r.appendChar(b); err != nil {
				return err
			}
		}
		return nil
	}
}

func (r *Reader) appendChar(c byte) error {
	if scan.IsWhite(c) {
		n := r.sv.Len()
		if n == 0 || r.sv.At(n-1) == ' ' {
			return nil
		}
		return r.sv.AppendByte(' ')
	}
	return r.sv.AppendByte(c)
}

// balanced scans a delimited string whose opening delimiter is at the
// scan position. Braces inside must balance; the string may span lines.
func (r *Reader) balanced(closer byte) error {
	r.s.Advance()
	depth := 0
	for {
		if r.s.AtEnd() {
			if err := r.appendChar(' '); err != nil {
				return err
			}
			ok, err := r.s.ReadLine()
			if err != nil {
				return err
			}
			if !ok {
				return r.errorf("Illegal end of database file")
			}
			continue
		}
		c := r.s.Char()
		if depth == 0 && c == closer {
			r.s.Advance()
			return nil
		}
		switch c {
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return r.errorf("Unbalanced braces")
			}
			depth--
		}
		if err := r.appendChar(c); err != nil {
			return err
		}
		r.s.Advance()
	}
}
