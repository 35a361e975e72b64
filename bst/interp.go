package bst

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/chazu/bibtex/bib"
	"github.com/chazu/bibtex/buffer"
	"github.com/chazu/bibtex/history"
	"github.com/chazu/bibtex/output"
	"github.com/chazu/bibtex/pool"
)

// DefaultStackSize bounds the literal stack.
const DefaultStackSize = 1000

const maxCallDepth = 2000

// RuntimeError is a fault while executing one top-level step. It abandons
// that step only.
type RuntimeError struct {
	Fn  string
	Msg string
}

func (e *RuntimeError) Error() string {
	if e.Fn == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Fn, e.Msg)
}

// ReadResult is what READ hands to the interpreter: the entries to format,
// in citation order.
type ReadResult struct {
	Entries []*bib.Entry
	// CiteKeys holds each entry's key as it was cited, parallel to Entries.
	CiteKeys  []pool.StrNum
	Preambles []pool.StrNum
}

// Database is the interpreter's view of the bibliography. READ calls Read
// once; MACRO commands call DefineMacro before that.
type Database interface {
	DefineMacro(name, value []byte) error
	Read(ctx context.Context) (*ReadResult, error)
}

type record struct {
	entry  *bib.Entry
	cite   pool.StrNum
	typeFn *Function // nil when the style does not define the entry type
	ints   []int
	strs   [][]byte
}

// ---------------------------------------------------------------------------
// Interp
// ---------------------------------------------------------------------------

// Interp executes a compiled program.
type Interp struct {
	prog  *Program
	table *pool.Table
	pool  *pool.Pool
	hist  *history.Tracker
	out   *output.Writer
	db    Database
	ex    *buffer.Buffer

	stack    []Value
	maxStack int
	depth    int

	records    []*record
	cur        *record
	globalInts []int
	globalStrs [][]byte
	preambles  []pool.StrNum

	defaultType *Function
	step        string // top-level function being run, for messages
}

// NewInterp prepares prog for execution. Text is assembled in ex; stackSize
// bounds the literal stack.
func NewInterp(prog *Program, t *pool.Table, h *history.Tracker, out *output.Writer, db Database, ex *buffer.Buffer, stackSize int) *Interp {
	if stackSize <= 0 {
		stackSize = DefaultStackSize
	}
	in := &Interp{
		prog:       prog,
		table:      t,
		pool:       t.Pool(),
		hist:       h,
		out:        out,
		db:         db,
		ex:         ex,
		maxStack:   stackSize,
		globalInts: make([]int, len(prog.IntGlobals)),
		globalStrs: make([][]byte, len(prog.StrGlobals)),
	}
	for i, f := range prog.IntGlobals {
		in.globalInts[i] = f.Int
	}
	if f, ok := prog.Lookup("default.type"); ok && f.Kind == KindWizard {
		in.defaultType = f
	}
	return in
}

// Run executes the program's commands in order. Runtime errors are
// recorded and execution continues; exhausted capacity, I/O failures and
// cancellation are returned.
func (in *Interp) Run(ctx context.Context) error {
	for _, cmd := range in.prog.Commands {
		if err := ctx.Err(); err != nil {
			in.hist.Abort(err.Error())
			return err
		}
		var err error
		switch cmd.Kind {
		case CmdMacro:
			err = in.db.DefineMacro([]byte(cmd.Name), []byte(cmd.Value))
		case CmdRead:
			err = in.read(ctx)
		case CmdExecute:
			in.cur = nil
			err = in.runStep(cmd.Fn)
		case CmdIterate:
			err = in.iterate(ctx, cmd.Fn, false)
		case CmdReverse:
			err = in.iterate(ctx, cmd.Fn, true)
		case CmdSort:
			in.sort()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Entries returns the entries in their current order.
func (in *Interp) Entries() []*bib.Entry {
	out := make([]*bib.Entry, len(in.records))
	for i, r := range in.records {
		out[i] = r.entry
	}
	return out
}

func (in *Interp) read(ctx context.Context) error {
	res, err := in.db.Read(ctx)
	if err != nil {
		return err
	}
	in.preambles = res.Preambles
	in.records = make([]*record, len(res.Entries))
	for i, e := range res.Entries {
		r := &record{
			entry: e,
			cite:  in.table.Str(e.Key),
			ints:  make([]int, len(in.prog.IntEntries)),
			strs:  make([][]byte, len(in.prog.StrEntries)),
		}
		if i < len(res.CiteKeys) && res.CiteKeys[i] != pool.NoStr {
			r.cite = res.CiteKeys[i]
		}
		typ := in.table.Name(e.Type)
		if f, ok := in.prog.Lookup(typ); ok && f.Kind == KindWizard {
			r.typeFn = f
		} else {
			in.hist.Warn("entry type for %q isn't style-file defined\n--line %d of file %s", typ, e.Line, e.File)
		}
		in.records[i] = r
	}
	log.Infof("read %d entries", len(in.records))
	return nil
}

func (in *Interp) iterate(ctx context.Context, fn *Function, reverse bool) error {
	n := len(in.records)
	for k := 0; k < n; k++ {
		if err := ctx.Err(); err != nil {
			in.hist.Abort(err.Error())
			return err
		}
		i := k
		if reverse {
			i = n - 1 - k
		}
		in.cur = in.records[i]
		if err := in.runStep(fn); err != nil {
			return err
		}
	}
	in.cur = nil
	return nil
}

// sort orders entries by sort.key$. Equal keys keep their relative order.
func (in *Interp) sort() {
	idx := in.prog.SortKey.Index
	slices.SortStableFunc(in.records, func(a, b *record) int {
		return bytes.Compare(a.strs[idx], b.strs[idx])
	})
}

// runStep executes one top-level call. Temporary strings made during the
// step are released afterwards.
func (in *Interp) runStep(fn *Function) error {
	mark := in.pool.Mark()
	in.step = fn.Name
	in.depth = 0
	err := in.safeExecute(fn)

	var rerr *RuntimeError
	switch {
	case errors.As(err, &rerr):
		in.hist.Error("%s, while executing %s%s", rerr.Error(), fn.Name, in.forEntry())
		in.stack = in.stack[:0]
	case err != nil:
		return err
	case len(in.stack) > 0:
		in.hist.Warn("%d item(s) left on the stack after %s%s", len(in.stack), fn.Name, in.forEntry())
		in.stack = in.stack[:0]
	}
	in.pool.Release(mark)
	return nil
}

// safeExecute runs fn, turning a panic inside a built-in into a
// RuntimeError so that one bad step cannot end the run.
func (in *Interp) safeExecute(fn *Function) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic while executing %s: %v", fn.Name, r)
			err = &RuntimeError{Fn: fn.Name, Msg: fmt.Sprintf("internal error: %v", r)}
		}
	}()
	return in.execute(fn)
}

func (in *Interp) forEntry() string {
	if in.cur == nil {
		return ""
	}
	return fmt.Sprintf(" for entry %s", in.pool.String(in.cur.cite))
}

// execute runs f, whatever its kind.
func (in *Interp) execute(f *Function) error {
	switch f.Kind {
	case KindBuiltin:
		return f.builtin(in)
	case KindWizard:
		in.depth++
		defer func() { in.depth-- }()
		if in.depth > maxCallDepth {
			return in.fault(f.Name, "function calls nested too deeply")
		}
		if f.Broken {
			return in.fault(f.Name, "function body has style-file errors")
		}
		for i := range f.Body {
			op := &f.Body[i]
			var err error
			switch op.Code {
			case OpCall:
				err = in.execute(op.Fn)
			case OpPushInt:
				err = in.push(intValue(op.Int))
			case OpPushStr:
				err = in.push(strValue(op.Str))
			case OpPushFunc:
				err = in.push(funcValue(op.Fn))
			}
			if err != nil {
				return err
			}
		}
		return nil
	case KindIntLit:
		return in.push(intValue(f.Int))
	case KindStrLit:
		return in.push(strValue(f.Str))
	case KindField:
		r, err := in.entry(f.Name)
		if err != nil {
			return err
		}
		if v, ok := r.entry.Field(f.Field); ok {
			return in.push(strValue(v))
		}
		return in.push(missingValue(f))
	case KindIntEntryVar:
		r, err := in.entry(f.Name)
		if err != nil {
			return err
		}
		return in.push(intValue(r.ints[f.Index]))
	case KindStrEntryVar:
		r, err := in.entry(f.Name)
		if err != nil {
			return err
		}
		return in.pushBytes(r.strs[f.Index])
	case KindIntGlobal:
		return in.push(intValue(in.globalInts[f.Index]))
	case KindStrGlobal:
		return in.pushBytes(in.globalStrs[f.Index])
	}
	return in.fault(f.Name, "unknown function kind "+f.Kind.String())
}

// ---------------------------------------------------------------------------
// Stack helpers
// ---------------------------------------------------------------------------

func (in *Interp) fault(fn, msg string) error {
	return &RuntimeError{Fn: fn, Msg: msg}
}

func (in *Interp) entry(fn string) (*record, error) {
	if in.cur == nil {
		return nil, in.fault(fn, "you can't mess with entries here")
	}
	return in.cur, nil
}

func (in *Interp) push(v Value) error {
	if len(in.stack) >= in.maxStack {
		return in.fault("", fmt.Sprintf("literal-stack overflow (size %d)", in.maxStack))
	}
	in.stack = append(in.stack, v)
	return nil
}

func (in *Interp) pushInt(n int) error {
	return in.push(intValue(n))
}

// pushBytes copies b into the pool as a temporary string and pushes it.
func (in *Interp) pushBytes(b []byte) error {
	s, err := in.pool.Add(b)
	if err != nil {
		return err
	}
	return in.push(strValue(s))
}

// pushEx pushes the content of the scratch buffer.
func (in *Interp) pushEx() error {
	return in.pushBytes(in.ex.Bytes())
}

func (in *Interp) pop(fn string) (Value, error) {
	n := len(in.stack)
	if n == 0 {
		return Value{}, in.fault(fn, "you can't pop an empty literal stack")
	}
	v := in.stack[n-1]
	in.stack = in.stack[:n-1]
	return v, nil
}

func (in *Interp) popInt(fn string) (int, error) {
	v, err := in.pop(fn)
	if err != nil {
		return 0, err
	}
	if v.Kind != ValInt {
		return 0, in.fault(fn, in.describe(v)+", not an integer")
	}
	return v.Int, nil
}

// popStr pops a string.
func (in *Interp) popStr(fn string) ([]byte, error) {
	v, err := in.pop(fn)
	if err != nil {
		return nil, err
	}
	return in.str(fn, v)
}

// str returns the text of a string value. A missing field reads as the
// empty string with a warning.
func (in *Interp) str(fn string, v Value) ([]byte, error) {
	switch v.Kind {
	case ValStr:
		return in.pool.Bytes(v.Str), nil
	case ValMissing:
		in.hist.Warn("%s, not a string%s", in.describe(v), in.forEntry())
		return nil, nil
	}
	return nil, in.fault(fn, in.describe(v)+", not a string")
}

func (in *Interp) popFunc(fn string) (*Function, error) {
	v, err := in.pop(fn)
	if err != nil {
		return nil, err
	}
	if v.Kind != ValFunc {
		return nil, in.fault(fn, in.describe(v)+", not a function")
	}
	return v.Fn, nil
}

func (in *Interp) describe(v Value) string {
	switch v.Kind {
	case ValInt:
		return fmt.Sprintf("%d is an integer literal", v.Int)
	case ValStr:
		return fmt.Sprintf("%q is a string literal", in.pool.String(v.Str))
	case ValFunc:
		return fmt.Sprintf("`%s' is a function literal", v.Fn.Name)
	case ValMissing:
		return fmt.Sprintf("%s is a missing field", v.Fn.Name)
	}
	return v.Kind.String()
}

// format renders a value for stack$ and top$.
func (in *Interp) format(v Value) string {
	switch v.Kind {
	case ValInt:
		return fmt.Sprintf("%d", v.Int)
	case ValStr:
		return fmt.Sprintf("%q", in.pool.String(v.Str))
	case ValFunc:
		return "`" + v.Fn.Name + "'"
	}
	return "missing " + v.Fn.Name
}
