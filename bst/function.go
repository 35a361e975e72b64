package bst

import (
	"fmt"

	"github.com/chazu/bibtex/pool"
	"github.com/chazu/bibtex/scan"
)

// FnKind tags the variants of Function.
type FnKind uint8

const (
	KindBuiltin FnKind = iota
	KindWizard
	KindIntLit
	KindStrLit
	KindField
	KindIntEntryVar
	KindStrEntryVar
	KindIntGlobal
	KindStrGlobal
)

var kindNames = map[FnKind]string{
	KindBuiltin:     "built-in function",
	KindWizard:      "wizard-defined function",
	KindIntLit:      "integer literal",
	KindStrLit:      "string literal",
	KindField:       "field",
	KindIntEntryVar: "integer entry variable",
	KindStrEntryVar: "string entry variable",
	KindIntGlobal:   "integer global variable",
	KindStrGlobal:   "string global variable",
}

func (k FnKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("FnKind(%d)", k)
}

// ---------------------------------------------------------------------------
// Function
// ---------------------------------------------------------------------------

// Function is anything a style program can name: built-ins, user-defined
// ("wizard") functions, literals, fields, and variables. References in
// compiled bodies point directly at the Function, so execution never looks
// names up.
type Function struct {
	Name string
	Kind FnKind
	Pos  Position // where it was defined; zero for built-ins

	builtin builtinFn
	Body    []Op        // KindWizard
	Broken  bool        // KindWizard whose body failed to compile
	Int     int         // KindIntLit, initial value of KindIntGlobal
	Str     pool.StrNum // KindStrLit
	Index   int         // slot of variables
	Field   pool.Loc    // KindField
}

// IsVariable reports whether := may assign to f.
func (f *Function) IsVariable() bool {
	switch f.Kind {
	case KindIntEntryVar, KindStrEntryVar, KindIntGlobal, KindStrGlobal:
		return true
	}
	return false
}

// OpCode selects what an Op does.
type OpCode uint8

const (
	OpCall     OpCode = iota // execute Fn
	OpPushInt                // push Int
	OpPushStr                // push Str
	OpPushFunc               // push Fn unexecuted (quoted name or inline block)
)

// Op is one step of a wizard function body.
type Op struct {
	Code OpCode
	Fn   *Function
	Int  int
	Str  pool.StrNum
	Pos  Position
}

// ---------------------------------------------------------------------------
// Values on the literal stack
// ---------------------------------------------------------------------------

// ValueKind tags the variants of Value.
type ValueKind uint8

const (
	ValInt ValueKind = iota
	ValStr
	ValFunc
	ValMissing
)

var valueKindNames = map[ValueKind]string{
	ValInt:     "integer",
	ValStr:     "string",
	ValFunc:    "function",
	ValMissing: "missing field",
}

func (k ValueKind) String() string {
	if name, ok := valueKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ValueKind(%d)", k)
}

// Value is a literal-stack item.
type Value struct {
	Kind ValueKind
	Int  int
	Str  pool.StrNum
	Fn   *Function
}

func intValue(n int) Value { return Value{Kind: ValInt, Int: n} }
func strValue(s pool.StrNum) Value { return Value{Kind: ValStr, Str: s} }
func funcValue(f *Function) Value { return Value{Kind: ValFunc, Fn: f} }
func missingValue(f *Function) Value { return Value{Kind: ValMissing, Str: pool.NoStr, Fn: f} }

// ---------------------------------------------------------------------------
// Program
// ---------------------------------------------------------------------------

// CommandKind identifies a top-level command that runs at execution time.
type CommandKind uint8

const (
	CmdExecute CommandKind = iota
	CmdIterate
	CmdReverse
	CmdRead
	CmdSort
	CmdMacro
)

var commandNames = map[CommandKind]string{
	CmdExecute: "EXECUTE",
	CmdIterate: "ITERATE",
	CmdReverse: "REVERSE",
	CmdRead:    "READ",
	CmdSort:    "SORT",
	CmdMacro:   "MACRO",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CommandKind(%d)", k)
}

// Command is a compiled top-level command.
type Command struct {
	Kind  CommandKind
	Fn    *Function // EXECUTE, ITERATE, REVERSE
	Name  string    // MACRO
	Value string    // MACRO
	Pos   Position
}

// Program is a compiled style file.
type Program struct {
	Commands  []Command
	Functions []*Function // every named function, in definition order

	Fields     []*Function // KindField, indexed by Function.Index
	IntEntries []*Function
	StrEntries []*Function
	IntGlobals []*Function
	StrGlobals []*Function

	// Pre-declared names the interpreter refers to.
	CrossrefField *Function
	SortKey       *Function
	EntryMax      *Function
	GlobalMax     *Function

	table *pool.Table
}

// Lookup returns the function with the given name. Names are
// case-insensitive and live in the hash table under the BstFn ilk.
func (p *Program) Lookup(name string) (*Function, bool) {
	loc, ok := p.table.Lookup(scan.Lowered([]byte(name)), pool.BstFn)
	if !ok {
		return nil, false
	}
	return p.Functions[p.table.Info(loc)], true
}

func lowerString(s string) string {
	return string(scan.Lowered([]byte(s)))
}
