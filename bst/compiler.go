package bst

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/bibtex/history"
	"github.com/chazu/bibtex/pool"
	"github.com/chazu/bibtex/scan"
)

var log = commonlog.GetLogger("bibtex.bst")

// errSkip abandons the current command after a reported syntax error.
var errSkip = errors.New("bst: command skipped")

const (
	DefaultEntryMax  = 250
	DefaultGlobalMax = 20000
)

// Options sets the initial values of entry.max$ and global.max$.
type Options struct {
	EntryMax  int
	GlobalMax int
}

// Diagnostic is a problem found while compiling.
type Diagnostic struct {
	Pos     Position
	Message string
	Warning bool
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Pos, d.Message)
}

var commandWords = []string{
	"entry", "execute", "function", "integers", "iterate",
	"macro", "read", "reverse", "sort", "strings",
}

// ---------------------------------------------------------------------------
// Compiler
// ---------------------------------------------------------------------------

type compiler struct {
	table *pool.Table
	hist  *history.Tracker
	name  string
	prog  *Program
	toks  []Token
	i     int
	diags []Diagnostic

	entrySeen bool
	readSeen  bool
}

// Compile compiles a style program. Syntax errors are recorded in h and
// returned as diagnostics, and the offending command is skipped; the
// error result is reserved for exhausted capacity.
func Compile(name, src string, t *pool.Table, h *history.Tracker, opts Options) (*Program, []Diagnostic, error) {
	if opts.EntryMax <= 0 {
		opts.EntryMax = DefaultEntryMax
	}
	if opts.GlobalMax <= 0 {
		opts.GlobalMax = DefaultGlobalMax
	}
	c := &compiler{
		table: t,
		hist:  h,
		name:  name,
		prog:  &Program{table: t},
		toks:  NewLexer(src).All(),
	}
	if err := c.predeclare(opts); err != nil {
		return nil, nil, err
	}
	for c.peek().Type != TokenEOF {
		err := c.command()
		if errors.Is(err, errSkip) {
			c.skipCommand()
			continue
		}
		if err != nil {
			return nil, c.diags, err
		}
	}
	log.Infof("compiled %s: %d functions, %d commands", name, len(c.prog.Functions), len(c.prog.Commands))
	return c.prog, c.diags, nil
}

func (c *compiler) predeclare(opts Options) error {
	for i, w := range commandWords {
		loc, _, err := c.table.InternString(w, pool.BstCommand)
		if err != nil {
			return err
		}
		c.table.SetInfo(loc, int32(i))
	}
	for _, b := range builtins {
		if _, err := c.defineBuiltin(b.name, b.fn); err != nil {
			return err
		}
	}
	var err error
	if c.prog.CrossrefField, err = c.defineField("crossref", Position{}); err != nil {
		return err
	}
	if c.prog.SortKey, err = c.defineVar("sort.key$", KindStrEntryVar, Position{}); err != nil {
		return err
	}
	if c.prog.EntryMax, err = c.defineVar("entry.max$", KindIntGlobal, Position{}); err != nil {
		return err
	}
	c.prog.EntryMax.Int = opts.EntryMax
	if c.prog.GlobalMax, err = c.defineVar("global.max$", KindIntGlobal, Position{}); err != nil {
		return err
	}
	c.prog.GlobalMax.Int = opts.GlobalMax
	return nil
}

// ---------------------------------------------------------------------------
// Definitions
// ---------------------------------------------------------------------------

// define interns name as a BstFn. A name already in use is reported and
// yields errSkip.
func (c *compiler) define(name string, kind FnKind, pos Position) (*Function, error) {
	lower := scan.Lowered([]byte(name))
	loc, existed, err := c.table.Intern(lower, pool.BstFn)
	if err != nil {
		return nil, err
	}
	if existed {
		prev := c.prog.Functions[c.table.Info(loc)]
		return nil, c.errorf(pos, "%s is already a type %q function name", string(lower), prev.Kind.String())
	}
	f := &Function{Name: string(lower), Kind: kind, Pos: pos, Str: pool.NoStr, Field: pool.NoLoc}
	c.table.SetInfo(loc, int32(len(c.prog.Functions)))
	c.prog.Functions = append(c.prog.Functions, f)
	return f, nil
}

func (c *compiler) defineBuiltin(name string, fn builtinFn) (*Function, error) {
	f, err := c.define(name, KindBuiltin, Position{})
	if err != nil {
		return nil, err
	}
	f.builtin = fn
	return f, nil
}

func (c *compiler) defineField(name string, pos Position) (*Function, error) {
	f, err := c.define(name, KindField, pos)
	if err != nil {
		return nil, err
	}
	loc, _, err := c.table.InternString(f.Name, pool.FieldName)
	if err != nil {
		return nil, err
	}
	f.Field = loc
	f.Index = len(c.prog.Fields)
	c.prog.Fields = append(c.prog.Fields, f)
	return f, nil
}

func (c *compiler) defineVar(name string, kind FnKind, pos Position) (*Function, error) {
	f, err := c.define(name, kind, pos)
	if err != nil {
		return nil, err
	}
	var list *[]*Function
	switch kind {
	case KindIntEntryVar:
		list = &c.prog.IntEntries
	case KindStrEntryVar:
		list = &c.prog.StrEntries
	case KindIntGlobal:
		list = &c.prog.IntGlobals
	case KindStrGlobal:
		list = &c.prog.StrGlobals
	}
	f.Index = len(*list)
	*list = append(*list, f)
	return f, nil
}

// ---------------------------------------------------------------------------
// Token helpers
// ---------------------------------------------------------------------------

func (c *compiler) peek() Token {
	return c.toks[c.i]
}

func (c *compiler) next() Token {
	t := c.toks[c.i]
	if t.Type != TokenEOF {
		c.i++
	}
	return t
}

func (c *compiler) errorf(pos Position, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	c.diags = append(c.diags, Diagnostic{Pos: pos, Message: msg})
	c.hist.Error("%s---line %d of file %s\nI'm skipping whatever remains of this command", msg, pos.Line, c.name)
	return errSkip
}

func (c *compiler) warnf(pos Position, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.diags = append(c.diags, Diagnostic{Pos: pos, Message: msg, Warning: true})
	c.hist.Warn("%s---line %d of file %s", msg, pos.Line, c.name)
}

func (c *compiler) expect(tt TokenType, what string) (Token, error) {
	t := c.next()
	if t.Type == TokenError {
		return t, c.errorf(t.Pos, "%s", t.Literal)
	}
	if t.Type != tt {
		return t, c.errorf(t.Pos, "I was expecting %s", what)
	}
	return t, nil
}

// commandWord reports whether the token names a top-level command.
func (c *compiler) commandWord(t Token) (int, bool) {
	if t.Type != TokenIdentifier {
		return 0, false
	}
	loc, ok := c.table.Lookup(scan.Lowered([]byte(t.Literal)), pool.BstCommand)
	if !ok {
		return 0, false
	}
	return int(c.table.Info(loc)), true
}

// skipCommand advances to the next command word outside braces.
func (c *compiler) skipCommand() {
	depth := 0
	for {
		t := c.peek()
		switch t.Type {
		case TokenEOF:
			return
		case TokenLBrace:
			depth++
		case TokenRBrace:
			if depth > 0 {
				depth--
			}
		case TokenIdentifier:
			if _, ok := c.commandWord(t); ok && depth == 0 {
				return
			}
		}
		c.next()
	}
}

// braced reads "{ name }".
func (c *compiler) braced(what string) (Token, error) {
	if _, err := c.expect(TokenLBrace, "a \"{\""); err != nil {
		return Token{}, err
	}
	t, err := c.expect(TokenIdentifier, what)
	if err != nil {
		return t, err
	}
	if _, err := c.expect(TokenRBrace, "a \"}\""); err != nil {
		return t, err
	}
	return t, nil
}

// names reads "{ name name ... }".
func (c *compiler) names() ([]Token, error) {
	if _, err := c.expect(TokenLBrace, "a \"{\""); err != nil {
		return nil, err
	}
	var out []Token
	for {
		t := c.next()
		switch t.Type {
		case TokenRBrace:
			return out, nil
		case TokenIdentifier:
			out = append(out, t)
		case TokenError:
			return nil, c.errorf(t.Pos, "%s", t.Literal)
		default:
			return nil, c.errorf(t.Pos, "I was expecting a name or a \"}\"")
		}
	}
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func (c *compiler) command() error {
	t := c.next()
	if t.Type == TokenError {
		return c.errorf(t.Pos, "%s", t.Literal)
	}
	idx, ok := c.commandWord(t)
	if !ok {
		return c.errorf(t.Pos, "%q is an illegal style-file command", t.Literal)
	}
	switch commandWords[idx] {
	case "entry":
		return c.entry(t)
	case "execute":
		return c.run(t, CmdExecute)
	case "function":
		return c.function()
	case "integers":
		return c.globals(KindIntGlobal)
	case "iterate":
		return c.run(t, CmdIterate)
	case "macro":
		return c.macro(t)
	case "read":
		return c.read(t)
	case "reverse":
		return c.run(t, CmdReverse)
	case "sort":
		if !c.readSeen {
			return c.errorf(t.Pos, "Illegal, sort command before read command")
		}
		c.prog.Commands = append(c.prog.Commands, Command{Kind: CmdSort, Pos: t.Pos})
		return nil
	case "strings":
		return c.globals(KindStrGlobal)
	}
	return c.errorf(t.Pos, "%q is an illegal style-file command", t.Literal)
}

func (c *compiler) entry(cmd Token) error {
	if c.entrySeen {
		return c.errorf(cmd.Pos, "Illegal, another entry command")
	}
	if c.readSeen {
		return c.errorf(cmd.Pos, "Illegal, entry command after read command")
	}
	c.entrySeen = true
	fields, err := c.names()
	if err != nil {
		return err
	}
	ints, err := c.names()
	if err != nil {
		return err
	}
	strs, err := c.names()
	if err != nil {
		return err
	}
	for _, t := range fields {
		if _, err := c.defineField(t.Literal, t.Pos); err != nil {
			return err
		}
	}
	for _, t := range ints {
		if _, err := c.defineVar(t.Literal, KindIntEntryVar, t.Pos); err != nil {
			return err
		}
	}
	for _, t := range strs {
		if _, err := c.defineVar(t.Literal, KindStrEntryVar, t.Pos); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) globals(kind FnKind) error {
	names, err := c.names()
	if err != nil {
		return err
	}
	for _, t := range names {
		if _, err := c.defineVar(t.Literal, kind, t.Pos); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) run(cmd Token, kind CommandKind) error {
	t, err := c.braced("a function name")
	if err != nil {
		return err
	}
	if kind != CmdExecute && !c.readSeen {
		return c.errorf(cmd.Pos, "Illegal, %s command before read command", lowerString(kind.String()))
	}
	f, ok := c.prog.Lookup(t.Literal)
	if !ok {
		return c.errorf(t.Pos, "%s is an unknown function", t.Literal)
	}
	c.prog.Commands = append(c.prog.Commands, Command{Kind: kind, Fn: f, Pos: cmd.Pos})
	return nil
}

func (c *compiler) macro(cmd Token) error {
	if c.readSeen {
		return c.errorf(cmd.Pos, "Illegal, macro command after read command")
	}
	name, err := c.braced("a macro name")
	if err != nil {
		return err
	}
	if _, err := c.expect(TokenLBrace, "a \"{\""); err != nil {
		return err
	}
	v, err := c.expect(TokenString, "a string")
	if err != nil {
		return err
	}
	if _, err := c.expect(TokenRBrace, "a \"}\""); err != nil {
		return err
	}
	c.prog.Commands = append(c.prog.Commands, Command{
		Kind:  CmdMacro,
		Name:  lowerString(name.Literal),
		Value: v.Literal,
		Pos:   cmd.Pos,
	})
	return nil
}

func (c *compiler) read(cmd Token) error {
	if c.readSeen {
		return c.errorf(cmd.Pos, "Illegal, another read command")
	}
	if !c.entrySeen {
		return c.errorf(cmd.Pos, "Illegal, read command before entry command")
	}
	c.readSeen = true
	c.prog.Commands = append(c.prog.Commands, Command{Kind: CmdRead, Pos: cmd.Pos})
	return nil
}

func (c *compiler) function() error {
	name, err := c.braced("a function name")
	if err != nil {
		return err
	}
	f, err := c.define(name.Literal, KindWizard, name.Pos)
	if err != nil {
		return err
	}
	// Stays set unless the body compiles; calling f then faults.
	f.Broken = true
	open, err := c.expect(TokenLBrace, "a \"{\"")
	if err != nil {
		return err
	}
	body, err := c.body(open.Pos)
	if err != nil {
		return err
	}
	f.Body = body
	f.Broken = false
	return nil
}

// body compiles tokens up to the matching "}". Inline blocks become
// anonymous wizard functions.
func (c *compiler) body(open Position) ([]Op, error) {
	var ops []Op
	for {
		t := c.next()
		switch t.Type {
		case TokenRBrace:
			return ops, nil
		case TokenEOF:
			return nil, c.errorf(open, "Illegal end of style file in function body")
		case TokenError:
			return nil, c.errorf(t.Pos, "%s", t.Literal)
		case TokenInteger:
			ops = append(ops, Op{Code: OpPushInt, Int: t.Int, Pos: t.Pos})
		case TokenString:
			loc, _, err := c.table.InternString(t.Literal, pool.Text)
			if err != nil {
				return nil, err
			}
			ops = append(ops, Op{Code: OpPushStr, Str: c.table.Str(loc), Pos: t.Pos})
		case TokenQuote:
			f, ok := c.prog.Lookup(t.Literal)
			if !ok {
				return nil, c.errorf(t.Pos, "%s is an unknown function", t.Literal)
			}
			ops = append(ops, Op{Code: OpPushFunc, Fn: f, Pos: t.Pos})
		case TokenLBrace:
			inner, err := c.body(t.Pos)
			if err != nil {
				return nil, err
			}
			block := &Function{Name: fmt.Sprintf("{block@%s}", t.Pos), Kind: KindWizard, Pos: t.Pos, Body: inner}
			ops = append(ops, Op{Code: OpPushFunc, Fn: block, Pos: t.Pos})
		case TokenIdentifier:
			if _, ok := c.commandWord(t); ok {
				c.i--
				return nil, c.errorf(t.Pos, "Illegal end of function body, %s is a command", t.Literal)
			}
			f, ok := c.prog.Lookup(t.Literal)
			if !ok {
				return nil, c.errorf(t.Pos, "%s is an unknown function", t.Literal)
			}
			ops = append(ops, Op{Code: OpCall, Fn: f, Pos: t.Pos})
		}
	}
}
