// Package auxfile reads the auxiliary file written by a typesetting pass
// and collects the citations, database files and style file it names.
package auxfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/bibtex/buffer"
	"github.com/chazu/bibtex/cite"
	"github.com/chazu/bibtex/history"
	"github.com/chazu/bibtex/pool"
	"github.com/chazu/bibtex/scan"
)

var log = commonlog.GetLogger("bibtex.aux")

var (
	// ErrIncludeDepth is returned when \@input nesting exceeds the limit.
	ErrIncludeDepth = errors.New("auxfile: \\@input nesting too deep")
	// ErrIncludeCycle is returned when a file includes itself, directly or not.
	ErrIncludeCycle = errors.New("auxfile: cyclic \\@input")
	// ErrNoAuxFile is returned when the top-level aux file cannot be opened.
	ErrNoAuxFile = errors.New("auxfile: cannot open aux file")
)

// DefaultMaxDepth bounds the \@input inclusion stack.
const DefaultMaxDepth = 20

// Opener opens a named input file.
type Opener interface {
	Open(name string) (io.ReadCloser, error)
}

type command int32

const (
	cmdBibData command = iota
	cmdBibStyle
	cmdCitation
	cmdInput
)

var commandNames = map[string]command{
	`\bibdata`:  cmdBibData,
	`\bibstyle`: cmdBibStyle,
	`\citation`: cmdCitation,
	`\@input`:   cmdInput,
}

// Result is everything the aux files declared.
type Result struct {
	Citations *cite.List
	BibFiles  []string // with .bib extension, declaration order
	Style     string   // with .bst extension; empty if none
	AuxFiles  []string // every aux file read, in the order opened

	sawCitation bool
	sawBibData  bool
}

// HasStyle reports whether a \bibstyle command was seen.
func (r *Result) HasStyle() bool { return r.Style != "" }

type frame struct {
	name   string
	in     *scan.Input
	closer io.Closer
}

// ---------------------------------------------------------------------------
// Processor
// ---------------------------------------------------------------------------

// Processor runs the aux state machine: it reads lines from the file on
// top of an explicit inclusion stack until the stack is empty.
type Processor struct {
	table    *pool.Table
	hist     *history.Tracker
	open     Opener
	scanner  *scan.Scanner
	maxDepth int

	stack  []frame
	result *Result
}

// NewProcessor creates a processor. buf is the line buffer to scan in.
func NewProcessor(t *pool.Table, h *history.Tracker, open Opener, buf *buffer.Buffer, maxDepth int) *Processor {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Processor{
		table:    t,
		hist:     h,
		open:     open,
		scanner:  scan.New(buf),
		maxDepth: maxDepth,
	}
}

// Depth returns the current inclusion depth.
func (p *Processor) Depth() int { return len(p.stack) }

// Process reads name and everything it includes. Only fatal conditions
// are returned as errors; everything else is recorded in the tracker.
func (p *Processor) Process(ctx context.Context, name string) (*Result, error) {
	for _, n := range []string{`\bibdata`, `\bibstyle`, `\citation`, `\@input`} {
		loc, _, err := p.table.InternString(n, pool.AuxCommand)
		if err != nil {
			return nil, err
		}
		p.table.SetInfo(loc, int32(commandNames[n]))
	}

	p.result = &Result{Citations: cite.NewList(p.table)}
	p.stack = p.stack[:0]
	defer p.closeAll()

	if _, _, err := p.table.InternString(name, pool.AuxFile); err != nil {
		return nil, err
	}
	if err := p.push(name); err != nil {
		p.hist.Fatal("I couldn't open auxiliary file %s", name)
		return nil, fmt.Errorf("%w: %s: %v", ErrNoAuxFile, name, err)
	}

	for len(p.stack) > 0 {
		if err := ctx.Err(); err != nil {
			return p.result, err
		}
		top := &p.stack[len(p.stack)-1]
		p.scanner.Use(top.in)
		ok, err := p.scanner.ReadLine()
		if err != nil {
			return p.result, fmt.Errorf("reading %s: %w", top.name, err)
		}
		if !ok {
			log.Debugf("finished aux file %s", top.name)
			p.pop()
			continue
		}
		if err := p.processLine(); err != nil {
			return p.result, err
		}
	}

	p.checkDeclarations()
	return p.result, nil
}

func (p *Processor) push(name string) error {
	rc, err := p.open.Open(name)
	if err != nil {
		return err
	}
	log.Infof("reading aux file %s (depth %d)", name, len(p.stack)+1)
	p.stack = append(p.stack, frame{name: name, in: scan.NewInput(rc), closer: rc})
	p.result.AuxFiles = append(p.result.AuxFiles, name)
	return nil
}

func (p *Processor) pop() {
	top := p.stack[len(p.stack)-1]
	top.closer.Close()
	p.stack = p.stack[:len(p.stack)-1]
}

func (p *Processor) closeAll() {
	for len(p.stack) > 0 {
		p.pop()
	}
}

func (p *Processor) current() *frame {
	return &p.stack[len(p.stack)-1]
}

func (p *Processor) errorf(format string, args ...any) {
	f := p.current()
	p.hist.Error("%s---line %d of file %s\n : %s\nI'm skipping whatever remains of this command",
		fmt.Sprintf(format, args...), f.in.Line(), f.name, p.scanner.Line())
}

func (p *Processor) processLine() error {
	s := p.scanner
	if !s.Scan1('{') {
		return nil
	}
	loc, ok := p.table.Lookup(s.Token(), pool.AuxCommand)
	if !ok {
		return nil
	}
	switch command(p.table.Info(loc)) {
	case cmdBibData:
		return p.bibData()
	case cmdBibStyle:
		return p.bibStyle()
	case cmdCitation:
		return p.citation()
	case cmdInput:
		return p.input()
	}
	return nil
}

// args scans a brace-delimited argument list starting at '{'. When many
// is false the argument is a single name and commas are part of it.
func (p *Processor) args(many bool) ([][]byte, bool) {
	s := p.scanner
	s.Advance()
	var out [][]byte
	for {
		var found bool
		if many {
			found = s.Scan2White('}', ',')
		} else {
			found = s.Scan1White('}')
		}
		if !found {
			p.errorf(`No "}"`)
			return nil, false
		}
		if scan.IsWhite(s.Char()) {
			p.errorf("White space in argument")
			return nil, false
		}
		if len(s.Token()) == 0 {
			p.errorf("Empty argument")
			return nil, false
		}
		out = append(out, bytes.Clone(s.Token()))
		c := s.Char()
		s.Advance()
		if c == '}' {
			break
		}
	}
	if !s.AtEnd() {
		p.errorf(`Stuff after "}"`)
		return nil, false
	}
	return out, true
}

func (p *Processor) bibData() error {
	p.result.sawBibData = true
	names, ok := p.args(true)
	if !ok {
		return nil
	}
	for _, n := range names {
		_, existed, err := p.table.Intern(n, pool.BibFile)
		if err != nil {
			return err
		}
		if existed {
			p.hist.Warn("This database file appears more than once: %s.bib", n)
			continue
		}
		p.result.BibFiles = append(p.result.BibFiles, string(n)+".bib")
	}
	return nil
}

func (p *Processor) bibStyle() error {
	names, ok := p.args(false)
	if !ok {
		return nil
	}
	if p.result.Style != "" {
		p.errorf(`Illegal, another \bibstyle command`)
		return nil
	}
	if _, _, err := p.table.Intern(names[0], pool.BstFile); err != nil {
		return err
	}
	p.result.Style = string(names[0]) + ".bst"
	return nil
}

func (p *Processor) citation() error {
	p.result.sawCitation = true
	keys, ok := p.args(true)
	if !ok {
		return nil
	}
	cites := p.result.Citations
	for _, k := range keys {
		if string(k) == "*" {
			if cites.All {
				p.errorf("Multiple inclusions of entire database")
				return nil
			}
			cites.All = true
			continue
		}
		res, loc, err := cites.Add(k)
		if err != nil {
			return err
		}
		if res == cite.CaseMismatch {
			p.errorf("Case mismatch error between cite keys %s and %s", k, p.table.Name(loc))
		}
	}
	return nil
}

func (p *Processor) input() error {
	names, ok := p.args(false)
	if !ok {
		return nil
	}
	name := string(names[0])
	if !strings.HasSuffix(name, ".aux") {
		p.errorf("%s has a wrong extension", name)
		return nil
	}
	for _, f := range p.stack {
		if f.name == name {
			p.hist.Fatal("Cyclic \\@input of %s", name)
			return fmt.Errorf("%w: %s", ErrIncludeCycle, name)
		}
	}
	if _, existed, err := p.table.InternString(name, pool.AuxFile); err != nil {
		return err
	} else if existed {
		p.errorf("Already encountered file %s", name)
		return nil
	}
	if len(p.stack) >= p.maxDepth {
		p.hist.Fatal("\\@input nesting exceeds %d files at %s", p.maxDepth, name)
		return fmt.Errorf("%w: %d", ErrIncludeDepth, p.maxDepth)
	}
	if err := p.push(name); err != nil {
		p.errorf("I couldn't open auxiliary file %s", name)
	}
	return nil
}

func (p *Processor) checkDeclarations() {
	r := p.result
	if !r.sawCitation {
		p.hist.Error(`I found no \citation commands---while reading file %s`, r.AuxFiles[0])
	}
	if !r.sawBibData {
		p.hist.Error(`I found no \bibdata command---while reading file %s`, r.AuxFiles[0])
	}
	if r.Style == "" {
		p.hist.Error(`I found no \bibstyle command---while reading file %s`, r.AuxFiles[0])
	}
}
