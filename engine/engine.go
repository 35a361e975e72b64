// Package engine runs one bibliography job: it reads the aux file, compiles
// the style, and executes it over the cited database entries, writing the
// formatted bibliography through a Host.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/bibtex/auxfile"
	"github.com/chazu/bibtex/bib"
	"github.com/chazu/bibtex/bst"
	"github.com/chazu/bibtex/buffer"
	"github.com/chazu/bibtex/cite"
	"github.com/chazu/bibtex/history"
	"github.com/chazu/bibtex/output"
	"github.com/chazu/bibtex/pool"
)

var log = commonlog.GetLogger("bibtex.engine")

var (
	// ErrFatal is returned when a run ends with a fatal error.
	ErrFatal = errors.New("bibtex: fatal error")
	// ErrAborted is returned when the caller cancelled the run.
	ErrAborted = errors.New("bibtex: run aborted")
)

// Outcome is the result of a run that was not fatal.
type Outcome int

const (
	Spotless Outcome = iota
	Warnings
	Errors
)

var outcomeNames = map[Outcome]string{
	Spotless: "spotless",
	Warnings: "warnings",
	Errors:   "errors",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Cache stores parsed database files. Get returns nil on a miss. The
// engine treats cache failures as misses.
type Cache interface {
	Get(name string, data []byte, env []bib.MacroDef) (*bib.Snapshot, error)
	Put(name string, data []byte, env []bib.MacroDef, s *bib.Snapshot) error
}

// Report describes the last run.
type Report struct {
	Aux      string
	Output   string
	Style    string
	BibFiles []string

	Level    history.Level
	Warnings int
	Errors   int
	Messages []history.Message

	Cited     int // keys named by \citation
	Entries   int // entries handed to the style
	Lines     int // lines written
	CacheHits int
	Started   time.Time
	Elapsed   time.Duration
}

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

// Engine owns the run context. It is not safe for concurrent use; every
// Process call starts from a fully reset state.
type Engine struct {
	cfg   Config
	host  Host
	cache Cache

	table *pool.Table
	bufs  *buffer.Set
	hist  *history.Tracker

	// per run
	aux    *auxfile.Result
	reader *bib.Reader
	report Report
}

// New creates an engine. Zero config fields take their defaults.
func New(host Host, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:   cfg,
		host:  host,
		table: pool.NewTable(pool.NewPool(cfg.PoolSize, cfg.MaxStrings), cfg.HashSize),
		bufs:  buffer.NewSet(cfg.BufSize, cfg.MaxBufSize),
		hist:  history.New(),
	}
}

// UseCache makes later runs consult c before scanning database files.
func (e *Engine) UseCache(c Cache) {
	e.cache = c
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Report returns the report of the last run.
func (e *Engine) Report() Report {
	return e.report
}

func (e *Engine) reset() {
	e.table.Reset()
	e.table.Pool().Reset()
	e.bufs.Reset()
	e.hist.Reset()
	e.aux = nil
	e.reader = nil
	e.report = Report{Started: time.Now()}
}

// OutputName returns the bibliography file written for an aux file.
func OutputName(auxName string) string {
	return strings.TrimSuffix(auxName, path.Ext(auxName)) + ".bbl"
}

// Process runs the job described by auxName. A missing ".aux" extension is
// supplied. Non-fatal problems are reflected in the Outcome; a fatal
// error returns ErrFatal and cancellation returns ErrAborted, both
// wrapping the cause.
func (e *Engine) Process(ctx context.Context, auxName string) (Outcome, error) {
	e.reset()
	if path.Ext(auxName) != ".aux" {
		auxName += ".aux"
	}
	e.report.Aux = auxName
	log.Infof("processing %s", auxName)

	err := e.run(ctx, auxName)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			if e.hist.Level() < history.Aborted {
				e.hist.Abort(err.Error())
			}
		case e.hist.Level() < history.FatalError:
			e.hist.Fatal("%v", err)
		}
	}

	r := &e.report
	r.Level = e.hist.Level()
	r.Warnings = e.hist.Warnings()
	r.Errors = e.hist.Errors()
	r.Messages = e.hist.Messages()
	r.Elapsed = time.Since(r.Started)
	log.Infof("%s: %s (%d warnings, %d errors)", auxName, r.Level, r.Warnings, r.Errors)

	switch r.Level {
	case history.Spotless:
		return Spotless, nil
	case history.WarningIssued:
		return Warnings, nil
	case history.ErrorIssued:
		return Errors, nil
	case history.Aborted:
		return Errors, fmt.Errorf("%w: %w", ErrAborted, err)
	}
	if err == nil || errors.Is(err, ErrFatal) {
		return Errors, fmt.Errorf("%w: %s", ErrFatal, lastFatal(r.Messages))
	}
	return Errors, fmt.Errorf("%w: %w", ErrFatal, err)
}

func lastFatal(msgs []history.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Level == history.FatalError {
			return msgs[i].Text
		}
	}
	return "fatal error"
}

// checkpoint is run between phases.
func (e *Engine) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.cfg.MaxErrors > 0 && e.hist.Errors() >= e.cfg.MaxErrors {
		e.hist.Fatal("That makes %d errors; please try again", e.hist.Errors())
		return ErrFatal
	}
	return nil
}

func (e *Engine) run(ctx context.Context, auxName string) error {
	proc := auxfile.NewProcessor(e.table, e.hist, auxOpener{e.host}, e.bufs.Get(buffer.Base), e.cfg.MaxAuxDepth)
	aux, err := proc.Process(ctx, auxName)
	if err != nil {
		return err
	}
	e.aux = aux
	e.report.Style = aux.Style
	e.report.BibFiles = aux.BibFiles
	e.report.Cited = aux.Citations.Len()
	if err := e.checkpoint(ctx); err != nil {
		return err
	}

	if !aux.HasStyle() {
		e.hist.Fatal("No style file given, so there's nothing to do")
		return ErrFatal
	}
	src, err := e.readFile(aux.Style, FormatBst)
	if err != nil {
		e.hist.Fatal("I couldn't open style file %s: %v", aux.Style, err)
		return ErrFatal
	}
	prog, _, err := bst.Compile(aux.Style, string(src), e.table, e.hist, bst.Options{
		EntryMax:  e.cfg.EntryStrMax,
		GlobalMax: e.cfg.GlobalStrMax,
	})
	if err != nil {
		return err
	}
	if err := e.checkpoint(ctx); err != nil {
		return err
	}

	e.reader, err = bib.NewReader(e.table, e.hist, e.bufs.Get(buffer.Base), e.bufs.Get(buffer.SV))
	if err != nil {
		return err
	}
	e.report.Output = OutputName(auxName)
	out, err := e.host.Create(e.report.Output)
	if err != nil {
		e.hist.Fatal("I couldn't open file %s: %v", e.report.Output, err)
		return ErrFatal
	}
	w := output.NewWriter(out, e.cfg.MaxPrintLine)
	in := bst.NewInterp(prog, e.table, e.hist, w, e, e.bufs.Get(buffer.Ex), e.cfg.StackSize)
	runErr := in.Run(ctx)
	e.report.Entries = len(in.Entries())

	// Whatever was produced is kept, even when the run failed.
	flushErr := w.Flush()
	e.report.Lines = w.Lines()
	closeErr := out.Close()
	if runErr != nil {
		return runErr
	}
	if flushErr != nil {
		return fmt.Errorf("writing %s: %w", e.report.Output, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing %s: %w", e.report.Output, closeErr)
	}
	return e.checkpoint(ctx)
}

func (e *Engine) readFile(name string, f Format) ([]byte, error) {
	rc, err := e.host.Open(name, f)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

type auxOpener struct{ host Host }

func (o auxOpener) Open(name string) (io.ReadCloser, error) {
	return o.host.Open(name, FormatAux)
}

// ---------------------------------------------------------------------------
// The style program's view of the database
// ---------------------------------------------------------------------------

// DefineMacro implements bst.Database.
func (e *Engine) DefineMacro(name, value []byte) error {
	return e.reader.DefineMacro(name, value)
}

// Read implements bst.Database: it reads every declared database file,
// resolves cross-references, and returns the entries in citation order.
func (e *Engine) Read(ctx context.Context) (*bst.ReadResult, error) {
	db := bib.NewDatabase(e.table)
	for _, name := range e.aux.BibFiles {
		if err := e.checkpoint(ctx); err != nil {
			return nil, err
		}
		f, err := e.readBib(name)
		if err != nil {
			return nil, err
		}
		if f != nil {
			db.Merge(f, e.hist)
		}
	}
	if err := e.checkpoint(ctx); err != nil {
		return nil, err
	}

	res, err := cite.Resolve(db, e.aux.Citations, e.table, e.hist, cite.Options{
		MinCrossrefs: e.cfg.MinCrossrefs,
		MaxDepth:     e.cfg.MaxCrossrefDepth,
	})
	if err != nil {
		return nil, err
	}
	rr := &bst.ReadResult{
		Entries:   res.Entries,
		CiteKeys:  make([]pool.StrNum, len(res.Entries)),
		Preambles: db.Preambles,
	}
	for i, ent := range res.Entries {
		rr.CiteKeys[i] = pool.NoStr
		if loc, ok := e.aux.Citations.Find(e.table.Text(ent.Key)); ok {
			rr.CiteKeys[i] = e.table.Str(loc)
		}
	}
	return rr, nil
}

// readBib parses one database file, or restores it from the cache. A file
// that cannot be opened is an error for the run, not a fatal one, and
// yields nil.
func (e *Engine) readBib(name string) (*bib.FileResult, error) {
	data, err := e.readFile(name, FormatBib)
	if err != nil {
		e.hist.Error("I couldn't open database file %s", name)
		return nil, nil
	}
	var env []bib.MacroDef
	if e.cache != nil {
		env = e.reader.MacroEnv()
		snap, err := e.cache.Get(name, data, env)
		if err != nil {
			log.Warningf("cache lookup for %s: %s", name, err)
		}
		if snap != nil {
			f, err := e.reader.Restore(snap)
			if err != nil {
				return nil, err
			}
			log.Debugf("%s restored from cache", name)
			e.report.CacheHits++
			return f, nil
		}
	}

	f, err := e.reader.Read(name, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		// Captured before crossref resolution rewrites any fields.
		if err := e.cache.Put(name, data, env, e.reader.Capture(f)); err != nil {
			log.Warningf("cache store for %s: %s", name, err)
		}
	}
	return f, nil
}
