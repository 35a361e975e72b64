// bibtex CLI - formats the bibliography of an aux file
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/bibtex/bibcache"
	"github.com/chazu/bibtex/engine"
	"github.com/chazu/bibtex/manifest"
	"github.com/chazu/bibtex/server"
)

// Exit codes.
const (
	exitOK      = 0
	exitErrors  = 1
	exitFatal   = 2
	exitAborted = 3
	exitUsage   = 64
)

// countFlag is a flag that counts its occurrences, so -v -v is "more".
type countFlag int

func (c *countFlag) String() string { return strconv.Itoa(int(*c)) }
func (c *countFlag) IsBoolFlag() bool { return true }

func (c *countFlag) Set(s string) error {
	if s == "true" {
		*c++
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*c = countFlag(n)
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	var verbose countFlag
	flag.Var(&verbose, "v", "Verbose logging (repeat for more)")
	minCrossrefs := flag.Int("min-crossrefs", 0, "Crossref count that makes a parent entry cited on its own (default 2)")
	configPath := flag.String("config", "", "Path to bibtex.toml (default: search upward from the aux file)")
	cachePath := flag.String("cache", "", "Cache database path (enables the database cache)")
	noCache := flag.Bool("no-cache", false, "Disable the database cache")
	logPath := flag.String("log", "", "Write the log to this file instead of stderr")
	blg := flag.Bool("blg", false, "Write the log to <aux>.blg next to the aux file")
	lspMode := flag.Bool("lsp", false, "Serve style files over the Language Server Protocol on stdio")
	historyN := flag.Int("history", 0, "List the N most recent runs recorded in the cache and exit")
	quiet := flag.Bool("q", false, "Do not print diagnostics")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bibtex [options] file[.aux]\n\n")
		fmt.Fprintf(os.Stderr, "Reads the citations, databases and style named in an aux file and writes\n")
		fmt.Fprintf(os.Stderr, "the formatted bibliography to the matching .bbl file.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  bibtex paper                 # paper.aux -> paper.bbl\n")
		fmt.Fprintf(os.Stderr, "  bibtex -min-crossrefs 1 paper\n")
		fmt.Fprintf(os.Stderr, "  bibtex -cache .bibtex/cache.db -history 10\n")
		fmt.Fprintf(os.Stderr, "  bibtex -lsp                  # language server for .bst files\n")
	}
	flag.Parse()

	if *lspMode {
		configureLog(int(verbose), *logPath)
		if err := server.NewLSP().Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			return exitFatal
		}
		return exitOK
	}

	auxPath := flag.Arg(0)
	if auxPath == "" && *historyN == 0 {
		flag.Usage()
		return exitUsage
	}
	dir := filepath.Dir(auxPath)

	m, err := loadManifest(*configPath, dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	cfg := engine.DefaultConfig()
	level := 0
	logFile := *logPath
	store := ""
	if m != nil {
		m.Apply(&cfg)
		level = m.Verbosity()
		store = m.CachePath()
		if logFile == "" && m.Log.File != "" {
			logFile = m.Log.File
			if !filepath.IsAbs(logFile) {
				logFile = filepath.Join(m.Dir, logFile)
			}
		}
	}
	if *blg && logFile == "" {
		logFile = strings.TrimSuffix(engine.OutputName(auxPath), ".bbl") + ".blg"
	}
	if *minCrossrefs > 0 {
		cfg.MinCrossrefs = *minCrossrefs
	}
	if *cachePath != "" {
		store = *cachePath
	}
	if *noCache {
		store = ""
	}
	configureLog(level+int(verbose), logFile)

	var cache *bibcache.Store
	if store != "" {
		cache, err = bibcache.Open(store)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cache disabled: %v\n", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	if *historyN > 0 {
		return listHistory(cache, *historyN)
	}

	host := engine.NewDirHost(dir)
	if m != nil {
		host.SearchDirs = m.SearchDirs()
		if out := m.OutputDir(); out != "" {
			host.OutDir = out
		}
	}
	if env := os.Getenv("BSTINPUTS"); env != "" {
		host.SearchDirs = append(host.SearchDirs, filepath.SplitList(env)...)
	}
	if env := os.Getenv("BIBINPUTS"); env != "" {
		host.SearchDirs = append(host.SearchDirs, filepath.SplitList(env)...)
	}

	e := engine.New(host, cfg)
	if cache != nil {
		e.UseCache(cache)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	outcome, err := e.Process(ctx, filepath.Base(auxPath))
	stop()

	report := e.Report()
	if !*quiet {
		// With the log on stderr the tracker has already shown each message.
		if logFile != "" {
			for _, msg := range report.Messages {
				fmt.Fprintln(os.Stderr, msg.String())
			}
		}
		switch {
		case report.Errors == 1:
			fmt.Fprintf(os.Stderr, "(There was 1 error message)\n")
		case report.Errors > 1:
			fmt.Fprintf(os.Stderr, "(There were %d error messages)\n", report.Errors)
		case report.Warnings == 1:
			fmt.Fprintf(os.Stderr, "(There was 1 warning)\n")
		case report.Warnings > 1:
			fmt.Fprintf(os.Stderr, "(There were %d warnings)\n", report.Warnings)
		}
	}
	if cache != nil {
		if _, rerr := cache.RecordRun(report); rerr != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", rerr)
		}
	}

	switch {
	case errors.Is(err, engine.ErrAborted):
		fmt.Fprintf(os.Stderr, "Aborted: %v\n", err)
		return exitAborted
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFatal
	case outcome == engine.Errors:
		return exitErrors
	}
	return exitOK
}

func loadManifest(path, auxDir string) (*manifest.Manifest, error) {
	if path == "" {
		return manifest.FindAndLoad(auxDir)
	}
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		path = filepath.Dir(path)
	}
	return manifest.Load(path)
}

func configureLog(verbosity int, path string) {
	if path == "" {
		commonlog.Configure(verbosity, nil)
		return
	}
	commonlog.Configure(verbosity, &path)
}

func listHistory(cache *bibcache.Store, n int) int {
	if cache == nil {
		fmt.Fprintf(os.Stderr, "Error: no cache configured; use -cache or [cache] in bibtex.toml\n")
		return exitUsage
	}
	runs, err := cache.Runs(n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFatal
	}
	for _, r := range runs {
		fmt.Println(r.String())
	}
	return exitOK
}
