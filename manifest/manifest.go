// Package manifest handles bibtex.toml run configuration.
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"

	"github.com/chazu/bibtex/engine"
)

// FileName is the name looked for by FindAndLoad.
const FileName = "bibtex.toml"

// DefaultCachePath is where the cache lives when enabled without a path,
// relative to the manifest directory.
const DefaultCachePath = ".bibtex/cache.db"

//go:embed schema.cue
var schemaSource string

// Manifest represents a bibtex.toml file.
type Manifest struct {
	Run    Run    `toml:"run" json:"run"`
	Limits Limits `toml:"limits" json:"limits"`
	Output Output `toml:"output" json:"output"`
	Cache  Cache  `toml:"cache" json:"cache"`
	Log    Log    `toml:"log" json:"log"`

	// Dir is the directory containing the bibtex.toml file (set at load time).
	Dir string `toml:"-" json:"-"`
}

// Run holds settings of the job itself.
type Run struct {
	MinCrossrefs int      `toml:"min-crossrefs" json:"min-crossrefs,omitempty"`
	MaxErrors    int      `toml:"max-errors" json:"max-errors,omitempty"`
	SearchPath   []string `toml:"search-path" json:"search-path,omitempty"`
}

// Limits overrides the capacity limits of the engine.
type Limits struct {
	HashSize         int `toml:"hash-size" json:"hash-size,omitempty"`
	PoolSize         int `toml:"pool-size" json:"pool-size,omitempty"`
	MaxStrings       int `toml:"max-strings" json:"max-strings,omitempty"`
	BufSize          int `toml:"buf-size" json:"buf-size,omitempty"`
	MaxBufSize       int `toml:"max-buf-size" json:"max-buf-size,omitempty"`
	StackSize        int `toml:"stack-size" json:"stack-size,omitempty"`
	MaxAuxDepth      int `toml:"max-aux-depth" json:"max-aux-depth,omitempty"`
	MaxCrossrefDepth int `toml:"max-crossref-depth" json:"max-crossref-depth,omitempty"`
	EntryStrMax      int `toml:"entry-str-max" json:"entry-str-max,omitempty"`
	GlobalStrMax     int `toml:"global-str-max" json:"global-str-max,omitempty"`
}

// Output configures the bibliography file.
type Output struct {
	MaxPrintLine int    `toml:"max-print-line" json:"max-print-line,omitempty"`
	Dir          string `toml:"dir" json:"dir,omitempty"`
}

// Cache configures the parsed-database cache and run history.
type Cache struct {
	Enabled bool   `toml:"enabled" json:"enabled,omitempty"`
	Path    string `toml:"path" json:"path,omitempty"`
}

// Log configures diagnostics.
type Log struct {
	Level string `toml:"level" json:"level,omitempty"`
	File  string `toml:"file" json:"file,omitempty"`
}

// Load parses and validates the bibtex.toml file in dir.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	m, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes and validates manifest text. Unknown keys are rejected.
func Parse(data string) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(data, &m)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a bibtex.toml file, then
// loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks the manifest against the embedded CUE schema.
func (m *Manifest) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("manifest schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Manifest"))
	v := def.Unify(ctx.Encode(m))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	return nil
}

// Apply copies every value the manifest sets into c.
func (m *Manifest) Apply(c *engine.Config) {
	set := func(dst *int, v int) {
		if v > 0 {
			*dst = v
		}
	}
	set(&c.MinCrossrefs, m.Run.MinCrossrefs)
	set(&c.MaxErrors, m.Run.MaxErrors)
	set(&c.HashSize, m.Limits.HashSize)
	set(&c.PoolSize, m.Limits.PoolSize)
	set(&c.MaxStrings, m.Limits.MaxStrings)
	set(&c.BufSize, m.Limits.BufSize)
	set(&c.MaxBufSize, m.Limits.MaxBufSize)
	set(&c.StackSize, m.Limits.StackSize)
	set(&c.MaxAuxDepth, m.Limits.MaxAuxDepth)
	set(&c.MaxCrossrefDepth, m.Limits.MaxCrossrefDepth)
	set(&c.EntryStrMax, m.Limits.EntryStrMax)
	set(&c.GlobalStrMax, m.Limits.GlobalStrMax)
	set(&c.MaxPrintLine, m.Output.MaxPrintLine)
}

// SearchDirs returns absolute paths for the configured search path.
func (m *Manifest) SearchDirs() []string {
	var paths []string
	for _, d := range m.Run.SearchPath {
		paths = append(paths, m.abs(d))
	}
	return paths
}

// OutputDir returns where bibliographies are written, or "" for the
// directory of the aux file.
func (m *Manifest) OutputDir() string {
	if m.Output.Dir == "" {
		return ""
	}
	return m.abs(m.Output.Dir)
}

// CachePath returns the cache database path, or "" when the cache is off.
func (m *Manifest) CachePath() string {
	if !m.Cache.Enabled {
		return ""
	}
	if m.Cache.Path == "" {
		return m.abs(DefaultCachePath)
	}
	return m.abs(m.Cache.Path)
}

// Verbosity maps the log level to a commonlog verbosity, where 0 is
// notice.
func (m *Manifest) Verbosity() int {
	switch m.Log.Level {
	case "critical":
		return -3
	case "error":
		return -2
	case "warning":
		return -1
	case "info":
		return 1
	case "debug":
		return 2
	}
	return 0
}

func (m *Manifest) abs(p string) string {
	if filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}
