package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/bibtex/engine"
)

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[run]
min-crossrefs = 3
search-path = ["styles", "/usr/share/bib"]

[limits]
stack-size = 500
entry-str-max = 1000

[output]
max-print-line = 100
dir = "out"

[cache]
enabled = true

[log]
level = "debug"
file = "run.blg"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Run.MinCrossrefs != 3 {
		t.Errorf("min-crossrefs = %d, want 3", m.Run.MinCrossrefs)
	}
	dirs := m.SearchDirs()
	if len(dirs) != 2 || dirs[0] != filepath.Join(m.Dir, "styles") || dirs[1] != "/usr/share/bib" {
		t.Errorf("search dirs = %v", dirs)
	}
	if m.OutputDir() != filepath.Join(m.Dir, "out") {
		t.Errorf("output dir = %q", m.OutputDir())
	}
	if m.CachePath() != filepath.Join(m.Dir, DefaultCachePath) {
		t.Errorf("cache path = %q", m.CachePath())
	}
	if m.Verbosity() != 2 {
		t.Errorf("verbosity = %d, want 2", m.Verbosity())
	}

	cfg := engine.DefaultConfig()
	m.Apply(&cfg)
	if cfg.MinCrossrefs != 3 || cfg.StackSize != 500 || cfg.EntryStrMax != 1000 || cfg.MaxPrintLine != 100 {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.HashSize != engine.DefaultConfig().HashSize {
		t.Errorf("hash size changed to %d", cfg.HashSize)
	}
}

func TestEmptyManifest(t *testing.T) {
	m, err := Parse("")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if m.CachePath() != "" || m.OutputDir() != "" || m.Verbosity() != 0 {
		t.Errorf("defaults = %+v", m)
	}
}

func TestManifestValidation(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"zero threshold", "[run]\nmin-crossrefs = -1\n", "min-crossrefs"},
		{"narrow lines", "[output]\nmax-print-line = 2\n", "max-print-line"},
		{"bad level", "[log]\nlevel = \"loud\"\n", "level"},
		{"unknown key", "[run]\nstyle = \"plain\"\n", "unknown keys: run.style"},
		{"bad toml", "[run\n", "parse error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "paper", "chapters")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("[run]\nmin-crossrefs = 4\n"), 0644); err != nil {
		t.Fatal(err)
	}
	m, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil || m.Run.MinCrossrefs != 4 {
		t.Fatalf("manifest = %+v", m)
	}
	abs, _ := filepath.Abs(root)
	if m.Dir != abs {
		t.Errorf("dir = %q, want %q", m.Dir, abs)
	}
}
