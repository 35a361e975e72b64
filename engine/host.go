package engine

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
)

// Format says what kind of file the engine is asking for.
type Format int

const (
	FormatAux Format = iota
	FormatBib
	FormatBst
)

var formatNames = map[Format]string{
	FormatAux: "aux",
	FormatBib: "bib",
	FormatBst: "bst",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Host provides the files of a run. Names arrive with their extension.
type Host interface {
	Open(name string, f Format) (io.ReadCloser, error)
	Create(name string) (io.WriteCloser, error)
}

// ---------------------------------------------------------------------------
// FSHost: inputs from an fs.FS, outputs to a directory
// ---------------------------------------------------------------------------

// FSHost reads inputs from FS and writes outputs under OutDir. Absolute
// input names bypass FS. Styles and databases not found in FS are looked
// up in each of SearchDirs.
type FSHost struct {
	FS         fs.FS
	OutDir     string
	SearchDirs []string
}

// NewDirHost serves a run rooted at dir.
func NewDirHost(dir string) *FSHost {
	return &FSHost{FS: os.DirFS(dir), OutDir: dir}
}

func (h *FSHost) Open(name string, f Format) (io.ReadCloser, error) {
	if filepath.IsAbs(name) {
		return os.Open(name)
	}
	file, err := h.FS.Open(path.Clean(filepath.ToSlash(name)))
	if err == nil || f == FormatAux {
		return file, err
	}
	for _, dir := range h.SearchDirs {
		if alt, aerr := os.Open(filepath.Join(dir, name)); aerr == nil {
			return alt, nil
		}
	}
	return nil, err
}

func (h *FSHost) Create(name string) (io.WriteCloser, error) {
	if !filepath.IsAbs(name) {
		name = filepath.Join(h.OutDir, name)
	}
	return os.Create(name)
}

// ---------------------------------------------------------------------------
// MemHost: everything in memory
// ---------------------------------------------------------------------------

// MemHost serves inputs from an fs.FS (typically a fstest.MapFS) and keeps
// outputs in memory.
type MemHost struct {
	Files   fs.FS
	outputs map[string]*bytes.Buffer
}

// NewMemHost creates a host over files.
func NewMemHost(files fs.FS) *MemHost {
	return &MemHost{Files: files, outputs: make(map[string]*bytes.Buffer)}
}

func (h *MemHost) Open(name string, _ Format) (io.ReadCloser, error) {
	return h.Files.Open(path.Clean(name))
}

func (h *MemHost) Create(name string) (io.WriteCloser, error) {
	b := &bytes.Buffer{}
	h.outputs[name] = b
	return nopCloser{b}, nil
}

// Output returns what was written to name.
func (h *MemHost) Output(name string) (string, bool) {
	b, ok := h.outputs[name]
	if !ok {
		return "", false
	}
	return b.String(), true
}

// Outputs lists the names written so far.
func (h *MemHost) Outputs() []string {
	names := make([]string, 0, len(h.outputs))
	for n := range h.outputs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
