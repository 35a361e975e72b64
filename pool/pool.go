package pool

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrPoolFull is returned when the pool would exceed its configured byte
// or string limits.
var ErrPoolFull = errors.New("pool: string pool capacity exceeded")

// StrNum identifies a string stored in a Pool.
type StrNum int32

// NoStr is the StrNum used for "no string".
const NoStr StrNum = -1

// ---------------------------------------------------------------------------
// Pool: append-only string storage
// ---------------------------------------------------------------------------

// Pool stores every string of a run back to back in one byte slice.
// Strings are never moved or modified once added.
type Pool struct {
	data       []byte
	starts     []int // starts[i] is the offset of string i; one sentinel past the end
	maxBytes   int
	maxStrings int
}

// Mark records the pool size so temporary strings can be released later.
type Mark struct {
	strs  int
	bytes int
}

// NewPool creates an empty pool with the given limits. A limit of zero
// means unbounded.
func NewPool(maxBytes, maxStrings int) *Pool {
	return &Pool{
		data:       make([]byte, 0, 4096),
		starts:     []int{0},
		maxBytes:   maxBytes,
		maxStrings: maxStrings,
	}
}

// Add appends a copy of b and returns its number.
func (p *Pool) Add(b []byte) (StrNum, error) {
	if p.maxBytes > 0 && len(p.data)+len(b) > p.maxBytes {
		return NoStr, fmt.Errorf("%w: %d bytes", ErrPoolFull, p.maxBytes)
	}
	if p.maxStrings > 0 && p.Len() >= p.maxStrings {
		return NoStr, fmt.Errorf("%w: %d strings", ErrPoolFull, p.maxStrings)
	}
	p.data = append(p.data, b...)
	p.starts = append(p.starts, len(p.data))
	return StrNum(len(p.starts) - 2), nil
}

// AddString is Add for a Go string.
func (p *Pool) AddString(s string) (StrNum, error) {
	return p.Add([]byte(s))
}

// Bytes returns the content of s. The result aliases pool storage and must
// not be modified. An invalid StrNum is an internal defect and panics.
func (p *Pool) Bytes(s StrNum) []byte {
	if !p.Valid(s) {
		panic(fmt.Sprintf("pool: invalid string number %d (have %d)", s, p.Len()))
	}
	return p.data[p.starts[s]:p.starts[s+1]:p.starts[s+1]]
}

// String returns the content of s as a Go string.
func (p *Pool) String(s StrNum) string {
	return string(p.Bytes(s))
}

// Valid reports whether s names a string in the pool.
func (p *Pool) Valid(s StrNum) bool {
	return s >= 0 && int(s) < p.Len()
}

// Equal reports whether string s has exactly the bytes b.
func (p *Pool) Equal(s StrNum, b []byte) bool {
	return bytes.Equal(p.Bytes(s), b)
}

// Len returns the number of strings in the pool.
func (p *Pool) Len() int {
	return len(p.starts) - 1
}

// Size returns the number of bytes stored.
func (p *Pool) Size() int {
	return len(p.data)
}

// Mark returns the current high-water mark.
func (p *Pool) Mark() Mark {
	return Mark{strs: p.Len(), bytes: len(p.data)}
}

// Release drops every string added after m was taken. Callers must hold no
// StrNum created after the mark.
func (p *Pool) Release(m Mark) {
	if m.strs > p.Len() {
		return
	}
	p.starts = p.starts[:m.strs+1]
	p.data = p.data[:m.bytes]
}

// Reset empties the pool, keeping its limits.
func (p *Pool) Reset() {
	p.data = p.data[:0]
	p.starts = p.starts[:1]
}
