// Package buffer provides the growable scratch byte arrays the scanner,
// the style interpreter and the output writer work in.
package buffer

import (
	"errors"
	"fmt"
)

// ErrOverflow is returned when a buffer would grow past its hard limit.
var ErrOverflow = errors.New("buffer: size limit exceeded")

// Kind names one of the per-phase buffers.
type Kind int

const (
	Base    Kind = iota // current input line
	SV                  // saved copy of a scanned token
	Ex                  // string assembly during execution
	Out                 // pending output text
	NameSep             // name-splitting separators for format.name$

	numKinds
)

var kindNames = [numKinds]string{"base", "sv", "ex", "out", "name-sep"}

func (k Kind) String() string {
	if k >= 0 && k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ---------------------------------------------------------------------------
// Buffer: a growable byte array with an explicit valid length
// ---------------------------------------------------------------------------

// Buffer holds bytes [0, Len) as valid content. Growth doubles capacity by
// copying; slices returned before a growth keep pointing at the old
// storage and stay readable.
type Buffer struct {
	data  []byte
	n     int
	limit int
}

// New creates a buffer with the given initial capacity and hard limit
// (zero means unbounded).
func New(initial, limit int) *Buffer {
	if initial <= 0 {
		initial = 64
	}
	return &Buffer{data: make([]byte, initial), limit: limit}
}

// Len returns the valid length.
func (b *Buffer) Len() int { return b.n }

// Cap returns the current capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Bytes returns the valid content.
func (b *Buffer) Bytes() []byte { return b.data[:b.n:b.n] }

// Slice returns content [from, to). Bounds are checked against Len.
func (b *Buffer) Slice(from, to int) []byte {
	if from < 0 || to > b.n || from > to {
		panic(fmt.Sprintf("buffer: slice [%d:%d] out of range (len %d)", from, to, b.n))
	}
	return b.data[from:to:to]
}

// At returns the byte at i, which must be below Len.
func (b *Buffer) At(i int) byte {
	if i < 0 || i >= b.n {
		panic(fmt.Sprintf("buffer: index %d out of range (len %d)", i, b.n))
	}
	return b.data[i]
}

// Set overwrites the byte at i, which must be below Len.
func (b *Buffer) Set(i int, c byte) {
	if i < 0 || i >= b.n {
		panic(fmt.Sprintf("buffer: index %d out of range (len %d)", i, b.n))
	}
	b.data[i] = c
}

// Reset sets the length to zero without releasing storage.
func (b *Buffer) Reset() { b.n = 0 }

// Truncate shortens the buffer to n bytes.
func (b *Buffer) Truncate(n int) {
	if n < 0 || n > b.n {
		panic(fmt.Sprintf("buffer: truncate to %d out of range (len %d)", n, b.n))
	}
	b.n = n
}

// Grow ensures room for extra more bytes.
func (b *Buffer) Grow(extra int) error {
	need := b.n + extra
	if need <= len(b.data) {
		return nil
	}
	if b.limit > 0 && need > b.limit {
		return fmt.Errorf("%w: need %d, limit %d", ErrOverflow, need, b.limit)
	}
	size := len(b.data) * 2
	for size < need {
		size *= 2
	}
	if b.limit > 0 && size > b.limit {
		size = b.limit
	}
	grown := make([]byte, size)
	copy(grown, b.data[:b.n])
	b.data = grown
	return nil
}

// AppendByte adds one byte.
func (b *Buffer) AppendByte(c byte) error {
	if err := b.Grow(1); err != nil {
		return err
	}
	b.data[b.n] = c
	b.n++
	return nil
}

// Append adds p.
func (b *Buffer) Append(p []byte) error {
	if err := b.Grow(len(p)); err != nil {
		return err
	}
	copy(b.data[b.n:], p)
	b.n += len(p)
	return nil
}

// AppendString adds s.
func (b *Buffer) AppendString(s string) error {
	if err := b.Grow(len(s)); err != nil {
		return err
	}
	copy(b.data[b.n:], s)
	b.n += len(s)
	return nil
}

// SetBytes replaces the content with p.
func (b *Buffer) SetBytes(p []byte) error {
	b.n = 0
	return b.Append(p)
}

// ---------------------------------------------------------------------------
// Set: the per-run buffers
// ---------------------------------------------------------------------------

// Set owns one Buffer per Kind.
type Set struct {
	bufs [numKinds]*Buffer
}

// NewSet creates all buffers with the same initial capacity and limit.
func NewSet(initial, limit int) *Set {
	s := &Set{}
	for i := range s.bufs {
		s.bufs[i] = New(initial, limit)
	}
	return s
}

// Get returns the buffer of kind k.
func (s *Set) Get(k Kind) *Buffer {
	return s.bufs[k]
}

// Reset empties every buffer.
func (s *Set) Reset() {
	for _, b := range s.bufs {
		b.Reset()
	}
}
