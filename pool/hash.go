package pool

import (
	"errors"
	"fmt"
)

// ErrHashFull is returned when the hash table has no free slot left.
var ErrHashFull = errors.New("pool: hash table capacity exceeded")

// Loc is a slot in the hash table. Interned names are identified by Loc.
type Loc int32

// NoLoc is the Loc used for "not found".
const NoLoc Loc = -1

// DefaultHashSize is the default table capacity. It is prime so the
// modular hash spreads well.
const DefaultHashSize = 35307

type slot struct {
	used bool
	ilk  Ilk
	str  StrNum
	info int32
}

// ---------------------------------------------------------------------------
// Table: ilk-tagged interning over a Pool
// ---------------------------------------------------------------------------

// Table maps (bytes, ilk) pairs to slots. Capacity is fixed at construction
// and collisions are resolved by linear probing, so lookups are
// deterministic for identical input.
type Table struct {
	pool  *Pool
	slots []slot
	count int
}

// NewTable creates a table with size slots over p.
func NewTable(p *Pool, size int) *Table {
	if size <= 0 {
		size = DefaultHashSize
	}
	return &Table{
		pool:  p,
		slots: make([]slot, size),
	}
}

// Pool returns the backing string pool.
func (t *Table) Pool() *Pool {
	return t.pool
}

func (t *Table) hash(b []byte) int {
	h := 0
	for _, c := range b {
		h = (h + h + int(c)) % len(t.slots)
	}
	return h
}

// probe returns the slot holding (b, ilk), or the first empty slot on its
// probe sequence when absent. It returns -1 if the table is full and the
// key is absent.
func (t *Table) probe(b []byte, ilk Ilk) (int, bool) {
	n := len(t.slots)
	h := t.hash(b)
	for i := 0; i < n; i++ {
		s := &t.slots[h]
		if !s.used {
			return h, false
		}
		if s.ilk == ilk && t.pool.Equal(s.str, b) {
			return h, true
		}
		h++
		if h == n {
			h = 0
		}
	}
	return -1, false
}

// Lookup finds (b, ilk) without inserting.
func (t *Table) Lookup(b []byte, ilk Ilk) (Loc, bool) {
	h, ok := t.probe(b, ilk)
	if !ok {
		return NoLoc, false
	}
	return Loc(h), true
}

// LookupString is Lookup for a Go string.
func (t *Table) LookupString(s string, ilk Ilk) (Loc, bool) {
	return t.Lookup([]byte(s), ilk)
}

// Intern returns the slot for (b, ilk), inserting it when absent. The
// boolean reports whether the pair already existed.
func (t *Table) Intern(b []byte, ilk Ilk) (Loc, bool, error) {
	h, ok := t.probe(b, ilk)
	if ok {
		return Loc(h), true, nil
	}
	if h < 0 || t.count+1 >= len(t.slots) {
		return NoLoc, false, fmt.Errorf("%w: %d slots", ErrHashFull, len(t.slots))
	}

	str, err := t.pool.Add(b)
	if err != nil {
		return NoLoc, false, err
	}

	t.slots[h] = slot{used: true, ilk: ilk, str: str}
	t.count++
	return Loc(h), false, nil
}

// InternString is Intern for a Go string.
func (t *Table) InternString(s string, ilk Ilk) (Loc, bool, error) {
	return t.Intern([]byte(s), ilk)
}

func (t *Table) at(l Loc) *slot {
	if l < 0 || int(l) >= len(t.slots) || !t.slots[l].used {
		panic(fmt.Sprintf("pool: invalid hash location %d", l))
	}
	return &t.slots[l]
}

// Str returns the pool string interned at l.
func (t *Table) Str(l Loc) StrNum {
	return t.at(l).str
}

// Text returns the bytes interned at l.
func (t *Table) Text(l Loc) []byte {
	return t.pool.Bytes(t.at(l).str)
}

// Name returns the text interned at l as a string.
func (t *Table) Name(l Loc) string {
	return string(t.Text(l))
}

// Ilk returns the namespace of l.
func (t *Table) Ilk(l Loc) Ilk {
	return t.at(l).ilk
}

// Info returns the ilk-specific payload stored at l.
func (t *Table) Info(l Loc) int32 {
	return t.at(l).info
}

// SetInfo stores an ilk-specific payload at l.
func (t *Table) SetInfo(l Loc, v int32) {
	t.at(l).info = v
}

// Len returns the number of occupied slots.
func (t *Table) Len() int {
	return t.count
}

// Cap returns the fixed number of slots.
func (t *Table) Cap() int {
	return len(t.slots)
}

// Each calls fn for every occupied slot of the given ilk in slot order.
// Iteration stops when fn returns false.
func (t *Table) Each(ilk Ilk, fn func(Loc) bool) {
	for i := range t.slots {
		if t.slots[i].used && t.slots[i].ilk == ilk {
			if !fn(Loc(i)) {
				return
			}
		}
	}
}

// Reset clears every slot. The pool is not touched.
func (t *Table) Reset() {
	clear(t.slots)
	t.count = 0
}
