package pool

import (
	"errors"
	"fmt"
	"testing"
)

func newTestTable(size int) *Table {
	return NewTable(NewPool(0, 0), size)
}

func TestInternIdempotent(t *testing.T) {
	tab := newTestTable(101)

	l1, existed, err := tab.InternString("knuth84", Cite)
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	if existed {
		t.Error("first Intern reported existing")
	}
	l2, existed, _ := tab.InternString("knuth84", Cite)
	if !existed {
		t.Error("second Intern should report existing")
	}
	if l1 != l2 {
		t.Errorf("Intern not idempotent: %d != %d", l1, l2)
	}
	if tab.Len() != 1 {
		t.Errorf("Len = %d, want 1", tab.Len())
	}
}

func TestInternIlksAreSeparate(t *testing.T) {
	tab := newTestTable(101)

	asCite, _, _ := tab.InternString("title", Cite)
	asFn, existed, _ := tab.InternString("title", BstFn)
	if existed {
		t.Error("same bytes under a different ilk must be a new entry")
	}
	if asCite == asFn {
		t.Error("different ilks share an identifier")
	}
	if tab.Ilk(asCite) != Cite || tab.Ilk(asFn) != BstFn {
		t.Errorf("ilks = %v, %v", tab.Ilk(asCite), tab.Ilk(asFn))
	}
	if tab.Name(asCite) != "title" || tab.Name(asFn) != "title" {
		t.Error("Text mismatch")
	}
}

func TestLookupDoesNotInsert(t *testing.T) {
	tab := newTestTable(101)
	if _, ok := tab.LookupString("nope", Macro); ok {
		t.Error("Lookup found a missing key")
	}
	if tab.Len() != 0 {
		t.Errorf("Lookup inserted: Len = %d", tab.Len())
	}
	l, _, _ := tab.InternString("jan", Macro)
	got, ok := tab.LookupString("jan", Macro)
	if !ok || got != l {
		t.Errorf("Lookup = %d, %v; want %d, true", got, ok, l)
	}
}

func TestInfoPayload(t *testing.T) {
	tab := newTestTable(101)
	l, _, _ := tab.InternString("plain", BstFn)
	tab.SetInfo(l, 42)
	if tab.Info(l) != 42 {
		t.Errorf("Info = %d, want 42", tab.Info(l))
	}
}

func TestCollisionsProbeDeterministically(t *testing.T) {
	// A tiny table forces collisions.
	build := func() []Loc {
		tab := newTestTable(7)
		var locs []Loc
		for i := 0; i < 5; i++ {
			l, _, err := tab.InternString(fmt.Sprintf("k%d", i), Text)
			if err != nil {
				t.Fatalf("Intern: %v", err)
			}
			locs = append(locs, l)
		}
		return locs
	}
	a, b := build(), build()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("slot %d differs across runs: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestTableFull(t *testing.T) {
	tab := newTestTable(3)
	tab.InternString("a", Text)
	tab.InternString("b", Text)
	_, _, err := tab.InternString("c", Text)
	if !errors.Is(err, ErrHashFull) {
		t.Fatalf("err = %v, want ErrHashFull", err)
	}
	// Existing keys still resolve on a full table.
	if _, existed, err := tab.InternString("a", Text); err != nil || !existed {
		t.Errorf("re-intern on full table = %v, %v", existed, err)
	}
}

func TestEachFiltersByIlk(t *testing.T) {
	tab := newTestTable(101)
	tab.InternString("x", BstFn)
	tab.InternString("y", BstFn)
	tab.InternString("z", Macro)

	var names []string
	tab.Each(BstFn, func(l Loc) bool {
		names = append(names, tab.Name(l))
		return true
	})
	if len(names) != 2 {
		t.Errorf("Each(BstFn) visited %v", names)
	}
}
