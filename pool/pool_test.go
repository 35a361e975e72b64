package pool

import (
	"errors"
	"testing"
)

func TestPoolAddAndBytes(t *testing.T) {
	p := NewPool(0, 0)
	a, err := p.AddString("alpha")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	b, _ := p.AddString("")
	c, _ := p.AddString("gamma")

	if got := p.String(a); got != "alpha" {
		t.Errorf("String(a) = %q, want %q", got, "alpha")
	}
	if got := p.String(b); got != "" {
		t.Errorf("String(b) = %q, want empty", got)
	}
	if got := p.String(c); got != "gamma" {
		t.Errorf("String(c) = %q, want %q", got, "gamma")
	}
	if p.Len() != 3 {
		t.Errorf("Len = %d, want 3", p.Len())
	}
}

func TestPoolBytesNotExtendable(t *testing.T) {
	p := NewPool(0, 0)
	a, _ := p.AddString("ab")
	p.AddString("cd")

	got := append(p.Bytes(a), 'x')
	if string(got) != "abx" {
		t.Fatalf("append result = %q", got)
	}
	if p.String(1) != "cd" {
		t.Errorf("appending to a returned slice clobbered the next string: %q", p.String(1))
	}
}

func TestPoolLimits(t *testing.T) {
	p := NewPool(4, 0)
	if _, err := p.AddString("abcd"); err != nil {
		t.Fatalf("Add within limit: %v", err)
	}
	if _, err := p.AddString("e"); !errors.Is(err, ErrPoolFull) {
		t.Errorf("Add over byte limit err = %v, want ErrPoolFull", err)
	}

	p = NewPool(0, 1)
	p.AddString("a")
	if _, err := p.AddString("b"); !errors.Is(err, ErrPoolFull) {
		t.Errorf("Add over string limit err = %v, want ErrPoolFull", err)
	}
}

func TestPoolMarkRelease(t *testing.T) {
	p := NewPool(0, 0)
	keep, _ := p.AddString("keep")
	m := p.Mark()
	p.AddString("temp1")
	p.AddString("temp2")
	p.Release(m)

	if p.Len() != 1 {
		t.Fatalf("Len after Release = %d, want 1", p.Len())
	}
	if p.String(keep) != "keep" {
		t.Errorf("kept string = %q", p.String(keep))
	}
	n, _ := p.AddString("next")
	if n != 1 || p.String(n) != "next" {
		t.Errorf("string after release = %d %q", n, p.String(n))
	}
}

func TestPoolInvalidPanics(t *testing.T) {
	p := NewPool(0, 0)
	defer func() {
		if recover() == nil {
			t.Error("Bytes on invalid StrNum should panic")
		}
	}()
	p.Bytes(3)
}
