package transport

import (
	"bytes"
	"testing"
)

func TestPendingDrain(t *testing.T) {
	p := newPending(10)
	if b := p.drain(); b != nil {
		t.Fatalf("empty drain = %q", b)
	}
	p.write([]byte("A4"))
	p.write([]byte("2A"))
	if b := p.drain(); string(b) != "A42A" {
		t.Fatalf("drain = %q", b)
	}
	if b := p.drain(); b != nil {
		t.Fatalf("second drain = %q", b)
	}
}

func TestPendingDropsOldest(t *testing.T) {
	p := newPending(8)
	p.write([]byte("0123456"))
	p.write([]byte("789"))
	if b := p.drain(); string(b) != "23456789" {
		t.Fatalf("drain = %q", b)
	}
	if d := p.droppedBytes(); d != 2 {
		t.Errorf("dropped = %d, want 2", d)
	}

	p.write([]byte("ab"))
	p.write(bytes.Repeat([]byte("z"), 12))
	if b := p.drain(); string(b) != "zzzzzzzz" {
		t.Fatalf("drain = %q", b)
	}
	if d := p.droppedBytes(); d != 2+2+4 {
		t.Errorf("dropped = %d, want 8", d)
	}
}

func TestPendingDefaultLimit(t *testing.T) {
	p := newPending(0)
	if p.limit != 100 {
		t.Errorf("limit = %d, want 100", p.limit)
	}
}
