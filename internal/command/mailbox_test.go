package command

import (
	"sync"
	"testing"
)

func TestMailboxPollEmpty(t *testing.T) {
	var m Mailbox
	if frag, ok := m.Poll(); ok || frag != "" {
		t.Fatalf("Poll on empty mailbox = %q, %v", frag, ok)
	}
}

func TestMailboxLatestWins(t *testing.T) {
	var m Mailbox
	m.Post("A10A")
	m.Post("A20A")
	m.Post("")

	frag, ok := m.Poll()
	if !ok || frag != "A20A" {
		t.Fatalf("Poll = %q, %v; want A20A", frag, ok)
	}
	if _, ok := m.Poll(); ok {
		t.Fatal("fragment delivered twice")
	}
	posted, overwritten := m.Stats()
	if posted != 2 || overwritten != 1 {
		t.Errorf("stats = %d/%d, want 2/1", posted, overwritten)
	}
}

func TestMailboxConcurrentHandoff(t *testing.T) {
	var m Mailbox
	const n = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			m.Post("A42A")
		}
	}()

	received := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		if frag, ok := m.Poll(); ok {
			if frag != "A42A" {
				t.Fatalf("torn fragment %q", frag)
			}
			received++
		}
		select {
		case <-done:
			if _, ok := m.Poll(); ok {
				received++
			}
			posted, overwritten := m.Stats()
			if posted != n {
				t.Fatalf("posted = %d, want %d", posted, n)
			}
			if uint64(received)+overwritten != n {
				t.Fatalf("received %d + overwritten %d != %d", received, overwritten, n)
			}
			return
		default:
		}
	}
}
