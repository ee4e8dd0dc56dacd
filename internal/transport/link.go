// Package transport moves command bytes from the radio link into the
// control loop's mailbox.
package transport

import (
	"sync"

	"github.com/relabs-tech/attitude_controller/internal/command"
)

// Link is a byte source for command text. Drain never blocks; it returns
// whatever arrived since the previous call.
type Link interface {
	Drain() []byte
	Close() error
}

// pending is a bounded receive buffer shared by a link's receive side
// and its Drain. When full, the oldest bytes are dropped.
type pending struct {
	mu      sync.Mutex
	buf     []byte
	limit   int
	dropped uint64
}

func newPending(limit int) *pending {
	if limit <= 0 {
		limit = command.MaxFragmentLen
	}
	return &pending{buf: make([]byte, 0, limit), limit: limit}
}

func (p *pending) write(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(b) >= p.limit {
		p.dropped += uint64(len(p.buf) + len(b) - p.limit)
		p.buf = append(p.buf[:0], b[len(b)-p.limit:]...)
		return
	}
	if over := len(p.buf) + len(b) - p.limit; over > 0 {
		p.dropped += uint64(over)
		p.buf = append(p.buf[:0], p.buf[over:]...)
	}
	p.buf = append(p.buf, b...)
}

func (p *pending) drain() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.buf) == 0 {
		return nil
	}
	out := make([]byte, len(p.buf))
	copy(out, p.buf)
	p.buf = p.buf[:0]
	return out
}

func (p *pending) droppedBytes() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}
