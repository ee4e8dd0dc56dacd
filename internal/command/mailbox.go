package command

import "sync/atomic"

// Mailbox hands command fragments from one producer goroutine to the
// control loop. Post replaces any fragment not yet polled; Poll takes
// the current fragment. Both are lock-free and never block.
type Mailbox struct {
	slot        atomic.Pointer[string]
	posted      atomic.Uint64
	overwritten atomic.Uint64
}

// Post publishes fragment. Empty fragments are ignored.
func (m *Mailbox) Post(fragment string) {
	if fragment == "" {
		return
	}
	m.posted.Add(1)
	if old := m.slot.Swap(&fragment); old != nil {
		m.overwritten.Add(1)
	}
}

// Poll returns the latest fragment posted since the previous Poll.
func (m *Mailbox) Poll() (string, bool) {
	p := m.slot.Swap(nil)
	if p == nil {
		return "", false
	}
	return *p, true
}

// Stats returns how many fragments were posted and how many were
// replaced before the consumer saw them.
func (m *Mailbox) Stats() (posted, overwritten uint64) {
	return m.posted.Load(), m.overwritten.Load()
}
