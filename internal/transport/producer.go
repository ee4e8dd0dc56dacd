package transport

import (
	"context"
	"time"
)

// DefaultPollTicks is how many sampling ticks pass between two drains of
// the link.
const DefaultPollTicks = 5

// Poster accepts fragments for the control loop.
type Poster interface {
	Post(fragment string)
}

// Producer periodically drains a Link and posts what it received.
type Producer struct {
	link      Link
	out       Poster
	pollTicks int
	tick      int
}

// NewProducer creates a producer that drains link every pollTicks ticks.
func NewProducer(link Link, out Poster, pollTicks int) *Producer {
	if pollTicks <= 0 {
		pollTicks = DefaultPollTicks
	}
	return &Producer{link: link, out: out, pollTicks: pollTicks}
}

// Tick advances the producer by one sampling tick.
func (p *Producer) Tick() {
	p.tick++
	if p.tick < p.pollTicks {
		return
	}
	p.tick = 0
	if b := p.link.Drain(); len(b) > 0 {
		p.out.Post(string(b))
	}
}

// Run calls Tick for every tick until ctx is done.
func (p *Producer) Run(ctx context.Context, ticks <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ticks:
			if !ok {
				return nil
			}
			p.Tick()
		}
	}
}
