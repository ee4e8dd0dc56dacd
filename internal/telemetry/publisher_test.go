package telemetry

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/relabs-tech/attitude_controller/internal/control"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type fakeClient struct {
	mqtt.Client

	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	err      error

	entered chan struct{}
	gate    chan struct{}
}

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	if c.entered != nil {
		c.entered <- struct{}{}
	}
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	c.payloads = append(c.payloads, payload.([]byte))
	return doneToken{err: c.err}
}

func (c *fakeClient) seqs(t *testing.T) []uint64 {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []uint64
	for _, p := range c.payloads {
		var cy control.Cycle
		if err := json.Unmarshal(p, &cy); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		out = append(out, cy.Seq)
	}
	return out
}

func TestPublisherDivider(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, "quad/telemetry", 2, 8)
	for i := uint64(1); i <= 5; i++ {
		p.Observe(control.Cycle{Seq: i})
	}
	p.Close()

	got := client.seqs(t)
	want := []uint64{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("published %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("published %v, want %v", got, want)
		}
	}
	if client.topics[0] != "quad/telemetry" {
		t.Errorf("topic = %q", client.topics[0])
	}
	if sent, dropped := p.Stats(); sent != 3 || dropped != 0 {
		t.Errorf("stats = %d sent, %d dropped", sent, dropped)
	}
}

func TestPublisherDropsWhenBusy(t *testing.T) {
	client := &fakeClient{entered: make(chan struct{}), gate: make(chan struct{})}
	p := NewPublisher(client, "t", 1, 1)

	p.Observe(control.Cycle{Seq: 1})
	<-client.entered // goroutine is now stuck publishing 1

	p.Observe(control.Cycle{Seq: 2}) // queued
	p.Observe(control.Cycle{Seq: 3}) // dropped
	p.Observe(control.Cycle{Seq: 4}) // dropped

	close(client.gate)
	go func() {
		for range client.entered {
		}
	}()
	p.Close()
	close(client.entered)

	if sent, dropped := p.Stats(); sent != 2 || dropped != 2 {
		t.Errorf("stats = %d sent, %d dropped; want 2, 2", sent, dropped)
	}
}

func TestPublisherCountsErrors(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	p := NewPublisher(client, "t", 0, 4)
	p.Observe(control.Cycle{Seq: 1})
	p.Close()
	if sent, _ := p.Stats(); sent != 0 {
		t.Errorf("sent = %d, want 0", sent)
	}
}
