// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry moves control-cycle snapshots off the flight loop:
// to an MQTT topic, to websocket clients, and to a console line format.
package telemetry

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/relabs-tech/attitude_controller/internal/control"
)

// PublishTimeout bounds how long the publisher goroutine waits on the broker.
const PublishTimeout = 2 * time.Second

// Publisher forwards every Nth cycle to an MQTT topic. Observe never
// blocks; cycles that arrive while the queue is full are dropped.
type Publisher struct {
	client mqtt.Client
	topic  string
	every  uint64

	seen    uint64
	queue   chan control.Cycle
	dropped atomic.Uint64
	sent    atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
}

// NewPublisher starts the publishing goroutine. every <= 1 publishes
// every cycle.
func NewPublisher(client mqtt.Client, topic string, every int, queue int) *Publisher {
	if every < 1 {
		every = 1
	}
	if queue < 1 {
		queue = 1
	}
	p := &Publisher{
		client: client,
		topic:  topic,
		every:  uint64(every),
		queue:  make(chan control.Cycle, queue),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Observe implements control.Observer.
func (p *Publisher) Observe(c control.Cycle) {
	p.seen++
	if (p.seen-1)%p.every != 0 {
		return
	}
	select {
	case p.queue <- c:
	default:
		p.dropped.Add(1)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for c := range p.queue {
		payload, err := json.Marshal(c)
		if err != nil {
			log.Printf("telemetry: json marshal error (cycle %d): %v", c.Seq, err)
			continue
		}
		token := p.client.Publish(p.topic, 0, false, payload)
		if !token.WaitTimeout(PublishTimeout) {
			log.Printf("telemetry: MQTT publish timeout (%s)", p.topic)
			continue
		}
		if err := token.Error(); err != nil {
			log.Printf("telemetry: MQTT publish error (%s): %v", p.topic, err)
			continue
		}
		p.sent.Add(1)
	}
}

// Stats returns how many cycles were published and dropped.
func (p *Publisher) Stats() (sent, dropped uint64) {
	return p.sent.Load(), p.dropped.Load()
}

// Close drains the queue and stops the goroutine. Observe must not be
// called afterwards.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() { close(p.queue) })
	<-p.done
}
