package transport

import (
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type doneToken struct{ err error }

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *doneToken) Error() error { return t.err }

type fakeMessage struct {
	mqtt.Message
	payload []byte
}

func (m fakeMessage) Payload() []byte { return m.payload }

type fakeClient struct {
	mqtt.Client
	subErr   error
	handlers map[string]mqtt.MessageHandler
	unsubbed []string
}

func (c *fakeClient) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	if c.subErr != nil {
		return &doneToken{err: c.subErr}
	}
	if c.handlers == nil {
		c.handlers = map[string]mqtt.MessageHandler{}
	}
	c.handlers[topic] = cb
	return &doneToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token {
	c.unsubbed = append(c.unsubbed, topics...)
	return &doneToken{}
}

func (c *fakeClient) deliver(topic, payload string) {
	c.handlers[topic](c, fakeMessage{payload: []byte(payload)})
}

func TestMQTTLink(t *testing.T) {
	c := &fakeClient{}
	l, err := SubscribeMQTT(c, "fc/command")
	if err != nil {
		t.Fatalf("SubscribeMQTT: %v", err)
	}
	c.deliver("fc/command", "A1")
	c.deliver("fc/command", "0A")
	if b := l.Drain(); string(b) != "A10A" {
		t.Fatalf("drain = %q", b)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(c.unsubbed) != 1 || c.unsubbed[0] != "fc/command" {
		t.Errorf("unsubscribed = %v", c.unsubbed)
	}
}

func TestMQTTLinkSubscribeError(t *testing.T) {
	c := &fakeClient{subErr: errors.New("not authorized")}
	if _, err := SubscribeMQTT(c, "fc/command"); err == nil {
		t.Fatal("expected error")
	}
}
