package transport

import (
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTLink receives command text published on an MQTT topic, for
// ground stations that relay the pilot's commands over the network.
type MQTTLink struct {
	client  mqtt.Client
	topic   string
	pending *pending
}

// SubscribeMQTT subscribes client to topic. The client must already be
// connected and stays owned by the caller.
func SubscribeMQTT(client mqtt.Client, topic string) (*MQTTLink, error) {
	l := &MQTTLink{client: client, topic: topic, pending: newPending(0)}
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		l.pending.write(msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	log.Printf("transport: subscribed to %s", topic)
	return l, nil
}

// Drain implements Link.
func (l *MQTTLink) Drain() []byte { return l.pending.drain() }

// Dropped returns how many bytes were discarded on overflow.
func (l *MQTTLink) Dropped() uint64 { return l.pending.droppedBytes() }

// Close unsubscribes from the command topic.
func (l *MQTTLink) Close() error {
	token := l.client.Unsubscribe(l.topic)
	token.Wait()
	return token.Error()
}
