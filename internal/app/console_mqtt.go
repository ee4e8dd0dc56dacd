package app

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/attitude_controller/internal/config"
	"github.com/relabs-tech/attitude_controller/internal/control"
	"github.com/relabs-tech/attitude_controller/internal/telemetry"
)

func RunConsoleMQTT() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	token := client.Subscribe(cfg.TopicTelemetry, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var c control.Cycle
		if err := json.Unmarshal(msg.Payload(), &c); err != nil {
			log.Printf("console: telemetry unmarshal error: %v", err)
			return
		}
		fmt.Println(telemetry.FormatCycle(c))
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicTelemetry)

	// Wait for Ctrl+C
	ctx, cancel := signalContext()
	defer cancel()
	<-ctx.Done()

	log.Println("console: shutting down")
	return nil
}
