package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/relabs-tech/attitude_controller/internal/command"
	"github.com/relabs-tech/attitude_controller/internal/config"
	"github.com/relabs-tech/attitude_controller/internal/telemetry"
)

// RunWeb is the ground station: telemetry from MQTT is fanned out to
// websocket clients, and their command fragments are published back on
// the command topic.
func RunWeb() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	hub := telemetry.NewHub(commandPublisher(client, cfg.TopicCommand))

	token := client.Subscribe(cfg.TopicTelemetry, 0, func(_ mqtt.Client, msg mqtt.Message) {
		hub.Update(msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to MQTT topic %s", cfg.TopicTelemetry)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/telemetry", hub.HandleLatest)
	mux.HandleFunc("/ws", hub.HandleWS)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("web server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// commandPublisher validates fragments locally before sending them, so
// a browser gets an immediate error for text the controller would drop.
func commandPublisher(client mqtt.Client, topic string) func(string) error {
	return func(fragment string) error {
		frame, err := command.Parse(fragment)
		if err != nil {
			return err
		}
		if err := command.Check(frame); err != nil {
			return err
		}
		token := client.Publish(topic, 0, false, fragment)
		if !token.WaitTimeout(telemetry.PublishTimeout) {
			return fmt.Errorf("publish %s: timeout", topic)
		}
		return token.Error()
	}
}
