package app

import (
	"fmt"
	"log"

	"github.com/relabs-tech/attitude_controller/internal/attitude"
	"github.com/relabs-tech/attitude_controller/internal/command"
	"github.com/relabs-tech/attitude_controller/internal/config"
	"github.com/relabs-tech/attitude_controller/internal/control"
	"github.com/relabs-tech/attitude_controller/internal/pwm"
	"github.com/relabs-tech/attitude_controller/internal/telemetry"
	"github.com/relabs-tech/attitude_controller/internal/transport"
)

// RunSimulator runs the same loop against a synthetic accelerometer.
// Commands arrive on the MQTT command topic; duties are only logged.
func RunSimulator(quiet bool) error {
	log.Println("starting attitude controller (simulator)")
	cfg := config.Get()

	traj, err := trajectory(cfg.SimTrajectory)
	if err != nil {
		return err
	}
	params := ControlParams(cfg)
	src := attitude.NewSyntheticSource(params.Estimator, traj)

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDController)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	link, err := transport.SubscribeMQTT(client, cfg.TopicCommand)
	if err != nil {
		return err
	}
	defer link.Close()
	log.Printf("simulator: commands from %s, telemetry to %s", cfg.TopicCommand, cfg.TopicTelemetry)

	mailbox := &command.Mailbox{}
	sink := pwm.NewLogSink(quiet)
	loop, err := control.New(params, src, mailbox, sink)
	if err != nil {
		return err
	}

	pub := telemetry.NewPublisher(client, cfg.TopicTelemetry, cfg.TelemetryDivider, cfg.TelemetryQueue)
	defer pub.Close()
	loop.AddObserver(pub)

	return runLoop(loop, transport.NewProducer(link, mailbox, cfg.CommandPollTicks), loopInterval(cfg), func() {
		sent, dropped := pub.Stats()
		log.Printf("simulator: final duties %v, telemetry %d sent / %d dropped", sink.Duties(), sent, dropped)
	})
}

func trajectory(name string) (attitude.Trajectory, error) {
	switch name {
	case "level":
		return attitude.Level, nil
	case "swing":
		return attitude.Swing, nil
	}
	return nil, fmt.Errorf("unknown trajectory %q", name)
}
