package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/relabs-tech/attitude_controller/internal/attitude"
	"github.com/relabs-tech/attitude_controller/internal/config"
	"github.com/relabs-tech/attitude_controller/internal/control"
	"github.com/relabs-tech/attitude_controller/internal/mixer"
	"github.com/relabs-tech/attitude_controller/internal/pid"
	"github.com/relabs-tech/attitude_controller/internal/pwm"
	"periph.io/x/conn/v3/physic"
)

// ControlParams maps the configuration onto the loop parameters.
func ControlParams(cfg *config.Config) control.Params {
	gains := pid.Config{
		Kp:        cfg.PIDKp,
		Ki:        cfg.PIDKi,
		Kd:        cfg.PIDKd,
		ErrSumMin: cfg.PIDErrSumMin,
		ErrSumMax: cfg.PIDErrSumMax,
	}
	return control.Params{
		Estimator: attitude.Config{
			Alpha:       cfg.FilterAlpha,
			PitchOffset: cfg.PitchOffset,
			RollOffset:  cfg.RollOffset,
		},
		Pitch: gains,
		Roll:  gains,
		Mixer: mixer.Config{
			IdleDuty:            cfg.IdleDuty,
			ThrottleSensitivity: cfg.ThrottleSensitivity,
			PitchSensitivity:    cfg.PitchSensitivity,
			RollSensitivity:     cfg.RollSensitivity,
			ArmThreshold:        cfg.ArmThreshold,
			CalibrationMode:     cfg.CalibrationMode,
			MaxDuty:             cfg.PWMPeriod,
			MinTiltCos:          cfg.MinTiltCos,
		},
		ThrottleBoost: cfg.ThrottleBoost,
		FaultLogEvery: control.DefaultParams().FaultLogEvery,
	}
}

func pwmConfig(cfg *config.Config) pwm.GPIOConfig {
	return pwm.GPIOConfig{
		Pins:      cfg.PWMPins,
		Frequency: physic.Frequency(cfg.PWMFrequencyHz) * physic.Hertz,
		Period:    cfg.PWMPeriod,
	}
}

func loopInterval(cfg *config.Config) time.Duration {
	return time.Duration(cfg.LoopInterval) * time.Millisecond
}

func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect (%s): %w", broker, token.Error())
	}
	log.Printf("connected to MQTT broker at %s as %s", broker, clientID)
	return client, nil
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// cleanExit treats a cancelled context as a normal shutdown.
func cleanExit(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
