// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/attitude_controller/internal/command"
	"github.com/relabs-tech/attitude_controller/internal/config"
	"github.com/relabs-tech/attitude_controller/internal/control"
	"github.com/relabs-tech/attitude_controller/internal/pwm"
	"github.com/relabs-tech/attitude_controller/internal/sensors"
	"github.com/relabs-tech/attitude_controller/internal/telemetry"
	"github.com/relabs-tech/attitude_controller/internal/transport"
)

// RunFlightController flies the airframe: MPU9250 over SPI, commands over
// the Bluetooth UART, ESCs on periph PWM pins. Telemetry goes to MQTT
// when a broker is reachable.
func RunFlightController() error {
	log.Println("starting attitude controller (hardware)")
	cfg := config.Get()

	imu, err := sensors.OpenMPU9250(sensors.MPU9250Config{
		SPIDevice:  cfg.IMUSPIDevice,
		CSPin:      cfg.IMUCSPin,
		AccelRange: cfg.IMUAccelRange,
		SelfTest:   cfg.IMUSelfTest,
		Calibrate:  cfg.IMUCalibrate,
	})
	if err != nil {
		return fmt.Errorf("IMU: %w", err)
	}

	motors, err := pwm.OpenGPIO(pwmConfig(cfg))
	if err != nil {
		return fmt.Errorf("motors: %w", err)
	}
	defer func() {
		if err := motors.Halt(); err != nil {
			log.Printf("pwm: halt error: %v", err)
		}
	}()

	link, err := transport.OpenSerial(transport.SerialConfig{
		PortName: cfg.SerialPort,
		BaudRate: cfg.SerialBaudRate,
	})
	if err != nil {
		return fmt.Errorf("bluetooth link: %w", err)
	}
	defer link.Close()

	mailbox := &command.Mailbox{}
	loop, err := control.New(ControlParams(cfg), imu, mailbox, motors)
	if err != nil {
		return err
	}

	if client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDController); err != nil {
		log.Printf("telemetry disabled: %v", err)
	} else {
		pub := telemetry.NewPublisher(client, cfg.TopicTelemetry, cfg.TelemetryDivider, cfg.TelemetryQueue)
		loop.AddObserver(pub)
		defer client.Disconnect(250)
		defer pub.Close()
	}

	return runLoop(loop, transport.NewProducer(link, mailbox, cfg.CommandPollTicks), loopInterval(cfg), func() {
		posted, overwritten := mailbox.Stats()
		log.Printf("command link: %d fragments posted, %d overwritten, %d bytes dropped",
			posted, overwritten, link.Dropped())
	})
}

// runLoop drives the producer and the loop from two tickers of the same
// period until a signal arrives.
func runLoop(loop *control.Loop, producer *transport.Producer, interval time.Duration, report func()) error {
	ctx, cancel := signalContext()
	defer cancel()

	linkTicker := time.NewTicker(interval)
	defer linkTicker.Stop()
	go producer.Run(ctx, linkTicker.C)

	loopTicker := time.NewTicker(interval)
	defer loopTicker.Stop()

	log.Printf("control: loop running every %s", interval)
	err := loop.Run(ctx, loopTicker.C)
	log.Printf("control: shutting down, final setpoint %+v", loop.Setpoint())
	if report != nil {
		report()
	}
	return cleanExit(err)
}
