// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pwm

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// Pin is the part of gpio.PinOut the sink needs.
type Pin interface {
	Name() string
	PWM(duty gpio.Duty, f physic.Frequency) error
}

// GPIOConfig describes the four ESC outputs.
type GPIOConfig struct {
	Pins      [4]string
	Frequency physic.Frequency
	Period    int // duty-cycle ticks per PWM period
}

// GPIOSink drives the ESCs through periph.io PWM-capable pins. Duty
// values are in timer ticks out of Period.
type GPIOSink struct {
	pins   []Pin
	freq   physic.Frequency
	period int

	last   []int
	errors uint64
}

// OpenGPIO initializes the host and resolves the four pins by name.
func OpenGPIO(cfg GPIOConfig) (*GPIOSink, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	pins := make([]Pin, len(cfg.Pins))
	for i, name := range cfg.Pins {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("motor %d: PWM pin %q not found", i+1, name)
		}
		pins[i] = p
	}
	s, err := NewGPIOSink(pins, cfg.Frequency, cfg.Period)
	if err != nil {
		return nil, err
	}
	log.Printf("pwm: motors on %v at %s, period %d ticks", cfg.Pins, cfg.Frequency, cfg.Period)
	return s, nil
}

// NewGPIOSink wraps already-resolved pins.
func NewGPIOSink(pins []Pin, freq physic.Frequency, period int) (*GPIOSink, error) {
	if period <= 0 {
		return nil, fmt.Errorf("pwm: period must be positive, got %d", period)
	}
	last := make([]int, len(pins))
	for i := range last {
		last[i] = -1
	}
	return &GPIOSink{pins: pins, freq: freq, period: period, last: last}, nil
}

// SetDuty implements control.DutySink. Writing the value already on the
// pin is skipped.
func (s *GPIOSink) SetDuty(motor, duty int) {
	if motor < 0 || motor >= len(s.pins) {
		return
	}
	if duty == s.last[motor] {
		return
	}
	if err := s.pins[motor].PWM(toDuty(duty, s.period), s.freq); err != nil {
		s.errors++
		if s.errors == 1 || s.errors%1000 == 0 {
			log.Printf("pwm: motor %d (%s) write error #%d: %v", motor+1, s.pins[motor].Name(), s.errors, err)
		}
		return
	}
	s.last[motor] = duty
}

// Halt sets every output to 0% duty.
func (s *GPIOSink) Halt() error {
	var first error
	for i, p := range s.pins {
		if err := p.PWM(0, s.freq); err != nil && first == nil {
			first = fmt.Errorf("motor %d: %w", i+1, err)
		}
		s.last[i] = 0
	}
	return first
}

// toDuty converts ticks out of period to a gpio.Duty, saturating.
func toDuty(ticks, period int) gpio.Duty {
	if ticks <= 0 {
		return 0
	}
	if ticks >= period {
		return gpio.DutyMax
	}
	return gpio.Duty(int64(ticks) * int64(gpio.DutyMax) / int64(period))
}
