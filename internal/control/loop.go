// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package control runs the attitude stabilization cycle: command intake,
// attitude estimation, pitch/roll PID and motor mixing.
package control

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/attitude_controller/internal/accel"
	"github.com/relabs-tech/attitude_controller/internal/attitude"
	"github.com/relabs-tech/attitude_controller/internal/command"
	"github.com/relabs-tech/attitude_controller/internal/mixer"
	"github.com/relabs-tech/attitude_controller/internal/pid"
)

// FragmentSource returns the latest command text received since the
// previous call, without blocking.
type FragmentSource interface {
	Poll() (string, bool)
}

// DutySink receives the motor outputs. SetDuty is fire-and-forget.
type DutySink interface {
	SetDuty(motor int, duty int)
}

// Observer is notified after every cycle. It must not block.
type Observer interface {
	Observe(Cycle)
}

// Params configures a Loop.
type Params struct {
	Estimator attitude.Config
	Pitch     pid.Config
	Roll      pid.Config
	Mixer     mixer.Config

	// ThrottleBoost is added to the base duty after tilt compensation.
	ThrottleBoost float64

	// FaultLogEvery rate-limits fault logging: the first fault of a kind
	// and then every n-th is logged. Zero disables fault logging.
	FaultLogEvery uint64
}

// DefaultParams returns the airframe defaults.
func DefaultParams() Params {
	return Params{
		Estimator:     attitude.DefaultConfig(),
		Pitch:         pid.DefaultConfig(),
		Roll:          pid.DefaultConfig(),
		Mixer:         mixer.DefaultConfig(),
		FaultLogEvery: 1000,
	}
}

// Loop owns every piece of controller state for one airframe. Step must
// only be called from a single goroutine.
type Loop struct {
	params Params

	reader    accel.Reader
	fragments FragmentSource
	sink      DutySink
	observers []Observer

	estimator *attitude.Estimator
	pitch     *pid.Controller
	roll      *pid.Controller
	mixer     *mixer.Mixer

	setpoint   command.Setpoint
	lastSample accel.Sample
	seq        uint64
	faults     faultCounters
}

type faultCounters struct {
	parse, tooLong, sensor, tilt, clamp uint64
}

// New builds a loop around the given collaborators.
func New(p Params, reader accel.Reader, fragments FragmentSource, sink DutySink) (*Loop, error) {
	if reader == nil || fragments == nil || sink == nil {
		return nil, errors.New("control: reader, fragment source and duty sink are required")
	}
	est, err := attitude.NewEstimator(p.Estimator)
	if err != nil {
		return nil, fmt.Errorf("control: estimator: %w", err)
	}
	pitchCtl, err := pid.New(p.Pitch)
	if err != nil {
		return nil, fmt.Errorf("control: pitch controller: %w", err)
	}
	rollCtl, err := pid.New(p.Roll)
	if err != nil {
		return nil, fmt.Errorf("control: roll controller: %w", err)
	}
	return &Loop{
		params:    p,
		reader:    reader,
		fragments: fragments,
		sink:      sink,
		estimator: est,
		pitch:     pitchCtl,
		roll:      rollCtl,
		mixer:     mixer.New(p.Mixer),
	}, nil
}

// AddObserver registers o for cycle notifications. Call before Run.
func (l *Loop) AddObserver(o Observer) {
	l.observers = append(l.observers, o)
}

// Setpoint returns the committed setpoint.
func (l *Loop) Setpoint() command.Setpoint { return l.setpoint }

// Step runs one full cycle and returns its snapshot.
func (l *Loop) Step() Cycle {
	l.seq++
	c := Cycle{Seq: l.seq, Time: time.Now()}

	// Phase 1: commands.
	if frag, ok := l.fragments.Poll(); ok && frag != "" {
		c.Fragment = frag
		frame, err := command.Parse(frag)
		if err != nil {
			if errors.Is(err, command.ErrFrameTooLong) {
				c.Faults.FrameTooLong = true
				l.logFault("frame too long", &l.faults.tooLong, err)
			} else {
				c.Faults.Parse = true
				l.logFault("parse", &l.faults.parse, err)
			}
		}
		c.Committed = l.setpoint.Apply(frame)
	}
	c.Setpoint = l.setpoint

	// Phase 2: attitude and motors.
	sample, err := l.reader.ReadAxes()
	if err != nil {
		c.Faults.Sensor = true
		l.logFault("sensor", &l.faults.sensor, err)
		sample = l.lastSample
	} else {
		l.lastSample = sample
	}
	c.Sample = sample
	c.Attitude = l.estimator.Estimate(sample)

	c.PitchPID = l.pitch.Update(float64(l.setpoint.Pitch), c.Attitude.Pitch)
	c.RollPID = l.roll.Update(float64(l.setpoint.Roll), c.Attitude.Roll)

	boost, ok := mixer.CompensateTilt(l.params.ThrottleBoost, c.Attitude.Pitch, c.Attitude.Roll, l.params.Mixer.MinTiltCos)
	if !ok && l.params.ThrottleBoost != 0 {
		c.Faults.Tilt = true
		l.logFault("tilt compensation", &l.faults.tilt, fmt.Errorf("pitch %.1f roll %.1f", c.Attitude.Pitch, c.Attitude.Roll))
	}
	c.Boost = boost

	c.Motors = l.mixer.Mix(mixer.Input{
		Throttle: l.setpoint.Throttle,
		Pitch:    c.PitchPID.Corrected,
		Roll:     c.RollPID.Corrected,
		Boost:    boost,
	})
	if c.Motors.Clamped {
		c.Faults.Clamped = true
		l.logFault("duty clamp", &l.faults.clamp, fmt.Errorf("duties %v", c.Motors.Duty))
	}

	for i, d := range c.Motors.Duty {
		l.sink.SetDuty(i, d)
	}
	for _, o := range l.observers {
		o.Observe(c)
	}
	return c
}

// Run steps the loop once per tick until ctx is done.
func (l *Loop) Run(ctx context.Context, ticks <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ticks:
			if !ok {
				return nil
			}
			l.Step()
		}
	}
}

func (l *Loop) logFault(kind string, counter *uint64, err error) {
	*counter++
	n := l.params.FaultLogEvery
	if n == 0 {
		return
	}
	if *counter == 1 || *counter%n == 0 {
		log.Printf("control: %s fault #%d (cycle %d): %v", kind, *counter, l.seq, err)
	}
}
