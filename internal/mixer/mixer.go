// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mixer

import "math"

// NumMotors is the number of rotors on the X frame.
const NumMotors = 4

// Config holds the mixing constants, in PWM timer ticks.
type Config struct {
	IdleDuty            int
	ThrottleSensitivity int
	PitchSensitivity    float64
	RollSensitivity     float64

	// Below ArmThreshold every motor is held at IdleDuty.
	ArmThreshold int

	// CalibrationMode drives every motor from throttle alone.
	CalibrationMode bool

	// MaxDuty is the PWM period; duties are clamped to [0, MaxDuty].
	MaxDuty int

	// MinTiltCos is the smallest cos(pitch)*cos(roll) for which the
	// throttle boost is still compensated.
	MinTiltCos float64
}

// DefaultConfig returns the airframe values.
func DefaultConfig() Config {
	return Config{
		IdleDuty:            14000,
		ThrottleSensitivity: 70,
		PitchSensitivity:    8,
		RollSensitivity:     8,
		ArmThreshold:        5,
		MaxDuty:             100000,
		MinTiltCos:          0.1,
	}
}

// Input is what the mixer needs for one cycle.
type Input struct {
	Throttle int
	Pitch    float64 // corrected pitch
	Roll     float64 // corrected roll
	Boost    float64 // tilt-compensated throttle boost, in ticks
}

// Output carries the four duty cycles.
type Output struct {
	Duty    [NumMotors]int `json:"duty"`
	Armed   bool           `json:"armed"`
	Clamped bool           `json:"clamped"`
}

// Mixer maps throttle and attitude corrections to motor duty cycles.
type Mixer struct {
	cfg Config
}

func New(cfg Config) *Mixer {
	return &Mixer{cfg: cfg}
}

// Config returns the mixer configuration.
func (m *Mixer) Config() Config { return m.cfg }

// Base returns the throttle-only duty.
func (m *Mixer) Base(throttle int) int {
	return m.cfg.IdleDuty + m.cfg.ThrottleSensitivity*throttle
}

// Mix computes the duties for in.
//
//	M1 = base + P - R
//	M2 = base + P + R
//	M3 = base - P + R
//	M4 = base - P - R
//
// P, R and the boost are rounded to whole ticks first, so the mixing
// identities hold exactly on the rounded terms, not on the raw inputs.
// Sums are taken in int64 and clamped to [0, MaxDuty] before narrowing.
func (m *Mixer) Mix(in Input) Output {
	var out Output
	var duty [NumMotors]int64
	base := int64(m.Base(in.Throttle))

	switch {
	case m.cfg.CalibrationMode:
		duty = [NumMotors]int64{base, base, base, base}
	case in.Throttle < m.cfg.ArmThreshold:
		idle := int64(m.cfg.IdleDuty)
		duty = [NumMotors]int64{idle, idle, idle, idle}
	default:
		out.Armed = true
		p := roundTicks(m.cfg.PitchSensitivity * in.Pitch)
		r := roundTicks(m.cfg.RollSensitivity * in.Roll)
		b := base + roundTicks(in.Boost)
		duty = [NumMotors]int64{
			b + p - r,
			b + p + r,
			b - p + r,
			b - p - r,
		}
	}

	for i, d := range duty {
		c := clamp(d, 0, int64(m.cfg.MaxDuty))
		if c != d {
			out.Clamped = true
		}
		out.Duty[i] = int(c)
	}
	return out
}

// CompensateTilt scales boost by 1/(cos(pitch)*cos(roll)), angles in
// degrees. When the denominator is below minCos in magnitude, or the
// result is not finite, it returns 0 and false and the boost is skipped
// for the cycle.
func CompensateTilt(boost, pitchDeg, rollDeg, minCos float64) (float64, bool) {
	den := math.Cos(pitchDeg*math.Pi/180) * math.Cos(rollDeg*math.Pi/180)
	if math.IsNaN(den) || math.Abs(den) < minCos {
		return 0, false
	}
	v := boost / den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// tickLimit bounds a single rounded term. Three terms of this size still
// sum well inside int64.
const tickLimit = 1 << 40

// roundTicks converts a tick count to int64, saturating non-finite and
// out-of-range values.
func roundTicks(v float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= tickLimit:
		return tickLimit
	case v <= -tickLimit:
		return -tickLimit
	}
	return int64(math.Round(v))
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
