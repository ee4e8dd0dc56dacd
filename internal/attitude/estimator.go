// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package attitude

import (
	"fmt"
	"math"

	"github.com/relabs-tech/attitude_controller/internal/accel"
)

// Scale converts a decoded axis value to g (±2 g over the 12-bit field).
const Scale = 2.0 / (1 << 11)

const radToDeg = 180.0 / math.Pi

// Config holds the estimator constants.
type Config struct {
	Alpha       float64 // low-pass coefficient, 0 < Alpha <= 1
	PitchOffset float64 // degrees added to the computed pitch
	RollOffset  float64 // degrees added to the computed roll before normalization
}

// DefaultConfig returns the values used on the airframe.
func DefaultConfig() Config {
	return Config{
		Alpha:       0.5,
		PitchOffset: 1,
		RollOffset:  -93,
	}
}

// Estimate is the attitude computed for one cycle.
type Estimate struct {
	Pitch float64 `json:"pitch"` // degrees
	Roll  float64 `json:"roll"`  // degrees

	// Axes are the decoded axis values, Filtered the low-pass state after
	// this cycle, G the values actually used for the angles.
	Axes     [3]int     `json:"axes"`
	Filtered [3]float64 `json:"filtered"`
	G        [3]float64 `json:"g"`
}

// LowPass is an exponential smoothing filter for one axis.
type LowPass struct {
	alpha float64
	prev  float64
}

// NewLowPass returns a filter with coefficient alpha.
func NewLowPass(alpha float64) (*LowPass, error) {
	if !(alpha > 0 && alpha <= 1) {
		return nil, fmt.Errorf("low-pass alpha must be in (0, 1], got %v", alpha)
	}
	return &LowPass{alpha: alpha}, nil
}

// Update feeds x through the filter and returns the new filtered value,
// which becomes the previous value for the next call.
func (f *LowPass) Update(x float64) float64 {
	y := x*f.alpha + f.prev*(1-f.alpha)
	f.prev = y
	return y
}

// Value returns the last filtered value.
func (f *LowPass) Value() float64 { return f.prev }

// Estimator turns raw accelerometer words into pitch and roll.
// It keeps one filter per axis and is not safe for concurrent use.
type Estimator struct {
	cfg     Config
	filters [3]*LowPass
}

// NewEstimator validates cfg and returns an estimator with zeroed filters.
func NewEstimator(cfg Config) (*Estimator, error) {
	e := &Estimator{cfg: cfg}
	for i := range e.filters {
		f, err := NewLowPass(cfg.Alpha)
		if err != nil {
			return nil, err
		}
		e.filters[i] = f
	}
	return e, nil
}

// Estimate runs one estimator cycle on s.
func (e *Estimator) Estimate(s accel.Sample) Estimate {
	var est Estimate
	for i, a := range []accel.Axis{accel.AxisX, accel.AxisY, accel.AxisZ} {
		v := accel.Decode(s.Axis(a))
		est.Axes[i] = v
		est.Filtered[i] = e.filters[i].Update(float64(v))
		est.G[i] = angleInput(v, est.Filtered[i])
	}

	xg, yg, zg := est.G[0], est.G[1], est.G[2]
	est.Pitch = math.Atan2(yg, math.Sqrt(xg*xg+zg*zg))*radToDeg + e.cfg.PitchOffset
	est.Roll = NormalizeRoll(math.Atan2(-xg, zg)*radToDeg + e.cfg.RollOffset)
	return est
}

// angleInput picks the per-axis value the angle equations use. The
// filtered value only feeds the filter history; the angles are computed
// from the rescaled decoded value.
func angleInput(decoded int, _ float64) float64 {
	return float64(decoded) * Scale
}

// NormalizeRoll folds the band [-270, -180] up by a full turn. Values
// outside that band are returned unchanged.
func NormalizeRoll(deg float64) float64 {
	if deg >= -270 && deg <= -180 {
		return deg + 360
	}
	return deg
}
