// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package accel

// Width of the accelerometer output field in bits.
const (
	FieldBits = 12
	fieldMask = 1<<FieldBits - 1
	signBit   = 1 << (FieldBits - 1)

	// MinValue and MaxValue bound a decoded axis value.
	MinValue = -signBit
	MaxValue = signBit - 1
)

// RawAxisSample is one accelerometer register word. Only the low
// FieldBits bits are significant; they hold a two's complement value.
type RawAxisSample uint16

// Axis selects one accelerometer axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return "?"
}

// Sample holds the three raw axis words read in one cycle.
type Sample struct {
	X RawAxisSample `json:"x"`
	Y RawAxisSample `json:"y"`
	Z RawAxisSample `json:"z"`
}

// Axis returns the raw word for a.
func (s Sample) Axis(a Axis) RawAxisSample {
	switch a {
	case AxisY:
		return s.Y
	case AxisZ:
		return s.Z
	}
	return s.X
}

// Reader is anything that can provide the latest accelerometer words.
// Implementations must not block: they return whatever the sensor holds.
type Reader interface {
	ReadAxes() (Sample, error)
}

// Decode converts a raw register word into a signed axis value in
// [MinValue, MaxValue]. Bits above the field are ignored.
func Decode(raw RawAxisSample) int {
	v := int(raw) & fieldMask
	if v&signBit != 0 {
		v |= ^fieldMask
	}
	return v
}

// Encode truncates v to the register field. Decode(Encode(v)) == v for
// every v in [MinValue, MaxValue].
func Encode(v int) RawAxisSample {
	return RawAxisSample(v & fieldMask)
}

// Clamp limits v to the range representable by the register field.
func Clamp(v int) int {
	if v < MinValue {
		return MinValue
	}
	if v > MaxValue {
		return MaxValue
	}
	return v
}
