package control

import (
	"time"

	"github.com/relabs-tech/attitude_controller/internal/accel"
	"github.com/relabs-tech/attitude_controller/internal/attitude"
	"github.com/relabs-tech/attitude_controller/internal/command"
	"github.com/relabs-tech/attitude_controller/internal/mixer"
	"github.com/relabs-tech/attitude_controller/internal/pid"
)

// Cycle is the snapshot of one control cycle, suitable for JSON.
type Cycle struct {
	Seq  uint64    `json:"seq"`
	Time time.Time `json:"time"`

	Fragment  string           `json:"fragment,omitempty"`
	Committed bool             `json:"committed"`
	Setpoint  command.Setpoint `json:"setpoint"`

	Sample   accel.Sample      `json:"sample"`
	Attitude attitude.Estimate `json:"attitude"`
	PitchPID pid.Result        `json:"pitch_pid"`
	RollPID  pid.Result        `json:"roll_pid"`
	Boost    float64           `json:"boost"`
	Motors   mixer.Output      `json:"motors"`

	Faults Faults `json:"faults"`
}

// Faults flags the recoverable problems seen during a cycle.
type Faults struct {
	Parse        bool `json:"parse,omitempty"`
	FrameTooLong bool `json:"frame_too_long,omitempty"`
	Sensor       bool `json:"sensor,omitempty"`
	Tilt         bool `json:"tilt,omitempty"`
	Clamped      bool `json:"clamped,omitempty"`
}

// Any reports whether any fault was raised.
func (f Faults) Any() bool {
	return f.Parse || f.FrameTooLong || f.Sensor || f.Tilt || f.Clamped
}
