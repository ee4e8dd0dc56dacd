package telemetry

import (
	"fmt"
	"strings"

	"github.com/relabs-tech/attitude_controller/internal/control"
)

// FormatCycle renders a cycle as one console line.
func FormatCycle(c control.Cycle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%6d] T=%3d SP(P=%4d R=%4d)  PITCH=%7.2f ROLL=%7.2f  M=%v",
		c.Seq, c.Setpoint.Throttle, c.Setpoint.Pitch, c.Setpoint.Roll,
		c.Attitude.Pitch, c.Attitude.Roll, c.Motors.Duty)
	if !c.Motors.Armed {
		b.WriteString(" IDLE")
	}
	if c.Faults.Any() {
		b.WriteString(" FAULT:")
		for _, f := range []struct {
			on   bool
			name string
		}{
			{c.Faults.Parse, "parse"},
			{c.Faults.FrameTooLong, "too-long"},
			{c.Faults.Sensor, "sensor"},
			{c.Faults.Tilt, "tilt"},
			{c.Faults.Clamped, "clamped"},
		} {
			if f.on {
				b.WriteString(" " + f.name)
			}
		}
	}
	return b.String()
}
