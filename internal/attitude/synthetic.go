package attitude

import (
	"math"
	"time"

	"github.com/relabs-tech/attitude_controller/internal/accel"
)

// Trajectory returns the attitude (degrees) to present at elapsed time t.
type Trajectory func(t time.Duration) (pitch, roll float64)

// Level keeps the airframe level.
func Level(time.Duration) (float64, float64) { return 0, 0 }

// Swing produces smoothly changing pitch and roll, like a hand-held bench test.
func Swing(t time.Duration) (float64, float64) {
	s := t.Seconds()
	return 15 * math.Cos(s*0.7), 20 * math.Sin(s)
}

// SyntheticSource is an accel.Reader that generates register words which
// the Estimator (with the same Config) turns back into the trajectory's
// attitude, up to quantization.
type SyntheticSource struct {
	cfg   Config
	traj  Trajectory
	start time.Time
	now   func() time.Time
}

// NewSyntheticSource creates a source following traj from now on.
func NewSyntheticSource(cfg Config, traj Trajectory) *SyntheticSource {
	return &SyntheticSource{cfg: cfg, traj: traj, start: time.Now(), now: time.Now}
}

// ReadAxes implements accel.Reader.
func (s *SyntheticSource) ReadAxes() (accel.Sample, error) {
	pitch, roll := s.traj(s.now().Sub(s.start))
	return SampleFor(s.cfg, pitch, roll), nil
}

// SampleFor builds the register words of a 1 g gravity vector seen at
// the given attitude, undoing the estimator's mounting offsets.
func SampleFor(cfg Config, pitch, roll float64) accel.Sample {
	theta := (pitch - cfg.PitchOffset) / radToDeg
	phi := (roll - cfg.RollOffset) / radToDeg

	yg := math.Sin(theta)
	xg := -math.Cos(theta) * math.Sin(phi)
	zg := math.Cos(theta) * math.Cos(phi)

	return accel.Sample{
		X: accel.Encode(toCounts(xg)),
		Y: accel.Encode(toCounts(yg)),
		Z: accel.Encode(toCounts(zg)),
	}
}

func toCounts(g float64) int {
	return accel.Clamp(int(math.Round(g / Scale)))
}
