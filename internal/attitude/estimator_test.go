package attitude

import (
	"math"
	"testing"
	"time"

	"github.com/relabs-tech/attitude_controller/internal/accel"
)

const angleTolerance = 0.2 // degrees, covers 12-bit quantization

func TestNormalizeRoll(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-250, 110},
		{-150, -150},
		{-270, 90},
		{-180, 180},
		{-271, -271},
		{-179.5, -179.5},
		{0, 0},
		{45, 45},
	}
	for _, tt := range tests {
		if got := NormalizeRoll(tt.in); got != tt.want {
			t.Errorf("NormalizeRoll(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLowPass(t *testing.T) {
	f, err := NewLowPass(0.5)
	if err != nil {
		t.Fatalf("NewLowPass: %v", err)
	}
	if got := f.Update(100); got != 50 {
		t.Errorf("first update = %v, want 50", got)
	}
	if got := f.Update(100); got != 75 {
		t.Errorf("second update = %v, want 75", got)
	}
	if f.Value() != 75 {
		t.Errorf("Value = %v, want 75", f.Value())
	}

	one, _ := NewLowPass(1)
	if got := one.Update(42); got != 42 {
		t.Errorf("alpha=1 update = %v, want 42", got)
	}
}

func TestNewLowPassRejectsBadAlpha(t *testing.T) {
	for _, a := range []float64{0, -0.1, 1.5, math.NaN()} {
		if _, err := NewLowPass(a); err == nil {
			t.Errorf("NewLowPass(%v) succeeded", a)
		}
	}
}

func TestEstimateFormula(t *testing.T) {
	e, err := NewEstimator(DefaultConfig())
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	// Gravity on +Z only.
	est := e.Estimate(accel.Sample{X: 0, Y: 0, Z: accel.Encode(1024)})
	if math.Abs(est.Pitch-1) > 1e-9 {
		t.Errorf("pitch = %v, want 1 (offset only)", est.Pitch)
	}
	// atan2(-0, 1) = 0, minus 93 offset, outside normalization band.
	if math.Abs(est.Roll-(-93)) > 1e-9 {
		t.Errorf("roll = %v, want -93", est.Roll)
	}
	if est.G[2] != 1 {
		t.Errorf("Zg = %v, want 1", est.G[2])
	}
}

func TestEstimateRollNormalized(t *testing.T) {
	e, _ := NewEstimator(DefaultConfig())
	// Gravity on -Z with X slightly negative: atan2(+, -1) ~ 180 -> ~87.
	est := e.Estimate(accel.Sample{X: accel.Encode(-1), Z: accel.Encode(-1024)})
	if math.Abs(est.Roll-87) > 0.1 {
		t.Errorf("roll = %v, want ~87", est.Roll)
	}
	// With X exactly zero, -X is negative zero: atan2(-0, -1) = -180 -> -273,
	// which lies below the folded band and is passed through.
	est = e.Estimate(accel.Sample{Z: accel.Encode(-1024)})
	if math.Abs(est.Roll-(-273)) > 1e-9 {
		t.Errorf("roll = %v, want -273", est.Roll)
	}
	// Gravity on +X: atan2(-1, 0) = -90 -> -183, folded to 177.
	est = e.Estimate(accel.Sample{X: accel.Encode(1024)})
	if math.Abs(est.Roll-177) > 1e-9 {
		t.Errorf("roll = %v, want 177", est.Roll)
	}
}

func TestFilterFeedsHistoryOnly(t *testing.T) {
	e, _ := NewEstimator(DefaultConfig())
	s := accel.Sample{X: accel.Encode(200), Y: accel.Encode(-400), Z: accel.Encode(1000)}

	first := e.Estimate(s)
	second := e.Estimate(s)

	if first.Filtered[0] != 100 || second.Filtered[0] != 150 {
		t.Errorf("filtered X = %v, %v; want 100, 150", first.Filtered[0], second.Filtered[0])
	}
	if first.Filtered[1] != -200 || second.Filtered[1] != -300 {
		t.Errorf("filtered Y = %v, %v; want -200, -300", first.Filtered[1], second.Filtered[1])
	}
	// The angles depend only on the current sample.
	if first.Pitch != second.Pitch || first.Roll != second.Roll {
		t.Errorf("angles changed with filter history: %+v vs %+v", first, second)
	}
}

func TestSyntheticRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	e, _ := NewEstimator(cfg)
	tests := []struct{ pitch, roll float64 }{
		{0, 0},
		{10, -5},
		{-20, 30},
		{45, 60},
		{-30, -80},
	}
	for _, tt := range tests {
		est := e.Estimate(SampleFor(cfg, tt.pitch, tt.roll))
		if math.Abs(est.Pitch-tt.pitch) > angleTolerance {
			t.Errorf("pitch for (%v,%v) = %v", tt.pitch, tt.roll, est.Pitch)
		}
		if math.Abs(est.Roll-tt.roll) > angleTolerance {
			t.Errorf("roll for (%v,%v) = %v", tt.pitch, tt.roll, est.Roll)
		}
	}
}

func TestSyntheticSourceFollowsTrajectory(t *testing.T) {
	cfg := DefaultConfig()
	src := NewSyntheticSource(cfg, func(d time.Duration) (float64, float64) {
		return d.Seconds(), -d.Seconds()
	})
	base := src.start
	src.now = func() time.Time { return base.Add(12 * time.Second) }

	s, err := src.ReadAxes()
	if err != nil {
		t.Fatalf("ReadAxes: %v", err)
	}
	e, _ := NewEstimator(cfg)
	est := e.Estimate(s)
	if math.Abs(est.Pitch-12) > angleTolerance || math.Abs(est.Roll+12) > angleTolerance {
		t.Errorf("estimate = (%v, %v), want (12, -12)", est.Pitch, est.Roll)
	}
}
