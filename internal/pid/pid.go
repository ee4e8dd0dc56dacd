package pid

import "fmt"

// Config holds the controller gains and the integrator bounds.
type Config struct {
	Kp, Ki, Kd float64

	// ErrSumMin and ErrSumMax bound the accumulated error.
	ErrSumMin, ErrSumMax float64
}

// DefaultConfig returns the gains used for both pitch and roll.
func DefaultConfig() Config {
	return Config{
		Kp:        3.0,
		Ki:        0.2,
		Kd:        1.5,
		ErrSumMin: -200,
		ErrSumMax: 200,
	}
}

// Result holds every term of one update.
type Result struct {
	Error        float64 `json:"error"`
	Proportional float64 `json:"p"`
	Integral     float64 `json:"i"`
	Derivative   float64 `json:"d"`
	Output       float64 `json:"output"`
	Corrected    float64 `json:"corrected"`
}

// Controller is a PID controller for one axis, updated once per cycle
// with no time scaling. Its state is only cleared by constructing a new
// controller. Not safe for concurrent use.
type Controller struct {
	cfg Config

	errSum    float64
	prevError float64
}

// New returns a controller with zeroed state.
func New(cfg Config) (*Controller, error) {
	if cfg.ErrSumMin > cfg.ErrSumMax {
		return nil, fmt.Errorf("pid: error sum bounds inverted (min %v > max %v)", cfg.ErrSumMin, cfg.ErrSumMax)
	}
	return &Controller{cfg: cfg}, nil
}

// Update runs one control step. The corrected value is the setpoint plus
// the controller output.
func (c *Controller) Update(setpoint, measured float64) Result {
	var r Result
	r.Error = setpoint - measured
	r.Proportional = r.Error * c.cfg.Kp

	c.errSum += r.Error
	if c.errSum > c.cfg.ErrSumMax {
		c.errSum = c.cfg.ErrSumMax
	} else if c.errSum < c.cfg.ErrSumMin {
		c.errSum = c.cfg.ErrSumMin
	}
	r.Integral = c.errSum * c.cfg.Ki

	r.Derivative = (r.Error - c.prevError) * c.cfg.Kd
	c.prevError = r.Error

	r.Output = r.Proportional + r.Integral + r.Derivative
	r.Corrected = setpoint + r.Output
	return r
}

// ErrorSum returns the clamped accumulated error.
func (c *Controller) ErrorSum() float64 { return c.errSum }

// PreviousError returns the error of the last update.
func (c *Controller) PreviousError() float64 { return c.prevError }

// Config returns the controller configuration.
func (c *Controller) Config() Config { return c.cfg }
