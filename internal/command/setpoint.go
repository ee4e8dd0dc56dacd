package command

import (
	"errors"
	"fmt"
)

var (
	ErrIncompleteFrame = errors.New("command: frame left open")
	ErrThrottleRange   = errors.New("command: throttle out of range")
	ErrNothingToCommit = errors.New("command: no throttle or attitude frame")
)

// Setpoint is the last committed command.
type Setpoint struct {
	Throttle int `json:"throttle"`
	Pitch    int `json:"pitch"`
	Roll     int `json:"roll"`
}

// Apply commits f onto s and reports whether s changed. Nothing is
// committed from an incomplete frame. A throttle above MaxThrottle is
// ignored and the previous throttle kept; there is no lower bound.
func (s *Setpoint) Apply(f Frame) bool {
	if !f.Complete {
		return false
	}
	before := *s
	if f.HasThrottle && f.Throttle <= MaxThrottle {
		s.Throttle = f.Throttle
	}
	if f.HasAttitude {
		s.Pitch = f.Pitch
		s.Roll = f.Roll
	}
	return *s != before
}

// Check reports why Apply would drop some or all of f.
func Check(f Frame) error {
	switch {
	case !f.Complete:
		return ErrIncompleteFrame
	case f.HasThrottle && f.Throttle > MaxThrottle:
		return fmt.Errorf("%w: %d above %d", ErrThrottleRange, f.Throttle, MaxThrottle)
	case !f.HasThrottle && !f.HasAttitude:
		return ErrNothingToCommit
	}
	return nil
}
