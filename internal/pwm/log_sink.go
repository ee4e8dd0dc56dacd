package pwm

import (
	"log"
	"sync"
)

// LogSink keeps the latest duties in memory and logs when they change.
// Used by the simulator in place of real ESCs.
type LogSink struct {
	mu    sync.Mutex
	duty  [4]int
	quiet bool
}

// NewLogSink returns a sink; quiet disables logging.
func NewLogSink(quiet bool) *LogSink {
	return &LogSink{quiet: quiet}
}

func (s *LogSink) SetDuty(motor, duty int) {
	if motor < 0 || motor >= len(s.duty) {
		return
	}
	s.mu.Lock()
	changed := s.duty[motor] != duty
	s.duty[motor] = duty
	s.mu.Unlock()
	if changed && !s.quiet {
		log.Printf("pwm: M%d duty %d", motor+1, duty)
	}
}

// Duties returns the last value written to each motor.
func (s *LogSink) Duties() [4]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duty
}
