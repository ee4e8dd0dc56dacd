// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package command decodes the wireless command stream.
//
// Wire format (ASCII, no spaces):
//
//	A<digits>A          throttle, 0..100
//	PX<digits>Y<digits>P  pitch and roll, each sent with a +30 bias
//
// Frames may be interleaved inside one fragment. A fragment only
// commits if every frame it opens is also closed.
package command

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	// MaxFragmentLen is the capacity of each scratch buffer and therefore
	// the longest fragment the parser accepts.
	MaxFragmentLen = 100

	// AttitudeBias is subtracted from received pitch and roll values.
	AttitudeBias = 30

	// MaxThrottle is the largest throttle value accepted.
	MaxThrottle = 100
)

const (
	throttleMark = 'A'
	blockMark    = 'P'
	pitchMark    = 'X'
	rollMark     = 'Y'
)

var (
	ErrFrameTooLong    = errors.New("command: frame too long")
	ErrMalformedNumber = errors.New("command: malformed number")
)

// Frame is the result of parsing one fragment.
type Frame struct {
	Throttle int `json:"throttle"`
	Pitch    int `json:"pitch"`
	Roll     int `json:"roll"`

	HasThrottle bool `json:"has_throttle"` // a throttle frame closed with a valid number
	HasAttitude bool `json:"has_attitude"` // a P..P block closed with valid pitch and roll

	// Complete is set when no frame was left open at the end of the
	// fragment. Incomplete frames are never committed.
	Complete bool `json:"complete"`
}

// scratch is a fixed-capacity digit buffer.
type scratch struct {
	buf [MaxFragmentLen]byte
	n   int
}

func (s *scratch) reset() { s.n = 0 }

func (s *scratch) add(c byte) error {
	if s.n >= len(s.buf) {
		return ErrFrameTooLong
	}
	s.buf[s.n] = c
	s.n++
	return nil
}

func (s *scratch) String() string { return string(s.buf[:s.n]) }

// parser holds the four frame flags and the per-field buffers.
type parser struct {
	throttleOpen bool
	blockOpen    bool
	pitchOpen    bool
	rollOpen     bool

	throttle, pitch, roll scratch

	// Digits of the last closed throttle frame and P..P block.
	throttleClosed bool
	blockClosed    bool
	throttleDigits string
	pitchDigits    string
	rollDigits     string
}

// Parse scans fragment once, left to right, and extracts at most one
// throttle value and one pitch/roll pair. Malformed numbers are reported
// through the returned error while the other fields are still returned.
func Parse(fragment string) (Frame, error) {
	if len(fragment) > MaxFragmentLen {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrFrameTooLong, len(fragment))
	}

	var p parser
	for i := 0; i < len(fragment); i++ {
		if err := p.step(fragment[i]); err != nil {
			return Frame{}, err
		}
	}
	return p.frame()
}

func (p *parser) step(c byte) error {
	if !p.throttleOpen && c == throttleMark {
		p.throttleOpen = true
		p.throttle.reset()
	} else if p.throttleOpen && c == throttleMark {
		p.throttleOpen = false
		p.throttleClosed = true
		p.throttleDigits = p.throttle.String()
	}

	if !p.blockOpen && c == blockMark {
		p.blockOpen = true
	} else if p.blockOpen && c == blockMark {
		p.blockOpen = false
		p.blockClosed = true
		p.pitchDigits = p.pitch.String()
		p.rollDigits = p.roll.String()
	}

	if p.blockOpen && !p.pitchOpen && c == pitchMark {
		p.pitchOpen = true
		p.pitch.reset()
	} else if p.blockOpen && p.pitchOpen && c == rollMark {
		p.pitchOpen = false
	}

	// The roll run starts at Y inside the block and ends on the P that
	// closed the block above.
	if p.blockOpen && !p.rollOpen && c == rollMark {
		p.rollOpen = true
		p.roll.reset()
	} else if !p.blockOpen && p.rollOpen && c == blockMark {
		p.rollOpen = false
	}

	if p.throttleOpen && c != throttleMark {
		if err := p.throttle.add(c); err != nil {
			return err
		}
	}
	if p.pitchOpen && c != pitchMark {
		if err := p.pitch.add(c); err != nil {
			return err
		}
	}
	if p.rollOpen && c != rollMark {
		if err := p.roll.add(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) frame() (Frame, error) {
	f := Frame{
		Complete: !p.throttleOpen && !p.blockOpen && !p.pitchOpen && !p.rollOpen,
	}

	var errs []error
	if p.throttleClosed {
		v, err := atoi(p.throttleDigits)
		if err != nil {
			errs = append(errs, fmt.Errorf("throttle: %w", err))
		} else {
			f.Throttle = v
			f.HasThrottle = true
		}
	}
	if p.blockClosed {
		pitch, perr := atoi(p.pitchDigits)
		roll, rerr := atoi(p.rollDigits)
		switch {
		case perr != nil:
			errs = append(errs, fmt.Errorf("pitch: %w", perr))
		case rerr != nil:
			errs = append(errs, fmt.Errorf("roll: %w", rerr))
		default:
			f.Pitch = pitch - AttitudeBias
			f.Roll = roll - AttitudeBias
			f.HasAttitude = true
		}
	}
	return f, errors.Join(errs...)
}

// atoi accepts an optional leading '-' followed by at least one digit.
func atoi(s string) (int, error) {
	digits := s
	if len(digits) > 0 && digits[0] == '-' {
		digits = digits[1:]
	}
	if digits == "" {
		return 0, fmt.Errorf("%w: %q", ErrMalformedNumber, s)
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, fmt.Errorf("%w: %q", ErrMalformedNumber, s)
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedNumber, s)
	}
	return v, nil
}
