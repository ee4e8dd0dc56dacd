// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package transport

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"
)

// ReadChunk is the largest read issued to the radio at once, matching
// the Bluetooth module's receive FIFO.
const ReadChunk = 20

// SerialConfig describes the Bluetooth module's UART.
type SerialConfig struct {
	PortName string
	BaudRate int
}

// SerialLink reads command bytes from a Bluetooth SPP serial port.
// A background goroutine performs the blocking reads.
type SerialLink struct {
	port    io.ReadWriteCloser
	pending *pending

	closeOnce sync.Once
	done      chan struct{}
}

// OpenSerial opens the port and starts receiving.
func OpenSerial(cfg SerialConfig) (*SerialLink, error) {
	opts := serial.OpenOptions{
		PortName:              cfg.PortName,
		BaudRate:              uint(cfg.BaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", cfg.PortName, err)
	}
	log.Printf("transport: serial port opened on %s at %d baud", cfg.PortName, cfg.BaudRate)
	return newSerialLink(port), nil
}

func newSerialLink(port io.ReadWriteCloser) *SerialLink {
	l := &SerialLink{
		port:    port,
		pending: newPending(0),
		done:    make(chan struct{}),
	}
	go l.receive()
	return l
}

func (l *SerialLink) receive() {
	defer close(l.done)
	buf := make([]byte, ReadChunk)
	for {
		n, err := l.port.Read(buf)
		if n > 0 {
			l.pending.write(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				log.Printf("transport: serial read error: %v", err)
			}
			return
		}
	}
}

// Drain implements Link.
func (l *SerialLink) Drain() []byte { return l.pending.drain() }

// Dropped returns how many bytes were discarded because the loop did
// not drain them in time.
func (l *SerialLink) Dropped() uint64 { return l.pending.droppedBytes() }

// Close closes the port and waits for the reader to stop.
func (l *SerialLink) Close() error {
	var err error
	l.closeOnce.Do(func() {
		err = l.port.Close()
		<-l.done
	})
	return err
}
