// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"

	"github.com/relabs-tech/attitude_controller/internal/accel"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"
)

// MPU9250Config selects the SPI bus and accelerometer range.
type MPU9250Config struct {
	SPIDevice  string
	CSPin      string
	AccelRange byte // 0=±2g 1=±4g 2=±8g 3=±16g
	SelfTest   bool
	Calibrate  bool
}

// axisSource is the subset of *mpu9250.MPU9250 the reader uses.
type axisSource interface {
	GetAccelerationX() (int16, error)
	GetAccelerationY() (int16, error)
	GetAccelerationZ() (int16, error)
}

// MPU9250Reader samples the accelerometer and narrows each axis to the
// 12-bit two's-complement field the estimator consumes.
type MPU9250Reader struct {
	name string
	dev  axisSource
}

// OpenMPU9250 initializes an MPU9250 over SPI.
func OpenMPU9250(cfg MPU9250Config) (*MPU9250Reader, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("IMU: periph host init: %w", err)
	}

	cs := gpioreg.ByName(cfg.CSPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU: CS pin %q not found", cfg.CSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.SPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU: SPI transport (%s): %w", cfg.SPIDevice, err)
	}

	imu, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("IMU: device creation: %w", err)
	}
	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("IMU: initialization: %w", err)
	}
	if cfg.AccelRange > 3 {
		return nil, fmt.Errorf("IMU: accel range %d out of range [0,3]", cfg.AccelRange)
	}
	if err := imu.SetAccelRange(cfg.AccelRange); err != nil {
		return nil, fmt.Errorf("IMU: set accel range: %w", err)
	}
	log.Printf("IMU: accelerometer range set to %d (±%dg)", cfg.AccelRange, []int{2, 4, 8, 16}[cfg.AccelRange])

	if cfg.SelfTest {
		res, err := imu.SelfTest()
		if err != nil {
			log.Printf("Warning: IMU self-test failed: %v", err)
		} else {
			log.Printf("IMU self-test passed: accel deviation X: %.2f%%, Y: %.2f%%, Z: %.2f%%",
				res.AccelDeviation.X, res.AccelDeviation.Y, res.AccelDeviation.Z)
		}
	}
	if cfg.Calibrate {
		if err := imu.Calibrate(); err != nil {
			log.Printf("Warning: IMU calibration failed: %v", err)
		} else {
			log.Printf("IMU calibration complete")
		}
	}

	return newMPU9250Reader(cfg.SPIDevice, imu), nil
}

func newMPU9250Reader(name string, dev axisSource) *MPU9250Reader {
	return &MPU9250Reader{name: name, dev: dev}
}

// ReadAxes implements accel.Reader.
func (r *MPU9250Reader) ReadAxes() (accel.Sample, error) {
	ax, err := r.dev.GetAccelerationX()
	if err != nil {
		return accel.Sample{}, fmt.Errorf("%s accel X: %w", r.name, err)
	}
	ay, err := r.dev.GetAccelerationY()
	if err != nil {
		return accel.Sample{}, fmt.Errorf("%s accel Y: %w", r.name, err)
	}
	az, err := r.dev.GetAccelerationZ()
	if err != nil {
		return accel.Sample{}, fmt.Errorf("%s accel Z: %w", r.name, err)
	}
	return accel.Sample{X: Narrow(ax), Y: Narrow(ay), Z: Narrow(az)}, nil
}

// Narrow keeps the top 12 bits of a 16-bit reading. The sign survives
// because the arithmetic shift preserves it before masking.
func Narrow(v int16) accel.RawAxisSample {
	return accel.RawAxisSample(uint16(v>>4) & 0x0FFF)
}
