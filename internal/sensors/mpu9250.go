// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/shake_monitor/internal/motion"
	"github.com/relabs-tech/shake_monitor/internal/sample"
)

// accelCountsPerG is the MPU9250 sensitivity at ±2g; each range step halves it.
const accelCountsPerG = 16384.0

// accelRangeG maps IMU_ACCEL_RANGE onto full scale in g.
var accelRangeG = []int{2, 4, 8, 16}

type imuSource struct {
	imu        *mpu9250.MPU9250
	accelRange byte
	interval   time.Duration
	log        *zap.Logger
}

// NewMPU9250Source initializes an MPU9250 over SPI and returns a Source
// that polls its accelerometer. The device has no proximity sensor.
func NewMPU9250Source(spiDev, csPin string, accelRange byte, interval time.Duration, log *zap.Logger) (Source, error) {
	if accelRange > 3 {
		return nil, fmt.Errorf("IMU: accel range %d out of 0-3", accelRange)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("IMU: periph host init: %w", err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU: CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU: SPI transport (%s): %w", spiDev, err)
	}

	imu, err := mpu9250.New(*tr)
	if err != nil {
		return nil, fmt.Errorf("IMU: device creation: %w", err)
	}

	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("IMU: initialization: %w", err)
	}

	if err := imu.SetAccelRange(accelRange); err != nil {
		return nil, fmt.Errorf("IMU: set accel range: %w", err)
	}
	log.Info("IMU accelerometer range set",
		zap.Uint8("range", accelRange),
		zap.Int("full_scale_g", accelRangeG[accelRange]),
	)

	if err := imu.Calibrate(); err != nil {
		log.Warn("IMU calibration failed", zap.Error(err))
	} else {
		log.Info("IMU calibration complete")
	}

	return &imuSource{
		imu:        imu,
		accelRange: accelRange,
		interval:   interval,
		log:        log,
	}, nil
}

func (s *imuSource) Name() string { return "mpu9250" }

func (s *imuSource) Run(ctx context.Context, out chan<- sample.Event) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		a, err := s.readAccel()
		if err != nil {
			s.log.Warn("IMU read error", zap.Error(err))
			continue
		}
		if err := emit(ctx, out, sample.AccelEvent(s.Name(), a)); err != nil {
			return err
		}
	}
}

// readAccel reads the three accelerometer axes in m/s².
func (s *imuSource) readAccel() (sample.Accel, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return sample.Accel{}, fmt.Errorf("IMU accel X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return sample.Accel{}, fmt.Errorf("IMU accel Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return sample.Accel{}, fmt.Errorf("IMU accel Z: %w", err)
	}

	return sample.Accel{
		Ax: CountsToMS2(ax, s.accelRange),
		Ay: CountsToMS2(ay, s.accelRange),
		Az: CountsToMS2(az, s.accelRange),
	}, nil
}

// CountsToMS2 converts a raw accelerometer count to m/s² for the given
// range setting (0=±2g .. 3=±16g).
func CountsToMS2(raw int16, accelRange byte) float64 {
	countsPerG := accelCountsPerG / float64(int(1)<<accelRange)
	return float64(raw) / countsPerG * motion.StandardGravity
}
