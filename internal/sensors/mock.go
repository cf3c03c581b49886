// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"math"
	"time"

	"github.com/relabs-tech/shake_monitor/internal/clock"
	"github.com/relabs-tech/shake_monitor/internal/sample"
)

const (
	mockShakeEvery = 6 * time.Second
	mockShakeStart = 3 * time.Second
	mockShakeLen   = 300 * time.Millisecond

	mockCoverEvery = 10 * time.Second
	mockCoverStart = 7 * time.Second
	mockCoverLen   = 1500 * time.Millisecond
)

type mockSource struct {
	interval   time.Duration
	maxRangeCm float64
	clock      clock.Clock
}

// NewMockSource creates a source that generates a slow tilt, a short shake
// burst every 6s and, when maxRangeCm > 0, a covered proximity sensor for
// 1.5s of every 10s.
func NewMockSource(interval time.Duration, maxRangeCm float64, clk clock.Clock) Source {
	if clk == nil {
		clk = clock.Real{}
	}
	return &mockSource{interval: interval, maxRangeCm: maxRangeCm, clock: clk}
}

func (m *mockSource) Name() string { return "mock" }

func (m *mockSource) Run(ctx context.Context, out chan<- sample.Event) error {
	start := m.clock.Now()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	lastDistance := -1.0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		elapsed := m.clock.Since(start)
		if err := emit(ctx, out, sample.AccelEvent(m.Name(), MockAccelAt(elapsed))); err != nil {
			return err
		}

		if m.maxRangeCm <= 0 {
			continue
		}
		// proximity sensors report on change only
		d := MockProximityAt(elapsed, m.maxRangeCm)
		if d != lastDistance {
			lastDistance = d
			if err := emit(ctx, out, sample.ProximityEvent(m.Name(), d)); err != nil {
				return err
			}
		}
	}
}

// MockAccelAt returns the generated accelerometer reading at elapsed.
func MockAccelAt(elapsed time.Duration) sample.Accel {
	t := elapsed.Seconds()
	a := sample.Accel{
		Ax: 3 * math.Sin(t*0.5),
		Ay: 2 * math.Cos(t*0.7),
		Az: 9.5 + 0.3*math.Sin(t*1.3),
	}
	if inWindow(elapsed, mockShakeEvery, mockShakeStart, mockShakeLen) {
		a.Ax += 35 * math.Sin(2*math.Pi*8*t)
		a.Ay += 20 * math.Cos(2*math.Pi*8*t)
	}
	return a
}

// MockProximityAt returns 0 while the generated sensor is covered and
// maxRangeCm otherwise, like a binary near/far sensor.
func MockProximityAt(elapsed time.Duration, maxRangeCm float64) float64 {
	if inWindow(elapsed, mockCoverEvery, mockCoverStart, mockCoverLen) {
		return 0
	}
	return maxRangeCm
}

func inWindow(elapsed, every, start, length time.Duration) bool {
	phase := elapsed % every
	return phase >= start && phase < start+length
}
