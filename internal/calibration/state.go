// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"math"

	"github.com/relabs-tech/shake_monitor/internal/sample"
)

// DegreesPerMS2 converts raw ax (m/s²) into on-screen tilt degrees.
const DegreesPerMS2 = 6.0

// State holds the rotation offset captured by the last calibration.
type State struct {
	offsetDeg float64
}

// Calibrate makes the given tilt reading the new zero and returns the
// offset in degrees.
func (s *State) Calibrate(lastAx float64) (float64, error) {
	if math.IsNaN(lastAx) || math.IsInf(lastAx, 0) {
		return s.offsetDeg, &sample.InvalidSampleError{Field: "ax", Value: lastAx, Reason: "not finite"}
	}
	s.offsetDeg = -lastAx * DegreesPerMS2
	return s.offsetDeg, nil
}

// Current returns the active offset in degrees.
func (s *State) Current() float64 {
	return s.offsetDeg
}
