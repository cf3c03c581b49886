// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package motion turns raw accelerometer readings into linear acceleration,
// g-force magnitude and debounced shake events.
package motion

import (
	"math"

	"github.com/relabs-tech/shake_monitor/internal/sample"
)

const (
	// Alpha is the low-pass weight kept from the previous gravity estimate.
	Alpha = 0.8

	// StandardGravity is 1 g in m/s².
	StandardGravity = 9.80665

	// ShakeCooldownMs is the minimum spacing between two shake events.
	ShakeCooldownMs int64 = 800
)

// Result is the outcome of one filter step.
type Result struct {
	Ax         float64 `json:"ax"`
	Ay         float64 `json:"ay"`
	Az         float64 `json:"az"`
	GForce     float64 `json:"g_force"`
	ShakeFired bool    `json:"shake_fired"`

	// Tilt is the raw ax reading, used downstream for rotation and
	// calibration. It is intentionally not the filtered value.
	Tilt float64 `json:"tilt"`
}

// Filter holds the gravity estimate and shake debounce state.
// It is not safe for concurrent use; a single consumer drives it.
type Filter struct {
	gravity [3]float64
	linear  [3]float64

	lastShakeMs int64
	hasShaken   bool
}

// NewFilter returns a filter with a zero gravity estimate.
func NewFilter() *Filter {
	return &Filter{}
}

// Update runs one filter step. nowMs must come from a monotonic clock and
// never decrease between calls. On error the filter state is unchanged.
func (f *Filter) Update(s sample.Accel, thresholdG float64, nowMs int64) (Result, error) {
	if err := s.Validate(); err != nil {
		return Result{}, err
	}
	if err := checkThreshold(thresholdG); err != nil {
		return Result{}, err
	}

	v := s.Vector()
	var gravity, linear [3]float64
	var sum float64
	for i := range v {
		gravity[i] = Alpha*f.gravity[i] + (1-Alpha)*v[i]
		linear[i] = v[i] - gravity[i]
		g := linear[i] / StandardGravity
		sum += g * g
	}
	gForce := math.Sqrt(sum)
	if math.IsInf(gForce, 0) || math.IsNaN(gForce) {
		return Result{}, &sample.InvalidSampleError{Field: "g_force", Value: gForce, Reason: "magnitude overflows"}
	}
	f.gravity = gravity
	f.linear = linear

	fired := false
	if gForce > thresholdG && f.cooledDown(nowMs) {
		f.lastShakeMs = nowMs
		f.hasShaken = true
		fired = true
	}

	return Result{
		Ax:         s.Ax,
		Ay:         s.Ay,
		Az:         s.Az,
		GForce:     gForce,
		ShakeFired: fired,
		Tilt:       s.Ax,
	}, nil
}

// cooledDown reports whether a shake may fire at nowMs. Before the first
// shake there is nothing to debounce against.
func (f *Filter) cooledDown(nowMs int64) bool {
	if !f.hasShaken {
		return true
	}
	return nowMs-f.lastShakeMs > ShakeCooldownMs
}

// Gravity returns the current gravity estimate in m/s².
func (f *Filter) Gravity() [3]float64 {
	return f.gravity
}

// Linear returns the linear acceleration computed by the last Update.
func (f *Filter) Linear() [3]float64 {
	return f.linear
}

// LastShake returns the time of the most recent shake, if any.
func (f *Filter) LastShake() (int64, bool) {
	return f.lastShakeMs, f.hasShaken
}

// Reset clears the gravity estimate and the shake debounce.
func (f *Filter) Reset() {
	*f = Filter{}
}
