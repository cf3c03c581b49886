// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package proximity tracks the last proximity reading and whether the
// sensor is covered.
package proximity

import (
	"math"

	"github.com/relabs-tech/shake_monitor/internal/sample"
)

// State is the covered state as seen by the rendering layer.
type State int

const (
	StateUnavailable State = iota
	StateUncovered
	StateCovered
)

func (s State) String() string {
	switch s {
	case StateCovered:
		return "covered"
	case StateUncovered:
		return "uncovered"
	default:
		return "unavailable"
	}
}

// Result is the outcome of one proximity update.
type Result struct {
	DistanceCm float64 `json:"distance_cm"`
	Covered    bool    `json:"covered"`
	Available  bool    `json:"available"`
}

// Tracker holds the last proximity distance. Readings are passed through
// without smoothing.
type Tracker struct {
	available      bool
	maxRangeCm     float64
	lastDistanceCm float64
}

// NewTracker returns a tracker for a sensor with the given maximum range.
// The last distance starts at 0, so the sensor reads as covered until its
// first reading arrives.
func NewTracker(maxRangeCm float64) *Tracker {
	return &Tracker{available: true, maxRangeCm: maxRangeCm}
}

// NewUnavailable returns a tracker for a host without a proximity sensor.
func NewUnavailable() *Tracker {
	return &Tracker{}
}

// FromRange returns NewTracker(maxRangeCm) for a positive range and
// NewUnavailable otherwise.
func FromRange(maxRangeCm float64) *Tracker {
	if maxRangeCm > 0 && !math.IsInf(maxRangeCm, 0) {
		return NewTracker(maxRangeCm)
	}
	return NewUnavailable()
}

// Update records a new distance. An unavailable tracker ignores the reading
// and reports Available=false.
func (t *Tracker) Update(distanceCm float64) (Result, error) {
	if err := (sample.Proximity{DistanceCm: distanceCm}).Validate(); err != nil {
		return Result{}, err
	}
	if !t.available {
		return Result{DistanceCm: distanceCm}, nil
	}
	t.lastDistanceCm = distanceCm
	return t.Result(), nil
}

// UpdateWithRange records a distance together with the sensor's range,
// marking the tracker available.
func (t *Tracker) UpdateWithRange(distanceCm, maxRangeCm float64) (Result, error) {
	if math.IsNaN(maxRangeCm) || math.IsInf(maxRangeCm, 0) || maxRangeCm <= 0 {
		return Result{}, &sample.InvalidSampleError{Field: "max_range_cm", Value: maxRangeCm, Reason: "must be finite and > 0"}
	}
	if err := (sample.Proximity{DistanceCm: distanceCm}).Validate(); err != nil {
		return Result{}, err
	}
	t.available = true
	t.maxRangeCm = maxRangeCm
	t.lastDistanceCm = distanceCm
	return t.Result(), nil
}

// Result returns the current state without changing it.
func (t *Tracker) Result() Result {
	return Result{
		DistanceCm: t.lastDistanceCm,
		Covered:    t.Covered(),
		Available:  t.available,
	}
}

// Covered reports lastDistance < maxRange. Always false when unavailable.
func (t *Tracker) Covered() bool {
	return t.available && t.lastDistanceCm < t.maxRangeCm
}

func (t *Tracker) State() State {
	switch {
	case !t.available:
		return StateUnavailable
	case t.Covered():
		return StateCovered
	default:
		return StateUncovered
	}
}

func (t *Tracker) Available() bool        { return t.available }
func (t *Tracker) MaxRangeCm() float64     { return t.maxRangeCm }
func (t *Tracker) LastDistanceCm() float64 { return t.lastDistanceCm }
