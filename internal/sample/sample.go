// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sample

import (
	"fmt"
	"math"
)

// Kind tags which stream an Event came from.
type Kind int

const (
	KindAccel Kind = iota
	KindProximity
)

func (k Kind) String() string {
	switch k {
	case KindAccel:
		return "accel"
	case KindProximity:
		return "proximity"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Accel is a single accelerometer reading in m/s².
type Accel struct {
	Ax float64 `json:"ax"`
	Ay float64 `json:"ay"`
	Az float64 `json:"az"`
}

// Vector returns the reading as an x, y, z array.
func (a Accel) Vector() [3]float64 {
	return [3]float64{a.Ax, a.Ay, a.Az}
}

// Validate rejects NaN and infinite components.
func (a Accel) Validate() error {
	for i, v := range a.Vector() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InvalidSampleError{Field: axisNames[i], Value: v, Reason: "not finite"}
		}
	}
	return nil
}

var axisNames = [3]string{"ax", "ay", "az"}

// Proximity is a single proximity reading. Smaller is closer.
type Proximity struct {
	DistanceCm float64 `json:"distance_cm"`
}

// Validate rejects non-finite and negative distances.
func (p Proximity) Validate() error {
	if math.IsNaN(p.DistanceCm) || math.IsInf(p.DistanceCm, 0) {
		return &InvalidSampleError{Field: "distance_cm", Value: p.DistanceCm, Reason: "not finite"}
	}
	if p.DistanceCm < 0 {
		return &InvalidSampleError{Field: "distance_cm", Value: p.DistanceCm, Reason: "negative"}
	}
	return nil
}

// Event is one reading delivered by a sensor source.
type Event struct {
	Kind      Kind
	Source    string // "mock", "mpu9250", "serial", "web"
	Accel     Accel
	Proximity Proximity
}

func AccelEvent(source string, a Accel) Event {
	return Event{Kind: KindAccel, Source: source, Accel: a}
}

func ProximityEvent(source string, distanceCm float64) Event {
	return Event{Kind: KindProximity, Source: source, Proximity: Proximity{DistanceCm: distanceCm}}
}

// InvalidSampleError reports a reading that must not reach filter state.
type InvalidSampleError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InvalidSampleError) Error() string {
	return fmt.Sprintf("invalid sample: %s=%v (%s)", e.Field, e.Value, e.Reason)
}
