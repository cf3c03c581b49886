// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package monitor

import (
	"github.com/relabs-tech/shake_monitor/internal/motion"
	"github.com/relabs-tech/shake_monitor/internal/proximity"
	"github.com/relabs-tech/shake_monitor/internal/render"
)

// Cause names what produced a Frame.
type Cause string

const (
	CauseInit      Cause = "init"
	CauseAccel     Cause = "accel"
	CauseProximity Cause = "proximity"
	CauseCalibrate Cause = "calibrate"
	CauseThreshold Cause = "threshold"
	CauseEnable    Cause = "enable"
)

// Frame is an immutable snapshot of everything a display needs.
type Frame struct {
	Seq   uint64 `json:"seq"`
	AtMs  int64  `json:"at_ms"`
	Cause Cause  `json:"cause"`

	Motion     motion.Result `json:"motion"`
	HaveMotion bool          `json:"have_motion"`

	Proximity      proximity.Result `json:"proximity"`
	ProximityState string           `json:"proximity_state"`

	ThresholdG           float64 `json:"threshold_g"`
	ThresholdProgress    int     `json:"threshold_progress"`
	CalibrationOffsetDeg float64 `json:"calibration_offset_deg"`
	Enabled              bool    `json:"enabled"`

	Scene render.Scene `json:"scene"`
}

// ShakeEvent is published once per fired shake.
type ShakeEvent struct {
	AtMs       int64   `json:"at_ms"`
	GForce     float64 `json:"g_force"`
	ThresholdG float64 `json:"threshold_g"`
	Message    string  `json:"message"`
}

// Shake returns the shake carried by f, if this frame fired one.
func (f Frame) Shake() (ShakeEvent, bool) {
	if f.Cause != CauseAccel || !f.Motion.ShakeFired {
		return ShakeEvent{}, false
	}
	return ShakeEvent{
		AtMs:       f.AtMs,
		GForce:     f.Motion.GForce,
		ThresholdG: f.ThresholdG,
		Message:    render.ShakeNotice(f.Motion.GForce, f.ThresholdG),
	}, true
}

// Sink receives every published frame on the monitor goroutine.
// Implementations must not block.
type Sink interface {
	Publish(Frame)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Frame)

func (f SinkFunc) Publish(fr Frame) { f(fr) }
