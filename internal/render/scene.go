// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package render

import (
	"fmt"
	"math"

	"github.com/relabs-tech/shake_monitor/internal/motion"
	"github.com/relabs-tech/shake_monitor/internal/proximity"
)

const (
	// ProximityBarMax is the proximity bar's maximum progress (cm).
	ProximityBarMax = 5

	// WobbleDeg is the extra rotation of the shake animation, out and back.
	WobbleDeg = 20.0

	CalibratedNotice = "Calibrated: current tilt set as 0°"
)

// Scene is the retained widget state of the single-screen display. Each
// event path only touches the widgets it owns, so values persist across
// events exactly as on-screen widgets do.
type Scene struct {
	AxisText      [3]string `json:"axis_text"`
	ProximityText string    `json:"proximity_text"`
	ThresholdText string    `json:"threshold_text"`

	AxisLabels      Color `json:"axis_labels"`
	ThresholdLabel  Color `json:"threshold_label"`
	ProximityLabel  Color `json:"proximity_label"`
	EnableSwitch    Color `json:"enable_switch"`
	CalibrateButton Color `json:"calibrate_button"`
	ThresholdSlider Color `json:"threshold_slider"`
	ProximityBar    Color `json:"proximity_bar"`
	Card            Color `json:"card"`       // Unset = rounded card background
	PhoneTint       Color `json:"phone_tint"` // Unset = no tint

	PhoneRotationDeg  float64 `json:"phone_rotation_deg"`
	ProximityProgress int     `json:"proximity_progress"`

	// Wobbles counts shake animations started so far.
	Wobbles int    `json:"wobbles"`
	Notice  string `json:"notice,omitempty"`
}

// NewScene returns the initial scene for a given threshold.
func NewScene(thresholdG float64) Scene {
	var s Scene
	s.ApplyThreshold(thresholdG)
	return s
}

// MotionInput is what the accelerometer path needs besides the filter result.
type MotionInput struct {
	Result     motion.Result
	OffsetDeg  float64
	ThresholdG float64
	Covered    bool
}

// ApplyMotion updates the scene for one accelerometer result.
func (s *Scene) ApplyMotion(in MotionInput) {
	r := in.Result
	s.AxisText = [3]string{
		fmt.Sprintf("ax: %.2f m/s²", r.Ax),
		fmt.Sprintf("ay: %.2f m/s²", r.Ay),
		fmt.Sprintf("az: %.2f m/s²", r.Az),
	}

	if r.ShakeFired {
		s.Wobbles++
		s.Notice = ShakeNotice(r.GForce, in.ThresholdG)
	}

	s.PhoneRotationDeg = Rotation(r.Tilt, in.OffsetDeg)

	if in.Covered {
		s.whiteAll()
		return
	}

	red := Red(r.Ax)
	s.AxisLabels = red
	s.CalibrateButton = red
	s.ThresholdSlider = red

	// green follows az on this path
	green := Green(r.Az)
	s.ProximityLabel = green
	s.EnableSwitch = green
	s.ProximityBar = green

	s.Card = Blue(r.Ay)
}

// ApplyProximity updates the scene for one proximity result. lastAx is the
// most recent raw ax reading; this path's green follows ax, not az.
func (s *Scene) ApplyProximity(p proximity.Result, lastAx float64) {
	s.ProximityText = fmt.Sprintf("Proximity: %.1f cm", p.DistanceCm)
	s.ProximityProgress = int(math.Min(p.DistanceCm, ProximityBarMax))

	if p.Covered {
		s.whiteAll()
		s.Card = AlertCard
		s.PhoneTint = White
		return
	}

	green := Green(lastAx)
	s.ProximityLabel = green
	s.EnableSwitch = green
	s.ProximityBar = green

	s.Card = Unset
	s.PhoneTint = Unset
}

// ApplyCalibrate resets the displayed rotation after a calibration.
func (s *Scene) ApplyCalibrate() {
	s.PhoneRotationDeg = 0
	s.Notice = CalibratedNotice
}

func (s *Scene) ApplyThreshold(thresholdG float64) {
	s.ThresholdText = fmt.Sprintf("Shake threshold: %.1f g", thresholdG)
}

func (s *Scene) whiteAll() {
	s.AxisLabels = White
	s.ProximityLabel = White
	s.ThresholdLabel = White
	s.EnableSwitch = White
	s.CalibrateButton = White
	s.ThresholdSlider = White
	s.ProximityBar = White
}

// ShakeNotice is the notification text for a shake event.
func ShakeNotice(gForce, thresholdG float64) string {
	return fmt.Sprintf("SHAKE! g=%.2f (threshold %.1f)", gForce, thresholdG)
}
