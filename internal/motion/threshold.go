// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"fmt"
	"math"
)

const (
	MinThresholdG     = 2.0
	MaxThresholdG     = 5.0
	DefaultThresholdG = 2.7

	// MaxThresholdProgress is the top of the 0.1 g slider scale.
	MaxThresholdProgress = 30
)

// InvalidConfigError reports a rejected threshold change.
type InvalidConfigError struct {
	Name   string
	Value  float64
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s=%v (%s)", e.Name, e.Value, e.Reason)
}

func checkThreshold(g float64) error {
	if math.IsNaN(g) || math.IsInf(g, 0) {
		return &InvalidConfigError{Name: "threshold_g", Value: g, Reason: "not finite"}
	}
	if g <= 0 {
		return &InvalidConfigError{Name: "threshold_g", Value: g, Reason: "must be > 0"}
	}
	return nil
}

// ThresholdFromProgress maps slider progress 0..30 onto 2.0..5.0 g.
func ThresholdFromProgress(progress int) float64 {
	return MinThresholdG + float64(progress)/10
}

// ProgressFromThreshold is the inverse of ThresholdFromProgress.
func ProgressFromThreshold(g float64) int {
	return int(math.Round((g - MinThresholdG) * 10))
}

// Threshold is the user-adjustable shake threshold in g.
type Threshold struct {
	g float64
}

// NewThreshold returns a threshold set to DefaultThresholdG.
func NewThreshold() *Threshold {
	return &Threshold{g: DefaultThresholdG}
}

// G returns the threshold in g.
func (t *Threshold) G() float64 {
	return t.g
}

// Progress returns the slider position for the current threshold.
func (t *Threshold) Progress() int {
	return ProgressFromThreshold(t.g)
}

// Set changes the threshold, snapped to 0.1 g. Values outside
// [MinThresholdG, MaxThresholdG] are rejected and the old value is kept.
func (t *Threshold) Set(g float64) error {
	if err := checkThreshold(g); err != nil {
		return err
	}
	if g < MinThresholdG || g > MaxThresholdG {
		return &InvalidConfigError{
			Name:   "threshold_g",
			Value:  g,
			Reason: fmt.Sprintf("must be within [%.1f, %.1f]", MinThresholdG, MaxThresholdG),
		}
	}
	t.g = ThresholdFromProgress(ProgressFromThreshold(g))
	return nil
}

// SetProgress sets the threshold from a slider position.
func (t *Threshold) SetProgress(progress int) error {
	if progress < 0 || progress > MaxThresholdProgress {
		return &InvalidConfigError{
			Name:   "threshold_progress",
			Value:  float64(progress),
			Reason: fmt.Sprintf("must be within [0, %d]", MaxThresholdProgress),
		}
	}
	t.g = ThresholdFromProgress(progress)
	return nil
}
