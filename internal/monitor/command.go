// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package monitor

import (
	"fmt"

	"github.com/relabs-tech/shake_monitor/internal/sample"
)

// Action is a request understood by Apply.
type Action string

const (
	ActionSnapshot  Action = "snapshot"
	ActionCalibrate Action = "calibrate"
	ActionThreshold Action = "threshold"
	ActionEnable    Action = "enable"
	ActionAccel     Action = "accel"
	ActionProximity Action = "proximity"
)

// Command is a request from a surface (web, terminal, CLI). It is also the
// inbound websocket message format.
type Command struct {
	Action Action `json:"action"`

	// threshold: either ThresholdG or Progress
	ThresholdG *float64 `json:"threshold_g,omitempty"`
	Progress   *int     `json:"progress,omitempty"`

	// enable
	Enabled *bool `json:"enabled,omitempty"`

	// accel / proximity ingest
	Ax         *float64 `json:"ax,omitempty"`
	Ay         *float64 `json:"ay,omitempty"`
	Az         *float64 `json:"az,omitempty"`
	DistanceCm *float64 `json:"distance_cm,omitempty"`
}

// Apply runs cmd against m. Like every Monitor method it must be called from
// the goroutine that owns m; other goroutines use Submit.
func (m *Monitor) Apply(cmd Command) (Frame, error) {
	switch cmd.Action {
	case ActionSnapshot:
		return m.Snapshot(), nil
	case ActionCalibrate:
		return m.Calibrate()
	case ActionThreshold:
		switch {
		case cmd.Progress != nil:
			return m.SetThresholdProgress(*cmd.Progress)
		case cmd.ThresholdG != nil:
			return m.SetThreshold(*cmd.ThresholdG)
		default:
			return m.Snapshot(), fmt.Errorf("threshold command needs threshold_g or progress")
		}
	case ActionEnable:
		if cmd.Enabled == nil {
			return m.Snapshot(), fmt.Errorf("enable command needs enabled")
		}
		return m.SetEnabled(*cmd.Enabled), nil
	case ActionAccel:
		if cmd.Ax == nil || cmd.Ay == nil || cmd.Az == nil {
			return m.Snapshot(), fmt.Errorf("accel command needs ax, ay and az")
		}
		return m.HandleAccel(sample.Accel{Ax: *cmd.Ax, Ay: *cmd.Ay, Az: *cmd.Az})
	case ActionProximity:
		if cmd.DistanceCm == nil {
			return m.Snapshot(), fmt.Errorf("proximity command needs distance_cm")
		}
		return m.HandleProximity(sample.Proximity{DistanceCm: *cmd.DistanceCm})
	default:
		return m.Snapshot(), fmt.Errorf("unknown action %q", cmd.Action)
	}
}
