// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package monitor is the single consumer that feeds sensor events through
// the motion filter, proximity tracker and calibration state and publishes
// the resulting frames.
package monitor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/shake_monitor/internal/calibration"
	"github.com/relabs-tech/shake_monitor/internal/clock"
	"github.com/relabs-tech/shake_monitor/internal/motion"
	"github.com/relabs-tech/shake_monitor/internal/proximity"
	"github.com/relabs-tech/shake_monitor/internal/render"
	"github.com/relabs-tech/shake_monitor/internal/sample"
)

// ErrDisabled is returned for samples that arrive while sensors are off.
var ErrDisabled = errors.New("monitor: sensors disabled")

// Options configures a Monitor.
type Options struct {
	// ProximityMaxRangeCm <= 0 means the host has no proximity sensor.
	ProximityMaxRangeCm float64
	ThresholdG          float64
	Clock               clock.Clock
	Logger              *zap.Logger
}

// Monitor owns one instance of each core component. Its methods are not
// safe for concurrent use; Run serializes events and submitted commands.
type Monitor struct {
	log   *zap.Logger
	clock clock.Clock
	start time.Time

	filter    *motion.Filter
	tracker   *proximity.Tracker
	calib     calibration.State
	threshold *motion.Threshold

	enabled    bool
	lastAx     float64
	lastMotion motion.Result
	haveMotion bool
	lastProx   proximity.Result

	scene render.Scene
	seq   uint64
	sinks []Sink

	commands chan request
}

type request struct {
	cmd   Command
	reply chan response
}

type response struct {
	frame Frame
	err   error
}

// New creates a Monitor. An invalid ThresholdG falls back to the default.
func New(opts Options) *Monitor {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	threshold := motion.NewThreshold()
	if opts.ThresholdG != 0 {
		if err := threshold.Set(opts.ThresholdG); err != nil {
			log.Warn("ignoring configured shake threshold", zap.Error(err))
		}
	}

	tracker := proximity.FromRange(opts.ProximityMaxRangeCm)
	if !tracker.Available() {
		log.Warn("proximity sensor missing")
	}

	m := &Monitor{
		log:       log,
		clock:     clk,
		start:     clk.Now(),
		filter:    motion.NewFilter(),
		tracker:   tracker,
		threshold: threshold,
		enabled:   true,
		lastProx:  tracker.Result(),
		scene:     render.NewScene(threshold.G()),
		commands:  make(chan request),
	}
	return m
}

// AddSink registers a frame consumer. Call before Run.
func (m *Monitor) AddSink(s Sink) {
	m.sinks = append(m.sinks, s)
}

func (m *Monitor) nowMs() int64 {
	return clock.Millis(m.clock, m.start)
}

// HandleEvent dispatches a sensor event.
func (m *Monitor) HandleEvent(ev sample.Event) (Frame, error) {
	switch ev.Kind {
	case sample.KindAccel:
		return m.HandleAccel(ev.Accel)
	case sample.KindProximity:
		return m.HandleProximity(ev.Proximity)
	default:
		return m.Snapshot(), &sample.InvalidSampleError{Field: "kind", Value: float64(ev.Kind), Reason: "unknown event kind"}
	}
}

// HandleAccel runs one accelerometer sample through the filter and the
// accelerometer render path.
func (m *Monitor) HandleAccel(a sample.Accel) (Frame, error) {
	if !m.enabled {
		return m.Snapshot(), ErrDisabled
	}

	now := m.nowMs()
	res, err := m.filter.Update(a, m.threshold.G(), now)
	if err != nil {
		return m.Snapshot(), err
	}
	m.lastAx = a.Ax
	m.lastMotion = res
	m.haveMotion = true

	m.scene.ApplyMotion(render.MotionInput{
		Result:     res,
		OffsetDeg:  m.calib.Current(),
		ThresholdG: m.threshold.G(),
		Covered:    m.tracker.Covered(),
	})

	if res.ShakeFired {
		m.log.Info("shake",
			zap.Float64("g_force", res.GForce),
			zap.Float64("threshold_g", m.threshold.G()),
			zap.String("message", render.ShakeNotice(res.GForce, m.threshold.G())),
		)
	}

	return m.emit(CauseAccel, now), nil
}

// HandleProximity records a proximity sample. Hosts without a proximity
// sensor ignore the reading.
func (m *Monitor) HandleProximity(p sample.Proximity) (Frame, error) {
	if !m.enabled {
		return m.Snapshot(), ErrDisabled
	}

	res, err := m.tracker.Update(p.DistanceCm)
	if err != nil {
		return m.Snapshot(), err
	}
	m.lastProx = res
	if res.Available {
		m.scene.ApplyProximity(res, m.lastAx)
	}

	return m.emit(CauseProximity, m.nowMs()), nil
}

// Calibrate makes the most recent tilt reading the new zero.
func (m *Monitor) Calibrate() (Frame, error) {
	off, err := m.calib.Calibrate(m.lastAx)
	if err != nil {
		return m.Snapshot(), err
	}
	m.scene.ApplyCalibrate()
	m.log.Info("calibrated", zap.Float64("offset_deg", off), zap.String("message", render.CalibratedNotice))
	return m.emit(CauseCalibrate, m.nowMs()), nil
}

// SetThreshold changes the shake threshold. Out of range values are
// rejected and the previous threshold stays in effect.
func (m *Monitor) SetThreshold(g float64) (Frame, error) {
	if err := m.threshold.Set(g); err != nil {
		return m.Snapshot(), err
	}
	return m.thresholdChanged(), nil
}

// SetThresholdProgress changes the threshold from a 0..30 slider position.
func (m *Monitor) SetThresholdProgress(progress int) (Frame, error) {
	if err := m.threshold.SetProgress(progress); err != nil {
		return m.Snapshot(), err
	}
	return m.thresholdChanged(), nil
}

func (m *Monitor) thresholdChanged() Frame {
	m.scene.ApplyThreshold(m.threshold.G())
	m.log.Debug("shake threshold changed", zap.Float64("threshold_g", m.threshold.G()))
	return m.emit(CauseThreshold, m.nowMs())
}

// SetEnabled turns sample processing on or off. Filter state is kept.
func (m *Monitor) SetEnabled(enabled bool) Frame {
	if m.enabled != enabled {
		m.log.Info("sensors toggled", zap.Bool("enabled", enabled))
	}
	m.enabled = enabled
	return m.emit(CauseEnable, m.nowMs())
}

// Enabled reports whether samples are being processed.
func (m *Monitor) Enabled() bool {
	return m.enabled
}

// Snapshot returns the current frame without publishing it.
func (m *Monitor) Snapshot() Frame {
	return m.frame(CauseInit, m.nowMs())
}

func (m *Monitor) frame(cause Cause, now int64) Frame {
	return Frame{
		Seq:                  m.seq,
		AtMs:                 now,
		Cause:                cause,
		Motion:               m.lastMotion,
		HaveMotion:           m.haveMotion,
		Proximity:            m.lastProx,
		ProximityState:       m.tracker.State().String(),
		ThresholdG:           m.threshold.G(),
		ThresholdProgress:    m.threshold.Progress(),
		CalibrationOffsetDeg: m.calib.Current(),
		Enabled:              m.enabled,
		Scene:                m.scene,
	}
}

func (m *Monitor) emit(cause Cause, now int64) Frame {
	m.seq++
	f := m.frame(cause, now)
	for _, s := range m.sinks {
		s.Publish(f)
	}
	return f
}

// Run drains events and submitted commands until ctx is done or events is
// closed. Bad samples are logged and dropped.
func (m *Monitor) Run(ctx context.Context, events <-chan sample.Event) error {
	m.log.Info("monitor started",
		zap.Float64("threshold_g", m.threshold.G()),
		zap.String("proximity", m.tracker.State().String()),
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := m.HandleEvent(ev); err != nil && !errors.Is(err, ErrDisabled) {
				m.log.Warn("dropping sample",
					zap.String("source", ev.Source),
					zap.Stringer("kind", ev.Kind),
					zap.Error(err),
				)
			}

		case req := <-m.commands:
			f, err := m.Apply(req.cmd)
			req.reply <- response{frame: f, err: err}
		}
	}
}

// Submit hands cmd to the goroutine running Run and waits for the result.
// Safe for concurrent use.
func (m *Monitor) Submit(ctx context.Context, cmd Command) (Frame, error) {
	req := request{cmd: cmd, reply: make(chan response, 1)}
	select {
	case m.commands <- req:
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
	select {
	case resp := <-req.reply:
		return resp.frame, resp.err
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}
