package app

import (
	"fmt"
	"io"

	"github.com/relabs-tech/shake_monitor/internal/monitor"
)

// ConsoleSink prints frames to w. Accelerometer frames are rate limited to
// one per everyMs; every other frame and every shake is printed.
type ConsoleSink struct {
	w       io.Writer
	everyMs int64
	lastMs  int64
	printed bool
}

func NewConsoleSink(w io.Writer, everyMs int64) *ConsoleSink {
	return &ConsoleSink{w: w, everyMs: everyMs}
}

func (c *ConsoleSink) Publish(f monitor.Frame) {
	if shake, ok := f.Shake(); ok {
		fmt.Fprintln(c.w, formatShakeLine(shake))
	}
	if f.Cause == monitor.CauseAccel && c.printed && f.AtMs-c.lastMs < c.everyMs {
		return
	}
	c.lastMs = f.AtMs
	c.printed = true
	fmt.Fprintln(c.w, formatFrameLine(f))
}
