package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/relabs-tech/shake_monitor/internal/monitor"
)

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramSink is a monitor.Sink holding only the newest frame, so a slow
// terminal never stalls the monitor.
type ProgramSink struct {
	latest chan monitor.Frame
}

func NewProgramSink() *ProgramSink {
	return &ProgramSink{latest: make(chan monitor.Frame, 1)}
}

func (s *ProgramSink) Publish(f monitor.Frame) {
	select {
	case s.latest <- f:
		return
	default:
	}
	// replace the stale frame; Publish has a single caller
	select {
	case <-s.latest:
	default:
	}
	select {
	case s.latest <- f:
	default:
	}
}

// Forward delivers frames to p until ctx is done.
func (s *ProgramSink) Forward(ctx context.Context, p Sender) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-s.latest:
			p.Send(FrameMsg(f))
		}
	}
}
