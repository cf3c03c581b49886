package ui

import "github.com/relabs-tech/shake_monitor/internal/monitor"

// FrameMsg carries a monitor frame into the program.
type FrameMsg monitor.Frame

// CommandResultMsg reports the outcome of a submitted command.
type CommandResultMsg struct {
	Frame monitor.Frame
	Err   error
}
