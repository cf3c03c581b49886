// Package ui is a terminal dashboard for the shake monitor.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/relabs-tech/shake_monitor/internal/monitor"
	"github.com/relabs-tech/shake_monitor/internal/motion"
	"github.com/relabs-tech/shake_monitor/internal/render"
)

const (
	commandTimeout = 2 * time.Second
	sliderWidth    = motion.MaxThresholdProgress
)

// Submitter runs a command on the goroutine that owns the monitor.
type Submitter interface {
	Submit(ctx context.Context, cmd monitor.Command) (monitor.Frame, error)
}

// Model is the root Bubble Tea model.
type Model struct {
	width  int
	height int

	submit    Submitter
	frame     monitor.Frame
	haveFrame bool
	err       error
}

func New(submit Submitter) Model {
	return Model{submit: submit}
}

func (m Model) Init() tea.Cmd {
	return m.send(monitor.Command{Action: monitor.ActionSnapshot})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case FrameMsg:
		m.setFrame(monitor.Frame(msg))
		return m, nil

	case CommandResultMsg:
		m.err = msg.Err
		if msg.Err == nil {
			m.setFrame(msg.Frame)
		}
		return m, nil
	}

	return m, nil
}

// setFrame keeps the newest frame; results of commands may arrive after
// newer streamed frames.
func (m *Model) setFrame(f monitor.Frame) {
	if m.haveFrame && f.Seq < m.frame.Seq {
		return
	}
	m.frame = f
	m.haveFrame = true
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "c", "C":
		return m, m.send(monitor.Command{Action: monitor.ActionCalibrate})

	case "+", "=", "right", "l":
		return m, m.nudgeThreshold(1)

	case "-", "_", "left", "h":
		return m, m.nudgeThreshold(-1)

	case " ", "e", "E":
		enabled := !m.frame.Enabled
		if !m.haveFrame {
			enabled = false
		}
		return m, m.send(monitor.Command{Action: monitor.ActionEnable, Enabled: &enabled})
	}

	return m, nil
}

func (m Model) nudgeThreshold(delta int) tea.Cmd {
	progress := motion.ProgressFromThreshold(motion.DefaultThresholdG)
	if m.haveFrame {
		progress = m.frame.ThresholdProgress
	}
	progress += delta
	if progress < 0 || progress > motion.MaxThresholdProgress {
		return nil
	}
	return m.send(monitor.Command{Action: monitor.ActionThreshold, Progress: &progress})
}

func (m Model) send(cmd monitor.Command) tea.Cmd {
	submit := m.submit
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		f, err := submit.Submit(ctx, cmd)
		return CommandResultMsg{Frame: f, Err: err}
	}
}

func (m Model) View() string {
	title := StyleTitle.Render("Shake Monitor")
	if !m.haveFrame {
		return title + "\n  waiting for sensors...\n"
	}

	f := m.frame
	s := f.Scene

	var b strings.Builder
	axes := widget(lipgloss.NewStyle(), s.AxisLabels)
	for _, text := range s.AxisText {
		if text == "" {
			text = "--"
		}
		b.WriteString(axes.Render(text) + "\n")
	}
	b.WriteString(fmt.Sprintf("g-force: %.2f\n", f.Motion.GForce))

	phone := widget(lipgloss.NewStyle(), s.PhoneTint)
	b.WriteString(phone.Render(fmt.Sprintf("phone %s %6.1f°", tiltGlyph(s.PhoneRotationDeg), s.PhoneRotationDeg)) + "\n\n")

	proxText := s.ProximityText
	if !f.Proximity.Available {
		proxText = "Proximity: no sensor"
	}
	b.WriteString(widget(lipgloss.NewStyle(), s.ProximityLabel).Render(proxText) + "\n")
	b.WriteString(widget(lipgloss.NewStyle(), s.ProximityBar).Render(bar(s.ProximityProgress, render.ProximityBarMax)) + "\n\n")

	b.WriteString(widget(lipgloss.NewStyle(), s.ThresholdLabel).Render(s.ThresholdText) + "\n")
	b.WriteString(widget(lipgloss.NewStyle(), s.ThresholdSlider).Render(bar(f.ThresholdProgress, sliderWidth)) + "\n\n")

	sw := "[ OFF ]"
	if f.Enabled {
		sw = "[ ON  ]"
	}
	b.WriteString(widget(lipgloss.NewStyle(), s.EnableSwitch).Render("sensors "+sw) + "  ")
	b.WriteString(widget(lipgloss.NewStyle(), s.CalibrateButton).Render("(c) calibrate"))

	body := card(s.Card).Render(b.String())

	lines := []string{title, body}
	if s.Notice != "" {
		lines = append(lines, StyleNotice.Render(s.Notice))
	}
	if m.err != nil {
		lines = append(lines, StyleError.Render("error: "+m.err.Error()))
	}
	lines = append(lines, StyleHelp.Render("c calibrate  +/- threshold  space sensors on/off  q quit"))
	return strings.Join(lines, "\n") + "\n"
}

func bar(progress, size int) string {
	progress = min(max(progress, 0), size)
	return "[" + strings.Repeat("█", progress) + strings.Repeat("·", size-progress) + "]"
}

// tiltGlyph draws the phone leaning the way it is rotated.
func tiltGlyph(deg float64) string {
	switch {
	case deg > 10:
		return "\\"
	case deg < -10:
		return "/"
	default:
		return "|"
	}
}
