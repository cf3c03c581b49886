package ui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/shake_monitor/internal/monitor"
	"github.com/relabs-tech/shake_monitor/internal/proximity"
	"github.com/relabs-tech/shake_monitor/internal/render"
)

type fakeSubmitter struct {
	mu   sync.Mutex
	cmds []monitor.Command
	err  error
}

func (s *fakeSubmitter) Submit(_ context.Context, cmd monitor.Command) (monitor.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cmds = append(s.cmds, cmd)
	return monitor.Frame{Seq: 100, Cause: monitor.Cause(cmd.Action)}, s.err
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func testFrame() monitor.Frame {
	scene := render.NewScene(2.7)
	scene.AxisText = [3]string{"ax: 1.00 m/s²", "ay: 0.00 m/s²", "az: 9.81 m/s²"}
	scene.ProximityText = "Proximity: 5.0 cm"
	scene.ProximityProgress = 5
	scene.AxisLabels = render.Red(1)
	return monitor.Frame{
		Seq:               10,
		Cause:             monitor.CauseAccel,
		ThresholdG:        2.7,
		ThresholdProgress: 7,
		Enabled:           true,
		Proximity:         proximity.Result{DistanceCm: 5, Available: true},
		Scene:             scene,
	}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	mm, ok := next.(Model)
	require.True(t, ok)
	return mm, cmd
}

func TestModel_ViewWaiting(t *testing.T) {
	m := New(&fakeSubmitter{})
	assert.Contains(t, m.View(), "waiting for sensors")
}

func TestModel_FrameView(t *testing.T) {
	m, _ := update(t, New(&fakeSubmitter{}), FrameMsg(testFrame()))

	view := m.View()
	assert.Contains(t, view, "ax: 1.00 m/s²")
	assert.Contains(t, view, "Proximity: 5.0 cm")
	assert.Contains(t, view, "Shake threshold: 2.7 g")
	assert.Contains(t, view, "[ ON  ]")
	assert.Contains(t, view, "[█████]")
}

func TestModel_NoProximitySensor(t *testing.T) {
	f := testFrame()
	f.Proximity = proximity.Result{}
	m, _ := update(t, New(&fakeSubmitter{}), FrameMsg(f))
	assert.Contains(t, m.View(), "Proximity: no sensor")
}

func TestModel_KeysSubmitCommands(t *testing.T) {
	sub := &fakeSubmitter{}
	m, _ := update(t, New(sub), FrameMsg(testFrame()))

	tests := []struct {
		key  string
		want monitor.Command
	}{
		{"c", monitor.Command{Action: monitor.ActionCalibrate}},
		{"+", monitor.Command{Action: monitor.ActionThreshold, Progress: intPtr(8)}},
		{"-", monitor.Command{Action: monitor.ActionThreshold, Progress: intPtr(6)}},
		{" ", monitor.Command{Action: monitor.ActionEnable, Enabled: boolPtr(false)}},
	}
	for i, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			_, cmd := update(t, m, key(tt.key))
			require.NotNil(t, cmd)

			msg := cmd()
			res, ok := msg.(CommandResultMsg)
			require.True(t, ok)
			assert.NoError(t, res.Err)

			require.Len(t, sub.cmds, i+1)
			assert.Equal(t, tt.want, sub.cmds[i])
		})
	}
}

func TestModel_ThresholdClamped(t *testing.T) {
	f := testFrame()
	f.ThresholdProgress = 30
	m, _ := update(t, New(&fakeSubmitter{}), FrameMsg(f))

	_, cmd := update(t, m, key("+"))
	assert.Nil(t, cmd)

	f.ThresholdProgress = 0
	m, _ = update(t, m, FrameMsg(f))
	_, cmd = update(t, m, key("-"))
	assert.Nil(t, cmd)
}

func TestModel_Quit(t *testing.T) {
	_, cmd := update(t, New(&fakeSubmitter{}), key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_CommandResult(t *testing.T) {
	m, _ := update(t, New(&fakeSubmitter{}), FrameMsg(testFrame()))

	m, _ = update(t, m, CommandResultMsg{Err: errors.New("threshold out of range")})
	assert.Contains(t, m.View(), "error: threshold out of range")

	// a stale result does not replace a newer frame
	m, _ = update(t, m, CommandResultMsg{Frame: monitor.Frame{Seq: 3}})
	assert.Equal(t, uint64(10), m.frame.Seq)
	assert.NotContains(t, m.View(), "error:")
}

func TestModel_InitRequestsSnapshot(t *testing.T) {
	sub := &fakeSubmitter{}
	cmd := New(sub).Init()
	require.NotNil(t, cmd)

	res := cmd().(CommandResultMsg)
	assert.Equal(t, uint64(100), res.Frame.Seq)
	assert.Equal(t, monitor.ActionSnapshot, sub.cmds[0].Action)
}

type fakeSender struct {
	msgs chan tea.Msg
}

func (s fakeSender) Send(msg tea.Msg) { s.msgs <- msg }

func TestProgramSink_KeepsNewest(t *testing.T) {
	s := NewProgramSink()
	for i := 1; i <= 5; i++ {
		s.Publish(monitor.Frame{Seq: uint64(i)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender := fakeSender{msgs: make(chan tea.Msg, 4)}
	go s.Forward(ctx, sender)

	select {
	case msg := <-sender.msgs:
		assert.Equal(t, uint64(5), monitor.Frame(msg.(FrameMsg)).Seq)
	case <-time.After(time.Second):
		t.Fatal("frame not forwarded")
	}
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }
