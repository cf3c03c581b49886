package app

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relabs-tech/shake_monitor/internal/monitor"
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
	if s.err != nil {
		return monitor.Frame{}, s.err
	}
	return monitor.Frame{Seq: 7, Cause: monitor.Cause(cmd.Action)}, nil
}

func (s *fakeSubmitter) commands() []monitor.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]monitor.Command(nil), s.cmds...)
}

func newTestWebServer(t *testing.T, sub Submitter, staticDir string) (*WebServer, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s := NewWebServer(sub, staticDir, zap.NewNop())
	s.Start(ctx)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestWebServer_StateBeforeAndAfterData(t *testing.T) {
	s, ts := newTestWebServer(t, &fakeSubmitter{}, "")

	resp, err := http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	s.Publish(monitor.Frame{Seq: 3, Cause: monitor.CauseAccel, ThresholdG: 2.7})

	resp, err = http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var f monitor.Frame
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&f))
	assert.Equal(t, uint64(3), f.Seq)
	assert.Equal(t, 2.7, f.ThresholdG)
}

func TestWebServer_PostCommand(t *testing.T) {
	sub := &fakeSubmitter{}
	_, ts := newTestWebServer(t, sub, "")

	resp, err := http.Post(ts.URL+"/api/command", "application/json", strings.NewReader(`{"action":"threshold","progress":12}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var f monitor.Frame
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&f))
	assert.Equal(t, uint64(7), f.Seq)

	cmds := sub.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, monitor.ActionThreshold, cmds[0].Action)
	require.NotNil(t, cmds[0].Progress)
	assert.Equal(t, 12, *cmds[0].Progress)
}

func TestWebServer_PostCommandErrors(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("threshold 9.0 out of range")}
	_, ts := newTestWebServer(t, sub, "")

	resp, err := http.Post(ts.URL+"/api/command", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/command", "application/json", strings.NewReader(`{"action":"threshold","threshold_g":9}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/command")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebServer_WebsocketCommandsAndStream(t *testing.T) {
	sub := &fakeSubmitter{}
	s, ts := newTestWebServer(t, sub, "")
	conn := dialWS(t, ts)

	require.NoError(t, conn.WriteJSON(monitor.Command{Action: monitor.ActionCalibrate}))
	reply := readWS(t, conn)
	assert.Equal(t, "frame", reply.Type)
	require.NotNil(t, reply.Frame)
	assert.Equal(t, monitor.CauseCalibrate, reply.Frame.Cause)

	// the client is registered once its first reply arrives
	s.Publish(shakeFrame())

	// frames and shakes travel on separate hub queues, so either may come first
	got := map[string]WSMessage{}
	for range 2 {
		msg := readWS(t, conn)
		got[msg.Type] = msg
	}

	require.Contains(t, got, "frame")
	require.NotNil(t, got["frame"].Frame)
	assert.Equal(t, uint64(4), got["frame"].Frame.Seq)

	require.Contains(t, got, "shake")
	require.NotNil(t, got["shake"].Shake)
	assert.Equal(t, "SHAKE! g=3.13 (threshold 2.7)", got["shake"].Shake.Message)
	assert.Zero(t, s.DroppedShakes())
}

func TestWebServer_ShakeDropsAreCounted(t *testing.T) {
	// no hub running, so the queues only fill
	s := NewWebServer(&fakeSubmitter{}, "", zap.NewNop())

	for range forwardBufferSize + 3 {
		s.Publish(monitor.Frame{Seq: 1})
	}
	assert.Zero(t, s.DroppedShakes(), "frame drops are not shake drops")

	for range shakeBufferSize {
		s.Publish(shakeFrame())
	}
	assert.Zero(t, s.DroppedShakes())

	s.Publish(shakeFrame())
	assert.Equal(t, uint64(1), s.DroppedShakes())
}

func TestWSClient_FramesLeaveRoomForShakes(t *testing.T) {
	c := &wsClient{id: "c1", send: make(chan []byte, messageBufferSize)}

	frames := 0
	for c.trySend([]byte("frame"), shakeReserve) {
		frames++
	}
	assert.Equal(t, messageBufferSize-shakeReserve, frames)

	for range shakeReserve {
		assert.True(t, c.trySend([]byte("shake"), 0))
	}
	assert.False(t, c.trySend([]byte("shake"), 0))

	c.close()
	assert.False(t, c.trySend([]byte("shake"), 0))
}

func TestWebServer_WebsocketSendsLatestOnJoin(t *testing.T) {
	s, ts := newTestWebServer(t, &fakeSubmitter{}, "")
	s.Publish(monitor.Frame{Seq: 11, Cause: monitor.CauseProximity})

	conn := dialWS(t, ts)
	msg := readWS(t, conn)
	require.NotNil(t, msg.Frame)
	assert.Equal(t, uint64(11), msg.Frame.Seq)
}

func TestWebServer_WebsocketCommandError(t *testing.T) {
	_, ts := newTestWebServer(t, &fakeSubmitter{err: monitor.ErrDisabled}, "")
	conn := dialWS(t, ts)

	require.NoError(t, conn.WriteJSON(monitor.Command{Action: monitor.ActionCalibrate}))
	msg := readWS(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, monitor.ErrDisabled.Error(), msg.Error)
}

func TestWebServer_StaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>shake</h1>"), 0o644))
	_, ts := newTestWebServer(t, &fakeSubmitter{}, dir)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWriteJSON_EncodeFailureIs500(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]float64{"g_force": math.Inf(1)}, zap.NewNop())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEqual(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestWebServer_ExtremeSampleDoesNotBreakState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := monitor.New(monitor.Options{ProximityMaxRangeCm: 5, Logger: zap.NewNop()})
	s := NewWebServer(m, "", zap.NewNop())
	m.AddSink(s)
	s.Start(ctx)
	go func() { _ = m.Run(ctx, nil) }()

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	post := func(body string) int {
		resp, err := http.Post(ts.URL+"/api/command", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, post(`{"action":"accel","ax":1,"ay":0,"az":9.8}`))
	assert.Equal(t, http.StatusUnprocessableEntity, post(`{"action":"accel","ax":1e200,"ay":0,"az":0}`))
	assert.Equal(t, http.StatusOK, post(`{"action":"calibrate"}`))

	resp, err := http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var f monitor.Frame
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&f))
	assert.Equal(t, monitor.CauseCalibrate, f.Cause)
	assert.Equal(t, 1.0, f.Motion.Ax)
}
