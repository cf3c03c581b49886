package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relabs-tech/shake_monitor/internal/config"
	"github.com/relabs-tech/shake_monitor/internal/monitor"
)

func TestNewSource(t *testing.T) {
	cfg := config.Default()

	src, err := NewSource(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "mock", src.Name())

	cfg.Source = config.SourceSerial
	src, err = NewSource(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "serial", src.Name())

	cfg.Source = "carrier-pigeon"
	_, err = NewSource(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestPipeline_RunWithMockSource(t *testing.T) {
	cfg := config.Default()
	cfg.SampleInterval = 1
	cfg.WebServerPort = 0

	p, err := NewPipeline(cfg, zap.NewNop())
	require.NoError(t, err)

	frames := make(chan monitor.Frame, 256)
	p.AddSink(monitor.SinkFunc(func(f monitor.Frame) {
		select {
		case frames <- f:
		default:
		}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	var sawAccel, sawProximity bool
	deadline := time.After(2 * time.Second)
	for !sawAccel || !sawProximity {
		select {
		case f := <-frames:
			switch f.Cause {
			case monitor.CauseAccel:
				sawAccel = true
			case monitor.CauseProximity:
				sawProximity = true
				assert.True(t, f.Proximity.Available)
				assert.Equal(t, 5.0, f.Proximity.DistanceCm)
			}
		case <-deadline:
			t.Fatal("no frames from mock pipeline")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop")
	}
}
