package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/shake_monitor/internal/config"
	"github.com/relabs-tech/shake_monitor/internal/monitor"
	"github.com/relabs-tech/shake_monitor/internal/sample"
	"github.com/relabs-tech/shake_monitor/internal/sensors"
)

const eventBufferSize = 64

// NewSource builds the sensor source selected by cfg.Source.
func NewSource(cfg *config.Config, log *zap.Logger) (sensors.Source, error) {
	interval := time.Duration(cfg.SampleInterval) * time.Millisecond
	switch cfg.Source {
	case config.SourceMock:
		return sensors.NewMockSource(interval, cfg.ProximityMaxRangeCm, nil), nil
	case config.SourceMPU9250:
		return sensors.NewMPU9250Source(cfg.IMUSPIDevice, cfg.IMUCSPin, cfg.IMUAccelRange, interval, log)
	case config.SourceSerial:
		return sensors.NewSerialBridgeSource(cfg.SerialPort, cfg.SerialBaudRate, log), nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}

// Pipeline connects one sensor source to one monitor and its outputs.
type Pipeline struct {
	Monitor *monitor.Monitor

	cfg    *config.Config
	source sensors.Source
	events chan sample.Event
	log    *zap.Logger
}

// NewPipeline builds the source and monitor described by cfg. The
// mpu9250 source has no proximity sensor, so the monitor starts without one.
func NewPipeline(cfg *config.Config, log *zap.Logger) (*Pipeline, error) {
	src, err := NewSource(cfg, log)
	if err != nil {
		return nil, err
	}
	return NewPipelineWithSource(cfg, src, log), nil
}

// NewPipelineWithSource is NewPipeline with a caller-provided source.
func NewPipelineWithSource(cfg *config.Config, src sensors.Source, log *zap.Logger) *Pipeline {
	maxRange := cfg.ProximityMaxRangeCm
	if cfg.Source == config.SourceMPU9250 {
		maxRange = 0
	}
	m := monitor.New(monitor.Options{
		ProximityMaxRangeCm: maxRange,
		ThresholdG:          cfg.ShakeThresholdG,
		Logger:              log.Named("monitor"),
	})
	return &Pipeline{
		Monitor: m,
		cfg:     cfg,
		source:  src,
		events:  make(chan sample.Event, eventBufferSize),
		log:     log,
	}
}

// AddSink registers an extra output. It must be called before Run.
func (p *Pipeline) AddSink(s monitor.Sink) {
	p.Monitor.AddSink(s)
}

// Run starts the source, the monitor and every output enabled in the
// configuration, and blocks until ctx is done or one of them fails.
func (p *Pipeline) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if p.cfg.MQTTEnabled {
		client, err := ConnectMQTT(p.cfg.MQTTBroker, p.cfg.MQTTClientID, p.log)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)

		pub := NewMQTTPublisher(client, p.cfg.MQTTTopicPrefix, p.log.Named("mqtt"))
		p.Monitor.AddSink(pub)
		g.Go(func() error { return pub.Run(ctx) })
	}

	if p.cfg.WebServerPort > 0 {
		web := NewWebServer(p.Monitor, p.cfg.WebStaticDir, p.log.Named("web"))
		p.Monitor.AddSink(web)
		addr := fmt.Sprintf(":%d", p.cfg.WebServerPort)
		g.Go(func() error { return web.Run(ctx, addr) })
	}

	if p.cfg.DisplayEnabled {
		disp := NewStatusDisplay(p.log.Named("display"))
		p.Monitor.AddSink(disp)
		interval := time.Duration(p.cfg.DisplayUpdateInterval) * time.Millisecond
		g.Go(func() error {
			// a missing display is not fatal
			if err := disp.Run(ctx, interval); err != nil && !errors.Is(err, context.Canceled) {
				p.log.Warn("display not available", zap.Error(err))
			}
			return nil
		})
	}

	p.log.Info("starting sensor source", zap.String("source", p.source.Name()))
	g.Go(func() error {
		if err := p.source.Run(ctx, p.events); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("source %s: %w", p.source.Name(), err)
		}
		return nil
	})
	g.Go(func() error { return p.Monitor.Run(ctx, p.events) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
