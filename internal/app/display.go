package app

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/shake_monitor/internal/monitor"
	"github.com/relabs-tech/shake_monitor/internal/render"
)

const (
	displayWidth  = 128
	displayHeight = 64

	// how long the shake banner stays on screen
	shakeBannerMs = 1500
)

// StatusDisplay is a monitor.Sink that renders the latest frame on an
// SSD1306 OLED at a fixed rate.
type StatusDisplay struct {
	mu        sync.RWMutex
	frame     monitor.Frame
	haveFrame bool
	lastShake int64
	shaken    bool

	log *zap.Logger
}

func NewStatusDisplay(log *zap.Logger) *StatusDisplay {
	return &StatusDisplay{log: log}
}

func (d *StatusDisplay) Publish(f monitor.Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frame = f
	d.haveFrame = true
	if f.Cause == monitor.CauseAccel && f.Motion.ShakeFired {
		d.lastShake = f.AtMs
		d.shaken = true
	}
}

func (d *StatusDisplay) snapshot() displayState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return displayState{
		frame:     d.frame,
		haveFrame: d.haveFrame,
		shaking:   d.shaken && d.frame.AtMs-d.lastShake < shakeBannerMs,
	}
}

// Run opens the display on the default I2C bus and redraws it every
// interval until ctx is done.
func (d *StatusDisplay) Run(ctx context.Context, interval time.Duration) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer dev.Halt()
	d.log.Info("display initialized", zap.Stringer("bounds", dev.Bounds()))

	if err := dev.Draw(dev.Bounds(), drawSplash(), image.Point{}); err != nil {
		d.log.Warn("display: error showing splash", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		img := drawStatus(d.snapshot())
		if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
			d.log.Warn("display: error updating", zap.Error(err))
		}
	}
}

type displayState struct {
	frame     monitor.Frame
	haveFrame bool
	shaking   bool
}

func newCanvas(background image1bit.Bit) (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))
	var fill byte
	if background {
		fill = 0xff
	}
	for i := range img.Pix {
		img.Pix[i] = fill
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{!background},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawLine(drawer *font.Drawer, x, y int, text string) {
	drawer.Dot = fixed.P(x, y)
	drawer.DrawString(text)
}

func drawSplash() *image1bit.VerticalLSB {
	img, drawer := newCanvas(image1bit.Off)
	drawLine(drawer, 10, 26, "Shake Monitor")
	drawLine(drawer, 5, 43, "Waiting for")
	drawLine(drawer, 25, 56, "sensors")
	return img
}

// drawStatus renders the OLED page for s. A covered proximity sensor
// inverts the screen, the one-bit version of turning every widget white.
func drawStatus(s displayState) *image1bit.VerticalLSB {
	f := s.frame
	covered := s.haveFrame && f.Proximity.Covered
	img, drawer := newCanvas(image1bit.Bit(covered))

	if !s.haveFrame {
		drawLine(drawer, 0, 26, "Shake Monitor")
		drawLine(drawer, 0, 39, "Waiting...")
		return img
	}

	if !f.Enabled {
		drawLine(drawer, 0, 13, "Sensors OFF")
	} else if s.shaking {
		drawLine(drawer, 0, 13, "** SHAKE! **")
	} else {
		drawLine(drawer, 0, 13, fmt.Sprintf("Tilt: %6.1f", f.Scene.PhoneRotationDeg))
	}
	drawLine(drawer, 0, 26, fmt.Sprintf("g: %4.2f / %.1f", f.Motion.GForce, f.ThresholdG))
	drawLine(drawer, 0, 39, fmt.Sprintf("ax%5.1f az%5.1f", f.Motion.Ax, f.Motion.Az))

	switch {
	case !f.Proximity.Available:
		drawLine(drawer, 0, 52, "Prox: n/a")
	default:
		drawLine(drawer, 0, 52, fmt.Sprintf("Prox: %s", proximityBar(f.Scene.ProximityProgress)))
	}
	return img
}

func proximityBar(progress int) string {
	bar := make([]byte, render.ProximityBarMax)
	for i := range bar {
		if i < progress {
			bar[i] = '#'
		} else {
			bar[i] = '.'
		}
	}
	return "[" + string(bar) + "]"
}
