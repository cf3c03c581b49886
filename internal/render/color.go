// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package render holds the deterministic mapping from motion and proximity
// results onto colors, rotation and widget state.
package render

import (
	"fmt"
	"math"
)

// Color is a packed 0xAARRGGBB value.
type Color uint32

const (
	// Unset means the widget keeps its layout default.
	Unset Color = 0

	White     Color = 0xffffffff
	AlertCard Color = 0xffff0000

	opaque Color = 0xff000000
)

// IntensityScale maps m/s² onto a 0..255 channel.
const IntensityScale = 50.0

// Intensity returns min(255, |v|*50) truncated to an integer channel value.
func Intensity(v float64) uint8 {
	return uint8(math.Min(255, math.Abs(v)*IntensityScale))
}

func Red(v float64) Color   { return opaque | Color(Intensity(v))<<16 }
func Green(v float64) Color { return opaque | Color(Intensity(v))<<8 }
func Blue(v float64) Color  { return opaque | Color(Intensity(v)) }

func (c Color) A() uint8 { return uint8(c >> 24) }
func (c Color) R() uint8 { return uint8(c >> 16) }
func (c Color) G() uint8 { return uint8(c >> 8) }
func (c Color) B() uint8 { return uint8(c) }

// Hex returns the color as #rrggbb, dropping alpha.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R(), c.G(), c.B())
}

func (c Color) String() string {
	return fmt.Sprintf("0x%08x", uint32(c))
}

// MarshalText encodes the color as 0xAARRGGBB for JSON payloads.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Color) UnmarshalText(b []byte) error {
	var v uint32
	if _, err := fmt.Sscanf(string(b), "0x%08x", &v); err != nil {
		return fmt.Errorf("color %q: %w", b, err)
	}
	*c = Color(v)
	return nil
}

// Rotation returns the on-screen tilt in degrees for a raw ax reading.
func Rotation(ax, offsetDeg float64) float64 {
	return -ax*6 - offsetDeg
}
