// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors provides the accelerometer and proximity sample sources.
package sensors

import (
	"context"

	"github.com/relabs-tech/shake_monitor/internal/sample"
)

// Source is anything that can deliver sensor events over time.
// Run blocks, writing events to out, until ctx is done or the source fails.
type Source interface {
	Name() string
	Run(ctx context.Context, out chan<- sample.Event) error
}

// emit sends ev unless ctx is done first.
func emit(ctx context.Context, out chan<- sample.Event, ev sample.Event) error {
	select {
	case out <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
