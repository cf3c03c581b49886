package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/shake_monitor/internal/sample"
	"github.com/relabs-tech/shake_monitor/internal/sensors"
)

// RunSimulator writes the events of src to w as serial bridge sentences,
// one per line, until ctx is done. It stands in for the microcontroller.
func RunSimulator(ctx context.Context, src sensors.Source, w io.Writer) error {
	g, ctx := errgroup.WithContext(ctx)
	events := make(chan sample.Event, eventBufferSize)

	g.Go(func() error { return src.Run(ctx, events) })
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev := <-events:
				if _, err := fmt.Fprintf(w, "%s\r\n", sensors.EncodeSentence(ev)); err != nil {
					return fmt.Errorf("simulator write: %w", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
