package sensors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/shake_monitor/internal/motion"
	"github.com/relabs-tech/shake_monitor/internal/sample"
)

func TestMockAccel_ShakesOnlyDuringBursts(t *testing.T) {
	f := motion.NewFilter()
	step := 20 * time.Millisecond

	var shakes []time.Duration
	for elapsed := time.Duration(0); elapsed < 12*time.Second; elapsed += step {
		res, err := f.Update(MockAccelAt(elapsed), motion.DefaultThresholdG, elapsed.Milliseconds())
		require.NoError(t, err)
		if res.ShakeFired {
			shakes = append(shakes, elapsed)
		}
	}

	// one burst at 3s and one at 9s; the 800ms cooldown outlasts each burst
	require.Len(t, shakes, 2)
	assert.True(t, shakes[0] >= 3*time.Second && shakes[0] < 3300*time.Millisecond, "first shake at %v", shakes[0])
	assert.True(t, shakes[1] >= 9*time.Second && shakes[1] < 9300*time.Millisecond, "second shake at %v", shakes[1])
}

func TestMockAccel_RestingIsNearGravity(t *testing.T) {
	a := MockAccelAt(time.Second)
	assert.InDelta(t, 9.5, a.Az, 0.5)
	assert.NoError(t, a.Validate())
}

func TestMockProximityAt(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    float64
	}{
		{0, 5},
		{6900 * time.Millisecond, 5},
		{7 * time.Second, 0},
		{8400 * time.Millisecond, 0},
		{8500 * time.Millisecond, 5},
		{17200 * time.Millisecond, 0},
	}
	for _, tt := range tests {
		t.Run(tt.elapsed.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, MockProximityAt(tt.elapsed, 5))
		})
	}
}

func TestMockSource_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := NewMockSource(time.Millisecond, 5, nil)
	assert.Equal(t, "mock", src.Name())

	out := make(chan sample.Event)
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, out) }()

	first := <-out
	assert.Equal(t, sample.KindAccel, first.Kind)
	assert.Equal(t, "mock", first.Source)

	second := <-out
	require.Equal(t, sample.KindProximity, second.Kind)
	assert.Equal(t, 5.0, second.Proximity.DistanceCm)

	// proximity is only re-sent on change
	third := <-out
	assert.Equal(t, sample.KindAccel, third.Kind)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("mock source did not stop")
	}
}

func TestMockSource_NoProximitySensor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan sample.Event)
	go func() { _ = NewMockSource(time.Millisecond, 0, nil).Run(ctx, out) }()

	for i := 0; i < 5; i++ {
		ev := <-out
		assert.Equal(t, sample.KindAccel, ev.Kind)
	}
}
