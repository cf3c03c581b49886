package motion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdFromProgress(t *testing.T) {
	tests := []struct {
		progress int
		want     float64
	}{
		{0, 2.0},
		{7, 2.7},
		{15, 3.5},
		{30, 5.0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, ThresholdFromProgress(tt.progress), 1e-9)
		assert.Equal(t, tt.progress, ProgressFromThreshold(tt.want))
	}
}

func TestNewThreshold_Default(t *testing.T) {
	th := NewThreshold()
	assert.Equal(t, DefaultThresholdG, th.G())
	assert.Equal(t, 7, th.Progress())
}

func TestThresholdSet(t *testing.T) {
	th := NewThreshold()

	require.NoError(t, th.Set(3.14))
	assert.InDelta(t, 3.1, th.G(), 1e-9)

	for _, bad := range []float64{0, -2, 1.9, 5.01, math.NaN()} {
		err := th.Set(bad)
		var cErr *InvalidConfigError
		require.ErrorAs(t, err, &cErr, "value %v", bad)
		assert.InDelta(t, 3.1, th.G(), 1e-9, "prior threshold kept")
	}
}

func TestThresholdSetProgress(t *testing.T) {
	th := NewThreshold()

	require.NoError(t, th.SetProgress(30))
	assert.InDelta(t, 5.0, th.G(), 1e-9)

	err := th.SetProgress(31)
	var cErr *InvalidConfigError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, "threshold_progress", cErr.Name)
	assert.InDelta(t, 5.0, th.G(), 1e-9)

	require.Error(t, th.SetProgress(-1))
}
