package app

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/shake_monitor/internal/sample"
	"github.com/relabs-tech/shake_monitor/internal/sensors"
)

func TestRunSimulator(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	err := RunSimulator(ctx, sensors.NewMockSource(time.Millisecond, 5, nil), &buf)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\r\n")
	require.NotEmpty(t, lines)

	kinds := map[sample.Kind]int{}
	for _, line := range lines {
		ev, err := sensors.ParseSentence(line)
		require.NoError(t, err, line)
		kinds[ev.Kind]++
	}
	assert.Greater(t, kinds[sample.KindAccel], 0)
	assert.Equal(t, 1, kinds[sample.KindProximity], "proximity is only sent on change")
}
