package sample

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccelValidate(t *testing.T) {
	tests := []struct {
		name  string
		in    Accel
		field string
	}{
		{"finite", Accel{Ax: 1, Ay: -2, Az: 9.8}, ""},
		{"nan ax", Accel{Ax: math.NaN()}, "ax"},
		{"inf ay", Accel{Ay: math.Inf(1)}, "ay"},
		{"-inf az", Accel{Az: math.Inf(-1)}, "az"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var sErr *InvalidSampleError
			require.True(t, errors.As(err, &sErr))
			assert.Equal(t, tt.field, sErr.Field)
		})
	}
}

func TestProximityValidate(t *testing.T) {
	require.NoError(t, Proximity{DistanceCm: 0}.Validate())
	require.NoError(t, Proximity{DistanceCm: 5}.Validate())

	var sErr *InvalidSampleError
	require.ErrorAs(t, Proximity{DistanceCm: -1}.Validate(), &sErr)
	assert.Equal(t, "negative", sErr.Reason)
	require.ErrorAs(t, Proximity{DistanceCm: math.NaN()}.Validate(), &sErr)
	assert.Equal(t, "not finite", sErr.Reason)
}

func TestEventConstructors(t *testing.T) {
	e := AccelEvent("mock", Accel{Ax: 1, Ay: 2, Az: 3})
	assert.Equal(t, KindAccel, e.Kind)
	assert.Equal(t, [3]float64{1, 2, 3}, e.Accel.Vector())

	p := ProximityEvent("serial", 4.5)
	assert.Equal(t, KindProximity, p.Kind)
	assert.Equal(t, 4.5, p.Proximity.DistanceCm)
	assert.Equal(t, "proximity", p.Kind.String())
}
