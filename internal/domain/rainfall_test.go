package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizeRainfall(t *testing.T) {
	cases := []struct {
		name     string
		duration float64
		depth    float64
	}{
		{"one hour 40mm", 3600, 40},
		{"six hours 80mm", 6 * 3600, 80},
		{"short intense", 600, 150},
		{"fractional depth", 3 * 3600, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := SynthesizeRainfall(tc.duration, tc.depth)
			require.NoError(t, err)

			assert.Equal(t, RainfallSynthesized, s.Source)
			assert.InEpsilon(t, tc.depth/1000, s.Integral(0, tc.duration), 1e-9)
			require.Len(t, s.Samples, len(UnitStormProfile)+2)

			assert.Equal(t, 0.0, s.Samples[0].Time)
			assert.Equal(t, tc.duration, s.Samples[len(UnitStormProfile)-1].Time)

			tail := s.Samples[len(s.Samples)-2:]
			assert.Equal(t, Sample{Time: tc.duration + 1, Value: 0}, tail[0])
			assert.Equal(t, Sample{Time: tc.duration + 2, Value: 0}, tail[1])

			for i := 1; i < len(s.Samples); i++ {
				assert.GreaterOrEqual(t, s.Samples[i].Time, s.Samples[i-1].Time)
			}
		})
	}

	t.Run("peak at mid event", func(t *testing.T) {
		s, err := SynthesizeRainfall(3600, 40)
		require.NoError(t, err)
		peak := s.Samples[6]
		assert.Equal(t, 1800.0, peak.Time)
		for _, x := range s.Samples {
			assert.LessOrEqual(t, x.Value, peak.Value)
		}
	})

	t.Run("invalid inputs", func(t *testing.T) {
		_, err := SynthesizeRainfall(0, 40)
		assert.ErrorIs(t, err, ErrConfiguration)
		_, err = SynthesizeRainfall(3600, 0)
		assert.ErrorIs(t, err, ErrConfiguration)
		_, err = SynthesizeRainfall(3600, -1)
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}

func TestVerbatimRainfall(t *testing.T) {
	in := []Sample{{0, 1e-6}, {600, 2e-6}, {600, 3e-6}, {1200, 0}}

	s, err := VerbatimRainfall(in)
	require.NoError(t, err)
	assert.Equal(t, RainfallVerbatim, s.Source)
	assert.Equal(t, in, s.Samples)
	assert.Zero(t, s.DepthMM)

	in[0].Value = 99
	assert.Equal(t, 1e-6, s.Samples[0].Value, "series must not alias the caller's slice")

	_, err = VerbatimRainfall(nil)
	assert.ErrorIs(t, err, ErrFormat)

	_, err = VerbatimRainfall([]Sample{{10, 1}, {5, 1}})
	assert.ErrorIs(t, err, ErrFormat)
}

func TestRainfallIntegralWindow(t *testing.T) {
	s := RainfallSeries{Samples: []Sample{{0, 0}, {10, 2}, {20, 2}, {30, 0}}}
	assert.InDelta(t, 10.0, s.Integral(0, 10), 1e-12)
	assert.InDelta(t, 40.0, s.Integral(0, 30), 1e-12)
	assert.InDelta(t, 20.0, s.Integral(10, 20), 1e-12)
}

func TestNewConstantDischarge(t *testing.T) {
	total := 3600.0*2 + 3600.0
	d, err := NewConstantDischarge(12.5, total, DefaultFlowCellWidth)
	require.NoError(t, err)

	assert.Equal(t, 12.5, d.Rate)
	require.Len(t, d.Samples, 2)
	assert.Equal(t, 0.0, d.Samples[0].Time)
	assert.Equal(t, total, d.Samples[1].Time)
	for _, s := range d.Samples {
		assert.Equal(t, 2.5, s.Value)
	}

	_, err = NewConstantDischarge(0, total, 5)
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = NewConstantDischarge(1, 0, 5)
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = NewConstantDischarge(1, total, 0)
	assert.ErrorIs(t, err, ErrConfiguration)
}
