package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// UnitStormProfile is the dimensionless design-storm shape. Its samples are
// spread evenly over the event duration at synthesis time.
var UnitStormProfile = []float64{
	0.017627993, 0.027784045, 0.041248418, 0.064500665, 0.100127555, 0.145482534, 0.20645758,
	0.145482534, 0.100127555, 0.064500665, 0.041248418, 0.027784045, 0.017627993,
}

// conservationTolerance is the relative mismatch allowed between the
// synthesized series integral and the target depth.
const conservationTolerance = 1e-9

// Sample is one (elapsed seconds, value) pair of a time series.
type Sample struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// RainfallSource records how a series was produced.
type RainfallSource string

const (
	RainfallVerbatim    RainfallSource = "verbatim"
	RainfallSynthesized RainfallSource = "synthesized"
)

// RainfallSeries is a rainfall intensity series in metres per second.
type RainfallSeries struct {
	Source  RainfallSource
	Samples []Sample
	// DepthMM is the target depth for synthesized series, zero otherwise.
	DepthMM float64
}

// Times returns the sample abscissas.
func (r RainfallSeries) Times() []float64 {
	out := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = s.Time
	}
	return out
}

// Values returns the sample ordinates.
func (r RainfallSeries) Values() []float64 {
	out := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = s.Value
	}
	return out
}

// Integral returns the trapezoidal integral of the series over [from, to].
// Only segments lying entirely within the window are counted.
func (r RainfallSeries) Integral(from, to float64) float64 {
	return trapezoid(r.Times(), r.Values(), from, to)
}

// SynthesizeRainfall fits the unit storm profile to a target total depth in
// millimetres over durationSec seconds. The result integrates to depthMM/1000
// metres over [0, durationSec] and is followed by zero samples one and two
// seconds after the event.
func SynthesizeRainfall(durationSec, depthMM float64) (RainfallSeries, error) {
	if !(durationSec > 0) {
		return RainfallSeries{}, fmt.Errorf("%w: rainfall duration must be positive, got %g", ErrConfiguration, durationSec)
	}
	if !(depthMM > 0) || math.IsInf(depthMM, 0) {
		return RainfallSeries{}, fmt.Errorf("%w: rainfall depth must be positive, got %g", ErrConfiguration, depthMM)
	}

	n := len(UnitStormProfile)
	times := make([]float64, n)
	floats.Span(times, 0, durationSec)

	unit := trapezoid(times, UnitStormProfile, 0, durationSec)
	scale := depthMM / unit / 1000

	samples := make([]Sample, 0, n+2)
	for i, p := range UnitStormProfile {
		samples = append(samples, Sample{Time: times[i], Value: p * scale})
	}
	samples = append(samples,
		Sample{Time: durationSec + 1, Value: 0},
		Sample{Time: durationSec + 2, Value: 0},
	)

	series := RainfallSeries{Source: RainfallSynthesized, Samples: samples, DepthMM: depthMM}

	want := depthMM / 1000
	if got := series.Integral(0, durationSec); math.Abs(got-want) > conservationTolerance*want {
		return RainfallSeries{}, fmt.Errorf("%w: synthesized rainfall integrates to %g m, want %g m", ErrConservation, got, want)
	}
	return series, nil
}

// VerbatimRainfall wraps a caller-supplied table without rescaling. Times
// must be non-decreasing and the table non-empty.
func VerbatimRainfall(samples []Sample) (RainfallSeries, error) {
	if len(samples) == 0 {
		return RainfallSeries{}, fmt.Errorf("%w: rainfall table is empty", ErrFormat)
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].Time < samples[i-1].Time {
			return RainfallSeries{}, fmt.Errorf("%w: rainfall time %g at row %d precedes %g", ErrFormat, samples[i].Time, i+1, samples[i-1].Time)
		}
	}
	out := make([]Sample, len(samples))
	copy(out, samples)
	return RainfallSeries{Source: RainfallVerbatim, Samples: out}, nil
}

func trapezoid(x, y []float64, from, to float64) float64 {
	if len(x) < 2 {
		return 0
	}
	dx := make([]float64, len(x)-1)
	mid := make([]float64, len(x)-1)
	for i := 0; i+1 < len(x); i++ {
		if x[i] < from || x[i+1] > to {
			continue
		}
		dx[i] = x[i+1] - x[i]
		mid[i] = (y[i] + y[i+1]) / 2
	}
	return floats.Dot(dx, mid)
}
