package domain

import "fmt"

// DefaultFlowCellWidth is the cell width a boundary discharge is divided by.
const DefaultFlowCellWidth = 5.0

// DischargeSeries is a flow boundary condition in cubic metres per second per
// metre of cell width, applied within the flow polygons.
type DischargeSeries struct {
	Samples []Sample
	// Rate is the undivided discharge in cumecs.
	Rate float64
}

// NewConstantDischarge spreads a constant rate over [0, totalSec] and divides
// it by cellWidth.
func NewConstantDischarge(rate, totalSec, cellWidth float64) (DischargeSeries, error) {
	if !(rate > 0) {
		return DischargeSeries{}, fmt.Errorf("%w: discharge must be positive, got %g", ErrConfiguration, rate)
	}
	if !(totalSec > 0) {
		return DischargeSeries{}, fmt.Errorf("%w: discharge duration must be positive, got %g", ErrConfiguration, totalSec)
	}
	if !(cellWidth > 0) {
		return DischargeSeries{}, fmt.Errorf("%w: cell width must be positive, got %g", ErrConfiguration, cellWidth)
	}
	per := rate / cellWidth
	return DischargeSeries{
		Rate:    rate,
		Samples: []Sample{{Time: 0, Value: per}, {Time: totalSec, Value: per}},
	}, nil
}
