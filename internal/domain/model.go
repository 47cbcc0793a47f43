package domain

import (
	"fmt"
	"strings"
)

// PermeableAreas selects how green-area polygons affect infiltration.
type PermeableAreas int

const (
	// PermeablePolygons infiltrates only inside green-area polygons.
	PermeablePolygons PermeableAreas = iota
	// PermeableNone treats the whole domain as impermeable.
	PermeableNone
	// PermeableAll treats the whole domain as permeable.
	PermeableAll
)

var permeableNames = map[string]PermeableAreas{
	"polygons":    PermeablePolygons,
	"impermeable": PermeableNone,
	"permeable":   PermeableAll,
}

// ParsePermeableAreas maps polygons, impermeable or permeable to its code.
func ParsePermeableAreas(s string) (PermeableAreas, error) {
	p, ok := permeableNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: unknown permeable areas mode %q", ErrConfiguration, s)
	}
	return p, nil
}

func (p PermeableAreas) String() string {
	switch p {
	case PermeablePolygons:
		return "polygons"
	case PermeableNone:
		return "impermeable"
	case PermeableAll:
		return "permeable"
	}
	return fmt.Sprintf("PermeableAreas(%d)", int(p))
}

// Parameters are the scalar solver settings.
type Parameters struct {
	// DurationSec is the total simulated time including any post-event period.
	DurationSec       float64
	OutputIntervalSec float64
	OpenBoundaries    bool
	UseInfiltration   bool
	PermeableAreas    PermeableAreas
	// RoofStorage is the depth of water held on roofs, in metres.
	RoofStorage float64
}

// Layers holds the optional vector inputs. A nil layer is absent.
type Layers struct {
	Buildings        *VectorLayer
	GreenAreas       *VectorLayer
	Reservoirs       *VectorLayer
	OpenBoundaries   *VectorLayer
	FlowPolygons     *VectorLayer
	RainfallPolygons *VectorLayer
	Friction         *VectorLayer
}

// Each visits the present layers in a fixed order.
func (l Layers) Each(fn func(*VectorLayer)) {
	for _, v := range []*VectorLayer{
		l.Buildings, l.GreenAreas, l.Reservoirs, l.OpenBoundaries,
		l.FlowPolygons, l.RainfallPolygons, l.Friction,
	} {
		if v != nil {
			fn(v)
		}
	}
}

// ModelConfiguration is everything the solver needs for one run. Build it
// once and treat it as read-only.
type ModelConfiguration struct {
	Domain     BoundingBox
	Elevation  *Grid
	Rainfall   RainfallSeries
	Discharge  *DischargeSeries
	Layers     Layers
	Parameters Parameters
}

// Validate checks the cross-field requirements before anything is written.
func (m *ModelConfiguration) Validate() error {
	if m.Elevation == nil {
		return fmt.Errorf("%w: elevation grid is required", ErrConfiguration)
	}
	if m.Elevation.ValidCount() == 0 {
		return fmt.Errorf("%w: elevation grid holds no data", ErrCoverage)
	}
	if len(m.Rainfall.Samples) == 0 {
		return fmt.Errorf("%w: rainfall series is required", ErrConfiguration)
	}
	p := m.Parameters
	if !(p.DurationSec > 0) {
		return fmt.Errorf("%w: duration must be positive, got %g", ErrConfiguration, p.DurationSec)
	}
	if !(p.OutputIntervalSec > 0) {
		return fmt.Errorf("%w: output interval must be positive, got %g", ErrConfiguration, p.OutputIntervalSec)
	}
	if p.RoofStorage < 0 {
		return fmt.Errorf("%w: roof storage must not be negative, got %g", ErrConfiguration, p.RoofStorage)
	}
	if p.PermeableAreas < PermeablePolygons || p.PermeableAreas > PermeableAll {
		return fmt.Errorf("%w: invalid permeable areas code %d", ErrConfiguration, p.PermeableAreas)
	}
	if m.Discharge != nil && m.Layers.FlowPolygons.Empty() {
		return fmt.Errorf("%w: discharge requires flow polygons", ErrConfiguration)
	}
	if m.Layers.Reservoirs != nil && !m.Layers.Reservoirs.HasValue && !m.Layers.Reservoirs.Empty() {
		return fmt.Errorf("%w: reservoir layer needs an elevation value per feature", ErrConfiguration)
	}
	return nil
}
