package domain

import "github.com/ctessum/geom"

// LayerKind names a vector input the solver understands.
type LayerKind string

const (
	LayerBoundary         LayerKind = "boundary"
	LayerBuildings        LayerKind = "buildings"
	LayerGreenAreas       LayerKind = "green_areas"
	LayerReservoirs       LayerKind = "reservoirs"
	LayerOpenBoundaries   LayerKind = "open_boundaries"
	LayerFlowPolygons     LayerKind = "flow_polygons"
	LayerRainfallPolygons LayerKind = "rainfall_polygons"
	LayerFriction         LayerKind = "friction"
)

// Feature pairs a polygonal geometry with its optional scalar attribute.
// Value is meaningful only when the owning layer has HasValue set.
type Feature struct {
	Geometry geom.Polygonal
	Value    float64
}

// VectorLayer is an ordered feature collection. HasValue selects the
// valued serializer layout; it is set from the presence of the attribute
// column, never inferred from the feature values.
type VectorLayer struct {
	Kind     LayerKind
	Features []Feature
	HasValue bool
}

// Len returns the feature count. A nil layer has zero features.
func (l *VectorLayer) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Features)
}

// Empty reports whether the layer is absent or holds no features.
func (l *VectorLayer) Empty() bool { return l.Len() == 0 }

// Geometries returns the layer's geometries in feature order.
func (l *VectorLayer) Geometries() []geom.Polygonal {
	if l == nil {
		return nil
	}
	out := make([]geom.Polygonal, 0, len(l.Features))
	for _, f := range l.Features {
		if f.Geometry != nil {
			out = append(out, f.Geometry)
		}
	}
	return out
}
