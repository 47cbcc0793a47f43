package shapefile

import (
	"fmt"

	"github.com/couchcryptid/citycat-pipeline/internal/domain"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
)

type plainRecord struct {
	Shape geom.Polygon
}

type valuedRecord struct {
	Shape geom.Polygon
	Value float64
}

// WriteLayer encodes layer as a polygon shapefile at path. Multi-part
// features are written one record per part. A Value column is written only
// when the layer carries values.
func WriteLayer(path string, layer *domain.VectorLayer) error {
	var archetype any = plainRecord{}
	if layer.HasValue {
		archetype = valuedRecord{}
	}
	enc, err := shp.NewEncoder(path, archetype)
	if err != nil {
		return fmt.Errorf("create shapefile: %w", err)
	}
	for i, f := range layer.Features {
		if f.Geometry == nil {
			continue
		}
		for _, part := range f.Geometry.Polygons() {
			var rec any = plainRecord{Shape: part}
			if layer.HasValue {
				rec = valuedRecord{Shape: part, Value: f.Value}
			}
			if err := enc.Encode(rec); err != nil {
				enc.Close()
				return fmt.Errorf("encode feature %d: %w", i+1, err)
			}
		}
	}
	enc.Close()
	return nil
}
