// Package shapefile loads polygon vector layers from ESRI shapefiles.
package shapefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/citycat-pipeline/internal/domain"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
)

// ValueColumn is the attribute carrying a per-feature scalar.
const ValueColumn = "Value"

// Loader reads every shapefile in a layer directory. When Target is set,
// layers with a .prj sidecar are reprojected into it; layers without one
// are assumed to already be in the grid CRS.
type Loader struct {
	Target *proj.SR
}

// NewLoader parses gridProj (PROJ4 or WKT). An empty string disables
// reprojection.
func NewLoader(gridProj string) (*Loader, error) {
	if strings.TrimSpace(gridProj) == "" {
		return &Loader{}, nil
	}
	sr, err := proj.Parse(gridProj)
	if err != nil {
		return nil, fmt.Errorf("%w: parse grid projection: %v", domain.ErrConfiguration, err)
	}
	return &Loader{Target: sr}, nil
}

// LoadLayer reads the .shp files in dir, in lexical order, into one layer.
// Features whose bounds do not overlap clip are skipped when clip is
// non-nil. A missing or empty directory yields a nil layer. The layer
// carries values only when every file has a Value column.
func (l *Loader) LoadLayer(dir string, kind domain.LayerKind, clip *domain.BoundingBox) (*domain.VectorLayer, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.shp"))
	if err != nil {
		return nil, fmt.Errorf("list %s shapefiles: %w", kind, err)
	}
	if len(paths) == 0 {
		return nil, nil
	}

	layer := &domain.VectorLayer{Kind: kind, HasValue: true}
	for _, p := range paths {
		feats, hasValue, err := l.readFile(p, clip)
		if err != nil {
			return nil, fmt.Errorf("load %s layer %s: %w", kind, filepath.Base(p), err)
		}
		layer.HasValue = layer.HasValue && hasValue
		layer.Features = append(layer.Features, feats...)
	}
	if !layer.HasValue {
		for i := range layer.Features {
			layer.Features[i].Value = 0
		}
	}
	return layer, nil
}

func (l *Loader) readFile(path string, clip *domain.BoundingBox) ([]domain.Feature, bool, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, false, fmt.Errorf("%w: open shapefile: %v", domain.ErrFormat, err)
	}
	defer dec.Close()

	trans, err := l.transform(dec, path)
	if err != nil {
		return nil, false, err
	}

	hasValue := false
	for _, f := range dec.Fields() {
		if strings.EqualFold(f.String(), ValueColumn) {
			hasValue = true
		}
	}
	var cols []string
	if hasValue {
		cols = []string{ValueColumn}
	}

	var bounds *geom.Bounds
	if clip != nil {
		bounds = clip.Bounds()
	}

	var feats []domain.Feature
	for {
		g, fields, more := dec.DecodeRowFields(cols...)
		if !more {
			break
		}
		if trans != nil {
			if g, err = g.Transform(trans); err != nil {
				return nil, false, fmt.Errorf("reproject feature %d: %w", len(feats)+1, err)
			}
		}
		poly, ok := g.(geom.Polygonal)
		if !ok {
			return nil, false, fmt.Errorf("%w: feature %d is %T, want a polygon", domain.ErrFormat, len(feats)+1, g)
		}
		if bounds != nil && !bounds.Overlaps(poly.Bounds()) {
			continue
		}
		f := domain.Feature{Geometry: poly}
		if hasValue {
			v, err := strconv.ParseFloat(strings.TrimSpace(fields[ValueColumn]), 64)
			if err != nil {
				return nil, false, fmt.Errorf("%w: feature %d Value %q: %v", domain.ErrFormat, len(feats)+1, fields[ValueColumn], err)
			}
			f.Value = v
		}
		feats = append(feats, f)
	}
	if err := dec.Error(); err != nil {
		return nil, false, fmt.Errorf("%w: decode shapefile: %v", domain.ErrFormat, err)
	}
	return feats, hasValue, nil
}

func (l *Loader) transform(dec *shp.Decoder, path string) (proj.Transformer, error) {
	if l.Target == nil {
		return nil, nil
	}
	prj := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
	if _, err := os.Stat(prj); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	src, err := dec.SR()
	if err != nil {
		return nil, fmt.Errorf("%w: read projection: %v", domain.ErrFormat, err)
	}
	trans, err := src.NewTransform(l.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: build transform: %v", domain.ErrConfiguration, err)
	}
	return trans, nil
}
