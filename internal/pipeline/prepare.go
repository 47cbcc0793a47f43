package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/couchcryptid/citycat-pipeline/internal/adapter/asciigrid"
	"github.com/couchcryptid/citycat-pipeline/internal/adapter/citycat"
	"github.com/couchcryptid/citycat-pipeline/internal/adapter/rainfall"
	"github.com/couchcryptid/citycat-pipeline/internal/adapter/shapefile"
	"github.com/couchcryptid/citycat-pipeline/internal/domain"
	"github.com/ctessum/geom"
)

// DEMDir holds the elevation tiles under the inputs directory. Vector
// layers live in a directory named after their kind.
const DEMDir = "dem"

// prepared is what the later stages need from Prepare.
type prepared struct {
	model *domain.ModelConfiguration
	run   domain.RunDescriptor
}

// prepare resolves the domain, assembles every solver input, and writes
// the input set into the run directory.
func (p *Pipeline) prepare(ctx context.Context, logger *slog.Logger) (*prepared, error) {
	params := p.opts.Params
	loader, err := shapefile.NewLoader(params.GridProj)
	if err != nil {
		return nil, err
	}

	boundary, err := loader.LoadLayer(p.inputPath(string(domain.LayerBoundary)), domain.LayerBoundary, nil)
	if err != nil {
		return nil, err
	}
	var center *geom.Point
	if params.HasCenter {
		center = &geom.Point{X: params.X, Y: params.Y}
		if len(boundary.Geometries()) > 0 {
			logger.Warn("boundary supplied, ignoring centre point", "x", params.X, "y", params.Y)
		}
	}
	bbox, err := domain.ResolveDomain(boundary.Geometries(), center, params.SizeMetres())
	if err != nil {
		return nil, err
	}
	logger.Info("domain resolved", "bbox", bbox.String(), "boundary_features", boundary.Len())

	tiles, err := asciigrid.ReadDir(p.inputPath(DEMDir))
	if err != nil {
		return nil, err
	}
	dem, err := domain.AssembleElevation(tiles, bbox, params.NoData, boundary.Geometries())
	if err != nil {
		return nil, err
	}
	if dem.CRS == "" {
		dem.CRS = fmt.Sprintf("EPSG:%d", params.Projection)
	}
	p.metrics.DomainCells.WithLabelValues("total").Set(float64(dem.Cells()))
	p.metrics.DomainCells.WithLabelValues("valid").Set(float64(dem.ValidCount()))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run := params.Descriptor()
	series, err := p.rainfall(bbox, boundary.Geometries(), &run)
	if err != nil {
		return nil, err
	}
	p.metrics.RainfallTotalMM.Set(run.RainfallTotalMM)

	modelParams, err := params.ModelParameters()
	if err != nil {
		return nil, err
	}
	m := &domain.ModelConfiguration{
		Domain:     dem.Bounds(),
		Elevation:  dem,
		Rainfall:   series,
		Parameters: modelParams,
	}
	if err := p.loadLayers(loader, &m.Layers, &m.Domain); err != nil {
		return nil, err
	}
	if params.Discharge > 0 {
		d, err := domain.NewConstantDischarge(params.Discharge, params.TotalDurationSec(), domain.DefaultFlowCellWidth)
		if err != nil {
			return nil, err
		}
		m.Discharge = &d
	}
	m.Layers.Each(func(l *domain.VectorLayer) {
		p.metrics.VectorFeatures.WithLabelValues(string(l.Kind)).Set(float64(l.Len()))
	})
	run.Buildings = m.Layers.Buildings.Len()
	run.GreenAreas = m.Layers.GreenAreas.Len()

	manifest, err := citycat.WriteInputs(p.opts.RunDir(), m)
	if err != nil {
		return nil, err
	}
	logger.Info("solver inputs written",
		"files", len(manifest.Files),
		"cells", dem.Cells(),
		"rainfall_mm", run.RainfallTotalMM,
		"buildings", run.Buildings,
		"green_areas", run.GreenAreas,
	)
	return &prepared{model: m, run: run}, nil
}

func (p *Pipeline) inputPath(name string) string {
	return filepath.Join(p.opts.InputsDir, name)
}

// rainfall picks the series by precedence: a verbatim profile, then the
// return-period lookup, then the configured total depth.
func (p *Pipeline) rainfall(bbox domain.BoundingBox, boundary []geom.Polygonal, run *domain.RunDescriptor) (domain.RainfallSeries, error) {
	params := p.opts.Params

	series, ok, err := rainfall.ReadProfileFile(p.opts.InputsDir)
	if err != nil {
		return domain.RainfallSeries{}, err
	}
	if ok {
		run.VerbatimRainfall = true
		times := series.Times()
		run.RainfallTotalMM = series.Integral(times[0], times[len(times)-1]) * 1000
		return series, nil
	}

	depth := params.TotalDepth
	if domain.RainfallMode(params.RainfallMode) == domain.RainfallModeReturnPeriod {
		cells, err := rainfall.ReadUpliftFile(p.opts.InputsDir, params.TimeHorizon, int(math.Round(params.Duration)), params.ReturnPeriod)
		if err != nil {
			return domain.RainfallSeries{}, err
		}
		var uplift float64
		depth, uplift, err = domain.ReturnPeriodDepth(cells, bbox, boundary, params.TimeHorizon)
		if err != nil {
			return domain.RainfallSeries{}, err
		}
		run.UpliftPercent = uplift
	}
	run.RainfallTotalMM = depth
	return domain.SynthesizeRainfall(params.Duration*3600, depth)
}

// loadLayers reads every optional vector layer clipped to the domain.
func (p *Pipeline) loadLayers(loader *shapefile.Loader, layers *domain.Layers, clip *domain.BoundingBox) error {
	for _, l := range []struct {
		kind domain.LayerKind
		dst  **domain.VectorLayer
	}{
		{domain.LayerBuildings, &layers.Buildings},
		{domain.LayerGreenAreas, &layers.GreenAreas},
		{domain.LayerReservoirs, &layers.Reservoirs},
		{domain.LayerOpenBoundaries, &layers.OpenBoundaries},
		{domain.LayerFlowPolygons, &layers.FlowPolygons},
		{domain.LayerRainfallPolygons, &layers.RainfallPolygons},
		{domain.LayerFriction, &layers.Friction},
	} {
		layer, err := loader.LoadLayer(p.inputPath(string(l.kind)), l.kind, clip)
		if err != nil {
			return err
		}
		*l.dst = layer
	}
	return nil
}
