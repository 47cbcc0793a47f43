package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/citycat-pipeline/internal/adapter/asciigrid"
	"github.com/couchcryptid/citycat-pipeline/internal/adapter/citycat"
	"github.com/couchcryptid/citycat-pipeline/internal/adapter/netcdf"
	"github.com/couchcryptid/citycat-pipeline/internal/domain"
)

// Derived raster names in the run directory.
const (
	MaxDepthFile             = "max_depth.asc"
	MaxDepthInterpolatedFile = "max_depth_interpolated.asc"
	MaxVelocityFile          = "max_velocity.asc"
	MaxVDProductFile         = "max_vd_product.asc"
	ParameterRecordFile      = "citycat-parameters.csv"
)

// derive turns the solver tables into rasters, the NetCDF cube, and the
// surface map archive. It returns every artifact path written.
func (p *Pipeline) derive(prep *prepared, logger *slog.Logger) ([]string, error) {
	runDir := p.opts.RunDir()
	mapsDir := filepath.Join(runDir, citycat.SurfaceMapsDir)
	ref := prep.model.Elevation.Georeference

	var artifacts []string
	writeGrid := func(name string, g *domain.Grid) error {
		path := filepath.Join(runDir, name)
		if err := asciigrid.WriteFile(path, g); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		artifacts = append(artifacts, path)
		p.metrics.ArtifactsWritten.Inc()
		return nil
	}

	table, err := citycat.ReadMaxDepth(mapsDir)
	if err != nil {
		return nil, err
	}
	maxDepth, err := domain.TableToRaster(table, domain.ColumnDepth, ref, domain.FillValue)
	if err != nil {
		return nil, err
	}
	for i, v := range maxDepth.Data {
		if !maxDepth.IsNoData(v) {
			maxDepth.Data[i] = domain.Round3(v)
		}
	}
	if err := writeGrid(MaxDepthFile, maxDepth); err != nil {
		return nil, err
	}

	interpolated := maxDepth.Clone()
	filled := domain.FillGaps(interpolated, domain.DefaultFillDistance)
	if err := writeGrid(MaxDepthInterpolatedFile, interpolated); err != nil {
		return nil, err
	}
	logger.Debug("max depth gaps filled", "cells", filled)

	steps, err := citycat.ReadTimesteps(mapsDir)
	if err != nil {
		return nil, err
	}
	vol, err := domain.BuildVolume(steps, ref)
	if err != nil {
		return nil, err
	}
	maxVel, err := domain.DeriveMaxVelocity(vol, domain.FillValue)
	if err != nil {
		return nil, err
	}
	if err := writeGrid(MaxVelocityFile, maxVel); err != nil {
		return nil, err
	}
	maxVD, err := domain.DeriveMaxDepthVelocityProduct(vol, domain.FillValue)
	if err != nil {
		return nil, err
	}
	if err := writeGrid(MaxVDProductFile, maxVD); err != nil {
		return nil, err
	}

	ncPath := filepath.Join(runDir, netcdf.FileName)
	if err := netcdf.Write(ncPath, vol, prep.run); err != nil {
		return nil, err
	}
	artifacts = append(artifacts, ncPath)
	p.metrics.ArtifactsWritten.Inc()

	archive, err := citycat.ArchiveSurfaceMaps(runDir)
	if err != nil {
		return nil, err
	}
	artifacts = append(artifacts, archive)
	p.metrics.ArtifactsWritten.Inc()

	if err := p.writeParameterRecord(); err != nil {
		return nil, err
	}
	logger.Info("outputs derived", "timesteps", vol.Steps(), "artifacts", len(artifacts))
	return artifacts, nil
}

// writeParameterRecord writes the resolved settings and copies the input
// parameter tables alongside them.
func (p *Pipeline) writeParameterRecord() error {
	dir := p.opts.ParametersDir()
	if err := p.opts.Params.WriteRecordFile(filepath.Join(dir, ParameterRecordFile)); err != nil {
		return err
	}
	inputs, err := filepath.Glob(filepath.Join(p.opts.InputsDir, "parameters", "*.csv"))
	if err != nil {
		return fmt.Errorf("list parameter tables: %w", err)
	}
	for _, src := range inputs {
		if filepath.Base(src) == ParameterRecordFile {
			continue
		}
		if err := copyFile(src, filepath.Join(dir, filepath.Base(src))); err != nil {
			return fmt.Errorf("copy parameter table: %w", err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
