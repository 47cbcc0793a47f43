// Command validate checks a finished run directory end to end: the input
// manifest, the solver output tables, the derived rasters, and the NetCDF
// surface maps. Every artifact is checked against the run's own DEM.
//
// Usage:
//
//	go run ./cmd/validate -run data/mock/outputs/run \
//	  -params data/mock/outputs/parameters/citycat-parameters.csv
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/citycat-pipeline/internal/adapter/asciigrid"
	"github.com/couchcryptid/citycat-pipeline/internal/adapter/citycat"
	"github.com/couchcryptid/citycat-pipeline/internal/adapter/netcdf"
	"github.com/couchcryptid/citycat-pipeline/internal/domain"
	"github.com/couchcryptid/citycat-pipeline/internal/pipeline"
)

// requiredAttributes must be present on the surface map file.
var requiredAttributes = []string{
	"rainfall_mode", "rainfall_total", "size", "duration", "post_event_duration",
	"x", "y", "open_boundaries", "permeable_areas", "crs",
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	runDir := flag.String("run", "", "run directory written by the pipeline")
	params := flag.String("params", "", "optional parameter record to check")
	flag.Parse()

	if *runDir == "" {
		flag.Usage()
		os.Exit(1)
	}
	if code := run(*runDir, *params); code != 0 {
		os.Exit(code)
	}
}

func run(runDir, paramsPath string) int {
	fmt.Println("=== CityCAT Run Validation ===")
	fmt.Println()

	dem, err := asciigrid.ReadFile(filepath.Join(runDir, citycat.DEMFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load DEM: %v\n", err)
		return 1
	}
	mapsDir := filepath.Join(runDir, citycat.SurfaceMapsDir)
	steps, err := citycat.ReadTimesteps(mapsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load solver outputs: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateInputs(runDir),
		validateSolverOutputs(mapsDir, steps, dem),
		validateDerivedRasters(runDir, dem),
		validateSurfaceMaps(runDir, steps, dem),
	}
	if paramsPath != "" {
		phases = append(phases, validateParameterRecord(paramsPath))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Grid: %dx%d cells (%d valid), %d timesteps\n", dem.NCols, dem.NRows, dem.ValidCount(), len(steps))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phases ──

func validateInputs(runDir string) *phase {
	p := &phase{name: "Input manifest"}
	if err := citycat.VerifyManifest(runDir); err != nil {
		p.errorf("%v", err)
	}
	params, err := citycat.ReadConfig(filepath.Join(runDir, citycat.ConfigFile))
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	if params.DurationSec <= 0 {
		p.errorf("config duration %g is not positive", params.DurationSec)
	}
	if params.OutputIntervalSec > params.DurationSec {
		p.errorf("output interval %g exceeds duration %g", params.OutputIntervalSec, params.DurationSec)
	}
	return p
}

func validateSolverOutputs(mapsDir string, steps []domain.Timestep, dem *domain.Grid) *phase {
	p := &phase{name: "Solver output tables"}
	if len(steps) == 0 {
		p.errorf("no timestep tables in %s", mapsDir)
	}
	prev := -1.0
	for _, s := range steps {
		if s.Time <= prev {
			p.errorf("timestep %d at %gs is not after %gs", s.Index, s.Time, prev)
		}
		prev = s.Time
		for _, col := range []string{domain.ColumnDepth, domain.ColumnVX, domain.ColumnVY} {
			if _, err := domain.TableToRaster(s.Table, col, dem.Georeference, domain.FillValue); err != nil {
				p.errorf("timestep %d %s: %v", s.Index, col, err)
			}
		}
	}

	table, err := citycat.ReadMaxDepth(mapsDir)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	if _, err := domain.TableToRaster(table, domain.ColumnDepth, dem.Georeference, domain.FillValue); err != nil {
		p.errorf("max depth: %v", err)
	}
	return p
}

func validateDerivedRasters(runDir string, dem *domain.Grid) *phase {
	p := &phase{name: "Derived rasters"}
	grids := map[string]*domain.Grid{}
	for _, name := range []string{
		pipeline.MaxDepthFile, pipeline.MaxDepthInterpolatedFile,
		pipeline.MaxVelocityFile, pipeline.MaxVDProductFile,
	} {
		g, err := asciigrid.ReadFile(filepath.Join(runDir, name))
		if err != nil {
			p.errorf("%s: %v", name, err)
			continue
		}
		grids[name] = g
		if !g.SameShape(dem.Georeference) {
			p.errorf("%s: lattice differs from the DEM", name)
		}
		if g.NoData != domain.FillValue {
			p.errorf("%s: nodata %g, want %g", name, g.NoData, domain.FillValue)
		}
		for i, v := range g.Data {
			if g.IsNoData(v) {
				continue
			}
			if v < 0 || math.IsNaN(v) {
				p.errorf("%s: cell %d holds %g", name, i, v)
				break
			}
			if domain.Round3(v) != v {
				p.errorf("%s: cell %d holds %g, not rounded to 3 decimals", name, i, v)
				break
			}
		}
	}

	depth, interp := grids[pipeline.MaxDepthFile], grids[pipeline.MaxDepthInterpolatedFile]
	if depth != nil && interp != nil && len(depth.Data) == len(interp.Data) {
		if interp.ValidCount() < depth.ValidCount() {
			p.errorf("interpolated max depth has fewer valid cells (%d) than max depth (%d)", interp.ValidCount(), depth.ValidCount())
		}
		for i, v := range depth.Data {
			if !depth.IsNoData(v) && interp.Data[i] != v {
				p.errorf("interpolation changed valid cell %d from %g to %g", i, v, interp.Data[i])
				break
			}
		}
	}
	return p
}

func validateSurfaceMaps(runDir string, steps []domain.Timestep, dem *domain.Grid) *phase {
	p := &phase{name: "NetCDF surface maps"}
	vol, attrs, err := netcdf.Read(filepath.Join(runDir, netcdf.FileName))
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	if vol.Steps() != len(steps) {
		p.errorf("%d timesteps in NetCDF, %d tables on disk", vol.Steps(), len(steps))
	}
	if !vol.Ref.SameShape(dem.Georeference) {
		p.errorf("NetCDF lattice %dx%d at (%g, %g) differs from the DEM", vol.Ref.NCols, vol.Ref.NRows, vol.Ref.XLL, vol.Ref.YLL)
	}
	for _, name := range requiredAttributes {
		if _, ok := attrs[name]; !ok {
			p.errorf("missing global attribute %q", name)
		}
	}
	if _, err := os.Stat(filepath.Join(runDir, citycat.SurfaceMapsDir+".zip")); err != nil {
		p.errorf("surface map archive: %v", err)
	}
	return p
}

func validateParameterRecord(path string) *phase {
	p := &phase{name: "Parameter record"}
	f, err := os.Open(path)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	if len(rows) == 0 || !strings.EqualFold(rows[0][0], "PARAMETER") {
		p.errorf("missing PARAMETER,VALUE header")
		return p
	}
	seen := map[string]bool{}
	for _, r := range rows[1:] {
		if len(r) != 2 || r[1] == "" {
			p.errorf("malformed row %v", r)
			continue
		}
		seen[r[0]] = true
	}
	for _, key := range []string{"RAINFALL_MODE", "OPEN_BOUNDARIES", "ROOF_STORAGE", "POST_EVENT_DURATION", "OUTPUT_INTERVAL"} {
		if !seen[key] {
			p.errorf("missing %s", key)
		}
	}
	return p
}
