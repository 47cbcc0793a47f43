// Command genmock writes a synthetic CityCAT input tree for local runs and
// demos: elevation tiles, boundary, building and green-area shapefiles, and
// run parameters. With -surface-maps it instead fakes the solver's output
// tables for an already prepared run directory, so the derive stage can be
// exercised without the solver binary.
//
// Usage:
//
//	go run ./cmd/genmock -data data/mock
//	go run ./cmd/genmock -surface-maps data/mock/outputs/run
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/citycat-pipeline/internal/adapter/asciigrid"
	"github.com/couchcryptid/citycat-pipeline/internal/adapter/citycat"
	"github.com/couchcryptid/citycat-pipeline/internal/adapter/rainfall"
	"github.com/couchcryptid/citycat-pipeline/internal/adapter/shapefile"
	"github.com/couchcryptid/citycat-pipeline/internal/domain"
	"github.com/ctessum/geom"
)

const (
	originX   = 530000.0
	originY   = 180000.0
	cellSize  = 5.0
	tileCells = 40
	crs       = "EPSG:27700"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dataDir := flag.String("data", "", "root directory to write inputs/ into")
	verbatim := flag.Bool("verbatim", false, "also write a rainfall_data.csv profile")
	surfaceMaps := flag.String("surface-maps", "", "prepared run directory to write fake solver outputs into")
	steps := flag.Int("steps", 6, "number of fake timesteps for -surface-maps")
	flag.Parse()

	switch {
	case *surfaceMaps != "":
		return writeSurfaceMaps(*surfaceMaps, *steps)
	case *dataDir != "":
		return writeInputs(filepath.Join(*dataDir, "inputs"), *verbatim)
	}
	flag.Usage()
	return fmt.Errorf("one of -data or -surface-maps is required")
}

// ── Inputs ──

func writeInputs(inputs string, verbatim bool) error {
	for _, dir := range []string{"dem", "parameters", string(domain.LayerBoundary), string(domain.LayerBuildings), string(domain.LayerGreenAreas)} {
		if err := os.MkdirAll(filepath.Join(inputs, dir), 0o755); err != nil {
			return err
		}
	}

	// Two tiles side by side with a valley running north-south.
	for i, name := range []string{"west.asc", "east.asc"} {
		tile := terrainTile(originX+float64(i*tileCells)*cellSize, originY)
		if err := asciigrid.WriteFile(filepath.Join(inputs, "dem", name), tile); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	log.Printf("dem: 2 tiles of %dx%d cells", tileCells, tileCells)

	width := 2 * tileCells * cellSize
	height := tileCells * cellSize
	boundary := &domain.VectorLayer{Kind: domain.LayerBoundary, Features: []domain.Feature{
		{Geometry: rect(originX+20, originY+20, originX+width-20, originY+height-20)},
	}}

	buildings := &domain.VectorLayer{Kind: domain.LayerBuildings}
	for r := 0; r < 4; r++ {
		for c := 0; c < 8; c++ {
			x := originX + 40 + float64(c)*40
			y := originY + 40 + float64(r)*40
			if c == 3 || c == 4 {
				continue // keep the valley floor open
			}
			buildings.Features = append(buildings.Features, domain.Feature{Geometry: rect(x, y, x+15, y+12)})
		}
	}

	green := &domain.VectorLayer{Kind: domain.LayerGreenAreas, Features: []domain.Feature{
		{Geometry: rect(originX+170, originY+30, originX+230, originY+170)},
	}}

	for _, l := range []*domain.VectorLayer{boundary, buildings, green} {
		path := filepath.Join(inputs, string(l.Kind), string(l.Kind)+".shp")
		if err := shapefile.WriteLayer(path, l); err != nil {
			return fmt.Errorf("write %s: %w", l.Kind, err)
		}
		log.Printf("%s: %d features", l.Kind, l.Len())
	}

	yaml := "rainfall_mode: total_depth\ntotal_depth: 40\nduration: 1\npost_event_duration: 0.5\noutput_interval: 600\n"
	if err := os.WriteFile(filepath.Join(inputs, "parameters", "run.yaml"), []byte(yaml), 0o644); err != nil {
		return err
	}
	table := "PARAMETER,VALUE\nROOF_STORAGE,0.05\nOPEN_BOUNDARIES,True\nPERMEABLE_AREAS,polygons\n"
	if err := os.WriteFile(filepath.Join(inputs, "parameters", "overrides.csv"), []byte(table), 0o644); err != nil {
		return err
	}

	if verbatim {
		var b strings.Builder
		b.WriteString("time,value\n")
		for t := 0; t <= 3600; t += 300 {
			// Triangular hyetograph peaking at 30 min.
			rate := 2e-5 * (1 - math.Abs(float64(t)-1800)/1800)
			fmt.Fprintf(&b, "%d,%g\n", t, rate)
		}
		if err := os.WriteFile(filepath.Join(inputs, rainfall.ProfileFile), []byte(b.String()), 0o644); err != nil {
			return err
		}
		log.Printf("rainfall: verbatim profile written")
	}

	log.Printf("inputs written to %s", inputs)
	return nil
}

func terrainTile(xll, yll float64) *domain.Grid {
	g := domain.NewGrid(domain.Georeference{
		NCols: tileCells, NRows: tileCells, XLL: xll, YLL: yll, CellSize: cellSize, CRS: crs,
	}, -9999)
	valley := originX + tileCells*cellSize
	for r := 0; r < tileCells; r++ {
		for c := 0; c < tileCells; c++ {
			x, y := g.CellCenter(r, c)
			g.Set(r, c, domain.Round3(20+0.03*math.Abs(x-valley)+0.01*(y-originY)))
		}
	}
	return g
}

func rect(minX, minY, maxX, maxY float64) geom.Polygon {
	return geom.Polygon{{
		{X: minX, Y: minY}, {X: maxX, Y: minY}, {X: maxX, Y: maxY}, {X: minX, Y: maxY}, {X: minX, Y: minY},
	}}
}

// ── Fake solver outputs ──

// writeSurfaceMaps floods the prepared DEM from its lowest cell upwards:
// depth grows linearly per step up to 0.5 m at the lowest ground.
func writeSurfaceMaps(runDir string, steps int) error {
	if steps < 1 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}
	dem, err := asciigrid.ReadFile(filepath.Join(runDir, citycat.DEMFile))
	if err != nil {
		return err
	}
	low, high := math.Inf(1), math.Inf(-1)
	for _, v := range dem.Data {
		if dem.IsNoData(v) {
			continue
		}
		low, high = math.Min(low, v), math.Max(high, v)
	}
	if math.IsInf(low, 1) {
		return fmt.Errorf("dem holds no data")
	}
	reach := (high - low) / 2
	if reach == 0 {
		reach = 1
	}

	dir := filepath.Join(runDir, citycat.SurfaceMapsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	maxDepth := make([]float64, len(dem.Data))
	for k := 1; k <= steps; k++ {
		frac := float64(k) / float64(steps)
		var b strings.Builder
		b.WriteString("XCen,YCen,Depth,Vx,Vy\n")
		for r := 0; r < dem.NRows; r++ {
			for c := 0; c < dem.NCols; c++ {
				v := dem.At(r, c)
				if dem.IsNoData(v) {
					continue
				}
				depth := math.Max(0, 0.5*frac*(1-(v-low)/reach))
				i := dem.Index(r, c)
				maxDepth[i] = math.Max(maxDepth[i], depth)
				x, y := dem.CellCenter(r, c)
				fmt.Fprintf(&b, "%g,%g,%.3f,%.3f,%.3f\n", x, y, depth, depth*0.4, -depth*0.2)
			}
		}
		name := fmt.Sprintf("R1_C1_T%d_%dmin.csv", k, k*10)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0o644); err != nil {
			return err
		}
	}

	// Dry cells are left out of the summary table, as the solver does.
	var b strings.Builder
	b.WriteString("XCen,YCen,Depth\n")
	for r := 0; r < dem.NRows; r++ {
		for c := 0; c < dem.NCols; c++ {
			d := maxDepth[dem.Index(r, c)]
			if d <= 0 {
				continue
			}
			x, y := dem.CellCenter(r, c)
			fmt.Fprintf(&b, "%g,%g,%.3f\n", x, y, d)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, citycat.MaxDepthFile), []byte(b.String()), 0o644); err != nil {
		return err
	}
	log.Printf("surface maps: %d timesteps written to %s", steps, dir)
	return nil
}
