// Package asciigrid reads and writes ESRI ASCII grids, the raster format the
// solver consumes and the format derived rasters are published in.
package asciigrid

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/citycat-pipeline/internal/domain"
)

// DefaultNoData is used when a grid header omits NODATA_value.
const DefaultNoData = -9999.0

// Read parses an ESRI ASCII grid. Both corner and centre registration are
// accepted; the result is always corner registered.
func Read(r io.Reader) (*domain.Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	sc.Split(bufio.ScanWords)

	header := map[string]float64{}
	var first string
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			first = sc.Text()
			break
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("%w: grid header %q has no value", domain.ErrFormat, key)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: grid header %q: %v", domain.ErrFormat, key, err)
		}
		header[key] = v
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read grid: %w", err)
	}

	ref, nodata, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	g := domain.NewGrid(ref, nodata)
	n := 0
	push := func(tok string) error {
		if n >= len(g.Data) {
			return fmt.Errorf("%w: grid has more than %d values", domain.ErrFormat, len(g.Data))
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return fmt.Errorf("%w: grid value %d: %v", domain.ErrFormat, n+1, err)
		}
		g.Data[n] = v
		n++
		return nil
	}
	if first != "" {
		if err := push(first); err != nil {
			return nil, err
		}
	}
	for sc.Scan() {
		if err := push(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read grid: %w", err)
	}
	if n != len(g.Data) {
		return nil, fmt.Errorf("%w: grid has %d values, header declares %d", domain.ErrFormat, n, len(g.Data))
	}
	return g, nil
}

func parseHeader(h map[string]float64) (domain.Georeference, float64, error) {
	for _, k := range []string{"ncols", "nrows", "cellsize"} {
		if _, ok := h[k]; !ok {
			return domain.Georeference{}, 0, fmt.Errorf("%w: grid header missing %s", domain.ErrFormat, k)
		}
	}
	ref := domain.Georeference{
		NCols:    int(h["ncols"]),
		NRows:    int(h["nrows"]),
		CellSize: h["cellsize"],
	}
	if ref.NCols <= 0 || ref.NRows <= 0 || !(ref.CellSize > 0) {
		return ref, 0, fmt.Errorf("%w: invalid grid dimensions %dx%d cellsize %g", domain.ErrFormat, ref.NCols, ref.NRows, ref.CellSize)
	}

	half := ref.CellSize / 2
	switch {
	case has(h, "xllcorner") && has(h, "yllcorner"):
		ref.XLL, ref.YLL = h["xllcorner"], h["yllcorner"]
	case has(h, "xllcenter") && has(h, "yllcenter"):
		ref.XLL, ref.YLL = h["xllcenter"]-half, h["yllcenter"]-half
	default:
		return ref, 0, fmt.Errorf("%w: grid header missing lower-left origin", domain.ErrFormat)
	}

	nodata := DefaultNoData
	if v, ok := h["nodata_value"]; ok {
		nodata = v
	}
	return ref, nodata, nil
}

func has(h map[string]float64, k string) bool {
	_, ok := h[k]
	return ok
}

// Write encodes g with a corner-registered header, one grid row per line.
func Write(w io.Writer, g *domain.Grid) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols        %d\n", g.NCols)
	fmt.Fprintf(bw, "nrows        %d\n", g.NRows)
	fmt.Fprintf(bw, "xllcorner    %s\n", formatFloat(g.XLL))
	fmt.Fprintf(bw, "yllcorner    %s\n", formatFloat(g.YLL))
	fmt.Fprintf(bw, "cellsize     %s\n", formatFloat(g.CellSize))
	fmt.Fprintf(bw, "NODATA_value %s\n", formatFloat(g.NoData))
	for row := 0; row < g.NRows; row++ {
		for col := 0; col < g.NCols; col++ {
			if col > 0 {
				bw.WriteByte(' ')
			}
			v := g.At(row, col)
			if g.IsNoData(v) {
				v = g.NoData
			}
			bw.WriteString(formatFloat(v))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ReadFile reads a grid and, when present, its .prj sidecar into CRS.
func ReadFile(path string) (*domain.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open grid: %w", err)
	}
	defer f.Close()

	g, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if prj, err := os.ReadFile(sidecar(path)); err == nil {
		g.CRS = strings.TrimSpace(string(prj))
	}
	return g, nil
}

// WriteFile writes g to path and a .prj sidecar when g carries a CRS.
func WriteFile(path string, g *domain.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create grid: %w", err)
	}
	if err := Write(f, g); err != nil {
		f.Close()
		return fmt.Errorf("write grid: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close grid: %w", err)
	}
	if g.CRS == "" {
		return nil
	}
	if err := os.WriteFile(sidecar(path), []byte(g.CRS+"\n"), 0o644); err != nil {
		return fmt.Errorf("write projection: %w", err)
	}
	return nil
}

// ReadDir reads every .asc file in dir in lexical order.
func ReadDir(dir string) ([]*domain.Grid, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.asc"))
	if err != nil {
		return nil, fmt.Errorf("list grids: %w", err)
	}
	grids := make([]*domain.Grid, 0, len(paths))
	for _, p := range paths {
		g, err := ReadFile(p)
		if err != nil {
			return nil, err
		}
		grids = append(grids, g)
	}
	return grids, nil
}

func sidecar(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
}
